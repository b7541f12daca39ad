package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Gender is the self-declared gender of a user
type Gender int

const (
	GenderUnknown Gender = 0
	GenderMale    Gender = 1
	GenderFemale  Gender = 2
)

// Valid reports whether g is one of the known values
func (g Gender) Valid() bool {
	return g >= GenderUnknown && g <= GenderFemale
}

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	default:
		return "unknown"
	}
}

var (
	usernamePattern  = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)
	badLetterPattern = regexp.MustCompile(`[<>{}\[\]\\]`)
)

const (
	UsernameMinLen = 3
	UsernameMaxLen = 20
	NicknameMaxLen = 20
)

// User represents a registered account
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Nickname     string    `json:"nickname"`
	Gender       Gender    `json:"gender"`
	Age          int       `json:"age"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Normalize trims surrounding whitespace from user-supplied names
func (u *User) Normalize() {
	u.Username = strings.TrimSpace(u.Username)
	u.Nickname = strings.TrimSpace(u.Nickname)
}

// Validate checks the profile fields. The password hash is not inspected.
func (u *User) Validate() error {
	if err := ValidateUsername(u.Username); err != nil {
		return err
	}

	n := utf8.RuneCountInString(u.Nickname)
	if n < 1 || n > NicknameMaxLen {
		return invalid("nickname", "length must be between 1 and %d", NicknameMaxLen)
	}
	if badLetterPattern.MatchString(u.Nickname) {
		return invalid("nickname", "bad letter detected")
	}

	if !u.Gender.Valid() {
		return invalid("gender", "unknown value %d", int(u.Gender))
	}
	if u.Age < 0 {
		return invalid("age", "must not be negative")
	}
	return nil
}

// ValidateUsername checks the username charset and length
func ValidateUsername(username string) error {
	n := len(username)
	if n < UsernameMinLen || n > UsernameMaxLen {
		return invalid("username", "length must be between %d and %d", UsernameMinLen, UsernameMaxLen)
	}
	if !usernamePattern.MatchString(username) {
		return invalid("username", "only letters, digits, '_' and '-' are allowed")
	}
	return nil
}

// PasswordMaxLen bounds the plaintext accepted at registration
const PasswordMaxLen = 128

// ValidatePassword checks a plaintext password before hashing
func ValidatePassword(password string) error {
	if password == "" {
		return invalid("password", "must not be empty")
	}
	if len(password) > PasswordMaxLen {
		return invalid("password", "must be at most %d bytes", PasswordMaxLen)
	}
	return nil
}
