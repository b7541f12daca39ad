package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"booksys/internal/domain"
)

const userColumns = `id, username, nickname, gender, age, password_hash, created_at`

// userRow holds all columns from a user query for scanning
type userRow struct {
	ID           string
	Username     string
	Nickname     string
	Gender       int
	Age          int
	PasswordHash string
	CreatedAt    int64
}

// scanArgs returns pointers in userColumns order
func (r *userRow) scanArgs() []interface{} {
	return []interface{}{&r.ID, &r.Username, &r.Nickname, &r.Gender, &r.Age, &r.PasswordHash, &r.CreatedAt}
}

func (r *userRow) toDomain() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Username:     r.Username,
		Nickname:     r.Nickname,
		Gender:       domain.Gender(r.Gender),
		Age:          r.Age,
		PasswordHash: r.PasswordHash,
		CreatedAt:    fromMillis(r.CreatedAt),
	}
}

// CreateUser inserts a new user
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.Nickname, int(user.Gender), user.Age, user.PasswordHash, toMillis(user.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Username, domain.ErrConflict)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByUsername retrieves a user by exact username
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *Repository) getUser(ctx context.Context, query string, arg string) (*domain.User, error) {
	var row userRow
	err := r.db.QueryRowContext(ctx, query, arg).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return row.toDomain(), nil
}
