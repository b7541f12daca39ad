package domain

import (
	"net/url"
	"strings"
	"time"
)

// ISBNLength is the number of digits in a normalized ISBN-13
const ISBNLength = 13

// Book is a catalog entry owned by a single user
type Book struct {
	ID          int64          `json:"id"`
	OwnerID     string         `json:"owner_id"`
	Title       string         `json:"title"`
	ISBN        string         `json:"isbn"`
	Author      string         `json:"author"`
	Publisher   string         `json:"publisher"`
	Description string         `json:"description"`
	Cover       string         `json:"cover"`
	Price       float64        `json:"price"`
	Extra       map[string]any `json:"extra"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NormalizeISBN strips hyphens and whitespace from an ISBN
func NormalizeISBN(isbn string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(isbn))
}

// ValidateISBN checks that a normalized ISBN is a 13-digit number
func ValidateISBN(isbn string) error {
	if len(isbn) != ISBNLength {
		return invalid("isbn", "ISBN should be a 13-digit number")
	}
	for _, c := range isbn {
		if c < '0' || c > '9' {
			return invalid("isbn", "ISBN should be a 13-digit number")
		}
	}
	return nil
}

// Normalize cleans user-supplied fields in place
func (b *Book) Normalize() {
	b.Title = strings.TrimSpace(b.Title)
	b.Cover = strings.TrimSpace(b.Cover)
	b.ISBN = NormalizeISBN(b.ISBN)
	if b.Extra == nil {
		b.Extra = make(map[string]any)
	}
}

// Validate checks a normalized book
func (b *Book) Validate() error {
	if b.Title == "" {
		return invalid("title", "must not be empty")
	}
	if err := ValidateISBN(b.ISBN); err != nil {
		return err
	}
	if err := ValidateCover(b.Cover); err != nil {
		return err
	}
	if b.Price < 0 {
		return invalid("price", "must not be negative")
	}
	return nil
}

// ValidateCover accepts an empty cover or an absolute URL
func ValidateCover(cover string) error {
	if cover == "" {
		return nil
	}
	u, err := url.Parse(cover)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("cover", "must be an absolute URL")
	}
	return nil
}

// BookPatch is a partial update of a book. Nil fields are left untouched.
type BookPatch struct {
	ID          int64           `json:"id"`
	Title       *string         `json:"title,omitempty"`
	ISBN        *string         `json:"isbn,omitempty"`
	Author      *string         `json:"author,omitempty"`
	Publisher   *string         `json:"publisher,omitempty"`
	Description *string         `json:"description,omitempty"`
	Cover       *string         `json:"cover,omitempty"`
	Price       *float64        `json:"price,omitempty"`
	Extra       *map[string]any `json:"extra,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p *BookPatch) Empty() bool {
	return p.Title == nil && p.ISBN == nil && p.Author == nil && p.Publisher == nil &&
		p.Description == nil && p.Cover == nil && p.Price == nil && p.Extra == nil
}

// Apply copies the set fields of the patch onto b, normalizing them
func (p *BookPatch) Apply(b *Book) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.ISBN != nil {
		b.ISBN = *p.ISBN
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Publisher != nil {
		b.Publisher = *p.Publisher
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Cover != nil {
		b.Cover = *p.Cover
	}
	if p.Price != nil {
		b.Price = *p.Price
	}
	if p.Extra != nil {
		b.Extra = *p.Extra
	}
	b.Normalize()
}

// BookFilter selects books by case-insensitive substring. Empty fields match
// everything.
type BookFilter struct {
	Title       string `json:"title,omitempty"`
	ISBN        string `json:"isbn,omitempty"`
	Author      string `json:"author,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Description string `json:"description,omitempty"`
	Extra       string `json:"extra,omitempty"`
}

// Page bounds a list query
type Page struct {
	Size   int `json:"page_size"`
	Offset int `json:"offset"`
}
