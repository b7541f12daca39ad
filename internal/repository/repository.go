package repository

import (
	"context"
	"time"

	"booksys/internal/domain"
)

// UserStore persists user accounts
type UserStore interface {
	// CreateUser returns domain.ErrConflict if the username is taken
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

// SessionStore persists login sessions
type SessionStore interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// BookStore persists books. Every method is scoped to an owner.
type BookStore interface {
	// CreateBook assigns book.ID
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, ownerID string, id int64) (*domain.Book, error)
	ListBooks(ctx context.Context, ownerID string, filter domain.BookFilter, page domain.Page) ([]domain.Book, error)
	CountBooks(ctx context.Context, ownerID string) (int64, error)
	// UpdateBook reports false if no book with that id belongs to book.OwnerID
	UpdateBook(ctx context.Context, book *domain.Book) (bool, error)
	DeleteBook(ctx context.Context, ownerID string, id int64) (bool, error)
}

// Repository is the complete data access surface
type Repository interface {
	UserStore
	SessionStore
	BookStore

	// Vacuum compacts the database file
	Vacuum(ctx context.Context) error

	// Close releases resources
	Close() error
}
