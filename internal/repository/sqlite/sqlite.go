package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"booksys/internal/repository"
	"booksys/internal/table"

	_ "modernc.org/sqlite"
)

var _ repository.Repository = (*Repository)(nil)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db    *sql.DB
	books *table.Table
	log   logrus.FieldLogger
}

// Option configures a Repository
type Option func(*Repository)

// WithLogger sets the logger used for migration output
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Repository) {
		r.log = l
	}
}

// New opens the database at dbPath, applies pending migrations and declares
// the books table
func New(dbPath string, opts ...Option) (*Repository, error) {
	repo, err := Open(dbPath, opts...)
	if err != nil {
		return nil, err
	}

	if err := repo.MigrateUp(); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := repo.initBooks(context.Background()); err != nil {
		repo.Close()
		return nil, err
	}

	return repo, nil
}

// Open opens the database without touching the schema
func Open(dbPath string, opts ...Option) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is a separate database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &Repository{db: db, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

func dsn(dbPath string) string {
	if dbPath == ":memory:" {
		return ":memory:?_pragma=foreign_keys(1)"
	}
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// DB exposes the underlying handle for maintenance commands
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Vacuum compacts the database file
func (r *Repository) Vacuum(ctx context.Context) error {
	if r.books != nil {
		return r.books.Vacuum(ctx)
	}
	if _, err := r.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
