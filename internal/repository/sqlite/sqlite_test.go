package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booksys/internal/domain"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestRepo creates a repository backed by a temporary database file
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "booksys.db"))
	require.NoError(t, err, "failed to create test repository")
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func createTestUser(t *testing.T, repo *Repository, username string) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Nickname:     username,
		Gender:       domain.GenderUnknown,
		Age:          20,
		PasswordHash: "$argon2id$fake",
		CreatedAt:    time.Now(),
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

func testBook(owner, title string) *domain.Book {
	now := time.Now()
	return &domain.Book{
		OwnerID:     owner,
		Title:       title,
		ISBN:        "9787111547426",
		Author:      "Ayachi Nene",
		Publisher:   "Yuzusoft",
		Description: "A book called " + title,
		Cover:       "https://example.com/" + title + ".png",
		Price:       12.5,
		Extra:       map[string]any{"tags": []any{"novel"}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ============================================================================
// Migration Tests
// ============================================================================

func TestMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "booksys.db")

	repo, err := New(path)
	require.NoError(t, err)

	version, dirty, err := repo.MigrateVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)
	assert.False(t, dirty)
	require.NoError(t, repo.Close())

	// reopening an up-to-date database is a no-op
	repo, err = New(path)
	require.NoError(t, err)
	defer repo.Close()

	version, _, err = repo.MigrateVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)
}

func TestMigrateVersionBeforeFirstMigration(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer repo.Close()

	version, dirty, err := repo.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)
}

func TestInMemoryDatabase(t *testing.T) {
	repo, err := New(":memory:")
	require.NoError(t, err)
	defer repo.Close()

	user := createTestUser(t, repo, "memory")
	got, err := repo.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

// ============================================================================
// User Tests
// ============================================================================

func TestUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := createTestUser(t, repo, "lemon")

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "lemon", got.Username)
		assert.Equal(t, user.PasswordHash, got.PasswordHash)
		assert.WithinDuration(t, user.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("get by username", func(t *testing.T) {
		got, err := repo.GetUserByUsername(ctx, "lemon")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("missing user", func(t *testing.T) {
		got, err := repo.GetUserByUsername(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		dup := *user
		dup.ID = uuid.NewString()
		err := repo.CreateUser(ctx, &dup)
		assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)
	})
}

// ============================================================================
// Session Tests
// ============================================================================

func TestSessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "lemon")
	now := time.Now()

	live := &domain.Session{ID: uuid.NewString(), UserID: user.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	stale := &domain.Session{ID: uuid.NewString(), UserID: user.ID, ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour)}
	require.NoError(t, repo.CreateSession(ctx, live))
	require.NoError(t, repo.CreateSession(ctx, stale))

	got, err := repo.GetSession(ctx, live.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.UserID)
	assert.WithinDuration(t, live.ExpiresAt, got.ExpiresAt, time.Millisecond)

	n, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err = repo.GetSession(ctx, stale.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.DeleteSession(ctx, live.ID))
	require.NoError(t, repo.DeleteSession(ctx, live.ID))
	got, err = repo.GetSession(ctx, live.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionRequiresUser(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.CreateSession(context.Background(), &domain.Session{
		ID:        uuid.NewString(),
		UserID:    "missing",
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	})
	assert.Error(t, err)
}

// ============================================================================
// Book Tests
// ============================================================================

func TestBookCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	book := testBook("alice", "Go")
	require.NoError(t, repo.CreateBook(ctx, book))
	require.NotZero(t, book.ID)

	got, err := repo.GetBook(ctx, "alice", book.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, book.Title, got.Title)
	assert.Equal(t, book.Cover, got.Cover)
	assert.Equal(t, book.Price, got.Price)
	assert.Equal(t, map[string]any{"tags": []any{"novel"}}, got.Extra)
	assert.WithinDuration(t, book.CreatedAt, got.CreatedAt, time.Millisecond)

	got.Title = "Go, Second Edition"
	got.Extra = nil
	ok, err := repo.UpdateBook(ctx, got)
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := repo.GetBook(ctx, "alice", book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go, Second Edition", again.Title)
	assert.Equal(t, map[string]any{}, again.Extra)

	ok, err = repo.DeleteBook(ctx, "alice", book.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	gone, err := repo.GetBook(ctx, "alice", book.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestBooksAreScopedToOwner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	book := testBook("alice", "Go")
	require.NoError(t, repo.CreateBook(ctx, book))

	got, err := repo.GetBook(ctx, "mallory", book.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	stolen := *book
	stolen.OwnerID = "mallory"
	stolen.Title = "mine now"
	ok, err := repo.UpdateBook(ctx, &stolen)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteBook(ctx, "mallory", book.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := repo.ListBooks(ctx, "mallory", domain.BookFilter{}, domain.Page{Size: 10})
	require.NoError(t, err)
	assert.Empty(t, list)

	n, err := repo.CountBooks(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestListBooks(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, title := range []string{"Gamma", "Alpha", "Beta", "Delta"} {
		require.NoError(t, repo.CreateBook(ctx, testBook("alice", title)))
	}
	other := testBook("alice", "Epsilon")
	other.Author = "Someone Else"
	require.NoError(t, repo.CreateBook(ctx, other))

	titles := func(books []domain.Book) []string {
		var out []string
		for _, b := range books {
			out = append(out, b.Title)
		}
		return out
	}

	t.Run("ordered by title", func(t *testing.T) {
		books, err := repo.ListBooks(ctx, "alice", domain.BookFilter{}, domain.Page{Size: 20})
		require.NoError(t, err)
		assert.Equal(t, []string{"Alpha", "Beta", "Delta", "Epsilon", "Gamma"}, titles(books))
	})

	t.Run("paged", func(t *testing.T) {
		books, err := repo.ListBooks(ctx, "alice", domain.BookFilter{}, domain.Page{Size: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"Delta", "Epsilon"}, titles(books))
	})

	t.Run("filtered case-insensitively", func(t *testing.T) {
		books, err := repo.ListBooks(ctx, "alice", domain.BookFilter{Author: "someone"}, domain.Page{Size: 20})
		require.NoError(t, err)
		assert.Equal(t, []string{"Epsilon"}, titles(books))

		books, err = repo.ListBooks(ctx, "alice", domain.BookFilter{Title: "ta", Extra: "NOVEL"}, domain.Page{Size: 20})
		require.NoError(t, err)
		assert.Equal(t, []string{"Beta", "Delta"}, titles(books))
	})
}

func TestVacuum(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.CreateBook(context.Background(), testBook("alice", "Go")))
	require.NoError(t, repo.Vacuum(context.Background()))
}
