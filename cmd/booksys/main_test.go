package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booksys/internal/auth"
	"booksys/internal/codec"
	"booksys/internal/config"
	"booksys/internal/domain"
	"booksys/internal/repository/sqlite"
	"booksys/internal/service"
)

// isolate keeps config discovery away from the host's real files
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", filepath.Join(dir, "home"))
	return dir
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

// seedCatalog creates user alice with two books in the database at path
func seedCatalog(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()

	logger, _ := test.NewNullLogger()
	repo, err := sqlite.New(path, sqlite.WithLogger(logger))
	require.NoError(t, err)
	defer repo.Close()

	hasher := auth.NewHasher(auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	accounts := service.NewAccountService(repo, repo, hasher, nil)
	user, err := accounts.Register(ctx, service.RegisterInput{Username: "alice", Password: "secret", Nickname: "Alice"})
	require.NoError(t, err)

	books := service.NewBookService(repo, nil, service.BookServiceConfig{}, logger)
	_, err = books.Add(ctx, user.ID, []domain.Book{
		{Title: "Go", ISBN: "9780134190440"},
		{Title: "Rust", ISBN: "9781718503106"},
	})
	require.NoError(t, err)
}

func exportedTitles(t *testing.T, data string) []string {
	t.Helper()
	books, err := codec.NewJSONCodec().Parse(strings.NewReader(data))
	require.NoError(t, err)
	var titles []string
	for _, b := range books {
		titles = append(titles, b.Title)
	}
	return titles
}

func TestExportCommand(t *testing.T) {
	dir := isolate(t)
	db := filepath.Join(dir, "books.db")
	seedCatalog(t, db)

	t.Run("stdout", func(t *testing.T) {
		out, err := runCmd(t, "--db", db, "--log-level", "error", "export", "--user", "alice")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Go", "Rust"}, exportedTitles(t, out))
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(dir, "catalog.json")
		out, err := runCmd(t, "--db", db, "--log-level", "error", "export", "-u", "alice", "-o", path)
		require.NoError(t, err)
		assert.Empty(t, out)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Go", "Rust"}, exportedTitles(t, string(data)))
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := runCmd(t, "--db", db, "--log-level", "error", "export", "-u", "alice", "-f", "yaml")
		require.NoError(t, err)
		books, err := codec.NewYAMLCodec().Parse(strings.NewReader(out))
		require.NoError(t, err)
		assert.Len(t, books, 2)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := runCmd(t, "--db", db, "--log-level", "error", "export", "-u", "bob")
		assert.ErrorContains(t, err, `user "bob" not found`)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := runCmd(t, "--db", db, "--log-level", "error", "export", "-u", "alice", "-f", "csv")
		assert.Error(t, err)
	})

	t.Run("user flag required", func(t *testing.T) {
		_, err := runCmd(t, "--db", db, "export")
		assert.Error(t, err)
	})
}

func TestInitConfigCommand(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "conf", "booksys.yaml")

	out, err := runCmd(t, "init-config", path, "--db", "/srv/books.db")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	cfg, _, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/books.db", cfg.Database.Path)

	_, err = runCmd(t, "init-config", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = runCmd(t, "init-config", path, "--force")
	require.NoError(t, err)
	cfg, _, err = config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Database.Path, cfg.Database.Path)
}

func TestInitConfigDefaultPath(t *testing.T) {
	dir := isolate(t)

	_, err := runCmd(t, "init-config")
	require.NoError(t, err)

	want := filepath.Join(dir, "xdg", config.ConfigDirName, "config.yaml")
	_, err = os.Stat(want)
	require.NoError(t, err)
	assert.Equal(t, want, config.FindConfigPath())
}

func TestMigrateAndPruneCommands(t *testing.T) {
	dir := isolate(t)
	db := filepath.Join(dir, "books.db")

	out, err := runCmd(t, "--db", db, "--log-level", "error", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "dirty: false")

	out, err = runCmd(t, "--db", db, "--log-level", "error", "prune-sessions")
	require.NoError(t, err)
	assert.Equal(t, "pruned 0 expired sessions\n", out)
}
