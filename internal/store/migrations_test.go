package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrations_SortedSQLOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "README.md", "010_c.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644))
	}

	files, err := listMigrations(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"001_a.sql", "002_b.sql", "010_c.sql"}, names)
}

func TestPendingMigrations(t *testing.T) {
	files := []string{"m/001_a.sql", "m/002_b.sql", "m/003_c.sql"}

	assert.Equal(t, files, pendingMigrations(files, nil))
	assert.Equal(t, []string{"m/003_c.sql"}, pendingMigrations(files, []string{"001_a.sql", "002_b.sql"}))
	assert.Empty(t, pendingMigrations(files, []string{"001_a.sql", "002_b.sql", "003_c.sql"}))
}

func TestRepoMigrationsPresent(t *testing.T) {
	files, err := listMigrations(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}
