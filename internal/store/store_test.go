package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM actions").Scan(&count))
	assert.Zero(t, count)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, verifyPragma(s, "journal_mode", "wal"))
	assert.NoError(t, verifyPragma(s, "synchronous", "1"))
	assert.NoError(t, verifyPragma(s, "busy_timeout", "5000"))
	assert.NoError(t, verifyPragma(s, "foreign_keys", "1"))

	version, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion(), version)
}

func TestOpen_RefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", CurrentSchemaVersion()+1))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestOpen_InMemoryJournalsAreSeparate(t *testing.T) {
	a, err := Open(":memory:")
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(":memory:")
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, a.WriteAction(ctx, testAction("deposit", 1, map[string]any{"amount": int64(5)}), nil))

	seq, err := b.LastSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestOpen_MigrationCreatesIndex(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_events_issuance'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_events_issuance", name)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	assert.Error(t, err)
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}
