package database

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekeep/vtt/internal/model"
)

func TestOpenSQLite_MemoryAndSetup(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.OpenSQLite(""))
	defer m.Close()

	assert.Equal(t, "sqlite", m.Dialect)
	assert.False(t, m.IsPostgres())
	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&model.ToolState{}))
	assert.True(t, m.DB.Migrator().HasTable(&model.SaveEvent{}))
}

func TestOpenSQLite_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vtt.db")
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.OpenSQLite(path))
	require.NoError(t, m.Setup())
	require.NoError(t, m.Close())
	assert.NoError(t, m.Close(), "second close is a no-op")
	assert.FileExists(t, path)
}

func TestSetup_NotConnected(t *testing.T) {
	assert.Error(t, NewManager(zerolog.Nop()).Setup())
}

func TestSqlitePragmas(t *testing.T) {
	assert.NotContains(t, sqlitePragmas(true), "PRAGMA journal_mode = WAL;")
	assert.Contains(t, sqlitePragmas(false), "PRAGMA journal_mode = WAL;")
}

func TestDumpToDisk(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.OpenSQLite(""))
	defer m.Close()
	require.NoError(t, m.Setup())

	path := filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, m.DumpToDisk(path))
	assert.FileExists(t, path)
	require.NoError(t, m.DumpToDisk(path), "overwrites an existing dump")

	assert.Error(t, m.DumpToDisk(""))
}
