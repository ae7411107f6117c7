package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *SQLiteManager {
	t.Helper()
	m, err := NewSQLiteManager(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	require.NoError(t, m.InitTables())
	t.Cleanup(func() { m.Close() })
	return m
}

func TestTokenLifecycle(t *testing.T) {
	m := newTestManager(t)

	assert.Empty(t, m.GetToken())

	require.NoError(t, m.SaveToken("tok-1"))
	assert.Equal(t, "tok-1", m.GetToken())

	// Il salvataggio sostituisce il token precedente
	require.NoError(t, m.SaveToken("tok-2"))
	assert.Equal(t, "tok-2", m.GetToken())

	require.NoError(t, m.DeleteToken())
	assert.Empty(t, m.GetToken())
}
