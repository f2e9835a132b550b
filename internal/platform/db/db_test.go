package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRequiresDSN(t *testing.T) {
	_, err := Connect(context.Background(), "", PoolOptions{})
	assert.Error(t, err)
}

func TestOpenSQLitePingAndClose(t *testing.T) {
	database, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	require.NoError(t, database.Ping(context.Background()))
	require.NoError(t, database.Close())
	assert.Error(t, database.Ping(context.Background()))
}

func TestNilDatabase(t *testing.T) {
	var database *Database
	assert.NoError(t, database.Close())
	assert.Error(t, database.Ping(context.Background()))
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite("")
	assert.Error(t, err)
}
