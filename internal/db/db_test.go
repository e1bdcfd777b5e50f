package db

import (
	"context"
	"testing"

	"ctchen222/user-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectAndInitializeSchema(t *testing.T) {
	ctx := context.Background()

	pool, err := Connect(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, InitializeSchema(ctx, pool))
	// Idempotent.
	require.NoError(t, InitializeSchema(ctx, pool))

	var n int
	require.NoError(t, pool.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`))
	assert.Zero(t, n)

	_, err = pool.ExecContext(ctx, `INSERT INTO users (name, username, gender, email, password_hash) VALUES (?, ?, ?, ?, ?)`,
		"a", "alice", "f", "a@example.com", "x")
	require.NoError(t, err)
	_, err = pool.ExecContext(ctx, `INSERT INTO users (name, username, gender, email, password_hash) VALUES (?, ?, ?, ?, ?)`,
		"b", "alice", "m", "b@example.com", "x")
	assert.Error(t, err, "username must be unique")
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(context.Background(), config.DatabaseConfig{Driver: "nope", DSN: "x"})
	assert.Error(t, err)
}

func TestIsMemoryDSN(t *testing.T) {
	assert.True(t, isMemoryDSN(":memory:"))
	assert.True(t, isMemoryDSN("file:test?mode=memory&cache=shared"))
	assert.False(t, isMemoryDSN("./users.db"))
}
