package conversation

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irislabs/iris-memory/internal/models"
	"github.com/irislabs/iris-memory/internal/store"
)

func newTestManager(t *testing.T, userID string) *Manager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(t.TempDir(), "memory.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewManager(st, userID, logger)
}

func TestAddMessage_InvalidRole(t *testing.T) {
	m := newTestManager(t, "alice")

	_, err := m.AddMessage(context.Background(), "system", "not allowed", DefaultTTL)
	require.Error(t, err)
}

func TestAddMessage_SetsExpiry(t *testing.T) {
	m := newTestManager(t, "alice")

	msg, err := m.AddMessage(context.Background(), models.RoleUser, "hello", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "alice", msg.UserID)
	assert.Equal(t, time.Hour, msg.ExpiresAt.Sub(msg.CreatedAt))
}

func TestGetHistory_ChronologicalWindow(t *testing.T) {
	m := newTestManager(t, "alice")
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		_, err := m.AddMessage(ctx, models.RoleUser, content, DefaultTTL)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond) // distinct created_at
	}

	// The window selects the newest messages but returns them oldest first.
	messages, err := m.GetHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "second", messages[0].Content)
	assert.Equal(t, "third", messages[1].Content)
}

func TestGetHistory_ZeroTTLNeverSurfaces(t *testing.T) {
	m := newTestManager(t, "alice")
	ctx := context.Background()

	_, err := m.AddMessage(ctx, models.RoleAssistant, "ephemeral", 0)
	require.NoError(t, err)

	messages, err := m.GetHistory(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestCleanupExpired_CrossesTenants(t *testing.T) {
	alice := newTestManager(t, "alice")
	bob := NewManager(alice.store, "bob", alice.logger)
	ctx := context.Background()

	_, err := alice.AddMessage(ctx, models.RoleUser, "gone soon", 0)
	require.NoError(t, err)
	_, err = bob.AddMessage(ctx, models.RoleUser, "also gone", 0)
	require.NoError(t, err)
	_, err = bob.AddMessage(ctx, models.RoleUser, "stays", DefaultTTL)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond) // let the zero-TTL rows age past expiry

	removed, err := alice.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed, "cleanup purges every tenant's expired rows")

	messages, err := bob.GetHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "stays", messages[0].Content)
}

func TestClearHistory_OnlyOwnTenant(t *testing.T) {
	alice := newTestManager(t, "alice")
	bob := NewManager(alice.store, "bob", alice.logger)
	ctx := context.Background()

	_, err := alice.AddMessage(ctx, models.RoleUser, "mine", DefaultTTL)
	require.NoError(t, err)
	_, err = bob.AddMessage(ctx, models.RoleUser, "bob's", DefaultTTL)
	require.NoError(t, err)

	removed, err := alice.ClearHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	bobMessages, err := bob.GetHistory(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, bobMessages, 1)
}

func TestGetHistory_DefaultLimit(t *testing.T) {
	m := newTestManager(t, "alice")
	ctx := context.Background()

	for i := 0; i < DefaultHistoryLimit+3; i++ {
		_, err := m.AddMessage(ctx, models.RoleUser, "msg", DefaultTTL)
		require.NoError(t, err)
	}

	messages, err := m.GetHistory(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, messages, DefaultHistoryLimit)
}
