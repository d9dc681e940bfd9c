package roost

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t testing.TB) *database {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database = filepath.Join(t.TempDir(), "roost_test.sqlite3")
	db, err := newDatabase(cfg, testLogger(t).Handler())
	require.NoError(t, err)
	return db
}

func TestDatabase_GetOrCreateUser(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	discordUser := discordgo.User{
		ID:         "user1",
		Username:   "someone",
		GlobalName: "Someone",
	}

	user, created, err := db.GetOrCreateUser(ctx, discordUser, 10)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "user1", user.ID)
	assert.Equal(t, "someone", user.Username)
	assert.Equal(t, 10, user.ChatLimit6h)
	assert.NotZero(t, user.LastSeen)
	assert.False(t, user.Ignored)

	// second call finds the existing row and refreshes the username
	discordUser.Username = "renamed"
	again, created, err := db.GetOrCreateUser(ctx, discordUser, 10)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "renamed", again.Username)
	assert.Equal(t, user.ChatLimit6h, again.ChatLimit6h)
}

func TestDatabase_GetOrCreateUser_SurfacesErrors(t *testing.T) {
	db := newTestDatabase(t)

	sqlDB, err := db.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	// a broken connection must not be mistaken for "row absent"
	user, _, err := db.GetOrCreateUser(
		context.Background(),
		discordgo.User{ID: "user1", Username: "someone"},
		10,
	)
	require.Error(t, err)
	assert.Nil(t, user)
}

func TestDatabase_ChatCountSince(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	for _, record := range []*ChatLog{
		{UserID: "user1", Prompt: "a", Response: "ok"},
		{UserID: "user1", Prompt: "b", Response: "ok"},
		{UserID: "user1", Prompt: "c", Error: "upstream exploded"},
		{UserID: "user2", Prompt: "d", Response: "ok"},
	} {
		require.NoError(t, db.Create(ctx, record))
	}

	since := time.Now().Add(-time.Hour)

	// failed relays and other users don't count
	count, err := db.ChatCountSince(ctx, "user1", since)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = db.ChatCountSince(ctx, "user2", since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = db.ChatCountSince(ctx, "user1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDatabase_CommandCounts(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	for _, command := range []string{"roll", "roll", "chat", "remember"} {
		require.NoError(
			t,
			db.Create(
				ctx,
				&CommandLog{Command: command, UserID: "user1"},
			),
		)
	}

	counts, err := db.CommandCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["roll"])
	assert.Equal(t, int64(1), counts["chat"])
	assert.Equal(t, int64(1), counts["remember"])
}

func TestDatabase_Updates(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	user, _, err := db.GetOrCreateUser(
		ctx,
		discordgo.User{ID: "user1", Username: "someone"},
		10,
	)
	require.NoError(t, err)

	require.NoError(
		t,
		db.Updates(ctx, user, map[string]any{"ignored": true, columnUserChatLimit6h: 2}),
	)

	reloaded, created, err := db.GetOrCreateUser(
		ctx,
		discordgo.User{ID: "user1", Username: "someone"},
		10,
	)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, reloaded.Ignored)
	assert.Equal(t, 2, reloaded.ChatLimit6h)
}
