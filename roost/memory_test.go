package roost

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGuildID = "123456789012345678"

func newTestMemoryStore(t testing.TB) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore(t.TempDir(), testLogger(t))
	require.NoError(t, err)
	return store
}

func TestMemoryStore_RememberRecall(t *testing.T) {
	store := newTestMemoryStore(t)

	rec, err := store.Remember(testGuildID, "WiFi", "hunter2", "user1", true)
	require.NoError(t, err)
	assert.Equal(t, "WiFi", rec.Nickname)
	assert.Equal(t, "hunter2", rec.Text)
	assert.Equal(t, "user1", rec.OwnerID)
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

	// lookups are case-insensitive, display casing is preserved
	got, err := store.Recall(testGuildID, "wifi")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	got, err = store.Recall(testGuildID, "  WIFI  ")
	require.NoError(t, err)
	assert.Equal(t, "WiFi", got.Nickname)
}

func TestMemoryStore_RecallNotFound(t *testing.T) {
	store := newTestMemoryStore(t)

	_, err := store.Recall(testGuildID, "nothing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GuildIsolation(t *testing.T) {
	store := newTestMemoryStore(t)
	otherGuild := "987654321098765432"

	_, err := store.Remember(testGuildID, "key", "value one", "user1", true)
	require.NoError(t, err)
	_, err = store.Remember(otherGuild, "key", "value two", "user2", true)
	require.NoError(t, err)

	rec, err := store.Recall(testGuildID, "key")
	require.NoError(t, err)
	assert.Equal(t, "value one", rec.Text)

	rec, err = store.Recall(otherGuild, "key")
	require.NoError(t, err)
	assert.Equal(t, "value two", rec.Text)

	// forgetting in one guild leaves the other untouched
	require.NoError(t, store.Forget(testGuildID, "key", "user1"))
	_, err = store.Recall(testGuildID, "key")
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err = store.Recall(otherGuild, "key")
	require.NoError(t, err)
	assert.Equal(t, "value two", rec.Text)
}

func TestMemoryStore_Validation(t *testing.T) {
	store := newTestMemoryStore(t)

	testCases := []struct {
		name     string
		guildID  string
		nickname string
		text     string
		ownerID  string
	}{
		{
			name:     "empty nickname",
			guildID:  testGuildID,
			nickname: "   ",
			text:     "something",
			ownerID:  "user1",
		},
		{
			name:     "empty text",
			guildID:  testGuildID,
			nickname: "nick",
			text:     "",
			ownerID:  "user1",
		},
		{
			name:     "nickname too long",
			guildID:  testGuildID,
			nickname: strings.Repeat("n", 101),
			text:     "something",
			ownerID:  "user1",
		},
		{
			name:     "text too long",
			guildID:  testGuildID,
			nickname: "nick",
			text:     strings.Repeat("t", 1001),
			ownerID:  "user1",
		},
		{
			name:     "empty owner",
			guildID:  testGuildID,
			nickname: "nick",
			text:     "something",
			ownerID:  "",
		},
		{
			name:     "empty guild id",
			guildID:  "",
			nickname: "nick",
			text:     "something",
			ownerID:  "user1",
		},
		{
			name:     "non-numeric guild id",
			guildID:  "../../etc/passwd",
			nickname: "nick",
			text:     "something",
			ownerID:  "user1",
		},
	}

	for _, tc := range testCases {
		t.Run(
			tc.name, func(t *testing.T) {
				_, err := store.Remember(
					tc.guildID,
					tc.nickname,
					tc.text,
					tc.ownerID,
					true,
				)
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
			},
		)
	}
}

func TestMemoryStore_BoundaryLengths(t *testing.T) {
	store := newTestMemoryStore(t)

	// exactly at the limits is accepted
	_, err := store.Remember(
		testGuildID,
		strings.Repeat("n", 100),
		strings.Repeat("t", 1000),
		"user1",
		true,
	)
	require.NoError(t, err)
}

func TestMemoryStore_DuplicateWithoutUpsert(t *testing.T) {
	store := newTestMemoryStore(t)

	_, err := store.Remember(testGuildID, "Nick", "original", "user1", true)
	require.NoError(t, err)

	_, err = store.Remember(testGuildID, "nick", "replacement", "user2", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)

	// the original survives
	rec, err := store.Recall(testGuildID, "nick")
	require.NoError(t, err)
	assert.Equal(t, "original", rec.Text)
	assert.Equal(t, "user1", rec.OwnerID)
}

func TestMemoryStore_UpsertTimestamps(t *testing.T) {
	store := newTestMemoryStore(t)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	created, err := store.Remember(testGuildID, "nick", "first", "user1", true)
	require.NoError(t, err)

	// overwrite without the clock advancing: UpdatedAt must still move
	// strictly past CreatedAt
	updated, err := store.Remember(testGuildID, "nick", "second", "user1", true)
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Greater(t, updated.UpdatedAt, updated.CreatedAt)
	assert.Equal(t, "user1", updated.OwnerID)
	assert.Equal(t, "second", updated.Text)

	store.now = func() time.Time { return base.Add(time.Minute) }
	later, err := store.Remember(testGuildID, "nick", "third", "user1", true)
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, later.CreatedAt)
	assert.Equal(t, base.Add(time.Minute).UnixMilli(), later.UpdatedAt)
}

func TestMemoryStore_OverwriteRequiresOwner(t *testing.T) {
	store := newTestMemoryStore(t)

	_, err := store.Remember(testGuildID, "nick", "original", "owner", true)
	require.NoError(t, err)

	// an overwrite by someone else can't take the record over
	_, err = store.Remember(testGuildID, "nick", "hijacked", "someone-else", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermission)

	rec, err := store.Recall(testGuildID, "nick")
	require.NoError(t, err)
	assert.Equal(t, "original", rec.Text)
	assert.Equal(t, "owner", rec.OwnerID)

	// the owner still can
	_, err = store.Remember(testGuildID, "nick", "revised", "owner", true)
	require.NoError(t, err)
}

func TestMemoryStore_ForgetPermissions(t *testing.T) {
	store := newTestMemoryStore(t)

	_, err := store.Remember(testGuildID, "nick", "text", "owner", true)
	require.NoError(t, err)

	err = store.Forget(testGuildID, "nick", "someone-else")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermission)

	// still present after the rejected delete
	_, err = store.Recall(testGuildID, "nick")
	require.NoError(t, err)

	require.NoError(t, store.Forget(testGuildID, "nick", "owner"))

	// second delete reports not found
	err = store.Forget(testGuildID, "nick", "owner")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_List(t *testing.T) {
	store := newTestMemoryStore(t)

	assert.Empty(t, store.List(testGuildID))

	for _, nickname := range []string{"zulu", "Alpha", "mike"} {
		_, err := store.Remember(testGuildID, nickname, "text", "user1", true)
		require.NoError(t, err)
	}

	records := store.List(testGuildID)
	require.Len(t, records, 3)
	assert.Equal(t, "Alpha", records[0].Nickname)
	assert.Equal(t, "mike", records[1].Nickname)
	assert.Equal(t, "zulu", records[2].Nickname)
}

func TestMemoryStore_ReloadFromDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := NewMemoryStore(dir, testLogger(t))
	require.NoError(t, err)

	rec, err := store.Remember(testGuildID, "WiFi", "hunter2", "user1", true)
	require.NoError(t, err)

	reloaded, err := NewMemoryStore(dir, testLogger(t))
	require.NoError(t, err)

	got, err := reloaded.Recall(testGuildID, "wifi")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	counts := reloaded.Count()
	assert.Equal(t, 1, counts[testGuildID])
}

func TestMemoryStore_CorruptDocumentSkipped(t *testing.T) {
	dir := t.TempDir()
	goodGuild := testGuildID
	badGuild := "222222222222222222"

	store, err := NewMemoryStore(dir, testLogger(t))
	require.NoError(t, err)
	_, err = store.Remember(goodGuild, "nick", "text", "user1", true)
	require.NoError(t, err)

	require.NoError(
		t,
		os.WriteFile(
			filepath.Join(dir, badGuild+".json"),
			[]byte("{not json"),
			0o644,
		),
	)

	reloaded, err := NewMemoryStore(dir, testLogger(t))
	require.NoError(t, err)

	_, err = reloaded.Recall(goodGuild, "nick")
	require.NoError(t, err)
	assert.Empty(t, reloaded.List(badGuild))
}

func TestMemoryStore_StaleTempFileRemoved(t *testing.T) {
	dir := t.TempDir()

	store, err := NewMemoryStore(dir, testLogger(t))
	require.NoError(t, err)
	_, err = store.Remember(testGuildID, "nick", "text", "user1", true)
	require.NoError(t, err)

	stale := filepath.Join(dir, testGuildID+".json.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o644))

	reloaded, err := NewMemoryStore(dir, testLogger(t))
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))

	// the committed document is untouched
	rec, err := reloaded.Recall(testGuildID, "nick")
	require.NoError(t, err)
	assert.Equal(t, "text", rec.Text)
}

func TestMemoryStore_PersistenceFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	store, err := NewMemoryStore(dir, testLogger(t))
	require.NoError(t, err)

	_, err = store.Remember(testGuildID, "nick", "original", "user1", true)
	require.NoError(t, err)

	// occupy the temp file path with a directory so the write fails
	blocker := filepath.Join(dir, testGuildID+".json.tmp")
	require.NoError(t, os.Mkdir(blocker, 0o755))

	_, err = store.Remember(testGuildID, "nick", "replacement", "user1", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)

	// in-memory state rolled back to match disk
	rec, err := store.Recall(testGuildID, "nick")
	require.NoError(t, err)
	assert.Equal(t, "original", rec.Text)
	assert.Equal(t, "user1", rec.OwnerID)

	err = store.Forget(testGuildID, "nick", "user1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)

	_, err = store.Recall(testGuildID, "nick")
	require.NoError(t, err)
}

func TestMemoryStore_DocumentFormat(t *testing.T) {
	dir := t.TempDir()
	store, err := NewMemoryStore(dir, testLogger(t))
	require.NoError(t, err)

	_, err = store.Remember(testGuildID, "WiFi", "hunter2", "user1", true)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, testGuildID+".json"))
	require.NoError(t, err)

	var doc map[string]MemoryRecord
	require.NoError(t, json.Unmarshal(data, &doc))
	rec, ok := doc["WiFi"]
	require.True(t, ok, "document should be keyed by display nickname")
	assert.Equal(t, "hunter2", rec.Text)
}
