package roost

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

const (
	// memoryTextMaxLength is the maximum length of stored memory text.
	memoryTextMaxLength = 1000

	// memoryNicknameMaxLength is the maximum length of a memory nickname.
	memoryNicknameMaxLength = 100

	memoryFileSuffix = ".json"
	memoryTempSuffix = ".json.tmp"
)

// Error kinds surfaced by MemoryStore. The command layer matches on these
// with errors.Is to pick a user-facing message; the store never swallows
// or re-maps an error.
var (
	// ErrValidation indicates bad input shape or size.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate indicates a nickname collision with upsert disabled.
	ErrDuplicate = errors.New("nickname already exists")

	// ErrNotFound indicates no record exists under the given nickname.
	ErrNotFound = errors.New("no such memory")

	// ErrPermission indicates the requester isn't allowed to delete a record.
	ErrPermission = errors.New("not permitted")

	// ErrPersistence indicates the on-disk document could not be written
	// or replaced. The in-memory partition is rolled back before this is
	// returned.
	ErrPersistence = errors.New("persistence failed")
)

// MemoryRecord is a single stored memory: user-supplied text filed under a
// nickname, scoped to one guild. Nickname comparison is case-insensitive;
// the original casing is preserved for display.
type MemoryRecord struct {
	Nickname  string `json:"nickname"`
	Text      string `json:"text"`
	OwnerID   string `json:"owner_id"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

func (r MemoryRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("nickname", r.Nickname),
		slog.String("owner_id", r.OwnerID),
		slog.Int64("created_at", r.CreatedAt),
		slog.Int64("updated_at", r.UpdatedAt),
	)
}

// memoryKey is the canonical (case-insensitive) map key for a nickname.
func memoryKey(nickname string) string {
	return strings.ToLower(strings.TrimSpace(nickname))
}

// MemoryStore persists per-guild nickname->text records, one JSON document
// per guild, under a data directory. Records written under one guild ID are
// never visible to operations scoped to another guild ID.
//
// Every mutation is written through to disk before success is returned,
// using an atomic temp-file-and-rename replace so a crash mid-write never
// corrupts the previously committed document. If the write fails, the
// in-memory partition is restored to its pre-call state and the mutation
// reports ErrPersistence.
//
// A single mutex serializes all operations; handlers call the store inline
// and operations are short, so per-guild locking isn't worth the bookkeeping.
type MemoryStore struct {
	dir        string
	mu         sync.Mutex
	partitions map[string]map[string]MemoryRecord
	logger     *slog.Logger

	// now is the time source, replaceable in tests
	now func() time.Time
}

// NewMemoryStore creates the data directory if needed and loads every
// existing guild document. A corrupt or unreadable document is logged and
// skipped - that guild starts empty - without failing the others. Leftover
// temp files from an interrupted write are ignored and removed.
func NewMemoryStore(dir string, log *slog.Logger) (*MemoryStore, error) {
	if log == nil {
		log = slog.Default()
	}
	m := &MemoryStore{
		dir:        dir,
		partitions: map[string]map[string]MemoryRecord{},
		logger:     log.With(loggerNameKey, "memory_store"),
		now:        time.Now,
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating data dir: %v", ErrPersistence, err)
	}
	if err := m.loadAll(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryStore) loadAll() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("%w: reading data dir: %v", ErrPersistence, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(name, memoryTempSuffix) {
			// Interrupted write. The committed document (if any) is still
			// intact, so the temp file is garbage.
			m.logger.Warn("removing stale temp file", "file", name)
			_ = os.Remove(filepath.Join(m.dir, name))
			continue
		}
		if !strings.HasSuffix(name, memoryFileSuffix) {
			continue
		}
		guildID := strings.TrimSuffix(name, memoryFileSuffix)
		records, loadErr := m.loadGuild(guildID)
		if loadErr != nil {
			m.logger.Error(
				"skipping unreadable guild document",
				"guild_id", guildID,
				tint.Err(loadErr),
			)
			continue
		}
		m.partitions[guildID] = records
	}
	return nil
}

func (m *MemoryStore) loadGuild(guildID string) (map[string]MemoryRecord, error) {
	data, err := os.ReadFile(m.guildPath(guildID))
	if err != nil {
		return nil, err
	}
	var byNickname map[string]MemoryRecord
	if err = json.Unmarshal(data, &byNickname); err != nil {
		return nil, err
	}
	records := make(map[string]MemoryRecord, len(byNickname))
	for nickname, rec := range byNickname {
		if rec.Nickname == "" {
			rec.Nickname = nickname
		}
		records[memoryKey(nickname)] = rec
	}
	return records, nil
}

func (m *MemoryStore) guildPath(guildID string) string {
	return filepath.Join(m.dir, guildID+memoryFileSuffix)
}

// validGuildID reports whether the guild ID is safe to use as a filename.
// Discord guild IDs are numeric snowflakes.
func validGuildID(guildID string) bool {
	if guildID == "" {
		return false
	}
	for _, c := range guildID {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Remember creates or overwrites the record stored under nickname in the
// given guild. With upsert disabled, an existing nickname is rejected with
// ErrDuplicate. Only the record's owner may overwrite it; anyone else gets
// ErrPermission, so ownership can't be taken over. An overwrite preserves
// the original creation time and advances UpdatedAt so it is strictly
// greater than CreatedAt.
//
// The updated guild document is durably written before Remember returns
// successfully.
func (m *MemoryStore) Remember(
	guildID string,
	nickname string,
	text string,
	ownerID string,
	upsert bool,
) (MemoryRecord, error) {
	var rec MemoryRecord
	if !validGuildID(guildID) {
		return rec, fmt.Errorf("%w: invalid guild id %q", ErrValidation, guildID)
	}
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return rec, fmt.Errorf("%w: nickname must not be empty", ErrValidation)
	}
	if len([]rune(nickname)) > memoryNicknameMaxLength {
		return rec, fmt.Errorf(
			"%w: nickname too long (max %d characters)",
			ErrValidation,
			memoryNicknameMaxLength,
		)
	}
	if text == "" {
		return rec, fmt.Errorf("%w: text must not be empty", ErrValidation)
	}
	if len([]rune(text)) > memoryTextMaxLength {
		return rec, fmt.Errorf(
			"%w: text too long (max %d characters)",
			ErrValidation,
			memoryTextMaxLength,
		)
	}
	if ownerID == "" {
		return rec, fmt.Errorf("%w: owner id must not be empty", ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	partition := m.partitions[guildID]
	if partition == nil {
		partition = map[string]MemoryRecord{}
		m.partitions[guildID] = partition
	}

	key := memoryKey(nickname)
	existing, exists := partition[key]
	if exists && !upsert {
		return rec, fmt.Errorf("%w: %q", ErrDuplicate, existing.Nickname)
	}
	if exists && existing.OwnerID != ownerID {
		return rec, fmt.Errorf(
			"%w: only the owner can overwrite %q",
			ErrPermission,
			existing.Nickname,
		)
	}

	nowMilli := m.now().UTC().UnixMilli()
	rec = MemoryRecord{
		Nickname:  nickname,
		Text:      text,
		OwnerID:   ownerID,
		CreatedAt: nowMilli,
		UpdatedAt: nowMilli,
	}
	if exists {
		rec.CreatedAt = existing.CreatedAt
		if rec.UpdatedAt <= rec.CreatedAt {
			rec.UpdatedAt = rec.CreatedAt + 1
		}
	}
	partition[key] = rec

	if err := m.saveGuild(guildID); err != nil {
		// roll back so memory and disk stay consistent
		if exists {
			partition[key] = existing
		} else {
			delete(partition, key)
		}
		return MemoryRecord{}, err
	}
	return rec, nil
}

// Recall returns the record stored under nickname in the given guild.
// Read-only, no side effects.
func (m *MemoryStore) Recall(guildID string, nickname string) (MemoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	partition := m.partitions[guildID]
	rec, ok := partition[memoryKey(nickname)]
	if !ok {
		return MemoryRecord{}, fmt.Errorf("%w: %q", ErrNotFound, nickname)
	}
	return rec, nil
}

// Forget removes the record stored under nickname. Only the record's owner
// may delete it; anyone else gets ErrPermission. The updated guild document
// is durably written before Forget returns successfully.
func (m *MemoryStore) Forget(guildID string, nickname string, requesterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	partition := m.partitions[guildID]
	key := memoryKey(nickname)
	existing, ok := partition[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, nickname)
	}
	if existing.OwnerID != requesterID {
		return fmt.Errorf(
			"%w: only the owner can forget %q",
			ErrPermission,
			existing.Nickname,
		)
	}
	delete(partition, key)

	if err := m.saveGuild(guildID); err != nil {
		partition[key] = existing
		return err
	}
	return nil
}

// List returns every record in the guild's partition, ordered by nickname.
func (m *MemoryStore) List(guildID string) []MemoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	partition := m.partitions[guildID]
	records := make([]MemoryRecord, 0, len(partition))
	for _, rec := range partition {
		records = append(records, rec)
	}
	sort.Slice(
		records, func(i, j int) bool {
			return memoryKey(records[i].Nickname) < memoryKey(records[j].Nickname)
		},
	)
	return records
}

// Count returns the number of records stored per guild.
func (m *MemoryStore) Count() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int, len(m.partitions))
	for guildID, partition := range m.partitions {
		counts[guildID] = len(partition)
	}
	return counts
}

// saveGuild writes the guild's document with an atomic replace: the full
// document is written to a temp file, synced, then renamed over the target.
// Callers must hold m.mu.
func (m *MemoryStore) saveGuild(guildID string) error {
	partition := m.partitions[guildID]
	byNickname := make(map[string]MemoryRecord, len(partition))
	for _, rec := range partition {
		byNickname[rec.Nickname] = rec
	}

	data, err := json.MarshalIndent(byNickname, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding guild %s: %v", ErrPersistence, guildID, err)
	}

	target := m.guildPath(guildID)
	tmp := filepath.Join(m.dir, guildID+memoryTempSuffix)

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrPersistence, err)
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: writing temp file: %v", ErrPersistence, err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: syncing temp file: %v", ErrPersistence, err)
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: closing temp file: %v", ErrPersistence, err)
	}
	if err = os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: replacing guild document: %v", ErrPersistence, err)
	}
	return nil
}
