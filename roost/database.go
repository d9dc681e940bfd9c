package roost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	dbTypeSQLite   = "sqlite"
	dbTypePostgres = "postgres"

	columnUserLastSeen    = "last_seen"
	columnUserUsername    = "username"
	columnUserGlobalName  = "global_name"
	columnUserChatLimit6h = "chat_limit_6h"
)

var (
	sqliteMaxOpenConns    = 1
	sqliteMaxIdleConns    = 1
	sqliteMaxConnLifetime = 5 * time.Minute
	sqliteExecPragma      = []string{
		"pragma journal_mode=WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
		"pragma foreign_keys = ON;",
	}
	dbOperationTimeout = 30 * time.Second
)

// ModelUnixTime is an embeddable model with Unix millisecond timestamps
// for creation, update, and deletion.
type ModelUnixTime struct {
	CreatedAt int64          `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64          `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type ModelUintID struct {
	ID uint `gorm:"primaryKey" json:"id"`
}

// User is a Discord user the bot has seen, with their /chat allowance.
type User struct {
	ModelUnixTime
	ID          string `gorm:"primaryKey" json:"id"`
	Username    string `json:"username"`
	GlobalName  string `json:"global_name"`
	LastSeen    int64  `json:"last_seen"`
	ChatLimit6h int    `gorm:"column:chat_limit_6h" json:"chat_limit_6h"`
	Ignored     bool   `json:"ignored"`
}

func (u User) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", u.ID),
		slog.String("username", u.Username),
		slog.String("global_name", u.GlobalName),
	)
}

// CommandLog is an audit row written for every handled slash command.
type CommandLog struct {
	ModelUintID
	ModelUnixTime
	InteractionID string `json:"interaction_id"`
	Command       string `json:"command"`
	UserID        string `gorm:"index" json:"user_id"`
	GuildID       string `gorm:"index" json:"guild_id"`
	ChannelID     string `json:"channel_id"`
	Options       string `json:"options"`
	Error         string `json:"error"`
	DurationMS    int64  `json:"duration_ms"`
}

// ChatLog records a single /chat relay to the OpenAI API, including token
// usage. Rows in the last 6 hours count against the user's allowance.
type ChatLog struct {
	ModelUintID
	ModelUnixTime
	UserID           string `gorm:"index" json:"user_id"`
	GuildID          string `json:"guild_id"`
	Prompt           string `json:"prompt"`
	Response         string `json:"response"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Error            string `json:"error"`
}

// database wraps the gorm connection. SQLite only allows a single writer,
// so writes are serialized with a mutex when running on sqlite.
type database struct {
	db         *gorm.DB
	mu         sync.Mutex
	logger     *slog.Logger
	serialized bool
}

func newDatabase(config *Config, handler slog.Handler) (*database, error) {
	gormLogger := newGORMLogger(handler, config.DatabaseSlowThreshold)

	var dialector gorm.Dialector
	switch config.DatabaseType {
	case dbTypeSQLite:
		dialector = sqlite.Open(config.Database)
	case dbTypePostgres:
		dialector = postgres.Open(config.Database)
	default:
		return nil, fmt.Errorf("unknown database type: %s", config.DatabaseType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if config.DatabaseType == dbTypeSQLite {
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			return nil, dbErr
		}
		sqlDB.SetMaxOpenConns(sqliteMaxOpenConns)
		sqlDB.SetMaxIdleConns(sqliteMaxIdleConns)
		sqlDB.SetConnMaxLifetime(sqliteMaxConnLifetime)
		for _, pragma := range sqliteExecPragma {
			if err = db.Exec(pragma).Error; err != nil {
				return nil, fmt.Errorf("error setting pragma %q: %w", pragma, err)
			}
		}
	}

	if err = db.AutoMigrate(&User{}, &CommandLog{}, &ChatLog{}); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &database{
		db:         db,
		logger:     slog.New(handler).With(loggerNameKey, "database"),
		serialized: config.DatabaseType == dbTypeSQLite,
	}, nil
}

func (d *database) lock() {
	if d.serialized {
		d.mu.Lock()
	}
}

func (d *database) unlock() {
	if d.serialized {
		d.mu.Unlock()
	}
}

// Create inserts the given record.
func (d *database) Create(ctx context.Context, value any) error {
	d.lock()
	defer d.unlock()
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()
	return d.db.WithContext(ctx).Create(value).Error
}

// Updates applies the given column updates to the record.
func (d *database) Updates(ctx context.Context, model any, updates map[string]any) error {
	d.lock()
	defer d.unlock()
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()
	return d.db.WithContext(ctx).Model(model).Updates(updates).Error
}

// GetOrCreateUser retrieves the user row for a Discord user, creating it
// on first sight and refreshing username/last-seen on every call.
func (d *database) GetOrCreateUser(
	ctx context.Context,
	u discordgo.User,
	defaultChatLimit int,
) (*User, bool, error) {
	d.lock()
	defer d.unlock()
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	now := time.Now().UTC().UnixMilli()

	var user User
	err := d.db.WithContext(ctx).Where("id = ?", u.ID).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("error loading user: %w", err)
	}
	if err == nil {
		updates := map[string]any{columnUserLastSeen: now}
		if user.Username != u.Username || user.GlobalName != u.GlobalName {
			d.logger.Info(
				"user changed discord username since last seen",
				slog.Group(
					"old",
					"username", user.Username,
					"global_name", user.GlobalName,
				),
				slog.Group(
					"new",
					"username", u.Username,
					"global_name", u.GlobalName,
				),
			)
			updates[columnUserUsername] = u.Username
			updates[columnUserGlobalName] = u.GlobalName
		}
		user.LastSeen = now
		user.Username = u.Username
		user.GlobalName = u.GlobalName
		if updErr := d.db.WithContext(ctx).Model(&user).Updates(updates).Error; updErr != nil {
			d.logger.Error("error updating user", "user", user, tint.Err(updErr))
		}
		return &user, false, nil
	}

	user = User{
		ID:          u.ID,
		Username:    u.Username,
		GlobalName:  u.GlobalName,
		LastSeen:    now,
		ChatLimit6h: defaultChatLimit,
	}
	if err = d.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, false, fmt.Errorf("error creating user: %w", err)
	}
	d.logger.Info("created new user", "user", user)
	return &user, true, nil
}

// ChatCountSince returns how many successful /chat relays the user has made
// since the given time.
func (d *database) ChatCountSince(
	ctx context.Context,
	userID string,
	since time.Time,
) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()
	var count int64
	err := d.db.WithContext(ctx).Model(&ChatLog{}).
		Where(
			"user_id = ? AND created_at >= ? AND error = ?",
			userID,
			since.UnixMilli(),
			"",
		).
		Count(&count).Error
	return count, err
}

// CommandCounts returns the number of commands handled, per command name.
func (d *database) CommandCounts(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()
	type row struct {
		Command string
		Total   int64
	}
	var rows []row
	err := d.db.WithContext(ctx).Model(&CommandLog{}).
		Select("command, count(*) as total").
		Group("command").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Command] = r.Total
	}
	return counts, nil
}
