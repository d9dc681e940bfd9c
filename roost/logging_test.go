package roost

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/stretchr/testify/assert"
)

func TestDiscordgoLoggerFunc(t *testing.T) {
	var buf bytes.Buffer
	handler := tint.NewHandler(
		&buf,
		&tint.Options{Level: slog.LevelDebug, NoColor: true},
	)

	logFunc := discordgoLoggerFunc(context.Background(), handler)
	logFunc(discordgo.LogWarning, 0, "gateway said %s\n", "reconnect")

	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "gateway said reconnect")

	// newlines are stripped so one event stays on one line
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestGORMLogger_LogModePreservesThreshold(t *testing.T) {
	base := newGORMLogger(testLogger(t).Handler(), 123)
	next, ok := base.LogMode(0).(gormStructuredLogger)
	assert.True(t, ok)
	assert.Equal(t, base.SlowThreshold, next.SlowThreshold)
}
