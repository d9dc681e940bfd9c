package roost

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(
		tint.NewHandler(
			os.Stdout, &tint.Options{Level: slog.LevelError},
		),
	)
}

func TestMinifyString(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{
			name:     "string shorter than limit",
			input:    "short string",
			limit:    50,
			expected: "short string",
		},
		{
			name:     "double newlines stripped first",
			input:    "aaaa\n\nbbbb",
			limit:    9,
			expected: "aaaa\nbbbb",
		},
		{
			name:     "bold markers stripped second",
			input:    "**aa**\n\n**bb**",
			limit:    6,
			expected: "aa\nbb",
		},
	}

	for _, tc := range testCases {
		t.Run(
			tc.name, func(t *testing.T) {
				assert.Equal(t, tc.expected, minifyString(tc.input, tc.limit))
			},
		)
	}
}

func TestMinifyString_TruncatesWithSuffix(t *testing.T) {
	input := strings.Repeat("x", 3000)
	out := minifyString(input, discordMaxMessageLength)
	assert.LessOrEqual(t, len([]rune(out)), discordMaxMessageLength)
	assert.True(t, strings.HasSuffix(out, "**(output limit reached)**"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "héll", truncate("héllo", 4))
}

func TestFormatCount(t *testing.T) {
	testCases := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{7, "7"},
		{999, "999"},
		{1000, "1,000"},
		{51234567, "51,234,567"},
		{-1234, "-1,234"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, formatCount(tc.input))
	}
}

func TestGetDiscordUser(t *testing.T) {
	u := &discordgo.User{ID: "user1"}

	fromDM := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{User: u},
	}
	assert.Equal(t, u, getDiscordUser(fromDM))

	fromGuild := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{User: u},
		},
	}
	assert.Equal(t, u, getDiscordUser(fromGuild))

	empty := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{},
	}
	assert.Nil(t, getDiscordUser(empty))
}

func TestStructToSlogValue_RedactsTaggedFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Discord.Token = "super-secret"
	cfg.OpenAI.Token = "also-secret"

	rendered := structToSlogValue(cfg).String()
	require.NotEmpty(t, rendered)
	assert.NotContains(t, rendered, "super-secret")
	assert.NotContains(t, rendered, "also-secret")
	assert.Contains(t, rendered, "[redacted]")
}
