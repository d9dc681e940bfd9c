package roost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const chatLimitWindow = 6 * time.Hour

// ErrChatLimitReached indicates the user has used up their 6-hour /chat
// allowance.
var ErrChatLimitReached = errors.New("chat limit reached")

// OpenAIClient defines the methods used from the go-openai client, to
// enable testing/mocking.
type OpenAIClient interface {
	CreateChatCompletion(
		ctx context.Context,
		request openai.ChatCompletionRequest,
	) (openai.ChatCompletionResponse, error)
}

// OpenAI relays /chat prompts to the OpenAI chat completions API. Outgoing
// requests share a rate limiter; per-user allowances are enforced against
// the ChatLog table.
type OpenAI struct {
	client         OpenAIClient
	config         *OpenAIConfig
	logger         *slog.Logger
	requestLimiter *rate.Limiter
	writeDB        *database

	mu sync.RWMutex // protects requestLimiter
}

func newOpenAI(
	config *OpenAIConfig,
	writeDB *database,
	httpClient *http.Client,
) *OpenAI {
	o := &OpenAI{
		config:  config,
		writeDB: writeDB,
		requestLimiter: rate.NewLimiter(
			rate.Limit(config.MaxRequestsPerSecond),
			config.MaxRequestsPerSecond,
		),
	}
	o.logger = slog.New(newLogHandler(config.LogLevel)).With(
		loggerNameKey,
		"openai",
	)

	clientCfg := openai.DefaultConfig(config.Token)
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	o.client = openai.NewClientWithConfig(clientCfg)

	return o
}

// ChatUsage is a user's /chat consumption within the current window.
type ChatUsage struct {
	Used      int64 `json:"used"`
	Limit     int   `json:"limit"`
	Remaining int64 `json:"remaining"`
}

// Usage returns how much of their allowance the user has consumed in the
// last 6 hours.
func (o *OpenAI) Usage(ctx context.Context, user *User) (ChatUsage, error) {
	used, err := o.writeDB.ChatCountSince(
		ctx,
		user.ID,
		time.Now().Add(-chatLimitWindow),
	)
	if err != nil {
		return ChatUsage{}, err
	}
	limit := user.ChatLimit6h
	if limit <= 0 {
		limit = o.config.UserChatLimit6h
	}
	remaining := int64(limit) - used
	if remaining < 0 {
		remaining = 0
	}
	return ChatUsage{Used: used, Limit: limit, Remaining: remaining}, nil
}

// Chat relays the prompt to the chat completions API and returns the
// response text. The exchange is recorded in ChatLog either way; failed
// relays don't count against the user's allowance.
func (o *OpenAI) Chat(
	ctx context.Context,
	user *User,
	guildID string,
	prompt string,
) (string, error) {
	usage, err := o.Usage(ctx, user)
	if err != nil {
		return "", err
	}
	if usage.Remaining <= 0 {
		return "", fmt.Errorf(
			"%w: %d requests in the last 6 hours",
			ErrChatLimitReached,
			usage.Used,
		)
	}

	o.mu.RLock()
	limiter := o.requestLimiter
	o.mu.RUnlock()
	if err = limiter.Wait(ctx); err != nil {
		return "", err
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if o.config.Instructions != "" {
		messages = append(
			messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: o.config.Instructions,
			},
		)
	}
	messages = append(
		messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		},
	)

	record := &ChatLog{
		UserID:  user.ID,
		GuildID: guildID,
		Prompt:  prompt,
		Model:   o.config.Model,
	}

	started := time.Now()
	resp, err := o.client.CreateChatCompletion(
		ctx, openai.ChatCompletionRequest{
			Model:     o.config.Model,
			MaxTokens: o.config.MaxTokens,
			Messages:  messages,
			User:      user.ID,
		},
	)
	elapsed := time.Since(started)

	if err != nil {
		record.Error = err.Error()
		if createErr := o.writeDB.Create(context.WithoutCancel(ctx), record); createErr != nil {
			o.logger.Error("error recording chat failure", tint.Err(createErr))
		}
		o.logger.ErrorContext(
			ctx,
			"chat completion failed",
			"user", user,
			"elapsed", elapsed,
			tint.Err(err),
		)
		return "", err
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	record.Response = content
	record.PromptTokens = resp.Usage.PromptTokens
	record.CompletionTokens = resp.Usage.CompletionTokens
	record.TotalTokens = resp.Usage.TotalTokens
	if content == "" {
		record.Error = "empty completion"
	}

	if createErr := o.writeDB.Create(context.WithoutCancel(ctx), record); createErr != nil {
		o.logger.Error("error recording chat", tint.Err(createErr))
	}
	o.logger.InfoContext(
		ctx,
		"chat completion finished",
		"user", user,
		"elapsed", elapsed,
		"total_tokens", resp.Usage.TotalTokens,
	)

	if content == "" {
		return "", fmt.Errorf("empty completion response")
	}
	return content, nil
}
