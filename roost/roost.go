// Package roost implements a Discord utility bot: per-guild memory notes,
// dice and gacha math, currency/population/steam/weather lookups, and an
// AI chat relay.
package roost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

// Set via:
// -ldflags "-X github.com/roostbot/roost/roost.Version=$$(date +'%Y%m%d')"
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

// Roost is the bot: it owns the Discord session, the memory store, the
// database, the lookup clients and the OpenAI relay. Constructed once at
// startup and passed to the command layer explicitly - no package-level
// singleton.
type Roost struct {
	config *Config
	logger *slog.Logger

	discord    *Discord
	memories   *MemoryStore
	writeDB    *database
	openai     *OpenAI
	exchange   *ExchangeClient
	population *PopulationClient
	steam      *SteamClient
	weather    *WeatherClient

	api       *gin.Engine
	apiServer *http.Server

	startedAt time.Time
}

// New assembles a Roost from the given config. It opens the database and
// loads the memory store, but does not touch the network.
func New(config *Config) (*Roost, error) {
	if config == nil {
		return nil, errors.New("nil config")
	}
	logger := slog.New(newLogHandler(config.LogLevel)).With(
		loggerNameKey,
		"roost",
	)
	slog.SetDefault(logger)

	writeDB, err := newDatabase(config, newLogHandler(config.DatabaseLogLevel))
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	memories, err := NewMemoryStore(
		config.DataDir,
		slog.New(newLogHandler(config.LogLevel)),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing memory store: %w", err)
	}

	lookupLogger := slog.New(newLogHandler(config.Lookup.LogLevel))

	r := &Roost{
		config:     config,
		logger:     logger,
		writeDB:    writeDB,
		memories:   memories,
		openai:     newOpenAI(config.OpenAI, writeDB, config.HTTPClient),
		exchange:   newExchangeClient(config.Lookup, config.HTTPClient, lookupLogger),
		population: newPopulationClient(config.Lookup, config.HTTPClient, lookupLogger),
		steam:      newSteamClient(config.Lookup, config.HTTPClient, lookupLogger),
		weather:    newWeatherClient(config.Lookup, config.HTTPClient, lookupLogger),
	}

	r.discord = newDiscord(config.Discord)
	r.discord.logger = slog.New(newLogHandler(config.Discord.LogLevel)).With(
		loggerNameKey,
		"discord",
	)
	r.config.Discord.httpClient = config.HTTPClient

	if config.API.Enabled {
		r.api = newAPIEngine(r, newLogHandler(config.API.LogLevel))
	}

	return r, nil
}

// Run connects to the Discord gateway, registers the slash commands,
// optionally starts the status API server, and blocks until ctx is
// cancelled, then shuts everything down within ShutdownTimeout.
func (r *Roost) Run(ctx context.Context) error {
	r.startedAt = time.Now()
	r.logger.Info("starting", "config", r.config)

	session, err := r.discord.newSession()
	if err != nil {
		return err
	}
	r.discord.session = session

	discordgo.Logger = discordgoLoggerFunc(
		ctx,
		newLogHandler(r.config.Discord.DiscordGoLogLevel),
	)

	r.discord.discordgoRemoveHandlerFuncs = []func(){
		session.AddHandler(r.discord.handlerConnect()),
		session.AddHandler(r.discord.handlerDisconnect()),
		session.AddHandler(r.handlerInteractionCreate(ctx)),
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, r.config.StartupTimeout)
	defer startupCancel()

	opened := make(chan error, 1)
	go func() {
		opened <- session.Open()
	}()
	select {
	case err = <-opened:
		if err != nil {
			return fmt.Errorf("error opening discord session: %w", err)
		}
	case <-startupCtx.Done():
		return fmt.Errorf("startup timed out: %w", startupCtx.Err())
	}

	if _, err = r.discord.registerCommands(); err != nil {
		_ = session.Close()
		return fmt.Errorf("error registering commands: %w", err)
	}

	apiErr := make(chan error, 1)
	if r.api != nil {
		r.apiServer = &http.Server{
			Handler:           r.api,
			ReadTimeout:       r.config.API.ReadTimeout,
			ReadHeaderTimeout: r.config.API.ReadHeaderTimeout,
			WriteTimeout:      r.config.API.WriteTimeout,
			IdleTimeout:       r.config.API.IdleTimeout,
		}
		listener, listenErr := net.Listen(
			r.config.API.ListenNetwork,
			r.config.API.Listen,
		)
		if listenErr != nil {
			_ = session.Close()
			return fmt.Errorf("error listening on api address: %w", listenErr)
		}
		r.logger.Info("status api listening", "address", r.config.API.Listen)
		go func() {
			if serveErr := r.apiServer.Serve(listener); serveErr != nil &&
				!errors.Is(serveErr, http.ErrServerClosed) {
				apiErr <- serveErr
			}
		}()
	}

	select {
	case err = <-apiErr:
		r.logger.Error("status api failed", tint.Err(err))
	case <-ctx.Done():
		r.logger.Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		r.config.ShutdownTimeout,
	)
	defer shutdownCancel()

	for _, removeHandler := range r.discord.discordgoRemoveHandlerFuncs {
		removeHandler()
	}
	if closeErr := session.Close(); closeErr != nil {
		r.logger.Error("error closing discord session", tint.Err(closeErr))
	}
	if r.apiServer != nil {
		if shutdownErr := r.apiServer.Shutdown(shutdownCtx); shutdownErr != nil {
			r.logger.Error("error shutting down status api", tint.Err(shutdownErr))
		}
	}
	return err
}

// handlerInteractionCreate dispatches application command interactions.
// Handlers run in their own goroutine: session.SyncEvents is set, so work
// done inline would stall the gateway event loop.
func (r *Roost) handlerInteractionCreate(ctx context.Context) func(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		go r.handleInteraction(ctx, i)
	}
}

// ackResponseFlag returns the message flags used when deferring the
// response for the given command.
func ackResponseFlag(command string) discordgo.MessageFlags {
	switch command {
	case DiscordSlashCommandUsage,
		DiscordSlashCommandRemember,
		DiscordSlashCommandForget:
		return discordgo.MessageFlagsEphemeral
	default:
		return 0
	}
}

func (r *Roost) handleInteraction(
	ctx context.Context,
	i *discordgo.InteractionCreate,
) {
	name := i.ApplicationCommandData().Name
	logger := r.logger.With(interactionLogAttrs(*i)...).With("command", name)

	discordUser := getDiscordUser(i)
	if discordUser == nil {
		logger.Error("no user found on interaction")
		return
	}
	logger = logger.With("user_id", discordUser.ID)

	user, _, err := r.writeDB.GetOrCreateUser(
		ctx,
		*discordUser,
		r.config.OpenAI.UserChatLimit6h,
	)
	if err != nil {
		logger.Error("error loading user", tint.Err(err))
		return
	}
	if user.Ignored {
		logger.Warn("ignoring interaction from ignored user")
		return
	}

	if err = r.discord.session.InteractionRespond(
		i.Interaction,
		&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Flags: ackResponseFlag(name),
			},
		},
	); err != nil {
		logger.Error("error acknowledging interaction", tint.Err(err))
		return
	}

	started := time.Now()
	edit, cmdErr := r.dispatch(ctx, i, user)
	elapsed := time.Since(started)

	if cmdErr != nil {
		logger.Error("command failed", "elapsed", elapsed, tint.Err(cmdErr))
		msg := userFacingError(cmdErr, r.config.Discord.ErrorMessage)
		edit = &discordgo.WebhookEdit{Content: &msg}
	} else {
		logger.Info("command handled", "elapsed", elapsed)
	}

	r.logCommand(ctx, i, user, cmdErr, elapsed)

	if _, editErr := r.discord.session.InteractionResponseEdit(
		i.Interaction,
		edit,
	); editErr != nil {
		logger.Error("error editing interaction response", tint.Err(editErr))
	}
}

func (r *Roost) dispatch(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	user *User,
) (*discordgo.WebhookEdit, error) {
	switch i.ApplicationCommandData().Name {
	case DiscordSlashCommandChat:
		return r.handleChat(ctx, i, user)
	case DiscordSlashCommandUsage:
		return r.handleUsage(ctx, i, user)
	case DiscordSlashCommandRemember:
		return r.handleRemember(i, user)
	case DiscordSlashCommandRecall:
		return r.handleRecall(i)
	case DiscordSlashCommandForget:
		return r.handleForget(i, user)
	case DiscordSlashCommandMemories:
		return r.handleMemories(i)
	case DiscordSlashCommandRoll:
		return r.handleRoll(i)
	case DiscordSlashCommandChoose:
		return r.handleChoose(i)
	case DiscordSlashCommandGacha:
		return r.handleGacha(i)
	case DiscordSlashCommandBanner:
		return r.handleBanner(i)
	case DiscordSlashCommandResources:
		return r.handleResources(i)
	case DiscordSlashCommandExchange:
		return r.handleExchange(ctx, i)
	case DiscordSlashCommandPopulation:
		return r.handlePopulation(ctx, i)
	case DiscordSlashCommandSteam:
		return r.handleSteam(ctx, i)
	case DiscordSlashCommandWeather:
		return r.handleWeather(ctx, i)
	default:
		return nil, fmt.Errorf(
			"unknown command: %s",
			i.ApplicationCommandData().Name,
		)
	}
}

// logCommand writes the per-interaction audit row.
func (r *Roost) logCommand(
	ctx context.Context,
	i *discordgo.InteractionCreate,
	user *User,
	cmdErr error,
	elapsed time.Duration,
) {
	data := i.ApplicationCommandData()
	options := make(map[string]any, len(data.Options))
	for _, opt := range data.Options {
		options[opt.Name] = opt.Value
	}
	optionJSON, err := json.Marshal(options)
	if err != nil {
		r.logger.Error("error marshaling command options", tint.Err(err))
	}

	record := &CommandLog{
		InteractionID: i.ID,
		Command:       data.Name,
		UserID:        user.ID,
		GuildID:       i.GuildID,
		ChannelID:     i.ChannelID,
		Options:       string(optionJSON),
		DurationMS:    elapsed.Milliseconds(),
	}
	if cmdErr != nil {
		record.Error = cmdErr.Error()
	}
	if err = r.writeDB.Create(context.WithoutCancel(ctx), record); err != nil {
		r.logger.Error("error writing command log", tint.Err(err))
	}
}

// userFacingError maps a command error to the message shown to the user.
// Validation, duplicate, not-found, permission and rate limit errors pass
// their detail through; anything else gets the generic error message.
func userFacingError(err error, fallback string) string {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPermission):
		return err.Error()
	case errors.Is(err, ErrChatLimitReached):
		return "You've used up your chat allowance - try again in a few hours!"
	case errors.Is(err, ErrLookupRateLimited):
		return "Too many requests right now - try again in a moment."
	case errors.Is(err, ErrPersistence):
		return fallback
	default:
		return fallback
	}
}
