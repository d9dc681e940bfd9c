package roost

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Slash command names registered by the bot.
const (
	DiscordSlashCommandChat       = "chat"
	DiscordSlashCommandUsage      = "usage"
	DiscordSlashCommandRemember   = "remember"
	DiscordSlashCommandRecall     = "recall"
	DiscordSlashCommandForget     = "forget"
	DiscordSlashCommandMemories   = "memories"
	DiscordSlashCommandRoll       = "roll"
	DiscordSlashCommandChoose     = "choose"
	DiscordSlashCommandGacha      = "gacha"
	DiscordSlashCommandBanner     = "banner"
	DiscordSlashCommandResources  = "resources"
	DiscordSlashCommandExchange   = "exchange"
	DiscordSlashCommandPopulation = "population"
	DiscordSlashCommandSteam      = "steam"
	DiscordSlashCommandWeather    = "weather"
)

// Option names used by the slash commands.
const (
	optionNickname  = "nickname"
	optionText      = "text"
	optionOverwrite = "overwrite"
	optionPrompt    = "prompt"
	optionSides     = "sides"
	optionTimes     = "times"
	optionChoices   = "options"
	optionRate      = "rate"
	optionPulls     = "pulls"
	optionLimited   = "limited"
	optionOrundum   = "orundum"
	optionOriginite = "originite"
	optionPermits   = "permits"
	optionCurrency  = "currency"
	optionAmount    = "amount"
	optionCountry   = "country"
	optionGame      = "game"
	optionCity      = "city"
)

// currencyChoices builds the /exchange currency option choices from the
// supported list.
func currencyChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make(
		[]*discordgo.ApplicationCommandOptionChoice,
		len(supportedCurrencies),
	)
	for i, currency := range supportedCurrencies {
		choices[i] = &discordgo.ApplicationCommandOptionChoice{
			Name:  currency,
			Value: currency,
		}
	}
	return choices
}

// Discord manages the gateway session: connection lifecycle, slash command
// registration, and connection metrics.
type Discord struct {
	session                     DiscordSessionHandler
	config                      *DiscordConfig
	logger                      *slog.Logger
	metricConnects              atomic.Int64
	metricDisconnects           atomic.Int64
	connected                   atomic.Bool
	discordgoRemoveHandlerFuncs []func()
}

func newDiscord(config *DiscordConfig) *Discord {
	return &Discord{
		config:                      config,
		discordgoRemoveHandlerFuncs: []func(){},
	}
}

// newSession initializes a new Discord session with the appropriate
// logger, token, and configuration.
func (d *Discord) newSession() (DiscordSessionHandler, error) {
	session := DiscordSession{
		logger: d.logger.With(loggerNameKey, "discord_session_handler"),
	}
	disc, err := discordgo.New("Bot " + d.config.Token)
	if err != nil {
		return session, fmt.Errorf("error creating discord session: %w", err)
	}
	disc.SyncEvents = true
	disc.StateEnabled = false
	disc.Identify.Intents = d.config.GatewayIntents
	session.session = disc
	if d.config.httpClient != nil {
		disc.Client = d.config.httpClient
	}

	if err = session.SetLogLevel(d.config.DiscordGoLogLevel.Level()); err != nil {
		return session, err
	}

	return session, nil
}

func (d *Discord) handlerConnect() func(
	s *discordgo.Session,
	r *discordgo.Connect,
) {
	return func(s *discordgo.Session, _ *discordgo.Connect) {
		d.metricConnects.Add(1)
		d.connected.Store(true)
		var sessionID string
		var userID string
		var username string

		if s != nil && s.State != nil {
			sessionID = s.State.SessionID
			if s.State.User != nil {
				userID = s.State.User.ID
				username = s.State.User.Username
			}
		}
		d.logger.Info(
			"connected",
			"session_id", sessionID,
			slog.Group("user", "id", userID, "username", username),
		)

		if d.config.CustomStatus != "" {
			if err := d.session.UpdateCustomStatus(d.config.CustomStatus); err != nil {
				d.logger.Error("unable to set custom status", tint.Err(err))
			}
		}
		if d.config.NotificationChannelID != "" && d.config.StartupMessage != "" {
			if _, err := d.session.ChannelMessageSend(
				d.config.NotificationChannelID,
				d.config.StartupMessage,
				discordgo.WithRetryOnRatelimit(false),
				discordgo.WithRestRetries(1),
			); err != nil {
				d.logger.Error("unable to send startup message", tint.Err(err))
			}
		}
	}
}

func (d *Discord) handlerDisconnect() func(
	s *discordgo.Session,
	r *discordgo.Disconnect,
) {
	return func(s *discordgo.Session, _ *discordgo.Disconnect) {
		d.connected.Store(false)
		d.metricDisconnects.Add(1)

		var sessionID string
		if s != nil && s.State != nil {
			sessionID = s.State.SessionID
		}
		d.logger.Info("disconnected", "session_id", sessionID)
	}
}

// registerCommands sends the bot's commands to the discord bulk overwrite
// endpoint.
func (d *Discord) registerCommands(
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	created, err := d.session.ApplicationCommandBulkOverwrite(
		d.config.ApplicationID,
		d.config.GuildID,
		applicationCommands(),
		options...,
	)
	if err != nil {
		d.logger.Error("error overwriting discord commands", tint.Err(err))
		return created, err
	}
	for _, c := range created {
		d.logger.Info("created command", "command", c.Name)
	}
	return created, nil
}

// applicationCommands returns the full slash command set the bot registers.
func applicationCommands() []*discordgo.ApplicationCommand {
	minNickname := 1
	minText := 1
	minPrompt := 1
	minQuery := 2

	sidesMin := float64(2)
	timesMin := float64(1)
	pullsMin := float64(1)
	resourceMin := float64(0)
	rateMin := 0.000001
	amountMin := 0.01

	return []*discordgo.ApplicationCommand{
		{
			Name:        DiscordSlashCommandChat,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Chat with the AI",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionPrompt,
					Description: "What would you like to say or ask?",
					Required:    true,
					MinLength:   &minPrompt,
					MaxLength:   discordMaxMessageLength,
				},
			},
		},
		{
			Name:        DiscordSlashCommandUsage,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Show your AI chat usage and remaining allowance",
		},
		{
			Name:        DiscordSlashCommandRemember,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Store a note under a nickname for this server",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionNickname,
					Description: "Nickname to store the note under",
					Required:    true,
					MinLength:   &minNickname,
					MaxLength:   memoryNicknameMaxLength,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionText,
					Description: "The note to store",
					Required:    true,
					MinLength:   &minText,
					MaxLength:   memoryTextMaxLength,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        optionOverwrite,
					Description: "Overwrite an existing note (default: true)",
				},
			},
		},
		{
			Name:        DiscordSlashCommandRecall,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Look up a stored note by nickname",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionNickname,
					Description: "Nickname to look up",
					Required:    true,
					MinLength:   &minNickname,
					MaxLength:   memoryNicknameMaxLength,
				},
			},
		},
		{
			Name:        DiscordSlashCommandForget,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Delete a note you stored",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionNickname,
					Description: "Nickname to delete",
					Required:    true,
					MinLength:   &minNickname,
					MaxLength:   memoryNicknameMaxLength,
				},
			},
		},
		{
			Name:        DiscordSlashCommandMemories,
			Type:        discordgo.ChatApplicationCommand,
			Description: "List every note stored for this server",
		},
		{
			Name:        DiscordSlashCommandRoll,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Roll dice",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        optionSides,
					Description: "Number of sides (2-100, default 6)",
					MinValue:    &sidesMin,
					MaxValue:    100,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        optionTimes,
					Description: "Number of rolls (1-10, default 1)",
					MinValue:    &timesMin,
					MaxValue:    10,
				},
			},
		},
		{
			Name:        DiscordSlashCommandChoose,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Pick one of several space-separated options",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionChoices,
					Description: "At least two options, separated by spaces",
					Required:    true,
					MinLength:   &minQuery,
				},
			},
		},
		{
			Name:        DiscordSlashCommandGacha,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Odds of at least one success at a flat pull rate",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        optionRate,
					Description: "Pull rate in percent (e.g. 0.75)",
					Required:    true,
					MinValue:    &rateMin,
					MaxValue:    100,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        optionPulls,
					Description: "Number of pulls",
					Required:    true,
					MinValue:    &pullsMin,
					MaxValue:    gachaMaxAttempts,
				},
			},
		},
		{
			Name:        DiscordSlashCommandBanner,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Rate-up odds on a pity banner",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        optionPulls,
					Description: "Number of pulls",
					Required:    true,
					MinValue:    &pullsMin,
					MaxValue:    gachaMaxAttempts,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        optionLimited,
					Description: "Limited banner (35% rate-up share)",
				},
			},
		},
		{
			Name:        DiscordSlashCommandResources,
			Type:        discordgo.ChatApplicationCommand,
			Description: "How many pulls your saved resources are worth",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        optionOrundum,
					Description: "Orundum on hand",
					MinValue:    &resourceMin,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        optionOriginite,
					Description: "Originite Prime on hand",
					MinValue:    &resourceMin,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        optionPermits,
					Description: "Headhunting permits on hand",
					MinValue:    &resourceMin,
				},
			},
		},
		{
			Name:        DiscordSlashCommandExchange,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Current KRW exchange rates",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionCurrency,
					Description: "Show a single currency",
					Choices:     currencyChoices(),
				},
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        optionAmount,
					Description: "Amount to convert (default 1)",
					MinValue:    &amountMin,
				},
			},
		},
		{
			Name:        DiscordSlashCommandPopulation,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Country population lookup",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionCountry,
					Description: "Country name (in English)",
					Required:    true,
					MinLength:   &minQuery,
				},
			},
		},
		{
			Name:        DiscordSlashCommandSteam,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Current player count for a steam game",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionGame,
					Description: "Game name to search for",
					Required:    true,
					MinLength:   &minQuery,
				},
			},
		},
		{
			Name:        DiscordSlashCommandWeather,
			Type:        discordgo.ChatApplicationCommand,
			Description: "Current weather for a city",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionCity,
					Description: "City or place name",
					Required:    true,
					MinLength:   &minQuery,
				},
			},
		},
	}
}

// DiscordSessionHandler defines the methods used from `discordgo.Session`,
// to enable testing/mocking.
type DiscordSessionHandler interface {
	// Open creates a websocket connection to Discord
	Open() error

	// Close closes the websocket connection to Discord
	Close() error

	// AddHandler adds a discord gateway event handler
	AddHandler(handler any) func()

	// ChannelMessageSend sends a message to a specified channel
	ChannelMessageSend(
		channelID string,
		message string,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// ApplicationCommandBulkOverwrite overwrites Discord application commands in bulk
	ApplicationCommandBulkOverwrite(
		appID string,
		guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)

	// InteractionRespond sends an interaction response to Discord
	InteractionRespond(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error

	// InteractionResponseEdit modifies the given interaction
	InteractionResponseEdit(
		interaction *discordgo.Interaction,
		newresp *discordgo.WebhookEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// UpdateCustomStatus sets the bot's user status to the given string
	UpdateCustomStatus(status string) error

	// SetLogLevel modifies the session's log level
	SetLogLevel(lvl slog.Level) error
}

// DiscordSession implements DiscordSessionHandler, wrapping a
// [discordgo.Session](https://pkg.go.dev/github.com/bwmarrin/discordgo#Session)
type DiscordSession struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func (d DiscordSession) Open() error {
	return d.session.Open()
}

func (d DiscordSession) Close() error {
	return d.session.Close()
}

func (d DiscordSession) AddHandler(handler any) func() {
	return d.session.AddHandler(handler)
}

func (d DiscordSession) ChannelMessageSend(
	channelID string,
	message string,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSend(channelID, message, opts...)
}

func (d DiscordSession) ApplicationCommandBulkOverwrite(
	appID string,
	guildID string,
	commands []*discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	created, err := d.session.ApplicationCommandBulkOverwrite(
		appID,
		guildID,
		commands,
		options...,
	)
	if err != nil {
		d.logger.Error("error overwriting discord commands", tint.Err(err))
		return created, err
	}
	for _, c := range created {
		d.logger.Info("created command", "command", c.Name)
	}
	return created, nil
}

func (d DiscordSession) InteractionRespond(
	interaction *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	options ...discordgo.RequestOption,
) error {
	return d.session.InteractionRespond(interaction, resp, options...)
}

func (d DiscordSession) InteractionResponseEdit(
	interaction *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.InteractionResponseEdit(interaction, newresp, options...)
}

func (d DiscordSession) UpdateCustomStatus(status string) error {
	return d.session.UpdateCustomStatus(status)
}

func (d DiscordSession) SetLogLevel(lvl slog.Level) error {
	switch lvl.Level() {
	case slog.LevelInfo:
		d.session.LogLevel = discordgo.LogInformational
	case slog.LevelWarn:
		d.session.LogLevel = discordgo.LogWarning
	case slog.LevelDebug:
		d.session.LogLevel = discordgo.LogDebug
	case slog.LevelError:
		d.session.LogLevel = discordgo.LogError
	default:
		return fmt.Errorf("invalid log level: %s", lvl)
	}
	return nil
}
