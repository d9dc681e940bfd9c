//nolint:lll // struct tags can't be split
package roost

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-contrib/cors"
)

const (
	EnvvarSetEnvPrefix = "ROOST_ENV_PREFIX"
	DefaultEnvPrefix   = "ROOST"

	DefaultDatabaseType          = "sqlite"
	DefaultDatabase              = "roost.sqlite3"
	DefaultDataDir               = "data"
	DefaultLogLevel              = slog.LevelInfo
	DefaultStartupTimeout        = 30 * time.Second
	DefaultShutdownTimeout       = 60 * time.Second
	DefaultDatabaseSlowThreshold = 200 * time.Millisecond
	DefaultDatabaseLogLevel      = slog.LevelInfo

	DefaultOpenAIModel                = "gpt-4o-mini"
	DefaultOpenAIMaxTokens            = 1024
	DefaultOpenAIMaxRequestsPerSecond = 1
	DefaultOpenAILogLevel             = slog.LevelInfo
	DefaultUserChatLimit6h            = 10

	DefaultDiscordGatewayIntent  = discordgo.IntentsAllWithoutPrivileged
	DefaultDiscordLogLevel       = slog.LevelWarn
	DefaultDiscordgoLogLevel     = slog.LevelWarn
	DefaultDiscordErrorMessage   = "sorry, something went wrong!"
	DefaultDiscordCustomStatus   = "/chat with me!"
	DefaultDiscordStartupMessage = "I'm here!"
	discordMaxMessageLength      = 2000

	DefaultAPIListen            = "127.0.0.1:5000"
	DefaultAPILogLevel          = slog.LevelInfo
	defaultListenNetwork        = "tcp"
	DefaultReadTimeout          = 5 * time.Second
	DefaultReadHeaderTimeout    = 5 * time.Second
	DefaultWriteTimeout         = 10 * time.Second
	DefaultIdleTimeout          = 30 * time.Second
	DefaultCORSAllowCredentials = false

	DefaultLookupTimeout           = 10 * time.Second
	DefaultLookupRetries           = 3
	DefaultExchangeRatePerMinute   = 60
	DefaultPopulationRatePerMinute = 30
	DefaultSteamSearchPerMinute    = 30
	DefaultSteamPlayersPerMinute   = 60
	DefaultWeatherRatePerMinute    = 30
	DefaultLookupLogLevel          = slog.LevelInfo

	defaultExchangeURL         = "https://open.er-api.com/v6/latest/KRW"
	defaultPopulationURL       = "https://restcountries.com/v3.1/name"
	defaultSteamSearchURL      = "https://store.steampowered.com/api/storesearch"
	defaultSteamPlayerCountURL = "https://api.steampowered.com/ISteamUserStats/GetNumberOfCurrentPlayers/v1/"
	defaultWeatherGeocodeURL   = "https://geocoding-api.open-meteo.com/v1/search"
	defaultWeatherForecastURL  = "https://api.open-meteo.com/v1/forecast"
)

var (
	DefaultCORSAllowMethods = []string{
		http.MethodGet,
		http.MethodOptions,
		http.MethodHead,
	}
	DefaultCORSAllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Accept",
		"Cache-Control",
	}
	DefaultCORSExposeHeaders = []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
	}
	DefaultCORSMaxAge = 12 * time.Hour
)

// Config is the top-level bot configuration, loaded via viper in cmd/.
type Config struct {
	// Database connection string
	Database string `yaml:"database" mapstructure:"database" json:"database"`

	// DatabaseType specifies the type of database, either 'sqlite' or 'postgres'
	DatabaseType string `yaml:"database_type" mapstructure:"database_type" json:"database_type" binding:"oneof=sqlite postgres"`

	// DatabaseLogLevel sets the log level for database operations
	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// DatabaseSlowThreshold is the duration threshold for identifying slow database queries
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold" json:"database_slow_threshold"`

	// DataDir is the directory holding the per-guild memory documents
	DataDir string `yaml:"data_dir" mapstructure:"data_dir" json:"data_dir"`

	// OpenAI holds the configuration for the /chat relay
	OpenAI *OpenAIConfig `yaml:"openai" mapstructure:"openai" json:"openai"`

	// Lookup configures the external information API clients
	Lookup *LookupConfig `yaml:"lookup" mapstructure:"lookup" json:"lookup"`

	// API configures the backend status API server
	API *APIConfig `yaml:"api" mapstructure:"api" json:"api"`

	// Discord configures aspects of the Discord bot itself
	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord"`

	// LogLevel is the base log level, for the default logger
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// StartupTimeout sets a limit on the amount of time the bot has to
	// initialize. If this is passed, the bot will abort startup.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	// ShutdownTimeout is the time to allow for a graceful shutdown. After this
	// elapses, the bot will force close all connections and exit.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	HTTPClient *http.Client `log:"[redacted]"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// DiscordConfig configures the discord bot itself.
//
//nolint:lll // can't break tags
type DiscordConfig struct {
	// Discord bot token (from the 'Bot' tab in the discord dev portal)
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	// Discord application ID (from the 'General Information' tab in the discord dev portal)
	ApplicationID string `yaml:"application_id" mapstructure:"application_id" json:"application_id" binding:"required"`

	// GuildID specifies the guild ID used when registering slash commands.
	// Leave empty for commands to be registered as global.
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id"`

	// NotificationChannelID, if set, receives StartupMessage whenever the
	// bot connects to the discord gateway.
	NotificationChannelID string `yaml:"notification_channel_id" mapstructure:"notification_channel_id" json:"notification_channel_id"`

	// StartupMessage is sent to NotificationChannelID on gateway connect
	StartupMessage string `yaml:"startup_message" mapstructure:"startup_message" json:"startup_message"`

	// CustomStatus is set as the bot user's status on connect
	CustomStatus string `yaml:"custom_status" mapstructure:"custom_status" json:"custom_status"`

	// ErrorMessage is the generic user-facing response when a command fails
	ErrorMessage string `yaml:"error_message" mapstructure:"error_message" json:"error_message"`

	// Base discord logging level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Log level for the `discordgo` library's logger
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	// Discord gateway intents. See: https://discord.com/developers/docs/topics/gateway#gateway-intents
	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents" json:"gateway_intents"`

	httpClient *http.Client
}

// OpenAIConfig configures the /chat relay to the OpenAI chat completions API
type OpenAIConfig struct {
	// OpenAI API token
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	// Model passed on chat completion requests
	Model string `yaml:"model" mapstructure:"model" json:"model"`

	// MaxTokens caps the completion size
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens" json:"max_tokens"`

	// Instructions is sent as the system message, if set
	Instructions string `yaml:"instructions" mapstructure:"instructions" json:"instructions"`

	// MaxRequestsPerSecond limits outgoing OpenAI API requests
	MaxRequestsPerSecond int `yaml:"max_requests_per_second" mapstructure:"max_requests_per_second" json:"max_requests_per_second"`

	// UserChatLimit6h is the default per-user /chat allowance per 6 hours
	UserChatLimit6h int `yaml:"user_chat_limit_6h" mapstructure:"user_chat_limit_6h" json:"user_chat_limit_6h"`

	// OpenAI base log level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`
}

// LookupConfig configures the exchange-rate, population and steam clients.
// The URLs are overridable so tests can point the clients at local servers.
type LookupConfig struct {
	// SteamKey is the Steam Web API key used for player count lookups
	SteamKey string `yaml:"steam_key" mapstructure:"steam_key" json:"steam_key" log:"[redacted]"`

	// Timeout bounds each outgoing request
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`

	// MaxRetries is the number of attempts made per lookup
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" json:"max_retries"`

	// ExchangeRatePerMinute limits calls to the exchange rate API
	ExchangeRatePerMinute int `yaml:"exchange_rate_per_minute" mapstructure:"exchange_rate_per_minute" json:"exchange_rate_per_minute"`

	// PopulationRatePerMinute limits calls to the country API
	PopulationRatePerMinute int `yaml:"population_rate_per_minute" mapstructure:"population_rate_per_minute" json:"population_rate_per_minute"`

	// SteamSearchPerMinute limits calls to the steam store search API
	SteamSearchPerMinute int `yaml:"steam_search_per_minute" mapstructure:"steam_search_per_minute" json:"steam_search_per_minute"`

	// SteamPlayersPerMinute limits calls to the steam player count API
	SteamPlayersPerMinute int `yaml:"steam_players_per_minute" mapstructure:"steam_players_per_minute" json:"steam_players_per_minute"`

	// WeatherRatePerMinute limits calls to the weather APIs
	WeatherRatePerMinute int `yaml:"weather_rate_per_minute" mapstructure:"weather_rate_per_minute" json:"weather_rate_per_minute"`

	ExchangeURL         string `yaml:"exchange_url" mapstructure:"exchange_url" json:"exchange_url"`
	PopulationURL       string `yaml:"population_url" mapstructure:"population_url" json:"population_url"`
	SteamSearchURL      string `yaml:"steam_search_url" mapstructure:"steam_search_url" json:"steam_search_url"`
	SteamPlayerCountURL string `yaml:"steam_player_count_url" mapstructure:"steam_player_count_url" json:"steam_player_count_url"`
	WeatherGeocodeURL   string `yaml:"weather_geocode_url" mapstructure:"weather_geocode_url" json:"weather_geocode_url"`
	WeatherForecastURL  string `yaml:"weather_forecast_url" mapstructure:"weather_forecast_url" json:"weather_forecast_url"`

	// Lookup client log level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`
}

// APIConfig configures the backend status API server
type APIConfig struct {
	// Enabled determines whether the status API server is started
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	// The address and port on which the server should listen (e.g., "127.0.0.1:5000").
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required_if=Enabled true,hostname|filepath"`

	// The network type for listening (e.g., "tcp", "tcp4", "tcp6", "unix").
	ListenNetwork string `yaml:"listen_network" mapstructure:"listen_network" json:"listen_network" binding:"required_if=Enabled true,oneof=tcp tcp4 tcp6 unix"`

	// The logging level for the API server.
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Cross-origin configuration
	CORS CORSConfig `yaml:"cors" mapstructure:"cors" json:"cors"`

	// Maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout" binding:"required_if=Enabled true,min=1s"`

	// Amount of time allowed to read request headers.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout" json:"read_header_timeout"  binding:"required_if=Enabled true,min=1s"`

	// Maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout"  binding:"required_if=Enabled true,min=1s"`

	// Maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout"  binding:"required_if=Enabled true,min=1s"`
}

// CORSConfig specifies cross-origin resource sharing settings
type CORSConfig struct {
	AllowOrigins     []string      `yaml:"allow_origins" mapstructure:"allow_origins" json:"allow_origins"`
	AllowMethods     []string      `yaml:"allow_methods" mapstructure:"allow_methods" json:"allow_methods"`
	AllowHeaders     []string      `yaml:"allow_headers" mapstructure:"allow_headers" json:"allow_headers"`
	ExposeHeaders    []string      `yaml:"expose_headers" mapstructure:"expose_headers" json:"expose_headers"`
	AllowCredentials bool          `yaml:"allow_credentials" mapstructure:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age" mapstructure:"max_age" json:"max_age"`
}

func (c CORSConfig) GINConfig() cors.Config {
	return cors.Config{
		AllowOrigins:     c.AllowOrigins,
		AllowMethods:     c.AllowMethods,
		AllowHeaders:     c.AllowHeaders,
		MaxAge:           c.MaxAge,
		ExposeHeaders:    c.ExposeHeaders,
		AllowCredentials: c.AllowCredentials,
	}
}

func DefaultCORSConfig() CORSConfig {
	defaultMethods := make([]string, len(DefaultCORSAllowMethods))
	copy(defaultMethods, DefaultCORSAllowMethods)

	defaultHeaders := make([]string, len(DefaultCORSAllowHeaders))
	copy(defaultHeaders, DefaultCORSAllowHeaders)

	defaultExpose := make([]string, len(DefaultCORSExposeHeaders))
	copy(defaultExpose, DefaultCORSExposeHeaders)

	return CORSConfig{
		AllowOrigins:     []string{},
		AllowMethods:     defaultMethods,
		AllowHeaders:     defaultHeaders,
		ExposeHeaders:    defaultExpose,
		MaxAge:           DefaultCORSMaxAge,
		AllowCredentials: DefaultCORSAllowCredentials,
	}
}

// DefaultConfig returns a Config with all default settings populated
func DefaultConfig() *Config {
	mainLogLevel := &slog.LevelVar{}
	openaiLogLevel := &slog.LevelVar{}
	discordLogLevel := &slog.LevelVar{}
	discordgoLogLevel := &slog.LevelVar{}
	dbLogLevel := &slog.LevelVar{}
	apiLogLevel := &slog.LevelVar{}
	lookupLogLevel := &slog.LevelVar{}

	mainLogLevel.Set(DefaultLogLevel)
	openaiLogLevel.Set(DefaultOpenAILogLevel)
	discordLogLevel.Set(DefaultDiscordLogLevel)
	discordgoLogLevel.Set(DefaultDiscordgoLogLevel)
	dbLogLevel.Set(DefaultDatabaseLogLevel)
	apiLogLevel.Set(DefaultAPILogLevel)
	lookupLogLevel.Set(DefaultLookupLogLevel)

	return &Config{
		DatabaseType:          DefaultDatabaseType,
		Database:              DefaultDatabase,
		DatabaseLogLevel:      dbLogLevel,
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		DataDir:               DefaultDataDir,
		LogLevel:              mainLogLevel,
		StartupTimeout:        DefaultStartupTimeout,
		ShutdownTimeout:       DefaultShutdownTimeout,
		OpenAI: &OpenAIConfig{
			Model:                DefaultOpenAIModel,
			MaxTokens:            DefaultOpenAIMaxTokens,
			MaxRequestsPerSecond: DefaultOpenAIMaxRequestsPerSecond,
			UserChatLimit6h:      DefaultUserChatLimit6h,
			LogLevel:             openaiLogLevel,
		},
		Lookup: &LookupConfig{
			Timeout:                 DefaultLookupTimeout,
			MaxRetries:              DefaultLookupRetries,
			ExchangeRatePerMinute:   DefaultExchangeRatePerMinute,
			PopulationRatePerMinute: DefaultPopulationRatePerMinute,
			SteamSearchPerMinute:    DefaultSteamSearchPerMinute,
			SteamPlayersPerMinute:   DefaultSteamPlayersPerMinute,
			WeatherRatePerMinute:    DefaultWeatherRatePerMinute,
			ExchangeURL:             defaultExchangeURL,
			PopulationURL:           defaultPopulationURL,
			SteamSearchURL:          defaultSteamSearchURL,
			SteamPlayerCountURL:     defaultSteamPlayerCountURL,
			WeatherGeocodeURL:       defaultWeatherGeocodeURL,
			WeatherForecastURL:      defaultWeatherForecastURL,
			LogLevel:                lookupLogLevel,
		},
		Discord: &DiscordConfig{
			GatewayIntents:    DefaultDiscordGatewayIntent,
			LogLevel:          discordLogLevel,
			DiscordGoLogLevel: discordgoLogLevel,
			StartupMessage:    DefaultDiscordStartupMessage,
			CustomStatus:      DefaultDiscordCustomStatus,
			ErrorMessage:      DefaultDiscordErrorMessage,
		},
		API: &APIConfig{
			Listen:            DefaultAPIListen,
			ListenNetwork:     defaultListenNetwork,
			LogLevel:          apiLogLevel,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ReadTimeout:       DefaultReadTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			IdleTimeout:       DefaultIdleTimeout,
			CORS:              DefaultCORSConfig(),
		},
	}
}
