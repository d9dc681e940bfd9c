package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/roostbot/roost/roost"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg        = roost.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use: "roost [flags]",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
		)
		if err != nil {
			log.Fatalln(err)
		}
	},
}

func getLogLevel(level string) (slog.Level, error) {
	switch level {
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}

		typ := t.Elem()

		if typ != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		fmt.Println("loading env from file", configFile)
		if err := godotenv.Load(configFile); err != nil {
			log.Println("No .env file found")
		}
	}

	viper.SetDefault("database", roost.DefaultDatabase)
	viper.SetDefault("database_type", roost.DefaultDatabaseType)
	viper.SetDefault(
		"database_slow_threshold",
		roost.DefaultDatabaseSlowThreshold,
	)
	viper.SetDefault(
		"database_log_level",
		roost.DefaultDatabaseLogLevel.String(),
	)
	viper.SetDefault("data_dir", roost.DefaultDataDir)

	viper.SetDefault("log_level", roost.DefaultLogLevel.String())
	viper.SetDefault("startup_timeout", roost.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", roost.DefaultShutdownTimeout)

	// OpenAI config
	viper.SetDefault("openai.token", "")
	viper.SetDefault("openai.model", roost.DefaultOpenAIModel)
	viper.SetDefault("openai.max_tokens", roost.DefaultOpenAIMaxTokens)
	viper.SetDefault(
		"openai.max_requests_per_second",
		roost.DefaultOpenAIMaxRequestsPerSecond,
	)
	viper.SetDefault(
		"openai.user_chat_limit_6h",
		roost.DefaultUserChatLimit6h,
	)
	viper.SetDefault("openai.log_level", roost.DefaultOpenAILogLevel.String())

	// Discord config
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.application_id", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault(
		"discord.log_level",
		roost.DefaultDiscordLogLevel.String(),
	)
	viper.SetDefault(
		"discord.discordgo_log_level",
		roost.DefaultDiscordgoLogLevel.String(),
	)
	viper.SetDefault(
		"discord.gateway_intents",
		roost.DefaultDiscordGatewayIntent,
	)
	viper.SetDefault(
		"discord.startup_message",
		roost.DefaultDiscordStartupMessage,
	)
	viper.SetDefault("discord.custom_status", roost.DefaultDiscordCustomStatus)
	viper.SetDefault("discord.error_message", roost.DefaultDiscordErrorMessage)

	// Lookup config
	viper.SetDefault("lookup.steam_key", "")
	viper.SetDefault("lookup.timeout", roost.DefaultLookupTimeout)
	viper.SetDefault("lookup.max_retries", roost.DefaultLookupRetries)
	viper.SetDefault(
		"lookup.exchange_rate_per_minute",
		roost.DefaultExchangeRatePerMinute,
	)
	viper.SetDefault(
		"lookup.population_rate_per_minute",
		roost.DefaultPopulationRatePerMinute,
	)
	viper.SetDefault(
		"lookup.steam_search_per_minute",
		roost.DefaultSteamSearchPerMinute,
	)
	viper.SetDefault(
		"lookup.steam_players_per_minute",
		roost.DefaultSteamPlayersPerMinute,
	)
	viper.SetDefault(
		"lookup.weather_rate_per_minute",
		roost.DefaultWeatherRatePerMinute,
	)
	viper.SetDefault("lookup.log_level", roost.DefaultLookupLogLevel.String())

	// API config
	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.listen", roost.DefaultAPIListen)
	viper.SetDefault("api.log_level", roost.DefaultAPILogLevel.String())
	viper.SetDefault("api.read_timeout", roost.DefaultReadTimeout)
	viper.SetDefault(
		"api.read_header_timeout",
		roost.DefaultReadHeaderTimeout,
	)
	viper.SetDefault("api.write_timeout", roost.DefaultWriteTimeout)
	viper.SetDefault("api.idle_timeout", roost.DefaultIdleTimeout)

	// API: CORS config
	viper.SetDefault(
		"api.cors.allow_headers",
		roost.DefaultCORSAllowHeaders,
	)
	viper.SetDefault(
		"api.cors.allow_methods",
		roost.DefaultCORSAllowMethods,
	)
	viper.SetDefault(
		"api.cors.expose_headers",
		roost.DefaultCORSExposeHeaders,
	)
	viper.SetDefault(
		"api.cors.allow_origins",
		[]string{},
	)
	viper.SetDefault("api.cors.max_age", roost.DefaultCORSMaxAge)
	viper.SetDefault(
		"api.cors.allow_credentials",
		roost.DefaultCORSAllowCredentials,
	)

	envPrefix := os.Getenv(roost.EnvvarSetEnvPrefix)
	if envPrefix == "" {
		envPrefix = roost.DefaultEnvPrefix
	}
	viper.SetEnvPrefix(envPrefix)

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	// Convert values to correct types
	viper.Set(
		"api.cors.allow_headers",
		viper.GetStringSlice("api.cors.allow_headers"),
	)
	viper.Set(
		"api.cors.allow_origins",
		viper.GetStringSlice("api.cors.allow_origins"),
	)
	viper.Set(
		"api.cors.allow_methods",
		viper.GetStringSlice("api.cors.allow_methods"),
	)
	viper.Set(
		"api.cors.expose_headers",
		viper.GetStringSlice("api.cors.expose_headers"),
	)

	for _, key := range []string{
		"log_level",
		"database_log_level",
		"discord.log_level",
		"discord.discordgo_log_level",
		"openai.log_level",
		"lookup.log_level",
		"api.log_level",
	} {
		logLevelVar, err := levelStringToLevelVar(viper.GetString(key))
		if err != nil {
			log.Fatalf("error parsing %s: %v", key, err)
		}
		viper.Set(key, logLevelVar)
	}
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Config file to use",
	)
}
