package roost

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

const (
	apiPathHealth        = "/api/health"
	apiPathStats         = "/api/stats"
	apiPathGuildMemories = "/api/guilds/:guild_id/memories"
)

// newAPIEngine builds the gin engine for the read-only status API.
func newAPIEngine(r *Roost, handler slog.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	logger := slog.New(handler).With(loggerNameKey, "api")

	corsConfig := r.config.API.CORS.GINConfig()
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	engine.Use(
		gin.Recovery(),
		apiLoggingMiddleware(logger),
		cors.New(corsConfig),
	)

	engine.GET(apiPathHealth, healthHandler(r))
	engine.GET(apiPathStats, statsHandler(r, logger))
	engine.GET(apiPathGuildMemories, guildMemoriesHandler(r))

	return engine
}

// apiLoggingMiddleware logs each request with its latency and status.
func apiLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		logger.Info(
			fmt.Sprintf("%s %s finished", c.Request.Method, c.Request.URL),
			"duration", latency,
			"remote_ip", c.RemoteIP(),
			slog.Group(
				"response",
				"status_code", c.Writer.Status(),
				"body_size", c.Writer.Size(),
			),
		)
	}
}

type healthResponse struct {
	Status           string `json:"status"`
	DiscordConnected bool   `json:"discord_connected"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func healthHandler(r *Roost) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(
			http.StatusOK, healthResponse{
				Status:           "ok",
				DiscordConnected: r.discord.connected.Load(),
				UptimeSeconds:    int64(time.Since(r.startedAt).Seconds()),
			},
		)
	}
}

type statsResponse struct {
	UptimeSeconds      int64            `json:"uptime_seconds"`
	DiscordConnected   bool             `json:"discord_connected"`
	GatewayConnects    int64            `json:"gateway_connects"`
	GatewayDisconnects int64            `json:"gateway_disconnects"`
	CommandCounts      map[string]int64 `json:"command_counts"`
	GuildMemoryCounts  map[string]int   `json:"guild_memory_counts"`
}

func statsHandler(r *Roost, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		commandCounts, err := r.writeDB.CommandCounts(c.Request.Context())
		if err != nil {
			logger.Error("error loading command counts", tint.Err(err))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.JSON(
			http.StatusOK, statsResponse{
				UptimeSeconds:      int64(time.Since(r.startedAt).Seconds()),
				DiscordConnected:   r.discord.connected.Load(),
				GatewayConnects:    r.discord.metricConnects.Load(),
				GatewayDisconnects: r.discord.metricDisconnects.Load(),
				CommandCounts:      commandCounts,
				GuildMemoryCounts:  r.memories.Count(),
			},
		)
	}
}

type guildMemoriesResponse struct {
	GuildID  string         `json:"guild_id"`
	Memories []MemoryRecord `json:"memories"`
}

func guildMemoriesHandler(r *Roost) gin.HandlerFunc {
	return func(c *gin.Context) {
		guildID := c.Param("guild_id")
		c.JSON(
			http.StatusOK, guildMemoriesResponse{
				GuildID:  guildID,
				Memories: r.memories.List(guildID),
			},
		)
	}
}
