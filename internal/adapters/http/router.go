package http

import (
	"context"

	"github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const sessionUserKey = "user_id"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// Deps is what the HTTP surface needs beyond config.
type Deps struct {
	Orch   *orch.Orchestrator
	Signal *signal.SignalWSController
	Store  core.Store
	RTC    webrtc.Configuration
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/meet/:id", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{deps: d, publicURL: cfg.PublicURL}
	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		uid, _ := sessions.Default(c).Get(sessionUserKey).(string)
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		// ctx outlives the request; the socket is hijacked once upgraded.
		d.Signal.HandleSignal(ctx, c, domain.UserID(uid))
	})

	api.POST("/session", h.createSession)
	api.DELETE("/session", h.clearSession)

	api.POST("/meetings", h.createMeeting)
	api.GET("/meetings/:id", h.getMeeting)
	api.GET("/meetings/:id/validate", h.validateMeeting)
	api.GET("/meetings/:id/transcripts", h.meetingTranscripts)

	api.PUT("/personas/:userId", h.savePersona)

	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:id/participants", h.roomParticipants)

	api.GET("/rtc/config", h.rtcConfig)
	api.GET("/healthz", h.health)

	return r
}
