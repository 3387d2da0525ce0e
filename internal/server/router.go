package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"printfleet/internal/auth"
	"printfleet/internal/handler"
	"printfleet/internal/hub"
	"printfleet/internal/middleware"
	"printfleet/internal/queue"
	"printfleet/internal/store"
	"printfleet/internal/telemetry"
)

type Deps struct {
	Store        *store.Store
	Hub          *hub.Hub
	Queue        *queue.Queue
	Recorder     *telemetry.Recorder
	TokenConfig  auth.TokenConfig
	ClientSecret string
	DriverDir    string
	Log          zerolog.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	registerLimiter := middleware.NewRateLimiter(10, time.Minute)
	registerHandler := &handler.RegisterHandler{
		Store:        deps.Store,
		ClientSecret: deps.ClientSecret,
		TokenConfig:  deps.TokenConfig,
		Limiter:      registerLimiter,
		Log:          deps.Log,
	}
	r.GET("/ws/register", registerHandler.Serve)

	sessionHandler := &handler.SessionHandler{
		Hub:         deps.Hub,
		Store:       deps.Store,
		TokenConfig: deps.TokenConfig,
		Recorder:    deps.Recorder,
		Log:         deps.Log,
	}
	r.GET("/ws/session", sessionHandler.Serve)

	v1 := r.Group("/v1")

	agentHandler := &handler.AgentHandler{Store: deps.Store, Hub: deps.Hub}
	v1.GET("/agents", agentHandler.List)
	v1.GET("/agents/:id", agentHandler.Get)

	printerHandler := &handler.PrinterHandler{
		Store:     deps.Store,
		Queue:     deps.Queue,
		DriverDir: deps.DriverDir,
	}
	v1.GET("/printers", printerHandler.List)
	v1.POST("/printers", printerHandler.Create)
	v1.GET("/printers/:id", printerHandler.Get)
	v1.POST("/printers/:id/install", printerHandler.Install)
	v1.POST("/printers/:id/poll", printerHandler.Poll)
	v1.GET("/printers/:id/telemetry", printerHandler.Telemetry)
	v1.GET("/printers/:id/history", printerHandler.History)

	profileHandler := &handler.ProfileHandler{Store: deps.Store}
	v1.GET("/profiles", profileHandler.List)
	v1.POST("/profiles", profileHandler.Upsert)
	v1.GET("/profiles/:id", profileHandler.Get)

	driverHandler := &handler.DriverHandler{Dir: deps.DriverDir}
	drivers := r.Group("/v1/drivers")
	drivers.Use(middleware.RequireAgentAuth(deps.TokenConfig))
	drivers.GET("", driverHandler.List)
	drivers.GET("/:name", driverHandler.Get)

	return r
}
