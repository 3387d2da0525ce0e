package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"printfleet/internal/auth"
	"printfleet/internal/config"
	"printfleet/internal/hub"
	"printfleet/internal/logger"
	"printfleet/internal/queue"
	"printfleet/internal/server"
	"printfleet/internal/store"
	"printfleet/internal/telemetry"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.LogLevel, Debug: cfg.LogDebug})
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)
	st := store.NewWithOptions(store.Options{AgentsStateFile: cfg.AgentsFile})

	tokenCfg := auth.TokenConfig{
		Secret: cfg.ClientSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "printfleet",
	}

	agentHub := hub.New()
	cmdQueue := queue.New()
	recorder := telemetry.NewRecorder(st, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := server.NewDispatcher(cmdQueue, agentHub, zlog)
	go dispatcher.Run(ctx)

	poller := telemetry.NewPoller(nil, zlog)
	runner := telemetry.NewRunner(st, poller, recorder, cfg.PollInterval, cfg.PollWorkers, zlog)
	go runner.Run(ctx)

	router := server.NewRouter(server.Deps{
		Store:        st,
		Hub:          agentHub,
		Queue:        cmdQueue,
		Recorder:     recorder,
		TokenConfig:  tokenCfg,
		ClientSecret: cfg.ClientSecret,
		DriverDir:    cfg.DriverDir,
		Log:          zlog,
	})

	zlog.Info().Str("addr", fmt.Sprintf(":%d", cfg.Port)).Msg("listening")
	log.Fatal(server.Run(cfg, router))
}
