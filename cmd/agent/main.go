package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"printfleet/internal/agent"
	"printfleet/internal/config"
	"printfleet/internal/logger"
)

func main() {
	cfg, err := config.LoadAgentConfig()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.LogLevel, Debug: cfg.LogDebug, Output: "stderr"})
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := agent.New(cfg, zlog)
	if err := client.Run(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("agent stopped")
	}
	zlog.Info().Msg("agent shut down")
}
