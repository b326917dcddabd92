package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"softpwm/internal/config"
	"softpwm/internal/gpio"
	"softpwm/internal/logging"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./softpwm.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		boot := logging.New(logging.Config{}, os.Stderr)
		boot.Fatal().Err(err).Str("path", configPath).Msg("config load failed")
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log, gpio.Open)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("softpwm stopped")
	}
	log.Info().Msg("softpwm stopped")
}
