package main

import (
	"log/slog"
	"os"

	"github.com/soocke/scroll-capture-go/app"
	"github.com/soocke/scroll-capture-go/config"
)

const configPath = "config.json"

func main() {
	cfg, cfgErr := config.Load(configPath)

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(os.Stderr, level)
	if cfgErr != nil {
		logger.Warn("config load failed; using defaults", "path", configPath, "error", cfgErr)
	}

	application := app.NewApp(cfg, logger)
	if err := application.Start(); err != nil {
		logger.Error("capture failed", "error", err)
		os.Exit(1)
	}
}
