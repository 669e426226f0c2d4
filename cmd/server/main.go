// Command server runs the foodgram HTTP API.
//
// main stays small: load configuration, build the logger, make sure the
// data directories exist, start the server. Everything else lives under
// internal/.
//
// Configuration comes from (lowest to highest precedence) built-in
// defaults, an optional TOML file (-config or FOODGRAM_CONFIG), a .env file
// and the process environment. See internal/config.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/foodgram/internal/config"
	"github.com/sakif/foodgram/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	// Until the configured level is known, log at info.
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// os.MkdirAll is a no-op when the directory exists.
	dirs := []string{filepath.Dir(cfg.DBPath)}
	if cfg.Media.Backend == config.MediaLocal {
		dirs = append(dirs, cfg.Media.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
