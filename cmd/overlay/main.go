// Command overlay generates lightning flash density overlays. It serves the
// progress stream over HTTP, or runs one request from the command line.
//
// Usage:
//
//	overlay serve
//	overlay generate --product daily_lowres_density --country BE --date 2024-06-01
//	overlay inspect W_XX-EUMETSAT-Darmstadt_LI-2-LFL.zip
//	overlay runs --limit 20
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/couchcryptid/lightning-overlay-service/internal/config"
	"github.com/couchcryptid/lightning-overlay-service/internal/observability"
	"github.com/joho/godotenv"
)

type cli struct {
	EnvFile string `name:"env-file" default:".env" help:"Dotenv file with credentials; a missing file is ignored."`

	Serve    serveCmd    `cmd:"" default:"1" help:"Serve the overlay stream over HTTP."`
	Generate generateCmd `cmd:"" help:"Generate one overlay and print progress."`
	Inspect  inspectCmd  `cmd:"" help:"Decode a local product archive and summarize its flashes."`
	Runs     runsCmd     `cmd:"" help:"List journaled runs."`
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("overlay"),
		kong.Description("Lightning flash density overlays from satellite lightning imager data."),
		kong.UsageOnError(),
	)

	if err := loadDotenv(c.EnvFile); err != nil {
		slog.Error("failed to load env file", "path", c.EnvFile, "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	a := &app{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}

	kctx.FatalIfErrorf(kctx.Run(a))
}

// loadDotenv loads path into the environment without overriding variables
// that are already set.
func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
