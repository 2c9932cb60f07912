// Command wsgate runs a standalone WebSocket server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/tzrikka/wsgate/internal/config"
	"github.com/tzrikka/wsgate/pkg/wsserver"
)

func main() {
	cmd := &cli.Command{
		Name:  "wsgate",
		Usage: "standalone WebSocket server",
		Flags: flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			initLog(c.Bool("dev") || c.Bool("pretty-log"), c.Bool("dev"))
			return run(ctx, c)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("wsgate exited with an error", slog.Any("error", err))
		os.Exit(1)
	}
}

// flags assembles the command's full flag set: generic ambient flags
// plus pkg/wsserver's own, the way cmd/timpani/main.go's flags()
// aggregates flag sets contributed by multiple sub-packages.
func flags() []cli.Flag {
	f := []cli.Flag{
		&cli.BoolFlag{Name: "dev", Usage: "enable human-readable, debug-level logging"},
		&cli.BoolFlag{Name: "pretty-log", Usage: "force human-readable logging even outside --dev"},
	}
	return append(f, wsserver.Flags(config.ConfigFile())...)
}

// initLog configures both this process's default slog logger and the
// global zerolog logger used by pkg/wsserver, so a single --dev flag
// governs both loggers' verbosity and format.
func initLog(pretty, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	var slogHandler slog.Handler
	if pretty {
		slogHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		slogHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	slog.SetDefault(slog.New(slogHandler))
}

func run(ctx context.Context, c *cli.Command) error {
	cfg := wsserver.Config{
		BindAddress:                  c.String("bind-address"),
		Port:                         int(c.Int("port")),
		AllowMissingConnectionHeader: c.Bool("lenient-connection-header"),
		MetricsDir:                   c.String("metrics-dir"),
		MaxAcceptsPerSecond:          c.Float("max-accepts-per-sec"),
	}
	if secret := c.String("jwt-secret"); secret != "" {
		cfg.JWTSecret = []byte(secret)
	}

	srv := wsserver.New(cfg)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}
