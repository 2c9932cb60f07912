package wsserver

import (
	"fmt"

	"github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

// Flags returns the CLI flags that configure a [Server], each settable
// by command-line flag, environment variable, or the TOML config file
// at configFilePath, in that priority order - the same
// cli.NewValueSourceChain(cli.EnvVar(...), toml.TOML(...)) pattern the
// teacher's pkg/http/webhooks/config.go uses.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "bind-address",
			Value: "0.0.0.0",
			Usage: "address to bind the WebSocket listener to",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSGATE_BIND_ADDRESS"),
				toml.TOML("server.bind_address", configFilePath),
			),
		},
		&cli.IntFlag{
			Name:  "port",
			Value: 80,
			Usage: "TCP port to listen on",
			Validator: func(p int64) error {
				if p < 1 || p > 65535 {
					return fmt.Errorf("invalid port: %d", p)
				}
				return nil
			},
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSGATE_PORT"),
				toml.TOML("server.port", configFilePath),
			),
		},
		&cli.BoolFlag{
			Name:  "lenient-connection-header",
			Value: true,
			Usage: "accept upgrade requests missing the Connection: Upgrade header",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSGATE_LENIENT_CONNECTION_HEADER"),
				toml.TOML("server.lenient_connection_header", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "jwt-secret",
			Usage: "HMAC secret for verifying a bearer JWT during the handshake; empty disables authentication",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSGATE_JWT_SECRET"),
				toml.TOML("server.jwt_secret", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "metrics-dir",
			Usage: "directory for CSV connection/frame metrics; empty disables metrics",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSGATE_METRICS_DIR"),
				toml.TOML("server.metrics_dir", configFilePath),
			),
		},
		&cli.FloatFlag{
			Name:  "max-accepts-per-sec",
			Usage: "rate-limit new connection accepts per second; 0 means unlimited",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("WSGATE_MAX_ACCEPTS_PER_SEC"),
				toml.TOML("server.max_accepts_per_sec", configFilePath),
			),
		},
	}
}
