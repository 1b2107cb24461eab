// Command sentineld runs the security telemetry core as a sidecar service.
//
// It serves two listeners:
//
//   - the API listener, behind the request middleware, where an auth
//     backend reports login attempts and validates sessions;
//   - the admin listener, with the admin API and the Prometheus /metrics
//     endpoint, which should only be reachable by operators.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

// version is set at build time.
var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "sentineld",
		Usage:   "session tracking, abuse detection and activity auditing service",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration file",
				EnvVars: []string{"SENTINELD_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "listen",
				Usage:   "address of the API listener",
				EnvVars: []string{"SENTINELD_LISTEN"},
				Value:   ":8080",
			},
			&cli.StringFlag{
				Name:    "admin-listen",
				Usage:   "address of the admin and metrics listener",
				EnvVars: []string{"SENTINELD_ADMIN_LISTEN"},
				Value:   "127.0.0.1:9090",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level: debug, info, warn or error",
				EnvVars: []string{"SENTINELD_LOG_LEVEL"},
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "log format: text or json",
				EnvVars: []string{"SENTINELD_LOG_FORMAT"},
				Value:   "text",
			},
			&cli.BoolFlag{
				Name:    "metrics",
				Usage:   "export OpenTelemetry metrics on /metrics of the admin listener",
				EnvVars: []string{"SENTINELD_METRICS"},
				Value:   true,
			},
			&cli.DurationFlag{
				Name:    "shutdown-timeout",
				Usage:   "time allowed for in-flight requests on shutdown",
				EnvVars: []string{"SENTINELD_SHUTDOWN_TIMEOUT"},
				Value:   15 * time.Second,
			},
		},
		Action: run,
	}
}
