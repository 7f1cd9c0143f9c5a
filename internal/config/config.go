// Package config parses the process's startup flags. There is no
// configuration file and no recognized environment variable: the wire
// protocol and data structures are fixed by the specification, and the
// only runtime knobs are where to listen, how to log, how often to sample
// telemetry, and how fast to accept new connections.
package config

import (
	"flag"
	"time"
)

// Config holds the process's startup knobs.
type Config struct {
	Addr                string
	LogLevel            string
	LogFormat           string
	TelemetryInterval   time.Duration
	AcceptRatePerSecond int
}

// Default returns the built-in defaults: listen on :2203, info-level
// console logging, a 10s telemetry tick, and no accept-rate limiting.
func Default() Config {
	return Config{
		Addr:                ":2203",
		LogLevel:            "info",
		LogFormat:           "console",
		TelemetryInterval:   10 * time.Second,
		AcceptRatePerSecond: 0,
	}
}

// Parse populates a Config from args (typically os.Args[1:]) on top of
// Default's values.
func Parse(args []string) (Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("progcached", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address, host:port")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console, json")
	fs.DurationVar(&cfg.TelemetryInterval, "telemetry-interval", cfg.TelemetryInterval, "telemetry sampling interval")
	fs.IntVar(&cfg.AcceptRatePerSecond, "accept-rate", cfg.AcceptRatePerSecond, "max accepted connections per second, 0 for unlimited")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
