// Command progcached runs the cache server: it parses startup flags,
// builds the structured logger, constructs the cache core, starts the
// telemetry sampler, and drives the event loop until signaled to stop.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/benbjohnson/clock"

	"github.com/progcache/progcache/internal/cache/manager"
	"github.com/progcache/progcache/internal/config"
	"github.com/progcache/progcache/internal/netio"
	"github.com/progcache/progcache/internal/telemetry"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat)

	port, err := portFromAddr(cfg.Addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Addr).Msg("invalid listen address")
	}

	listenFD, err := netio.Listen(port)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open listening socket")
	}

	mgr := manager.New(clock.New())

	loop, err := netio.NewLoop(listenFD, mgr, cfg.AcceptRatePerSecond, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start event loop")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sampler := telemetry.NewSampler(mgr, cfg.TelemetryInterval, log)
	go sampler.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		cancel()
		loop.Stop()
	}()

	log.Info().Str("addr", cfg.Addr).Msg("progcached listening")

	if err := loop.Run(); err != nil {
		log.Error().Err(err).Msg("event loop exited with error")
	}
	loop.Close()
	log.Info().Msg("progcached stopped")
}

func portFromAddr(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
