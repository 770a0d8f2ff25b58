package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"WaveSiege/internal/config"
	"WaveSiege/internal/logging"
	"WaveSiege/internal/observability"
	"WaveSiege/internal/server"
	"WaveSiege/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config merged over the built-in defaults")
	mode := flag.String("mode", "", "override run mode (host or client)")
	addr := flag.String("addr", "", "override host listen address (e.g., 127.0.0.1:8080)")
	room := flag.String("room", "", "override room id")
	hostURL := flag.String("host-url", "", "override host websocket URL for client mode (e.g., ws://127.0.0.1:8080/ws)")
	codec := flag.String("codec", "", "override wire codec (proto or msgpack)")
	seed := flag.String("seed", "", "override wave RNG seed")
	level := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var overrides config.Overrides
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["mode"] {
		overrides.Mode = mode
	}
	if set["addr"] {
		overrides.Addr = addr
	}
	if set["room"] {
		overrides.Room = room
	}
	if set["host-url"] {
		overrides.HostURL = hostURL
	}
	if set["codec"] {
		overrides.Codec = codec
	}
	if set["seed"] {
		val, err := strconv.ParseInt(*seed, 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -seed %q: %v\n", *seed, err)
			os.Exit(2)
		}
		overrides.Seed = &val
	}
	if set["log-level"] {
		overrides.Level = level
	}
	overrides.Apply(cfg)

	logger := logging.New(cfg.Logging)
	if err := run(cfg, logger); err != nil {
		logger.Error("exiting", "mode", cfg.Server.Mode, "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roomCfg := cfg.RoomConfig(logger)

	opts, err := server.OptionsFrom(cfg)
	if err != nil {
		return err
	}
	opts.Logger = logger
	opts.Metrics, err = observability.NewRoomCollector(prometheus.DefaultRegisterer, roomCfg.Species)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	opts.Waves, err = telemetry.OpenWaveLog(cfg.Telemetry.Dir)
	if err != nil {
		return fmt.Errorf("wave log: %w", err)
	}
	defer opts.Waves.Close()

	switch cfg.Server.Mode {
	case "client":
		if cfg.Server.HostURL == "" {
			return errors.New("client mode needs server.host_url or -host-url")
		}
		client, err := server.Dial(ctx, cfg.Server.HostURL, opts, roomCfg)
		if err != nil {
			return err
		}
		defer client.Close()
		return client.Run(ctx)
	default:
		host := server.NewHost(opts, roomCfg)
		logger.Info("starting host", "addr", cfg.Server.Addr, "room", cfg.Server.Room, "seed", cfg.Game.Seed)
		if err := host.ListenAndServe(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
