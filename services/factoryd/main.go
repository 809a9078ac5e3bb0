package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	coreerrors "crosshub/core/errors"
	"crosshub/core/events"
	"crosshub/core/state"
	"crosshub/native/factory"
	"crosshub/observability"
	"crosshub/observability/logging"
	telemetry "crosshub/observability/otel"
	"crosshub/services/factoryd/config"
	"crosshub/services/factoryd/relayer"
	"crosshub/services/factoryd/relaylog"
	"crosshub/services/factoryd/server"
	"crosshub/storage"
)

func main() {
	var (
		cfgPath      string
		allowMigrate bool
	)
	flag.StringVar(&cfgPath, "config", "services/factoryd/config.yaml", "path to factoryd configuration file")
	flag.BoolVar(&allowMigrate, "allow-migrate", false, "start even if the on-disk state version differs")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CROSSHUB_ENV"))
	logger := logging.Setup("factoryd", env)
	cfg, err := config.Load(cfgPath, env)
	if err != nil {
		log.Fatalf("factoryd: load config: %v", err)
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.FromSettings("factoryd", env, cfg.ChainUID, cfg.HTTP.Telemetry))
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	var db storage.Database
	if strings.TrimSpace(cfg.DataDir) == "" {
		logger.Warn("no data directory configured, factory state is kept in memory")
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			log.Fatalf("factoryd: open storage: %v", err)
		}
		db = ldb
	}
	defer db.Close()
	if err := state.Bootstrap(db, allowMigrate); err != nil {
		log.Fatalf("factoryd: state version: %v", err)
	}

	relays, err := relaylog.Open(cfg.RelayLog.DatabaseURL, cfg.RelayLog.SQLitePath)
	if err != nil {
		log.Fatalf("factoryd: relay log: %v", err)
	}

	engineCfg := cfg.Engine()
	f := server.NewFactory(db, engineCfg, events.Fanout{observability.Events()})
	if channel := strings.TrimSpace(cfg.HubChannel); channel != "" {
		if err := seedHubChannel(f, engineCfg.Admin, channel); err != nil {
			log.Fatalf("factoryd: hub channel: %v", err)
		}
	}

	transport, err := relayer.NewHTTPTransport(relayer.HubConfig{
		Endpoint:   cfg.Hub.Endpoint,
		Subject:    engineCfg.Address,
		HMACSecret: cfg.Hub.HMACSecret,
		Issuer:     cfg.Hub.Issuer,
		Audience:   cfg.Hub.Audience,
		Timeout:    cfg.Hub.Timeout.Duration,
	})
	if err != nil {
		log.Fatalf("factoryd: hub transport: %v", err)
	}
	rl := relayer.New(f, transport, relays, relayer.Config{
		Interval: cfg.Relayer.Interval.Duration,
		Batch:    cfg.Relayer.Batch,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.HTTP, f, relays, rl, logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rl.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	if err := g.Wait(); err != nil {
		log.Fatalf("factoryd: %v", err)
	}
}

// seedHubChannel sets the hub channel of a factory that has none yet.
func seedHubChannel(f *server.Factory, admin, channel string) error {
	return f.Update(func(e *factory.Engine) error {
		_, err := e.HubChannel()
		if err == nil {
			return nil
		}
		if !errors.Is(err, coreerrors.ErrHubChannelNotSet) {
			return err
		}
		return e.UpdateHubChannel(admin, channel)
	})
}
