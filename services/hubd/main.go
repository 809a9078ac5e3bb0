package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"crosshub/core/events"
	"crosshub/core/state"
	"crosshub/native/router"
	"crosshub/observability"
	"crosshub/observability/logging"
	telemetry "crosshub/observability/otel"
	"crosshub/services/hubd/config"
	"crosshub/services/hubd/pools"
	"crosshub/services/hubd/server"
	"crosshub/storage"
)

func main() {
	var (
		cfgPath      string
		allowMigrate bool
	)
	flag.StringVar(&cfgPath, "config", "services/hubd/config.yaml", "path to hubd configuration file")
	flag.BoolVar(&allowMigrate, "allow-migrate", false, "start even if the on-disk state version differs")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CROSSHUB_ENV"))
	logger := logging.Setup("hubd", env)
	cfg, err := config.Load(cfgPath, env)
	if err != nil {
		log.Fatalf("hubd: load config: %v", err)
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.FromSettings("hubd", env, "", cfg.HTTP.Telemetry))
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	var db storage.Database
	if strings.TrimSpace(cfg.DataDir) == "" {
		logger.Warn("no data directory configured, hub state is kept in memory")
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			log.Fatalf("hubd: open storage: %v", err)
		}
		db = ldb
	}
	defer db.Close()
	if err := state.Bootstrap(db, allowMigrate); err != nil {
		log.Fatalf("hubd: state version: %v", err)
	}

	poolClient, err := pools.NewClient(pools.Config{
		Endpoint:      cfg.Pools.Endpoint,
		APIKey:        cfg.Pools.APIKey,
		Timeout:       cfg.Pools.Timeout.Duration,
		RatePerSecond: cfg.Pools.RatePerSecond,
		Burst:         cfg.Pools.Burst,
	})
	if err != nil {
		log.Fatalf("hubd: pools client: %v", err)
	}

	stream := server.NewStream(cfg.Stream.Buffer, cfg.Stream.WriteTimeout.Duration, logger)
	hub := server.NewHub(db, router.Config{Admin: cfg.Admin}, poolClient, events.Fanout{stream, observability.Events()})
	for _, entry := range cfg.Chains {
		uid, chain := entry.Chain()
		if err := hub.Update(func(r *router.Router) error {
			return r.RegisterChain(cfg.Admin, uid, chain)
		}); err != nil {
			log.Fatalf("hubd: register chain %s: %v", uid, err)
		}
		logger.Info("chain registered", "chain_uid", string(uid), "channel", chain.FromFactoryChannel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.HTTP, hub, stream, logger)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("hubd: serve: %v", err)
	}
}
