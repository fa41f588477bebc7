package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/camwatch/camwatch/internal/config"
	"github.com/camwatch/camwatch/internal/domain"
	"github.com/camwatch/camwatch/internal/httpapi"
	"github.com/camwatch/camwatch/internal/logging"
	"github.com/camwatch/camwatch/internal/probe"
	"github.com/camwatch/camwatch/internal/repo"
	"github.com/camwatch/camwatch/internal/repo/memory"
	"github.com/camwatch/camwatch/internal/repo/postgres"
	"github.com/camwatch/camwatch/internal/scheduler"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to the stream config file")
	flag.Parse()

	boot, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(boot.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	watcher, err := config.NewWatcher(*cfgPath, logger)
	if err != nil {
		logger.Fatal("config_load_error", zap.Error(err))
	}
	cfg := watcher.Current()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sink repo.ResultStore
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres_connect_error", zap.Error(err))
		}
		defer pg.Close()
		sink = pg
		logger.Info("sink_postgres")
	} else {
		sink = memory.New()
		logger.Info("sink_memory")
	}

	probers := map[domain.Family]probe.Prober{
		domain.FamilyRTSP: probe.NewRTSPProber(cfg.RTSPTimeout),
		domain.FamilyHTTP: probe.NewHTTPProber(cfg.HTTPTimeout),
	}
	sched := scheduler.New(logger, clockwork.NewRealClock(), sink, probers,
		probe.NewFrameProber(0), cfg.MaxWorkers)
	sched.Apply(cfg)

	watcher.Start()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case next := <-watcher.Updates():
				sched.Apply(next)
			}
		}
	}()

	api := httpapi.NewServer(logger, sink, cfg.APIRateLimit, cfg.APIRateBurst)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := http.ListenAndServe(cfg.Addr, api.Router()); err != nil {
			logger.Error("api_serve_error", zap.Error(err))
		}
	}()

	logger.Info("monitor_started",
		zap.Int("streams", len(cfg.Streams)),
		zap.Int("heartbeat_seconds", cfg.HeartbeatSeconds),
		zap.Int("max_workers", cfg.MaxWorkers),
	)
	sched.Run(ctx)
}
