package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PegSentinel/internal/config"
	"PegSentinel/internal/logger"
	"PegSentinel/internal/metrics"
	"PegSentinel/internal/recorder"
	"PegSentinel/internal/report"
	"PegSentinel/internal/scenario"
	"PegSentinel/internal/scheduler"
)

func main() {
	log := logger.GetLogger()
	log.WithComponent("main").Info("PegSentinel starting...")

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("config validation")
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Fatal("configure logger")
	}
	mainLog := log.WithComponent("main")

	rec := openRecorder(cfg, mainLog)
	defer func() {
		if err := rec.Close(); err != nil {
			mainLog.WithError(err).Error("close recorder")
		}
	}()

	policies, err := cfg.AccumulationPolicies()
	if err != nil {
		mainLog.WithError(err).Fatal("resolve policies")
	}

	runner := &scenario.Runner{
		HubParams:   cfg.HubParams(),
		Oracle:      cfg.OracleConfig(),
		Scenario:    cfg.Scenario,
		Policies:    policies,
		RecordEvery: cfg.Database.RecordEvery,
		Recorder:    rec,
		Metrics:     metrics.Sim(),
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printSummary := func(res *scenario.Result) { fmt.Print(report.FormatRunSummary(res)) }
	sched := scheduler.NewScheduler(ctx, runner, printSummary)

	if cfg.Schedule.Cron == "" {
		if _, err := sched.RunNow(); err != nil {
			mainLog.WithError(err).Error("simulation run failed")
		}
		return
	}

	srv := serveMetrics(cfg.Metrics.Listen, mainLog)

	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		mainLog.WithError(err).Fatal("register cron task")
	}
	sched.Start()

	if cfg.Schedule.RunOnStart || os.Getenv("RUN_ON_START") == "true" {
		mainLog.Info("RUN_ON_START enabled, executing a run now")
		go func() {
			if _, err := sched.RunNow(); err != nil {
				mainLog.WithError(err).Error("startup run failed")
			}
		}()
	}

	mainLog.WithFields(logger.Fields{"cron": cfg.Schedule.Cron}).Info("PegSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()

	mainLog.Info("shutdown signal received, stopping...")
	sched.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			mainLog.WithError(err).Error("metrics server shutdown")
		}
	}
	mainLog.Info("PegSentinel stopped")
}

// openRecorder combines the configured stores. Stores that fail to open
// are skipped with a warning.
func openRecorder(cfg *config.Config, log *logger.Entry) recorder.Recorder {
	var recs []recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, skipping")
		} else {
			recs = append(recs, sr)
		}
	}
	if cfg.Database.ParquetDir != "" {
		pr, err := recorder.NewParquetRecorder(cfg.Database.ParquetDir)
		if err != nil {
			log.WithError(err).Warn("init parquet recorder failed, skipping")
		} else {
			recs = append(recs, pr)
		}
	}
	switch len(recs) {
	case 0:
		return recorder.NewNoopRecorder()
	case 1:
		return recs[0]
	default:
		return recorder.NewMultiRecorder(recs...)
	}
}

func serveMetrics(addr string, log *logger.Entry) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(nil))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server")
		}
	}()
	log.WithFields(logger.Fields{"listen": addr}).Info("metrics server started")
	return srv
}
