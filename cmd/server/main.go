package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paperledger/workflow/internal/action"
	"github.com/paperledger/workflow/internal/action/notify"
	"github.com/paperledger/workflow/internal/action/record"
	"github.com/paperledger/workflow/internal/api"
	"github.com/paperledger/workflow/internal/condition"
	"github.com/paperledger/workflow/internal/config"
	"github.com/paperledger/workflow/internal/engine"
	"github.com/paperledger/workflow/internal/registry"
	"github.com/paperledger/workflow/internal/store"
	"github.com/paperledger/workflow/internal/transport"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	db, err := store.Open(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := store.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "err", err)
		os.Exit(1)
	}
	queries, err := store.LoadQueries(db)
	if err != nil {
		slog.Error("failed to load queries", "err", err)
		os.Exit(1)
	}
	rules := store.NewSQLRuleStore(queries)
	logs := store.NewSQLLogStore(queries)

	// ── Action registry ───────────────────────────────────────────────────────
	webhookTimeout := time.Duration(cfg.Transports.WebhookTimeoutMs) * time.Millisecond
	email := &transport.LogEmailSender{Logger: logger, From: cfg.Transports.EmailFrom}
	sms := &transport.LogSMSSender{Logger: logger}
	records := &transport.LogRecordWriter{Logger: logger}

	reg := action.NewRegistry()
	reg.Register(notify.NewEmail(email))
	reg.Register(notify.NewSMS(sms))
	reg.Register(notify.NewWebhook(transport.NewHTTPWebhookCaller(webhookTimeout)))
	reg.Register(record.NewUpdate(records))
	reg.Register(record.NewCreate(records))
	slog.Info("action registry ready", "types", reg.Types())

	// ── Engine & services ─────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New(ctx, rules, logs, action.NewDispatcher(reg), cfg.Engine, logger)
	svc := registry.New(rules, logs, reg, logger)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		eng.SwapOptions(condition.Options{Strict: newCfg.Engine.StrictCompare})
		slog.Info("engine options hot-reloaded", "strict_compare", newCfg.Engine.StrictCompare)
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(svc, eng)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	grace := time.Duration(cfg.Server.ShutdownGraceMs) * time.Millisecond
	shutCtx, shutCancel := context.WithTimeout(context.Background(), grace)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	eng.Shutdown()
	cancel()
	slog.Info("goodbye")
}
