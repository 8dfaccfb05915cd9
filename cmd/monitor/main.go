package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"social_monitor/internal/bot"
	"social_monitor/internal/classifier"
	"social_monitor/internal/config"
	"social_monitor/internal/fetcher"
	"social_monitor/internal/logging"
	"social_monitor/internal/metrics"
	"social_monitor/internal/scheduler"
	"social_monitor/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log, logCloser := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = logCloser.Close() }()

	if err := run(cfg, log); err != nil {
		log.Error("monitor failed", "error", err)
		_ = logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, m, log)
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	httpClient := &http.Client{}
	cl := classifier.New(httpClient, cfg.ClassifierTimeout, log.With("component", "classifier"))
	notifier := &relay{}

	sched := scheduler.New(store, fetcher.New(httpClient, cfg.SearchURLTemplate), cl, scheduler.NewRegistry(),
		log.With("component", "scheduler"), scheduler.Options{
			SimilarityThreshold: cfg.SimilarityThreshold,
			RetryLimit:          cfg.RetryLimit,
			LoginBackoff:        cfg.LoginBackoff,
			Notifier:            notifier,
			AdminChatID:         cfg.AdminChatID,
			Metrics:             m,
		})

	var b *bot.Bot
	if cfg.BotEnabled() {
		b, err = bot.New(cfg.TelegramBotToken, store, cfg, sched, cl, log.With("component", "bot"))
		if err != nil {
			return err
		}
		notifier.target = b
	} else {
		log.Info("telegram bot disabled")
	}

	sup := scheduler.NewSupervisor(store, sched, cfg.SupervisorSchedule, log.With("component", "supervisor"))
	if err := sup.Start(ctx); err != nil {
		return err
	}

	log.Info("monitor started", "database", cfg.DatabasePath)

	if b != nil {
		b.Run(ctx)
	} else {
		<-ctx.Done()
	}

	sup.Stop()
	sched.Wait()
	log.Info("monitor stopped")
	return nil
}

func serveMetrics(addr string, m *metrics.Metrics, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", "error", err)
		}
	}()
	return srv
}

// relay forwards engine notifications to the bot once it exists.
type relay struct {
	target scheduler.Notifier
}

func (r *relay) SendMessage(chatID int64, text string) {
	if r.target != nil {
		r.target.SendMessage(chatID, text)
	}
}
