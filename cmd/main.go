// cmd/main.go is the client daemon entry point.
// It wires together all layers, restores the persisted session and serves
// the local control API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/config"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/gateway"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/handler"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/logging"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/metrics"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/repository"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flagSet := pflag.NewFlagSet("ticketing-client", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.APIBaseURL, "api", cfg.APIBaseURL, "ticketing API base URL")
	flagSet.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "control API listen address")
	flagSet.StringVar(&cfg.Storage, "storage", cfg.Storage, "session storage: memory, sqlite, postgres or redis")
	flagSet.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database path")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flagSet.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	flagSet.BoolVar(&cfg.LegacyAuthHeuristic, "legacy-auth-heuristic", cfg.LegacyAuthHeuristic,
		"also treat error messages mentioning 401/403/unauthorized/forbidden/token as auth failures")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Open session storage ──────────────────────────────────────────
	store, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()
	log.Info("session storage ready", slog.String("driver", cfg.Storage))

	// ── 2. Wire up layers ────────────────────────────────────────────────
	recorder := metrics.New()
	gw, err := gateway.New(gateway.Config{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.HTTPTimeout,
		Logger:   log,
		Observer: recorder,
	})
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	notices := service.NewNoticeLog(cfg.NoticeBuffer, log)
	engine := service.NewEngine(service.Config{
		API:                 gw,
		Sessions:            repository.NewSessionRepository(store),
		Logger:              log,
		Metrics:             recorder,
		Notifier:            notices,
		LegacyAuthHeuristic: cfg.LegacyAuthHeuristic,
	})
	engine.Subscribe(func(s service.Snapshot) {
		log.Debug("state changed",
			slog.String("page", string(s.View.Page)),
			slog.String("placeholder", string(s.View.Placeholder)),
			slog.Bool("authenticated", s.Authenticated))
	})

	// ── 3. Restore the persisted session ─────────────────────────────────
	if err := engine.Start(ctx); err != nil {
		return err
	}

	// ── 4. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler.New(engine, notices, recorder.Handler(), log).Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("control API listening", slog.String("addr", cfg.ListenAddr), slog.String("api", cfg.APIBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
