// cmd/fakeapi serves the in-memory ticketing API for local runs.
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

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/fakeapi"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/logging"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/model"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr          string
		adminEmail    string
		adminPassword string
		logLevel      string
	)
	flagSet := pflag.NewFlagSet("fakeapi", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", "127.0.0.1:5001", "listen address")
	flagSet.StringVar(&adminEmail, "admin-email", "", "seed an approved admin account with this email")
	flagSet.StringVar(&adminPassword, "admin-password", "admin", "password of the seeded admin")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	log := logging.New(os.Stderr, logLevel, "text")

	api := fakeapi.New()
	if adminEmail != "" {
		api.SeedUser(adminEmail, adminPassword, model.RoleAdmin, true, false)
		log.Info("seeded admin", slog.String("email", adminEmail))
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("fake API listening", slog.String("addr", "http://"+addr+"/api"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
