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

	"github.com/mama165/sdk-go/logs"

	"sandwich_hub/internal/app"
	"sandwich_hub/internal/config"
	"sandwich_hub/internal/events"
	"sandwich_hub/internal/httpserver"
	"sandwich_hub/internal/ws"
)

// @title           Sandwich Hub API
// @version         1.0
// @description     Messaging and task coordination for volunteer teams.

// @host            localhost:8000
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub(log.With("component", "hub"))
	defer hub.Close()

	var publisher events.Publisher = hub
	if cfg.RedisURL != "" {
		rdb, err := events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()

		relay := events.NewRedisRelay(rdb, cfg.RedisChannel, hub, log.With("component", "relay"))
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped", "error", err)
			}
		}()
		publisher = relay
	}

	a, err := app.Open(ctx, cfg, publisher, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing store...")
		_ = a.Close()
	}()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      httpserver.NewRouter(cfg, a.Services, hub, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", srv.Addr, "driver", cfg.DatabaseDriver, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("Server stopped cleanly")
	return nil
}
