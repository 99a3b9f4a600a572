// Package app assembles the store and services from configuration for the
// server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sandwich_hub/internal/config"
	"sandwich_hub/internal/events"
	"sandwich_hub/internal/moderation"
	"sandwich_hub/internal/security"
	"sandwich_hub/internal/service"
	"sandwich_hub/internal/store"
)

// App owns the opened store. Close releases it.
type App struct {
	Repos    *store.Repositories
	Services *service.Services
	Tokens   *security.TokenService
}

// Open connects the configured store, migrates it and builds the services.
// Events go to publisher; pass nil to discard them.
func Open(ctx context.Context, cfg *config.Config, publisher events.Publisher, log *slog.Logger) (*App, error) {
	cipher, err := security.NewCipher(cfg.EncryptKey, cfg.LegacyEncryptKeys)
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}
	censor, err := moderation.NewCensor(cfg.CensoredWords, cfg.CensorRune())
	if err != nil {
		return nil, fmt.Errorf("censor: %w", err)
	}

	repos, err := store.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DatabaseDriver, err)
	}
	if err := repos.Migrate(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	tokens := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	svc := service.New(repos, service.Options{
		Publisher:        publisher,
		Cipher:           cipher,
		Censor:           censor,
		Tokens:           tokens,
		Hasher:           security.NewPasswordHasher(0),
		Logger:           log,
		MaxMessageLength: cfg.MaxMessageLength,
		MessagePageSize:  cfg.MessagePageSize,
	})
	return &App{Repos: repos, Services: svc, Tokens: tokens}, nil
}

func (a *App) Close() error {
	return a.Repos.Close()
}
