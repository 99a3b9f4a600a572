// Package store picks the repository implementation once, at process start.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"sandwich_hub/internal/config"
	"sandwich_hub/internal/domain"
	"sandwich_hub/internal/store/gormstore"
	"sandwich_hub/internal/store/memory"
	"sandwich_hub/internal/store/postgres"
	"sandwich_hub/internal/store/sqlite"
)

// Repositories bundles every repository over one backing store.
type Repositories struct {
	Users         domain.UserRepository
	Conversations domain.ConversationRepository
	Participants  domain.ParticipantRepository
	Messages      domain.MessageRepository
	Projects      domain.ProjectRepository
	Tasks         domain.TaskRepository

	migrate func(ctx context.Context) error
	close   func() error
}

// Migrate brings the schema up to date. It is a no-op for the memory store.
func (r *Repositories) Migrate(ctx context.Context) error {
	if r.migrate == nil {
		return nil
	}
	return r.migrate(ctx)
}

func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// Open connects to the store named by cfg.DatabaseDriver.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Repositories, error) {
	switch cfg.DatabaseDriver {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		return fromGorm(db, sqlite.Migrate)
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return fromGorm(db, postgres.Migrate)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.DatabaseDriver)
}

// NewMemory returns repositories over a fresh in-memory store.
func NewMemory() *Repositories {
	db := memory.New()
	return &Repositories{
		Users:         db.Users(),
		Conversations: db.Conversations(),
		Participants:  db.Participants(),
		Messages:      db.Messages(),
		Projects:      db.Projects(),
		Tasks:         db.Tasks(),
	}
}

func fromGorm(db *gorm.DB, migrate func(context.Context, *gorm.DB) error) (*Repositories, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	repos := gormstore.New(db)
	return &Repositories{
		Users:         repos.Users,
		Conversations: repos.Conversations,
		Participants:  repos.Participants,
		Messages:      repos.Messages,
		Projects:      repos.Projects,
		Tasks:         repos.Tasks,
		migrate:       func(ctx context.Context) error { return migrate(ctx, db) },
		close:         sqlDB.Close,
	}, nil
}
