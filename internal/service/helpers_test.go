package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sandwich_hub/internal/config"
	"sandwich_hub/internal/domain"
	"sandwich_hub/internal/events"
	"sandwich_hub/internal/security"
	"sandwich_hub/internal/service"
	"sandwich_hub/internal/store"
)

type fixture struct {
	repos    *store.Repositories
	services *service.Services
	events   *events.Recorder
}

func newFixture(t *testing.T, opts ...func(*service.Options)) *fixture {
	t.Helper()
	return newFixtureOn(t, store.NewMemory(), opts...)
}

// sqliteRepos returns migrated repositories over a throwaway sqlite database.
func sqliteRepos(t *testing.T) *store.Repositories {
	t.Helper()
	ctx := context.Background()
	repos, err := store.Open(ctx, &config.Config{DatabaseDriver: config.DriverSQLite, SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	require.NoError(t, repos.Migrate(ctx))
	return repos
}

func newFixtureOn(t *testing.T, repos *store.Repositories, opts ...func(*service.Options)) *fixture {
	t.Helper()
	rec := &events.Recorder{}
	o := service.Options{
		Publisher:        rec,
		Tokens:           security.NewTokenService("test-secret", time.Hour),
		Hasher:           security.NewPasswordHasher(4),
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxMessageLength: 5000,
		MessagePageSize:  1000,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &fixture{repos: repos, services: service.New(repos, o), events: rec}
}

// user stores an active user with the given role.
func (f *fixture) user(t *testing.T, id, role string, permissions ...string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:             id,
		Email:          fmt.Sprintf("%s@example.org", id),
		DisplayName:    id,
		Role:           role,
		Permissions:    permissions,
		HashedPassword: "x",
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, f.repos.Users.Create(context.Background(), u))
	return u
}

// eventNamed matches an events.Event by name and conversation.
type eventNamed struct {
	name           events.Name
	conversationID int64
}

func (m eventNamed) Matches(x any) bool {
	ev, ok := x.(events.Event)
	return ok && ev.Name == m.name && ev.ConversationID == m.conversationID
}

func (m eventNamed) String() string {
	return fmt.Sprintf("event %s for conversation %d", m.name, m.conversationID)
}
