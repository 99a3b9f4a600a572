package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"sandwich_hub/internal/store/gormstore"
)

// Open connects through the pgx stdlib driver and hands the pool to gorm.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*gorm.DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)

	db, err := gorm.Open(gormpg.New(gormpg.Config{Conn: sqlDB}), gormstore.NewConfig(log))
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL for the hub schema on PostgreSQL.
func Migrate(ctx context.Context, db *gorm.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id               TEXT         PRIMARY KEY,
			email            VARCHAR(255) NOT NULL UNIQUE,
			display_name     VARCHAR(100) NOT NULL,
			role             VARCHAR(32)  NOT NULL DEFAULT 'volunteer',
			permissions      TEXT,
			hashed_password  VARCHAR(255) NOT NULL,
			is_active        BOOLEAN      NOT NULL DEFAULT TRUE,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id              BIGSERIAL    PRIMARY KEY,
			type            VARCHAR(16)  NOT NULL CHECK (type IN ('direct', 'group', 'channel')),
			name            VARCHAR(100),
			direct_key      TEXT         UNIQUE,
			created_by      TEXT         NOT NULL,
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			last_message_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS conversation_participants (
			id              BIGSERIAL    PRIMARY KEY,
			conversation_id BIGINT       NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id         TEXT         NOT NULL REFERENCES users(id),
			role            VARCHAR(16)  NOT NULL DEFAULT 'member',
			status          VARCHAR(16)  NOT NULL DEFAULT 'active',
			joined_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			left_at         TIMESTAMPTZ,
			last_read_at    TIMESTAMPTZ,
			UNIQUE (conversation_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL    PRIMARY KEY,
			conversation_id BIGINT       NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id       TEXT         NOT NULL REFERENCES users(id),
			content         TEXT         NOT NULL,
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			edited_at       TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS projects (
			id          BIGSERIAL    PRIMARY KEY,
			title       VARCHAR(200) NOT NULL,
			description TEXT         NOT NULL DEFAULT '',
			status      VARCHAR(32)  NOT NULL DEFAULT 'active',
			created_by  TEXT         NOT NULL,
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id           BIGSERIAL    PRIMARY KEY,
			project_id   BIGINT       NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			title        VARCHAR(200) NOT NULL,
			description  TEXT         NOT NULL DEFAULT '',
			status       VARCHAR(16)  NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'in_progress', 'completed')),
			created_by   TEXT         NOT NULL,
			created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS task_assignments (
			task_id BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			user_id TEXT   NOT NULL REFERENCES users(id),
			PRIMARY KEY (task_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS task_completions (
			id           BIGSERIAL   PRIMARY KEY,
			task_id      BIGINT      NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			user_id      TEXT        NOT NULL REFERENCES users(id),
			completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (task_id, user_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_conv_participants_user ON conversation_participants(user_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,
	}

	for _, stmt := range stmts {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
