// Package gormstore implements the domain repositories on gorm. The same code
// serves postgres and sqlite; each dialect package opens the connection and
// owns its schema.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sandwich_hub/internal/domain"
)

// NewConfig returns the gorm settings every dialect opens with. gorm's own
// output (slow queries, failed statements) goes to log; missing rows are
// answered with domain.ErrNotFound and not logged.
func NewConfig(log *slog.Logger) *gorm.Config {
	if log == nil {
		log = slog.Default()
	}
	return &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger: logger.New(slogWriter{log: log.With("component", "gorm")}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	}
}

type slogWriter struct{ log *slog.Logger }

func (w slogWriter) Printf(format string, args ...any) {
	w.log.Log(context.Background(), slog.LevelWarn, fmt.Sprintf(format, args...))
}

// translate maps gorm errors onto domain sentinels and adds op as context.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// affected turns an update that touched no row into ErrNotFound.
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Repositories are the gorm implementations over one connection.
type Repositories struct {
	Users         *UserRepo
	Conversations *ConversationRepo
	Participants  *ParticipantRepo
	Messages      *MessageRepo
	Projects      *ProjectRepo
	Tasks         *TaskRepo
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:         NewUserRepo(db),
		Conversations: NewConversationRepo(db),
		Participants:  NewParticipantRepo(db),
		Messages:      NewMessageRepo(db),
		Projects:      NewProjectRepo(db),
		Tasks:         NewTaskRepo(db),
	}
}
