// Package memory keeps every repository in process maps. It backs tests and
// the DATABASE_DRIVER=memory mode; contents are lost on exit.
package memory

import (
	"sync"

	"sandwich_hub/internal/domain"
)

// DB is the shared state behind the repositories of one store.
type DB struct {
	mu sync.RWMutex

	users         map[string]*domain.User
	conversations map[int64]*domain.Conversation
	participants  map[int64]*domain.Participant
	messages      map[int64]*domain.Message
	projects      map[int64]*domain.Project
	tasks         map[int64]*domain.Task
	assignments   map[int64][]string
	completions   map[int64]*domain.TaskCompletion

	seq map[string]int64
}

func New() *DB {
	return &DB{
		users:         make(map[string]*domain.User),
		conversations: make(map[int64]*domain.Conversation),
		participants:  make(map[int64]*domain.Participant),
		messages:      make(map[int64]*domain.Message),
		projects:      make(map[int64]*domain.Project),
		tasks:         make(map[int64]*domain.Task),
		assignments:   make(map[int64][]string),
		completions:   make(map[int64]*domain.TaskCompletion),
		seq:           make(map[string]int64),
	}
}

// next returns the next id of table. Callers hold mu.
func (d *DB) next(table string) int64 {
	d.seq[table]++
	return d.seq[table]
}

func (d *DB) Users() *UserRepo                 { return &UserRepo{db: d} }
func (d *DB) Conversations() *ConversationRepo { return &ConversationRepo{db: d} }
func (d *DB) Participants() *ParticipantRepo   { return &ParticipantRepo{db: d} }
func (d *DB) Messages() *MessageRepo           { return &MessageRepo{db: d} }
func (d *DB) Projects() *ProjectRepo           { return &ProjectRepo{db: d} }
func (d *DB) Tasks() *TaskRepo                 { return &TaskRepo{db: d} }
