package domain

import (
	"context"
	"time"
)

// Lookups return ErrNotFound when the row does not exist.

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// Create fails with ErrConflict when the email is taken.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]*User, error)
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	// Create inserts the conversation and its initial participants atomically.
	// It fails with ErrConflict when DirectKey is already used.
	Create(ctx context.Context, c *Conversation, participants []*Participant) error
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	GetByDirectKey(ctx context.Context, key string) (*Conversation, error)
	GetByName(ctx context.Context, typ ConversationType, name string) (*Conversation, error)
	// ListForUser returns conversations where the user is an active participant,
	// most recently active first.
	ListForUser(ctx context.Context, userID string) ([]*Conversation, error)
	ListAll(ctx context.Context) ([]*Conversation, error)
	// Touch advances last_message_at to at; an earlier at leaves it unchanged.
	Touch(ctx context.Context, id int64, at time.Time) error
	// Delete removes the conversation, its participants and its messages, all or nothing.
	Delete(ctx context.Context, id int64) error
}

// ParticipantRepository defines operations around conversation participants.
type ParticipantRepository interface {
	// Add inserts the membership or reactivates a left one. It reports whether
	// anything changed.
	Add(ctx context.Context, p *Participant) (bool, error)
	Get(ctx context.Context, conversationID int64, userID string) (*Participant, error)
	ListActive(ctx context.Context, conversationID int64) ([]*Participant, error)
	MarkLeft(ctx context.Context, conversationID int64, userID string, at time.Time) error
	MarkRead(ctx context.Context, conversationID int64, userID string, at time.Time) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id int64) (*Message, error)
	Update(ctx context.Context, m *Message) error
	Delete(ctx context.Context, id int64) error
	// ListForConversation returns the newest messages first. A limit <= 0 returns all.
	ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*Message, error)
	// CountUnread counts messages after since that were not sent by userID.
	CountUnread(ctx context.Context, conversationID int64, userID string, since *time.Time) (int, error)
}

type ProjectRepository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id int64) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
}

// TaskRepository persists tasks with their assignees and completion records.
type TaskRepository interface {
	// Create inserts the task and one assignment per AssigneeIDs entry.
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id int64) (*Task, error)
	ListForProject(ctx context.Context, projectID int64) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	// AddCompletion is idempotent per (task, user) and reports whether a row was inserted.
	AddCompletion(ctx context.Context, c *TaskCompletion) (bool, error)
	ListCompletions(ctx context.Context, taskID int64) ([]*TaskCompletion, error)
}
