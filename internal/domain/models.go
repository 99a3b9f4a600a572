package domain

import (
	"sort"
	"strings"
	"time"
)

type ConversationType string

const (
	ConversationDirect  ConversationType = "direct"
	ConversationGroup   ConversationType = "group"
	ConversationChannel ConversationType = "channel"
)

// Valid reports whether t is a known conversation type.
func (t ConversationType) Valid() bool {
	switch t {
	case ConversationDirect, ConversationGroup, ConversationChannel:
		return true
	}
	return false
}

type ParticipantRole string

const (
	ParticipantAdmin  ParticipantRole = "admin"
	ParticipantMember ParticipantRole = "member"
)

type ParticipantStatus string

const (
	ParticipantActive ParticipantStatus = "active"
	ParticipantLeft   ParticipantStatus = "left"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// User is a volunteer or staff account.
type User struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name"`
	Role           string    `json:"role"`
	Permissions    []string  `gorm:"serializer:json" json:"permissions"`
	HashedPassword string    `json:"-"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation groups participants and messages. DirectKey is set only for
// direct conversations and is unique across the store.
type Conversation struct {
	ID            int64            `gorm:"primaryKey" json:"id"`
	Type          ConversationType `json:"type"`
	Name          *string          `json:"name,omitempty"`
	DirectKey     *string          `json:"-"`
	CreatedBy     string           `json:"created_by"`
	CreatedAt     time.Time        `json:"created_at"`
	LastMessageAt *time.Time       `json:"last_message_at,omitempty"`
}

// Participant is the membership of a user in a conversation.
type Participant struct {
	ID             int64             `gorm:"primaryKey" json:"id"`
	ConversationID int64             `json:"conversation_id"`
	UserID         string            `json:"user_id"`
	Role           ParticipantRole   `json:"role"`
	Status         ParticipantStatus `json:"status"`
	JoinedAt       time.Time         `json:"joined_at"`
	LeftAt         *time.Time        `json:"left_at,omitempty"`
	LastReadAt     *time.Time        `json:"last_read_at,omitempty"`
}

func (Participant) TableName() string { return "conversation_participants" }

// Message is a single chat message. Content may be encrypted at rest.
type Message struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
}

type Project struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Task struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	ProjectID   int64      `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	AssigneeIDs []string   `gorm:"-" json:"assignee_ids"`
}

type TaskAssignment struct {
	TaskID int64  `gorm:"primaryKey"`
	UserID string `gorm:"primaryKey"`
}

// TaskCompletion records that one assignee finished their part of a task.
type TaskCompletion struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	TaskID      int64     `json:"task_id"`
	UserID      string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// DirectKey returns the canonical key of the unordered pair {a, b}.
func DirectKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "|")
}
