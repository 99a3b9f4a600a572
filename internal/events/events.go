//go:generate go run go.uber.org/mock/mockgen -source=events.go -destination=mocks/mock_publisher.go -package=mocks

// Package events carries the notifications emitted after successful writes.
// An event names what changed; clients fetch the data itself over HTTP.
package events

import (
	"context"
	"sync"
	"time"
)

type Name string

const (
	MessageCreated      Name = "message.created"
	MessageUpdated      Name = "message.updated"
	MessageDeleted      Name = "message.deleted"
	ConversationUpdated Name = "conversation.updated"
	ConversationDeleted Name = "conversation.deleted"
	TaskUpdated         Name = "task.updated"
)

// Event is the wire shape pushed to connected clients.
type Event struct {
	Name           Name  `json:"event"`
	ConversationID int64 `json:"conversation_id,omitempty"`
	MessageID      int64 `json:"message_id,omitempty"`
	TaskID         int64 `json:"task_id,omitempty"`
	TS             int64 `json:"ts"`
}

// ForConversation builds an event about a conversation, optionally naming a message.
func ForConversation(name Name, conversationID, messageID int64) Event {
	return Event{Name: name, ConversationID: conversationID, MessageID: messageID, TS: time.Now().UnixMilli()}
}

func ForTask(taskID int64) Event {
	return Event{Name: TaskUpdated, TaskID: taskID, TS: time.Now().UnixMilli()}
}

// Publisher announces events at most once. Publish never fails the caller's write.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Fanout publishes to every wrapped publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) {
	for _, p := range f {
		p.Publish(ctx, ev)
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names returns the recorded event names in publish order.
func (r *Recorder) Names() []Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]Name, len(r.events))
	for i, ev := range r.events {
		names[i] = ev.Name
	}
	return names
}
