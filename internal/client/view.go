package client

import (
	"context"
	"sync"

	"sandwich_hub/internal/events"
	"sandwich_hub/internal/service"
)

// Fetcher loads the data a View caches.
type Fetcher interface {
	Conversations(ctx context.Context) ([]*service.ConversationSummary, error)
	Messages(ctx context.Context, conversationID int64) ([]*service.MessageResponse, error)
}

// View is a disposable read-through cache of the conversation list and of
// message pages keyed by conversation id. Events only invalidate entries; the
// next read fetches fresh data.
//
// Every invalidation bumps a generation. A fetch result is stored only if the
// generations it started under are unchanged, so an event that lands while a
// fetch is in flight is never masked by that fetch's older result.
type View struct {
	fetch Fetcher

	mu            sync.Mutex
	conversations []*service.ConversationSummary
	listValid     bool
	listGen       uint64
	messages      map[int64][]*service.MessageResponse
	messageGen    map[int64]uint64
	epoch         uint64
}

func NewView(f Fetcher) *View {
	return &View{
		fetch:      f,
		messages:   make(map[int64][]*service.MessageResponse),
		messageGen: make(map[int64]uint64),
	}
}

func (v *View) Conversations(ctx context.Context) ([]*service.ConversationSummary, error) {
	v.mu.Lock()
	if v.listValid {
		convs := v.conversations
		v.mu.Unlock()
		return convs, nil
	}
	gen, epoch := v.listGen, v.epoch
	v.mu.Unlock()

	convs, err := v.fetch.Conversations(ctx)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	if gen == v.listGen && epoch == v.epoch {
		v.conversations, v.listValid = convs, true
	}
	v.mu.Unlock()
	return convs, nil
}

func (v *View) Messages(ctx context.Context, conversationID int64) ([]*service.MessageResponse, error) {
	v.mu.Lock()
	if msgs, ok := v.messages[conversationID]; ok {
		v.mu.Unlock()
		return msgs, nil
	}
	gen, epoch := v.messageGen[conversationID], v.epoch
	v.mu.Unlock()

	msgs, err := v.fetch.Messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	if gen == v.messageGen[conversationID] && epoch == v.epoch {
		v.messages[conversationID] = msgs
	}
	v.mu.Unlock()
	return msgs, nil
}

// Apply drops whatever ev makes stale.
func (v *View) Apply(ev events.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Name {
	case events.MessageCreated, events.MessageUpdated, events.MessageDeleted:
		v.dropMessages(ev.ConversationID)
		// activity order and unread counts move with every message
		v.dropList()
	case events.ConversationUpdated:
		v.dropList()
	case events.ConversationDeleted:
		v.dropMessages(ev.ConversationID)
		v.dropList()
	}
}

// Invalidate drops everything. Call it after reconnecting.
func (v *View) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.epoch++
	v.listValid = false
	v.conversations = nil
	v.messages = make(map[int64][]*service.MessageResponse)
}

func (v *View) dropMessages(conversationID int64) {
	delete(v.messages, conversationID)
	v.messageGen[conversationID]++
}

func (v *View) dropList() {
	v.listValid = false
	v.listGen++
}
