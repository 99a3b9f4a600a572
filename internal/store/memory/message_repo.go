package memory

import (
	"context"
	"sort"
	"time"

	"sandwich_hub/internal/domain"
)

type MessageRepo struct {
	db *DB
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(_ context.Context, m *domain.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.conversations[m.ConversationID]; !ok {
		return domain.ErrNotFound
	}
	m.ID = r.db.next("messages")
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	cp := *m
	r.db.messages[m.ID] = &cp
	return nil
}

func (r *MessageRepo) GetByID(_ context.Context, id int64) (*domain.Message, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	m, ok := r.db.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *MessageRepo) Update(_ context.Context, m *domain.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.messages[m.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Content = m.Content
	stored.EditedAt = m.EditedAt
	return nil
}

func (r *MessageRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.messages[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.db.messages, id)
	return nil
}

func (r *MessageRepo) ListForConversation(_ context.Context, conversationID int64, limit int) ([]*domain.Message, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var res []*domain.Message
	for _, m := range r.db.messages {
		if m.ConversationID == conversationID {
			cp := *m
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID > res[j].ID
	})
	return page(res, 0, limit), nil
}

func (r *MessageRepo) CountUnread(_ context.Context, conversationID int64, userID string, since *time.Time) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n := 0
	for _, m := range r.db.messages {
		if m.ConversationID != conversationID || m.SenderID == userID {
			continue
		}
		if since == nil || m.CreatedAt.After(*since) {
			n++
		}
	}
	return n, nil
}
