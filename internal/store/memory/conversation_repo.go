package memory

import (
	"context"
	"sort"
	"time"

	"sandwich_hub/internal/domain"
)

type ConversationRepo struct {
	db *DB
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) Create(_ context.Context, c *domain.Conversation, participants []*domain.Participant) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if c.DirectKey != nil {
		for _, existing := range r.db.conversations {
			if existing.DirectKey != nil && *existing.DirectKey == *c.DirectKey {
				return domain.ErrConflict
			}
		}
	}
	for _, p := range participants {
		if _, ok := r.db.users[p.UserID]; !ok {
			return domain.ErrNotFound
		}
	}

	c.ID = r.db.next("conversations")
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	cp := *c
	r.db.conversations[c.ID] = &cp

	for _, p := range participants {
		p.ID = r.db.next("participants")
		p.ConversationID = c.ID
		pc := *p
		r.db.participants[p.ID] = &pc
	}
	return nil
}

func (r *ConversationRepo) GetByID(_ context.Context, id int64) (*domain.Conversation, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	c, ok := r.db.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *ConversationRepo) GetByDirectKey(_ context.Context, key string) (*domain.Conversation, error) {
	return r.findOne(func(c *domain.Conversation) bool {
		return c.DirectKey != nil && *c.DirectKey == key
	})
}

func (r *ConversationRepo) GetByName(_ context.Context, typ domain.ConversationType, name string) (*domain.Conversation, error) {
	return r.findOne(func(c *domain.Conversation) bool {
		return c.Type == typ && c.Name != nil && *c.Name == name
	})
}

// findOne returns the lowest-id conversation matching keep.
func (r *ConversationRepo) findOne(keep func(*domain.Conversation) bool) (*domain.Conversation, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var found *domain.Conversation
	for _, c := range r.db.conversations {
		if keep(c) && (found == nil || c.ID < found.ID) {
			found = c
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (r *ConversationRepo) ListForUser(_ context.Context, userID string) ([]*domain.Conversation, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var res []*domain.Conversation
	for _, p := range r.db.participants {
		if p.UserID != userID || p.Status != domain.ParticipantActive {
			continue
		}
		if c, ok := r.db.conversations[p.ConversationID]; ok {
			cp := *c
			res = append(res, &cp)
		}
	}
	sortByActivity(res)
	return res, nil
}

func (r *ConversationRepo) ListAll(_ context.Context) ([]*domain.Conversation, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	res := make([]*domain.Conversation, 0, len(r.db.conversations))
	for _, c := range r.db.conversations {
		cp := *c
		res = append(res, &cp)
	}
	sortByActivity(res)
	return res, nil
}

func sortByActivity(convs []*domain.Conversation) {
	activity := func(c *domain.Conversation) time.Time {
		if c.LastMessageAt != nil {
			return *c.LastMessageAt
		}
		return c.CreatedAt
	}
	sort.Slice(convs, func(i, j int) bool {
		ai, aj := activity(convs[i]), activity(convs[j])
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return convs[i].ID > convs[j].ID
	})
}

func (r *ConversationRepo) Touch(_ context.Context, id int64, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.conversations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if c.LastMessageAt == nil || c.LastMessageAt.Before(at) {
		c.LastMessageAt = &at
	}
	return nil
}

func (r *ConversationRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.conversations[id]; !ok {
		return domain.ErrNotFound
	}
	for mid, m := range r.db.messages {
		if m.ConversationID == id {
			delete(r.db.messages, mid)
		}
	}
	for pid, p := range r.db.participants {
		if p.ConversationID == id {
			delete(r.db.participants, pid)
		}
	}
	delete(r.db.conversations, id)
	return nil
}
