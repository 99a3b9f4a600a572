package memory

import (
	"context"
	"sort"
	"time"

	"sandwich_hub/internal/domain"
)

type ParticipantRepo struct {
	db *DB
}

var _ domain.ParticipantRepository = (*ParticipantRepo)(nil)

// find returns the stored row for (conversationID, userID). Callers hold mu.
func (r *ParticipantRepo) find(conversationID int64, userID string) *domain.Participant {
	for _, p := range r.db.participants {
		if p.ConversationID == conversationID && p.UserID == userID {
			return p
		}
	}
	return nil
}

func (r *ParticipantRepo) Add(_ context.Context, p *domain.Participant) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.conversations[p.ConversationID]; !ok {
		return false, domain.ErrNotFound
	}
	if _, ok := r.db.users[p.UserID]; !ok {
		return false, domain.ErrNotFound
	}

	if existing := r.find(p.ConversationID, p.UserID); existing != nil {
		if existing.Status == domain.ParticipantActive {
			*p = *existing
			return false, nil
		}
		existing.Status = domain.ParticipantActive
		existing.LeftAt = nil
		existing.JoinedAt = p.JoinedAt
		*p = *existing
		return true, nil
	}

	p.ID = r.db.next("participants")
	cp := *p
	r.db.participants[p.ID] = &cp
	return true, nil
}

func (r *ParticipantRepo) Get(_ context.Context, conversationID int64, userID string) (*domain.Participant, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p := r.find(conversationID, userID)
	if p == nil {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *ParticipantRepo) ListActive(_ context.Context, conversationID int64) ([]*domain.Participant, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var res []*domain.Participant
	for _, p := range r.db.participants {
		if p.ConversationID == conversationID && p.Status == domain.ParticipantActive {
			cp := *p
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *ParticipantRepo) MarkLeft(_ context.Context, conversationID int64, userID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p := r.find(conversationID, userID)
	if p == nil {
		return domain.ErrNotFound
	}
	p.Status = domain.ParticipantLeft
	p.LeftAt = &at
	return nil
}

func (r *ParticipantRepo) MarkRead(_ context.Context, conversationID int64, userID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	p := r.find(conversationID, userID)
	if p == nil {
		return domain.ErrNotFound
	}
	p.LastReadAt = &at
	return nil
}
