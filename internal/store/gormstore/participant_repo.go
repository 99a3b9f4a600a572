package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sandwich_hub/internal/domain"
)

type ParticipantRepo struct {
	db *gorm.DB
}

func NewParticipantRepo(db *gorm.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

var _ domain.ParticipantRepository = (*ParticipantRepo)(nil)

var membershipKey = []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}}

func (r *ParticipantRepo) Add(ctx context.Context, p *domain.Participant) (bool, error) {
	var changed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{Columns: membershipKey, DoNothing: true}).Create(p)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			changed = true
			return nil
		}

		res = tx.Model(&domain.Participant{}).
			Where("conversation_id = ? AND user_id = ? AND status = ?", p.ConversationID, p.UserID, domain.ParticipantLeft).
			Updates(map[string]any{
				"status":    domain.ParticipantActive,
				"left_at":   nil,
				"joined_at": p.JoinedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0

		var stored domain.Participant
		if err := tx.Where("conversation_id = ? AND user_id = ?", p.ConversationID, p.UserID).First(&stored).Error; err != nil {
			return err
		}
		*p = stored
		return nil
	})
	if err != nil {
		return false, translate("add participant", err)
	}
	return changed, nil
}

func (r *ParticipantRepo) Get(ctx context.Context, conversationID int64, userID string) (*domain.Participant, error) {
	var p domain.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		return nil, translate("get participant", err)
	}
	return &p, nil
}

func (r *ParticipantRepo) ListActive(ctx context.Context, conversationID int64) ([]*domain.Participant, error) {
	var ps []*domain.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND status = ?", conversationID, domain.ParticipantActive).
		Order("id").
		Find(&ps).Error
	if err != nil {
		return nil, translate("list participants", err)
	}
	return ps, nil
}

func (r *ParticipantRepo) MarkLeft(ctx context.Context, conversationID int64, userID string, at time.Time) error {
	return translate("mark participant left", r.update(ctx, conversationID, userID, map[string]any{
		"status":  domain.ParticipantLeft,
		"left_at": at,
	}))
}

func (r *ParticipantRepo) MarkRead(ctx context.Context, conversationID int64, userID string, at time.Time) error {
	return translate("mark read", r.update(ctx, conversationID, userID, map[string]any{"last_read_at": at}))
}

func (r *ParticipantRepo) update(ctx context.Context, conversationID int64, userID string, cols map[string]any) error {
	return affected(r.db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(cols))
}
