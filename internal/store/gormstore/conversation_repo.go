package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"sandwich_hub/internal/domain"
)

type ConversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

const activityOrder = "COALESCE(conversations.last_message_at, conversations.created_at) DESC, conversations.id DESC"

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation, participants []*domain.Participant) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if len(participants) == 0 {
			return nil
		}
		for _, p := range participants {
			p.ConversationID = c.ID
		}
		return tx.Create(participants).Error
	})
	return translate("create conversation", err)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	return r.first(ctx, "get conversation", "id = ?", id)
}

func (r *ConversationRepo) GetByDirectKey(ctx context.Context, key string) (*domain.Conversation, error) {
	return r.first(ctx, "get direct conversation", "direct_key = ?", key)
}

func (r *ConversationRepo) GetByName(ctx context.Context, typ domain.ConversationType, name string) (*domain.Conversation, error) {
	return r.first(ctx, "get conversation by name", "type = ? AND name = ?", typ, name)
}

func (r *ConversationRepo) first(ctx context.Context, op string, query string, args ...any) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := r.db.WithContext(ctx).Where(query, args...).Order("id").First(&c).Error; err != nil {
		return nil, translate(op, err)
	}
	return &c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	var convs []*domain.Conversation
	err := r.db.WithContext(ctx).
		Select("conversations.*").
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ? AND cp.status = ?", userID, domain.ParticipantActive).
		Order(activityOrder).
		Find(&convs).Error
	if err != nil {
		return nil, translate("list conversations", err)
	}
	return convs, nil
}

func (r *ConversationRepo) ListAll(ctx context.Context) ([]*domain.Conversation, error) {
	var convs []*domain.Conversation
	if err := r.db.WithContext(ctx).Order(activityOrder).Find(&convs).Error; err != nil {
		return nil, translate("list all conversations", err)
	}
	return convs, nil
}

func (r *ConversationRepo) Touch(ctx context.Context, id int64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at < ?)", id, at).
		Update("last_message_at", at)
	if res.Error != nil || res.RowsAffected > 0 {
		return translate("touch conversation", res.Error)
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Conversation{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return translate("touch conversation", err)
	}
	if n == 0 {
		return translate("touch conversation", domain.ErrNotFound)
	}
	return nil
}

func (r *ConversationRepo) Delete(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.Participant{}).Error; err != nil {
			return err
		}
		return affected(tx.Where("id = ?", id).Delete(&domain.Conversation{}))
	})
	return translate("delete conversation", err)
}
