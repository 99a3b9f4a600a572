package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"sandwich_hub/internal/domain"
)

type MessageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	return translate("create message", r.db.WithContext(ctx).Create(m).Error)
}

func (r *MessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	var m domain.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate("get message", err)
	}
	return &m, nil
}

func (r *MessageRepo) Update(ctx context.Context, m *domain.Message) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{"content": m.Content, "edited_at": m.EditedAt})
	return translate("update message", affected(res))
}

func (r *MessageRepo) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Message{})
	return translate("delete message", affected(res))
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*domain.Message, error) {
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []*domain.Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, translate("list messages", err)
	}
	return msgs, nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, conversationID int64, userID string, since *time.Time) (int, error) {
	q := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, userID)
	if since != nil {
		q = q.Where("created_at > ?", *since)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, translate("count unread", err)
	}
	return int(n), nil
}
