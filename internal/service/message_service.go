package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"sandwich_hub/internal/authz"
	"sandwich_hub/internal/domain"
	"sandwich_hub/internal/events"
	"sandwich_hub/internal/moderation"
	"sandwich_hub/internal/security"
)

type MessageService struct {
	users         domain.UserRepository
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	messages      domain.MessageRepository
	cipher        security.Cipher
	censor        *moderation.Censor
	events        events.Publisher
	log           *slog.Logger

	MaxLength int
	PageSize  int
}

func NewMessageService(
	users domain.UserRepository,
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
	cipher security.Cipher,
	censor *moderation.Censor,
	publisher events.Publisher,
	log *slog.Logger,
	maxLength, pageSize int,
) *MessageService {
	return &MessageService{
		users:         users,
		conversations: conversations,
		participants:  participants,
		messages:      messages,
		cipher:        cipher,
		censor:        censor,
		events:        publisher,
		log:           log,
		MaxLength:     maxLength,
		PageSize:      pageSize,
	}
}

// PostMessage stores a message from an active participant, then announces it.
func (s *MessageService) PostMessage(ctx context.Context, conversationID int64, authorID, body string) (*MessageResponse, error) {
	content, err := s.checkBody(body)
	if err != nil {
		return nil, err
	}
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if _, err := activeParticipant(ctx, s.participants, conv.ID, authorID); err != nil {
		return nil, err
	}

	msg, err := s.store(ctx, conv.ID, authorID, content, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, events.ForConversation(events.MessageCreated, conv.ID, msg.ID))
	return s.ToResponse(ctx, msg), nil
}

// ImportMessage stores a message with its original timestamp. It checks
// neither membership nor the length limit and announces nothing.
func (s *MessageService) ImportMessage(ctx context.Context, conversationID int64, authorID, body string, at time.Time) (*domain.Message, error) {
	content := strings.TrimSpace(body)
	if content == "" {
		return nil, domain.ErrEmptyBody
	}
	if _, err := s.conversations.GetByID(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return s.store(ctx, conversationID, authorID, content, at.UTC())
}

func (s *MessageService) store(ctx context.Context, conversationID int64, authorID, content string, at time.Time) (*domain.Message, error) {
	encrypted, err := s.cipher.Encrypt(s.censor.Apply(content))
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       authorID,
		Content:        encrypted,
		CreatedAt:      at,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if err := s.conversations.Touch(ctx, conversationID, at); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	return msg, nil
}

// EditMessage replaces the body. Only the author or a moderator may edit.
func (s *MessageService) EditMessage(ctx context.Context, messageID int64, requesterID, body string) (*MessageResponse, error) {
	content, err := s.checkBody(body)
	if err != nil {
		return nil, err
	}
	msg, err := s.ownedMessage(ctx, messageID, requesterID)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.cipher.Encrypt(s.censor.Apply(content))
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}
	now := time.Now().UTC()
	msg.Content = encrypted
	msg.EditedAt = &now
	if err := s.messages.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	s.events.Publish(ctx, events.ForConversation(events.MessageUpdated, msg.ConversationID, msg.ID))
	return s.ToResponse(ctx, msg), nil
}

// DeleteMessage removes the message. Only the author or a moderator may delete.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID int64, requesterID string) error {
	msg, err := s.ownedMessage(ctx, messageID, requesterID)
	if err != nil {
		return err
	}
	if err := s.messages.Delete(ctx, msg.ID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if msg.SenderID != requesterID {
		s.log.Info("message removed by moderator", "message_id", msg.ID, "moderator_id", requesterID)
	}

	s.events.Publish(ctx, events.ForConversation(events.MessageDeleted, msg.ConversationID, msg.ID))
	return nil
}

// ListMessages returns up to limit of the latest messages in chronological order.
func (s *MessageService) ListMessages(ctx context.Context, conversationID int64, requesterID string, limit int) ([]*MessageResponse, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if _, err := activeParticipant(ctx, s.participants, conv.ID, requesterID); err != nil {
		requester, uerr := s.users.GetByID(ctx, requesterID)
		if uerr != nil || !authz.Can(requester, authz.ModerateMessages) {
			return nil, err
		}
	}

	if limit <= 0 || (s.PageSize > 0 && limit > s.PageSize) {
		limit = s.PageSize
	}
	msgs, err := s.messages.ListForConversation(ctx, conv.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// Reverse to chronological order (the store returns newest first)
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return s.ToResponses(ctx, msgs), nil
}

// StoredForm returns body as it would be saved: trimmed and censored. Bodies
// returns content in this form.
func (s *MessageService) StoredForm(body string) string {
	return s.censor.Apply(strings.TrimSpace(body))
}

// Bodies returns the decrypted content of every message in the conversation.
func (s *MessageService) Bodies(ctx context.Context, conversationID int64) ([]string, error) {
	msgs, err := s.messages.ListForConversation(ctx, conversationID, 0)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	bodies := make([]string, 0, len(msgs))
	for _, m := range msgs {
		bodies = append(bodies, s.decrypt(m))
	}
	return bodies, nil
}

func (s *MessageService) checkBody(body string) (string, error) {
	content := strings.TrimSpace(body)
	if content == "" {
		return "", domain.ErrEmptyBody
	}
	if s.MaxLength > 0 && utf8.RuneCountInString(content) > s.MaxLength {
		return "", fmt.Errorf("%w: message content exceeds %d characters", domain.ErrValidation, s.MaxLength)
	}
	return content, nil
}

func (s *MessageService) ownedMessage(ctx context.Context, messageID int64, requesterID string) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg.SenderID == requesterID {
		return msg, nil
	}
	requester, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("get requester: %w", err)
	}
	if !authz.Can(requester, authz.ModerateMessages) {
		return nil, fmt.Errorf("%w: only the author or a moderator may change this message", domain.ErrForbidden)
	}
	return msg, nil
}

// MessageResponse is a message as returned to clients.
type MessageResponse struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	SenderName     string     `json:"sender_name"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	IsEdited       bool       `json:"is_edited"`
}

// ToResponse converts a domain message into a decrypted response DTO.
func (s *MessageService) ToResponse(ctx context.Context, m *domain.Message) *MessageResponse {
	return s.toResponse(m, s.senderName(ctx, m.SenderID))
}

// ToResponses converts messages, looking each sender up once.
func (s *MessageService) ToResponses(ctx context.Context, msgs []*domain.Message) []*MessageResponse {
	names := make(map[string]string)
	res := make([]*MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		name, ok := names[m.SenderID]
		if !ok {
			name = s.senderName(ctx, m.SenderID)
			names[m.SenderID] = name
		}
		res = append(res, s.toResponse(m, name))
	}
	return res
}

func (s *MessageService) toResponse(m *domain.Message, senderName string) *MessageResponse {
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     senderName,
		Content:        s.decrypt(m),
		CreatedAt:      m.CreatedAt,
		EditedAt:       m.EditedAt,
		IsEdited:       m.EditedAt != nil,
	}
}

func (s *MessageService) senderName(ctx context.Context, userID string) string {
	if u, err := s.users.GetByID(ctx, userID); err == nil {
		return u.DisplayName
	}
	return ""
}

// decrypt falls back to the stored text for rows written before encryption was enabled.
func (s *MessageService) decrypt(m *domain.Message) string {
	dec, err := s.cipher.Decrypt(m.Content)
	if err != nil {
		s.log.Debug("message content left as stored", "message_id", m.ID, "error", err)
		return m.Content
	}
	return dec
}
