package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"sandwich_hub/internal/authz"
	"sandwich_hub/internal/domain"
	"sandwich_hub/internal/events"
)

type ConversationService struct {
	users         domain.UserRepository
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	messages      domain.MessageRepository
	events        events.Publisher
	log           *slog.Logger
}

func NewConversationService(
	users domain.UserRepository,
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
	publisher events.Publisher,
	log *slog.Logger,
) *ConversationService {
	return &ConversationService{
		users:         users,
		conversations: conversations,
		participants:  participants,
		messages:      messages,
		events:        publisher,
		log:           log,
	}
}

type ConversationCreateInput struct {
	Type           domain.ConversationType
	Name           string
	ParticipantIDs []string
}

// ConversationSummary is a conversation as listed for one user.
type ConversationSummary struct {
	*domain.Conversation
	ParticipantIDs []string `json:"participant_ids"`
	UnreadCount    int      `json:"unread_count"`
}

// Create dispatches on the conversation type. A direct conversation needs
// exactly one participant besides the creator and is found or created.
func (s *ConversationService) Create(ctx context.Context, creatorID string, in ConversationCreateInput) (*domain.Conversation, error) {
	switch in.Type {
	case domain.ConversationDirect:
		others := lo.Without(lo.Uniq(in.ParticipantIDs), creatorID)
		if len(others) != 1 {
			if len(others) == 0 && lo.Contains(in.ParticipantIDs, creatorID) {
				return nil, domain.ErrSelfConversation
			}
			return nil, fmt.Errorf("%w: a direct conversation needs exactly one other participant", domain.ErrValidation)
		}
		conv, _, err := s.FindOrCreateDirect(ctx, creatorID, others[0])
		return conv, err
	case domain.ConversationGroup, domain.ConversationChannel:
		return s.CreateGroup(ctx, creatorID, in)
	}
	return nil, fmt.Errorf("%w: unknown conversation type %q", domain.ErrValidation, in.Type)
}

// FindOrCreateDirect returns the direct conversation between a and b,
// creating it with both memberships on first contact. The pair is unordered.
func (s *ConversationService) FindOrCreateDirect(ctx context.Context, a, b string) (*domain.Conversation, bool, error) {
	if a == b {
		return nil, false, domain.ErrSelfConversation
	}
	for _, id := range []string{a, b} {
		if _, err := s.users.GetByID(ctx, id); err != nil {
			return nil, false, fmt.Errorf("get user %s: %w", id, err)
		}
	}

	key := domain.DirectKey(a, b)
	existing, err := s.conversations.GetByDirectKey(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("find direct conversation: %w", err)
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		Type:      domain.ConversationDirect,
		DirectKey: &key,
		CreatedBy: a,
		CreatedAt: now,
	}
	members := []*domain.Participant{newParticipant(a, domain.ParticipantMember, now), newParticipant(b, domain.ParticipantMember, now)}
	if err := s.conversations.Create(ctx, conv, members); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return nil, false, fmt.Errorf("create direct conversation: %w", err)
		}
		// Lost the race against a concurrent create for the same pair.
		existing, err := s.conversations.GetByDirectKey(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("find direct conversation: %w", err)
		}
		return existing, false, nil
	}

	s.log.Info("direct conversation created", "conversation_id", conv.ID)
	s.events.Publish(ctx, events.ForConversation(events.ConversationUpdated, conv.ID, 0))
	return conv, true, nil
}

// CreateGroup creates a named group or channel. The creator becomes its admin.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID string, in ConversationCreateInput) (*domain.Conversation, error) {
	if in.Type != domain.ConversationGroup && in.Type != domain.ConversationChannel {
		return nil, fmt.Errorf("%w: %q is not a group type", domain.ErrValidation, in.Type)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: a %s needs a name", domain.ErrValidation, in.Type)
	}
	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("get creator: %w", err)
	}
	if in.Type == domain.ConversationChannel && !authz.Can(creator, authz.CreateChannels) {
		return nil, fmt.Errorf("%w: creating channels is not allowed", domain.ErrForbidden)
	}

	now := time.Now().UTC()
	members := []*domain.Participant{newParticipant(creatorID, domain.ParticipantAdmin, now)}
	for _, id := range lo.Without(lo.Uniq(in.ParticipantIDs), creatorID) {
		if _, err := s.users.GetByID(ctx, id); err != nil {
			return nil, fmt.Errorf("get user %s: %w", id, err)
		}
		members = append(members, newParticipant(id, domain.ParticipantMember, now))
	}

	conv := &domain.Conversation{
		Type:      in.Type,
		Name:      &name,
		CreatedBy: creatorID,
		CreatedAt: now,
	}
	if err := s.conversations.Create(ctx, conv, members); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	s.log.Info("conversation created", "conversation_id", conv.ID, "type", conv.Type, "members", len(members))
	s.events.Publish(ctx, events.ForConversation(events.ConversationUpdated, conv.ID, 0))
	return conv, nil
}

// FindByName returns the oldest conversation of typ called name.
func (s *ConversationService) FindByName(ctx context.Context, typ domain.ConversationType, name string) (*domain.Conversation, error) {
	return s.conversations.GetByName(ctx, typ, name)
}

// Get returns a conversation its participants or a moderator may see.
func (s *ConversationService) Get(ctx context.Context, conversationID int64, requesterID string) (*ConversationSummary, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if err := s.requireVisible(ctx, conv.ID, requesterID); err != nil {
		return nil, err
	}
	return s.summarize(ctx, conv, requesterID)
}

// ListForUser returns the conversations the user belongs to; moderators see all.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]*ConversationSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	var convs []*domain.Conversation
	if authz.Can(user, authz.ModerateMessages) {
		convs, err = s.conversations.ListAll(ctx)
	} else {
		convs, err = s.conversations.ListForUser(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	res := make([]*ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summary, err := s.summarize(ctx, c, userID)
		if err != nil {
			return nil, err
		}
		res = append(res, summary)
	}
	return res, nil
}

func (s *ConversationService) summarize(ctx context.Context, conv *domain.Conversation, userID string) (*ConversationSummary, error) {
	members, err := s.participants.ListActive(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	summary := &ConversationSummary{
		Conversation:   conv,
		ParticipantIDs: lo.Map(members, func(p *domain.Participant, _ int) string { return p.UserID }),
	}
	if me, ok := lo.Find(members, func(p *domain.Participant) bool { return p.UserID == userID }); ok {
		summary.UnreadCount, err = s.messages.CountUnread(ctx, conv.ID, userID, me.LastReadAt)
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}
	}
	return summary, nil
}

func (s *ConversationService) ListParticipants(ctx context.Context, conversationID int64, requesterID string) ([]*domain.Participant, error) {
	if _, err := s.conversations.GetByID(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if err := s.requireVisible(ctx, conversationID, requesterID); err != nil {
		return nil, err
	}
	return s.participants.ListActive(ctx, conversationID)
}

// AddParticipant adds userID to a group or channel. Adding a current member
// changes nothing.
func (s *ConversationService) AddParticipant(ctx context.Context, conversationID int64, actorID, userID string) (*domain.Participant, error) {
	conv, err := s.manageable(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	p := newParticipant(userID, domain.ParticipantMember, time.Now().UTC())
	p.ConversationID = conv.ID
	changed, err := s.participants.Add(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("add participant: %w", err)
	}
	if changed {
		s.events.Publish(ctx, events.ForConversation(events.ConversationUpdated, conv.ID, 0))
	}
	return p, nil
}

// RemoveParticipant marks userID as having left. Members may always remove themselves.
func (s *ConversationService) RemoveParticipant(ctx context.Context, conversationID int64, actorID, userID string) error {
	var conv *domain.Conversation
	var err error
	if actorID == userID {
		conv, err = s.conversations.GetByID(ctx, conversationID)
		if err == nil && conv.Type == domain.ConversationDirect {
			err = errDirectMembership
		}
	} else {
		conv, err = s.manageable(ctx, conversationID, actorID)
	}
	if err != nil {
		return err
	}

	p, err := s.participants.Get(ctx, conv.ID, userID)
	if err != nil {
		return fmt.Errorf("get participant: %w", err)
	}
	if p.Status == domain.ParticipantLeft {
		return nil
	}
	if err := s.participants.MarkLeft(ctx, conv.ID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	s.events.Publish(ctx, events.ForConversation(events.ConversationUpdated, conv.ID, 0))
	return nil
}

// DeleteConversation removes the conversation with all its memberships and messages.
func (s *ConversationService) DeleteConversation(ctx context.Context, conversationID int64, actorID string) error {
	if err := requireCapability(ctx, s.users, actorID, authz.DeleteConversations); err != nil {
		return err
	}
	if err := s.conversations.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	s.log.Warn("conversation deleted", "conversation_id", conversationID, "actor_id", actorID)
	s.events.Publish(ctx, events.ForConversation(events.ConversationDeleted, conversationID, 0))
	return nil
}

func (s *ConversationService) MarkRead(ctx context.Context, conversationID int64, userID string) error {
	if _, err := s.activeParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.participants.MarkRead(ctx, conversationID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

var errDirectMembership = fmt.Errorf("%w: direct conversations have fixed membership", domain.ErrValidation)

// manageable loads a group or channel that actorID may change the membership of:
// its creator, one of its admins, or a holder of ManageAllConversations.
func (s *ConversationService) manageable(ctx context.Context, conversationID int64, actorID string) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv.Type == domain.ConversationDirect {
		return nil, errDirectMembership
	}
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("get actor: %w", err)
	}
	if conv.CreatedBy == actorID || authz.Can(actor, authz.ManageAllConversations) {
		return conv, nil
	}
	p, err := s.participants.Get(ctx, conv.ID, actorID)
	if err == nil && p.Status == domain.ParticipantActive && p.Role == domain.ParticipantAdmin {
		return conv, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return nil, fmt.Errorf("%w: only the conversation's admins may change its members", domain.ErrForbidden)
}

// requireVisible lets active participants and moderators through.
func (s *ConversationService) requireVisible(ctx context.Context, conversationID int64, userID string) error {
	_, err := s.activeParticipant(ctx, conversationID, userID)
	if err == nil || !errors.Is(err, domain.ErrNotParticipant) {
		return err
	}
	user, uerr := s.users.GetByID(ctx, userID)
	if uerr != nil {
		return fmt.Errorf("get user: %w", uerr)
	}
	if authz.Can(user, authz.ModerateMessages) {
		return nil
	}
	return err
}

func (s *ConversationService) activeParticipant(ctx context.Context, conversationID int64, userID string) (*domain.Participant, error) {
	return activeParticipant(ctx, s.participants, conversationID, userID)
}

// activeParticipant returns ErrNotParticipant unless userID currently belongs to the conversation.
func activeParticipant(ctx context.Context, participants domain.ParticipantRepository, conversationID int64, userID string) (*domain.Participant, error) {
	p, err := participants.Get(ctx, conversationID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotParticipant
	}
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if p.Status != domain.ParticipantActive {
		return nil, domain.ErrNotParticipant
	}
	return p, nil
}

func newParticipant(userID string, role domain.ParticipantRole, at time.Time) *domain.Participant {
	return &domain.Participant{
		UserID:   userID,
		Role:     role,
		Status:   domain.ParticipantActive,
		JoinedAt: at,
	}
}
