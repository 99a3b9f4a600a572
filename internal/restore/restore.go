// Package restore imports a JSON backup of group conversations and team chat
// history. Running it twice imports nothing new.
package restore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"sandwich_hub/internal/domain"
	"sandwich_hub/internal/service"
)

// CoreTeamChannel receives the general and committee chat history.
const CoreTeamChannel = "Core Team"

type Backup struct {
	Groups        []Group             `json:"groups"`
	Conversations []ConversationEntry `json:"conversations"`
	Messages      []Message           `json:"messages"`
}

type Group struct {
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

type Member struct {
	UserID string `json:"user_id"`
}

type ConversationEntry struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type Message struct {
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
	Sender    string    `json:"sender"`
	ChatType  string    `json:"chat_type"`
}

// Timestamp accepts RFC 3339 and the zone-less layouts older exports used (read as UTC).
type Timestamp struct{ time.Time }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}

// Report summarizes one run.
type Report struct {
	GroupsCreated    []string
	GroupsSkipped    []string
	MembersSkipped   int
	ChannelCreated   bool
	MessagesImported int
	MessagesSkipped  int
}

// Restorer applies backups through the services, acting as Owner.
// Owner needs create_channels and membership rights on the Core Team channel.
type Restorer struct {
	svc   *service.Services
	owner string
	log   *slog.Logger
}

func New(svc *service.Services, ownerID string, log *slog.Logger) *Restorer {
	return &Restorer{svc: svc, owner: ownerID, log: log}
}

func Decode(r io.Reader) (*Backup, error) {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	return &b, nil
}

func (r *Restorer) Run(ctx context.Context, b *Backup) (*Report, error) {
	if _, err := r.svc.Users.GetByID(ctx, r.owner); err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	rep := &Report{}
	if err := r.restoreGroups(ctx, b, rep); err != nil {
		return rep, err
	}
	if err := r.restoreMessages(ctx, b.Messages, rep); err != nil {
		return rep, err
	}
	return rep, nil
}

func (r *Restorer) restoreGroups(ctx context.Context, b *Backup, rep *Report) error {
	groups := append([]Group(nil), b.Groups...)
	for _, c := range b.Conversations {
		if c.Type == string(domain.ConversationGroup) {
			groups = append(groups, Group{Name: c.Name})
		}
	}

	for _, g := range groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			name = "Unknown Group"
		}
		_, err := r.svc.Conversations.FindByName(ctx, domain.ConversationGroup, name)
		if err == nil {
			rep.GroupsSkipped = append(rep.GroupsSkipped, name)
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("find group %q: %w", name, err)
		}

		var members []string
		for _, m := range g.Members {
			if _, err := r.svc.Users.GetByID(ctx, m.UserID); err != nil {
				r.log.Warn("skipping unknown group member", "group", name, "user_id", m.UserID)
				rep.MembersSkipped++
				continue
			}
			members = append(members, m.UserID)
		}

		conv, err := r.svc.Conversations.CreateGroup(ctx, r.owner, service.ConversationCreateInput{
			Type:           domain.ConversationGroup,
			Name:           name,
			ParticipantIDs: members,
		})
		if err != nil {
			return fmt.Errorf("create group %q: %w", name, err)
		}
		r.log.Info("group restored", "group", name, "conversation_id", conv.ID, "members", len(members))
		rep.GroupsCreated = append(rep.GroupsCreated, name)
	}
	return nil
}

func (r *Restorer) restoreMessages(ctx context.Context, msgs []Message, rep *Report) error {
	team := lo.Filter(msgs, func(m Message, _ int) bool {
		return m.ChatType == "" || m.ChatType == "general" || m.ChatType == "committee"
	})
	rep.MessagesSkipped += len(msgs) - len(team)
	if len(team) == 0 {
		return nil
	}

	channel, err := r.coreTeam(ctx, rep)
	if err != nil {
		return err
	}
	bodies, err := r.svc.Messages.Bodies(ctx, channel.ID)
	if err != nil {
		return err
	}
	seen := lo.SliceToMap(bodies, func(b string) (string, struct{}) { return b, struct{}{} })

	senders, err := r.senderIndex(ctx)
	if err != nil {
		return err
	}

	for _, m := range team {
		content := strings.TrimSpace(m.Content)
		key := r.svc.Messages.StoredForm(content)
		if _, dup := seen[key]; dup || content == "" {
			rep.MessagesSkipped++
			continue
		}
		sender := lo.ValueOr(senders, strings.ToLower(strings.TrimSpace(m.Sender)), r.owner)
		if _, err := r.svc.Conversations.AddParticipant(ctx, channel.ID, r.owner, sender); err != nil {
			return fmt.Errorf("add sender %s: %w", sender, err)
		}
		at := m.Timestamp.Time
		if at.IsZero() {
			at = time.Now().UTC()
		}
		if _, err := r.svc.Messages.ImportMessage(ctx, channel.ID, sender, content, at); err != nil {
			return fmt.Errorf("import message: %w", err)
		}
		seen[key] = struct{}{}
		rep.MessagesImported++
	}
	return nil
}

func (r *Restorer) coreTeam(ctx context.Context, rep *Report) (*domain.Conversation, error) {
	conv, err := r.svc.Conversations.FindByName(ctx, domain.ConversationChannel, CoreTeamChannel)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find %s: %w", CoreTeamChannel, err)
	}
	conv, err = r.svc.Conversations.CreateGroup(ctx, r.owner, service.ConversationCreateInput{
		Type: domain.ConversationChannel,
		Name: CoreTeamChannel,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", CoreTeamChannel, err)
	}
	rep.ChannelCreated = true
	r.log.Info("channel created", "name", CoreTeamChannel, "conversation_id", conv.ID)
	return conv, nil
}

// senderIndex maps lowercased display names to user ids.
func (r *Restorer) senderIndex(ctx context.Context) (map[string]string, error) {
	index := make(map[string]string)
	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		users, err := r.svc.Users.List(ctx, offset, pageSize)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		for _, u := range users {
			key := strings.ToLower(u.DisplayName)
			if _, taken := index[key]; !taken {
				index[key] = u.ID
			}
		}
		if len(users) < pageSize {
			return index, nil
		}
	}
}
