package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"sandwich_hub/internal/authz"
	"sandwich_hub/internal/domain"
	"sandwich_hub/internal/events"
	"sandwich_hub/internal/events/mocks"
	"sandwich_hub/internal/service"
	"sandwich_hub/internal/store"
)

func TestFindOrCreateDirect(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the same conversation for either order", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.user(t, "alice", authz.RoleVolunteer)
		f.user(t, "bob", authz.RoleVolunteer)

		first, created, err := f.services.Conversations.FindOrCreateDirect(ctx, "alice", "bob")
		req.NoError(err)
		req.True(created)

		second, created, err := f.services.Conversations.FindOrCreateDirect(ctx, "bob", "alice")
		req.NoError(err)
		req.False(created)
		req.Equal(first.ID, second.ID)

		members, err := f.services.Conversations.ListParticipants(ctx, first.ID, "alice")
		req.NoError(err)
		req.Len(members, 2)
		req.Equal([]events.Name{events.ConversationUpdated}, f.events.Names())
	})

	t.Run("should reject a conversation with yourself", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, "alice", authz.RoleVolunteer)

		_, _, err := f.services.Conversations.FindOrCreateDirect(ctx, "alice", "alice")
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("should fail for an unknown user", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, "alice", authz.RoleVolunteer)

		_, _, err := f.services.Conversations.FindOrCreateDirect(ctx, "alice", "ghost")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("should create one conversation under concurrent calls", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.user(t, "alice", authz.RoleVolunteer)
		f.user(t, "bob", authz.RoleVolunteer)

		var wg sync.WaitGroup
		ids := make([]int64, 8)
		errs := make([]error, 8)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				a, b := "alice", "bob"
				if i%2 == 1 {
					a, b = b, a
				}
				conv, _, err := f.services.Conversations.FindOrCreateDirect(ctx, a, b)
				errs[i] = err
				if err == nil {
					ids[i] = conv.ID
				}
			}(i)
		}
		wg.Wait()

		for i := range ids {
			req.NoError(errs[i])
			req.Equal(ids[0], ids[i])
		}
	})
}

func TestCreateConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("should route a direct create to find or create", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.user(t, "alice", authz.RoleVolunteer)
		f.user(t, "bob", authz.RoleVolunteer)

		conv, err := f.services.Conversations.Create(ctx, "alice", service.ConversationCreateInput{
			Type:           domain.ConversationDirect,
			ParticipantIDs: []string{"alice", "bob"},
		})
		req.NoError(err)

		again, err := f.services.Conversations.Create(ctx, "bob", service.ConversationCreateInput{
			Type:           domain.ConversationDirect,
			ParticipantIDs: []string{"alice"},
		})
		req.NoError(err)
		req.Equal(conv.ID, again.ID)
	})

	t.Run("should require create_channels for a channel", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.user(t, "vol", authz.RoleVolunteer)
		f.user(t, "boss", authz.RoleAdmin)

		in := service.ConversationCreateInput{Type: domain.ConversationChannel, Name: "Core Team"}
		_, err := f.services.Conversations.Create(ctx, "vol", in)
		req.ErrorIs(err, domain.ErrForbidden)

		conv, err := f.services.Conversations.Create(ctx, "boss", in)
		req.NoError(err)
		req.Equal("Core Team", *conv.Name)
	})

	t.Run("should make the creator the group admin", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.user(t, "alice", authz.RoleVolunteer)
		f.user(t, "bob", authz.RoleVolunteer)

		conv, err := f.services.Conversations.Create(ctx, "alice", service.ConversationCreateInput{
			Type:           domain.ConversationGroup,
			Name:           "Drivers",
			ParticipantIDs: []string{"bob", "bob"},
		})
		req.NoError(err)

		members, err := f.services.Conversations.ListParticipants(ctx, conv.ID, "bob")
		req.NoError(err)
		req.Len(members, 2)
		for _, m := range members {
			if m.UserID == "alice" {
				req.Equal(domain.ParticipantAdmin, m.Role)
			} else {
				req.Equal(domain.ParticipantMember, m.Role)
			}
		}
	})

	t.Run("should require a name for a group", func(t *testing.T) {
		f := newFixture(t)
		f.user(t, "alice", authz.RoleVolunteer)

		_, err := f.services.Conversations.Create(ctx, "alice", service.ConversationCreateInput{Type: domain.ConversationGroup, Name: "  "})
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestParticipants(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, *domain.Conversation) {
		f := newFixture(t)
		f.user(t, "alice", authz.RoleVolunteer)
		f.user(t, "bob", authz.RoleVolunteer)
		f.user(t, "carol", authz.RoleVolunteer)
		f.user(t, "root", authz.RoleSuperAdmin)
		conv, err := f.services.Conversations.Create(ctx, "alice", service.ConversationCreateInput{
			Type:           domain.ConversationGroup,
			Name:           "Drivers",
			ParticipantIDs: []string{"bob"},
		})
		require.NoError(t, err)
		return f, conv
	}

	t.Run("should let the creator add a member once", func(t *testing.T) {
		req := require.New(t)
		f, conv := setup(t)

		_, err := f.services.Conversations.AddParticipant(ctx, conv.ID, "alice", "carol")
		req.NoError(err)
		before := len(f.events.Events())
		_, err = f.services.Conversations.AddParticipant(ctx, conv.ID, "alice", "carol")
		req.NoError(err)
		req.Len(f.events.Events(), before)

		members, err := f.services.Conversations.ListParticipants(ctx, conv.ID, "carol")
		req.NoError(err)
		req.Len(members, 3)
	})

	t.Run("should forbid a plain member from adding", func(t *testing.T) {
		f, conv := setup(t)

		_, err := f.services.Conversations.AddParticipant(ctx, conv.ID, "bob", "carol")
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("should let manage_all_conversations add anywhere", func(t *testing.T) {
		f, conv := setup(t)

		_, err := f.services.Conversations.AddParticipant(ctx, conv.ID, "root", "carol")
		require.NoError(t, err)
	})

	t.Run("should let a member leave and be added back", func(t *testing.T) {
		req := require.New(t)
		f, conv := setup(t)

		req.NoError(f.services.Conversations.RemoveParticipant(ctx, conv.ID, "bob", "bob"))
		_, err := f.services.Conversations.ListParticipants(ctx, conv.ID, "bob")
		req.ErrorIs(err, domain.ErrNotParticipant)
		req.NoError(f.services.Conversations.RemoveParticipant(ctx, conv.ID, "bob", "bob"))

		_, err = f.services.Conversations.AddParticipant(ctx, conv.ID, "alice", "bob")
		req.NoError(err)
		members, err := f.services.Conversations.ListParticipants(ctx, conv.ID, "bob")
		req.NoError(err)
		req.Len(members, 2)
	})

	t.Run("should keep direct membership fixed", func(t *testing.T) {
		req := require.New(t)
		f, _ := setup(t)
		direct, _, err := f.services.Conversations.FindOrCreateDirect(ctx, "alice", "bob")
		req.NoError(err)

		_, err = f.services.Conversations.AddParticipant(ctx, direct.ID, "root", "carol")
		req.ErrorIs(err, domain.ErrValidation)
		req.ErrorIs(f.services.Conversations.RemoveParticipant(ctx, direct.ID, "alice", "alice"), domain.ErrValidation)
	})
}

func TestDeleteConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("should cascade and announce the deletion", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		pub := mocks.NewMockPublisher(ctrl)
		repos := store.NewMemory()
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		convs := service.NewConversationService(repos.Users, repos.Conversations, repos.Participants, repos.Messages, pub, log)
		f := &fixture{repos: repos}
		f.user(t, "alice", authz.RoleVolunteer)
		f.user(t, "bob", authz.RoleVolunteer)
		f.user(t, "root", authz.RoleSuperAdmin)

		pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(1)
		conv, _, err := convs.FindOrCreateDirect(ctx, "alice", "bob")
		req.NoError(err)
		req.NoError(repos.Messages.Create(ctx, &domain.Message{ConversationID: conv.ID, SenderID: "alice", Content: "hi"}))

		req.ErrorIs(convs.DeleteConversation(ctx, conv.ID, "alice"), domain.ErrForbidden)

		pub.EXPECT().Publish(gomock.Any(), eventNamed{name: events.ConversationDeleted, conversationID: conv.ID}).Times(1)
		req.NoError(convs.DeleteConversation(ctx, conv.ID, "root"))

		_, err = repos.Conversations.GetByID(ctx, conv.ID)
		req.ErrorIs(err, domain.ErrNotFound)
		_, err = repos.Participants.Get(ctx, conv.ID, "alice")
		req.ErrorIs(err, domain.ErrNotFound)
		remaining, err := repos.Messages.ListForConversation(ctx, conv.ID, 0)
		req.NoError(err)
		req.Empty(remaining)

		req.ErrorIs(convs.DeleteConversation(ctx, conv.ID, "root"), domain.ErrNotFound)
	})
}

func TestDeleteConversationThenList(t *testing.T) {
	ctx := context.Background()
	backends := map[string]func(t *testing.T) *store.Repositories{
		"memory": func(*testing.T) *store.Repositories { return store.NewMemory() },
		"sqlite": sqliteRepos,
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			f := newFixtureOn(t, open(t))
			f.user(t, "alice", authz.RoleVolunteer)
			f.user(t, "bob", authz.RoleVolunteer)
			f.user(t, "root", authz.RoleSuperAdmin)

			conv, _, err := f.services.Conversations.FindOrCreateDirect(ctx, "alice", "bob")
			req.NoError(err)
			for _, body := range []string{"first", "second"} {
				_, err := f.services.Messages.PostMessage(ctx, conv.ID, "alice", body)
				req.NoError(err)
			}

			req.NoError(f.services.Conversations.DeleteConversation(ctx, conv.ID, "root"))

			for _, who := range []string{"root", "alice"} {
				_, err = f.services.Messages.ListMessages(ctx, conv.ID, who, 0)
				req.ErrorIs(err, domain.ErrNotFound, who)
			}
			_, err = f.services.Messages.PostMessage(ctx, conv.ID, "bob", "anyone?")
			req.ErrorIs(err, domain.ErrNotFound)
			remaining, err := f.repos.Messages.ListForConversation(ctx, conv.ID, 0)
			req.NoError(err)
			req.Empty(remaining)

			// a new direct conversation between the same pair starts empty
			again, created, err := f.services.Conversations.FindOrCreateDirect(ctx, "bob", "alice")
			req.NoError(err)
			req.True(created)
			req.NotEqual(conv.ID, again.ID)
		})
	}
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "alice", authz.RoleVolunteer)
	f.user(t, "bob", authz.RoleVolunteer)
	f.user(t, "carol", authz.RoleVolunteer)
	f.user(t, "mod", authz.RoleAdmin)

	ab, _, err := f.services.Conversations.FindOrCreateDirect(ctx, "alice", "bob")
	req.NoError(err)
	_, _, err = f.services.Conversations.FindOrCreateDirect(ctx, "bob", "carol")
	req.NoError(err)
	_, err = f.services.Messages.PostMessage(ctx, ab.ID, "bob", "hello")
	req.NoError(err)
	_, err = f.services.Messages.PostMessage(ctx, ab.ID, "bob", "are you there")
	req.NoError(err)

	mine, err := f.services.Conversations.ListForUser(ctx, "alice")
	req.NoError(err)
	req.Len(mine, 1)
	req.Equal(2, mine[0].UnreadCount)
	req.ElementsMatch([]string{"alice", "bob"}, mine[0].ParticipantIDs)

	req.NoError(f.services.Conversations.MarkRead(ctx, ab.ID, "alice"))
	mine, err = f.services.Conversations.ListForUser(ctx, "alice")
	req.NoError(err)
	req.Zero(mine[0].UnreadCount)

	all, err := f.services.Conversations.ListForUser(ctx, "mod")
	req.NoError(err)
	req.Len(all, 2)

	_, err = f.services.Conversations.Get(ctx, ab.ID, "carol")
	req.ErrorIs(err, domain.ErrForbidden)
	req.ErrorIs(f.services.Conversations.MarkRead(ctx, ab.ID, "carol"), domain.ErrNotParticipant)
}
