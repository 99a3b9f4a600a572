package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"sandwich_hub/internal/config"
	"sandwich_hub/internal/domain"
	"sandwich_hub/internal/store"
)

func backends(t *testing.T) map[string]func(t *testing.T) *store.Repositories {
	return map[string]func(t *testing.T) *store.Repositories{
		"memory": func(t *testing.T) *store.Repositories {
			return store.NewMemory()
		},
		"sqlite": func(t *testing.T) *store.Repositories {
			ctx := context.Background()
			repos, err := store.Open(ctx, &config.Config{DatabaseDriver: config.DriverSQLite, SQLitePath: ":memory:"}, nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = repos.Close() })
			require.NoError(t, repos.Migrate(ctx))
			return repos
		},
	}
}

func seedUsers(t *testing.T, repos *store.Repositories, ids ...string) {
	for _, id := range ids {
		require.NoError(t, repos.Users.Create(context.Background(), &domain.User{
			ID:             id,
			Email:          id + "@example.org",
			DisplayName:    id,
			Role:           "volunteer",
			HashedPassword: "x",
			IsActive:       true,
		}))
	}
}

func member(userID string) *domain.Participant {
	return &domain.Participant{
		UserID:   userID,
		Role:     domain.ParticipantMember,
		Status:   domain.ParticipantActive,
		JoinedAt: time.Now().UTC(),
	}
}

func newDirect(t *testing.T, repos *store.Repositories, a, b string) *domain.Conversation {
	key := domain.DirectKey(a, b)
	c := &domain.Conversation{Type: domain.ConversationDirect, DirectKey: &key, CreatedBy: a}
	require.NoError(t, repos.Conversations.Create(context.Background(), c, []*domain.Participant{member(a), member(b)}))
	return c
}

func TestUsers(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, repos, "alice", "bob")

			t.Run("should reject a duplicate email", func(t *testing.T) {
				err := repos.Users.Create(ctx, &domain.User{ID: "alice2", Email: "alice@example.org", DisplayName: "A", Role: "viewer", HashedPassword: "x"})
				require.ErrorIs(t, err, domain.ErrConflict)
			})

			t.Run("should find by email ignoring case", func(t *testing.T) {
				u, err := repos.Users.GetByEmail(ctx, "BOB@example.org")
				require.NoError(t, err)
				require.Equal(t, "bob", u.ID)
			})

			t.Run("should keep permissions", func(t *testing.T) {
				req := require.New(t)
				req.NoError(repos.Users.Create(ctx, &domain.User{
					ID: "mod", Email: "mod@example.org", DisplayName: "mod", Role: "volunteer",
					Permissions: []string{"moderate_messages"}, HashedPassword: "x", IsActive: true,
				}))
				u, err := repos.Users.GetByID(ctx, "mod")
				req.NoError(err)
				req.Equal([]string{"moderate_messages"}, u.Permissions)
			})

			t.Run("should report a missing user", func(t *testing.T) {
				_, err := repos.Users.GetByID(ctx, "nobody")
				require.ErrorIs(t, err, domain.ErrNotFound)
			})

			t.Run("should page through users by name", func(t *testing.T) {
				req := require.New(t)
				users, err := repos.Users.List(ctx, 1, 1)
				req.NoError(err)
				req.Len(users, 1)
				req.Equal("bob", users[0].ID)
			})
		})
	}
}

func TestConversations(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, repos, "alice", "bob", "carol")

			direct := newDirect(t, repos, "alice", "bob")

			t.Run("should refuse a second conversation for the same pair", func(t *testing.T) {
				key := domain.DirectKey("bob", "alice")
				err := repos.Conversations.Create(ctx, &domain.Conversation{Type: domain.ConversationDirect, DirectKey: &key, CreatedBy: "bob"}, nil)
				require.ErrorIs(t, err, domain.ErrConflict)
			})

			t.Run("should find the pair by its key", func(t *testing.T) {
				c, err := repos.Conversations.GetByDirectKey(ctx, domain.DirectKey("bob", "alice"))
				require.NoError(t, err)
				require.Equal(t, direct.ID, c.ID)
			})

			group := &domain.Conversation{Type: domain.ConversationGroup, Name: lo.ToPtr("Drivers"), CreatedBy: "carol"}
			require.NoError(t, repos.Conversations.Create(ctx, group, []*domain.Participant{member("carol"), member("alice")}))

			t.Run("should find a group by name", func(t *testing.T) {
				c, err := repos.Conversations.GetByName(ctx, domain.ConversationGroup, "Drivers")
				require.NoError(t, err)
				require.Equal(t, group.ID, c.ID)

				_, err = repos.Conversations.GetByName(ctx, domain.ConversationChannel, "Drivers")
				require.ErrorIs(t, err, domain.ErrNotFound)
			})

			t.Run("should list by most recent activity", func(t *testing.T) {
				req := require.New(t)
				req.NoError(repos.Conversations.Touch(ctx, direct.ID, time.Now().UTC().Add(time.Hour)))

				convs, err := repos.Conversations.ListForUser(ctx, "alice")
				req.NoError(err)
				req.Equal([]int64{direct.ID, group.ID}, lo.Map(convs, func(c *domain.Conversation, _ int) int64 { return c.ID }))

				convs, err = repos.Conversations.ListForUser(ctx, "bob")
				req.NoError(err)
				req.Len(convs, 1)
				req.NotNil(convs[0].LastMessageAt)
				latest := *convs[0].LastMessageAt

				req.NoError(repos.Conversations.Touch(ctx, direct.ID, latest.Add(-48*time.Hour)))
				c, err := repos.Conversations.GetByID(ctx, direct.ID)
				req.NoError(err)
				req.True(latest.Equal(*c.LastMessageAt), "an older time must not move activity backwards")
				req.ErrorIs(repos.Conversations.Touch(ctx, 9999, latest), domain.ErrNotFound)

				all, err := repos.Conversations.ListAll(ctx)
				req.NoError(err)
				req.Len(all, 2)
			})

			t.Run("should hide conversations the user left", func(t *testing.T) {
				req := require.New(t)
				req.NoError(repos.Participants.MarkLeft(ctx, group.ID, "alice", time.Now().UTC()))

				convs, err := repos.Conversations.ListForUser(ctx, "alice")
				req.NoError(err)
				req.Len(convs, 1)
			})

			t.Run("should delete a conversation with its rows", func(t *testing.T) {
				req := require.New(t)
				req.NoError(repos.Messages.Create(ctx, &domain.Message{ConversationID: direct.ID, SenderID: "alice", Content: "hello"}))

				req.NoError(repos.Conversations.Delete(ctx, direct.ID))

				_, err := repos.Conversations.GetByID(ctx, direct.ID)
				req.ErrorIs(err, domain.ErrNotFound)
				msgs, err := repos.Messages.ListForConversation(ctx, direct.ID, 0)
				req.NoError(err)
				req.Empty(msgs)
				_, err = repos.Participants.Get(ctx, direct.ID, "alice")
				req.ErrorIs(err, domain.ErrNotFound)

				req.ErrorIs(repos.Conversations.Delete(ctx, direct.ID), domain.ErrNotFound)
			})
		})
	}
}

func TestParticipants(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, repos, "alice", "bob", "carol")
			conv := newDirect(t, repos, "alice", "bob")
			group := &domain.Conversation{Type: domain.ConversationGroup, Name: lo.ToPtr("Hosts"), CreatedBy: "alice"}
			require.NoError(t, repos.Conversations.Create(ctx, group, []*domain.Participant{member("alice")}))

			t.Run("should add a member once", func(t *testing.T) {
				req := require.New(t)
				p := member("carol")
				p.ConversationID = group.ID

				added, err := repos.Participants.Add(ctx, p)
				req.NoError(err)
				req.True(added)

				again := member("carol")
				again.ConversationID = group.ID
				added, err = repos.Participants.Add(ctx, again)
				req.NoError(err)
				req.False(added)
				req.Equal(p.ID, again.ID)

				active, err := repos.Participants.ListActive(ctx, group.ID)
				req.NoError(err)
				req.Len(active, 2)
			})

			t.Run("should reactivate a member who left", func(t *testing.T) {
				req := require.New(t)
				req.NoError(repos.Participants.MarkLeft(ctx, group.ID, "carol", time.Now().UTC()))
				active, err := repos.Participants.ListActive(ctx, group.ID)
				req.NoError(err)
				req.Len(active, 1)

				p := member("carol")
				p.ConversationID = group.ID
				added, err := repos.Participants.Add(ctx, p)
				req.NoError(err)
				req.True(added)
				req.Equal(domain.ParticipantActive, p.Status)
				req.Nil(p.LeftAt)
			})

			t.Run("should record the read marker", func(t *testing.T) {
				req := require.New(t)
				at := time.Now().UTC().Truncate(time.Second)
				req.NoError(repos.Participants.MarkRead(ctx, conv.ID, "bob", at))

				p, err := repos.Participants.Get(ctx, conv.ID, "bob")
				req.NoError(err)
				req.NotNil(p.LastReadAt)
				req.True(at.Equal(*p.LastReadAt))
			})

			t.Run("should report unknown memberships", func(t *testing.T) {
				req := require.New(t)
				req.ErrorIs(repos.Participants.MarkRead(ctx, conv.ID, "carol", time.Now()), domain.ErrNotFound)
				req.ErrorIs(repos.Participants.MarkLeft(ctx, conv.ID, "carol", time.Now()), domain.ErrNotFound)
			})
		})
	}
}

func TestMessages(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, repos, "alice", "bob")
			conv := newDirect(t, repos, "alice", "bob")

			at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
			first := &domain.Message{ConversationID: conv.ID, SenderID: "alice", Content: "one", CreatedAt: at}
			second := &domain.Message{ConversationID: conv.ID, SenderID: "bob", Content: "two", CreatedAt: at}
			third := &domain.Message{ConversationID: conv.ID, SenderID: "bob", Content: "three", CreatedAt: at.Add(time.Minute)}
			for _, m := range []*domain.Message{first, second, third} {
				require.NoError(t, repos.Messages.Create(ctx, m))
			}

			t.Run("should list newest first with id as tiebreaker", func(t *testing.T) {
				req := require.New(t)
				msgs, err := repos.Messages.ListForConversation(ctx, conv.ID, 0)
				req.NoError(err)
				req.Equal([]string{"three", "two", "one"}, lo.Map(msgs, func(m *domain.Message, _ int) string { return m.Content }))

				msgs, err = repos.Messages.ListForConversation(ctx, conv.ID, 2)
				req.NoError(err)
				req.Len(msgs, 2)
			})

			t.Run("should count unread messages from others", func(t *testing.T) {
				req := require.New(t)
				n, err := repos.Messages.CountUnread(ctx, conv.ID, "alice", nil)
				req.NoError(err)
				req.Equal(2, n)

				n, err = repos.Messages.CountUnread(ctx, conv.ID, "alice", &at)
				req.NoError(err)
				req.Equal(1, n)
			})

			t.Run("should edit and delete", func(t *testing.T) {
				req := require.New(t)
				edited := at.Add(time.Hour)
				first.Content, first.EditedAt = "uno", &edited
				req.NoError(repos.Messages.Update(ctx, first))

				got, err := repos.Messages.GetByID(ctx, first.ID)
				req.NoError(err)
				req.Equal("uno", got.Content)
				req.NotNil(got.EditedAt)

				req.NoError(repos.Messages.Delete(ctx, first.ID))
				_, err = repos.Messages.GetByID(ctx, first.ID)
				req.ErrorIs(err, domain.ErrNotFound)
				req.ErrorIs(repos.Messages.Delete(ctx, first.ID), domain.ErrNotFound)
			})
		})
	}
}

func TestTasks(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repos := open(t)
			seedUsers(t, repos, "alice", "bob")

			project := &domain.Project{Title: "Summer drive", Status: "active", CreatedBy: "alice"}
			require.NoError(t, repos.Projects.Create(ctx, project))

			task := &domain.Task{ProjectID: project.ID, Title: "Pack", Status: domain.TaskPending, CreatedBy: "alice", AssigneeIDs: []string{"bob", "alice"}}
			require.NoError(t, repos.Tasks.Create(ctx, task))

			t.Run("should load assignees", func(t *testing.T) {
				req := require.New(t)
				got, err := repos.Tasks.GetByID(ctx, task.ID)
				req.NoError(err)
				req.Equal([]string{"alice", "bob"}, got.AssigneeIDs)

				list, err := repos.Tasks.ListForProject(ctx, project.ID)
				req.NoError(err)
				req.Len(list, 1)
				req.Equal([]string{"alice", "bob"}, list[0].AssigneeIDs)

				projects, err := repos.Projects.List(ctx)
				req.NoError(err)
				req.Len(projects, 1)
			})

			t.Run("should record a completion once", func(t *testing.T) {
				req := require.New(t)
				added, err := repos.Tasks.AddCompletion(ctx, &domain.TaskCompletion{TaskID: task.ID, UserID: "bob", CompletedAt: time.Now().UTC()})
				req.NoError(err)
				req.True(added)

				added, err = repos.Tasks.AddCompletion(ctx, &domain.TaskCompletion{TaskID: task.ID, UserID: "bob", CompletedAt: time.Now().UTC()})
				req.NoError(err)
				req.False(added)

				cs, err := repos.Tasks.ListCompletions(ctx, task.ID)
				req.NoError(err)
				req.Len(cs, 1)
			})

			t.Run("should update the status", func(t *testing.T) {
				req := require.New(t)
				now := time.Now().UTC()
				task.Status, task.CompletedAt = domain.TaskCompleted, &now
				req.NoError(repos.Tasks.Update(ctx, task))

				got, err := repos.Tasks.GetByID(ctx, task.ID)
				req.NoError(err)
				req.Equal(domain.TaskCompleted, got.Status)
				req.NotNil(got.CompletedAt)

				req.ErrorIs(repos.Tasks.Update(ctx, &domain.Task{ID: 999, Status: domain.TaskPending}), domain.ErrNotFound)
			})
		})
	}
}
