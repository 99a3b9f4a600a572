package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"sandwich_hub/internal/authz"
	"sandwich_hub/internal/config"
	"sandwich_hub/internal/httpserver"
	"sandwich_hub/internal/security"
	"sandwich_hub/internal/service"
	"sandwich_hub/internal/store"
	"sandwich_hub/internal/ws"
)

type testServer struct {
	url      string
	services *service.Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := ws.NewHub(log)
	svcs := service.New(store.NewMemory(), service.Options{
		Publisher:        hub,
		Tokens:           security.NewTokenService("test-secret", time.Hour),
		Hasher:           security.NewPasswordHasher(4),
		Logger:           log,
		MaxMessageLength: 5000,
		MessagePageSize:  1000,
	})
	cfg := &config.Config{AppName: "Sandwich Hub API", CORSOrigins: []string{"http://localhost:5173"}}
	srv := httptest.NewServer(httpserver.NewRouter(cfg, svcs, hub, log))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &testServer{url: srv.URL, services: svcs}
}

// signup registers a user and logs them in over HTTP, returning the user id and token.
func (s *testServer) signup(t *testing.T, name, role string) (string, string) {
	t.Helper()
	user, err := s.services.Users.Register(context.Background(), service.RegisterInput{
		Email:       name + "@example.org",
		DisplayName: name,
		Password:    "Password1!",
		Role:        role,
	})
	require.NoError(t, err)

	var login struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	status := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    name + "@example.org",
		"password": "Password1!",
	}, &login)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "bearer", login.TokenType)
	return user.ID, login.AccessToken
}

func (s *testServer) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.url+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestDirectMessageIsBroadcast(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	aliceID, aliceToken := s.signup(t, "alice", authz.RoleVolunteer)
	bobID, bobToken := s.signup(t, "bob", authz.RoleVolunteer)

	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + "/ws"
	bobConn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Authorization": {"Bearer " + bobToken}})
	req.NoError(err)
	defer bobConn.Close()
	req.Eventually(func() bool {
		var health struct {
			Clients int `json:"ws_clients"`
		}
		return s.do(t, http.MethodGet, "/health", "", nil, &health) == http.StatusOK && health.Clients == 1
	}, 2*time.Second, 10*time.Millisecond)

	var conv struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
	}
	status := s.do(t, http.MethodPost, "/api/conversations", aliceToken, map[string]any{
		"type":            "direct",
		"participant_ids": []string{bobID},
	}, &conv)
	req.Equal(http.StatusCreated, status)
	req.Equal("direct", conv.Type)

	var again struct {
		ID int64 `json:"id"`
	}
	status = s.do(t, http.MethodPost, "/api/conversations", bobToken, map[string]any{
		"type":            "direct",
		"participant_ids": []string{aliceID},
	}, &again)
	req.Equal(http.StatusCreated, status)
	req.Equal(conv.ID, again.ID)

	var posted struct {
		ID      int64  `json:"id"`
		Content string `json:"content"`
	}
	status = s.do(t, http.MethodPost, fmt.Sprintf("/api/conversations/%d/messages", conv.ID), aliceToken, map[string]string{"content": "hello"}, &posted)
	req.Equal(http.StatusCreated, status)
	req.Equal("hello", posted.Content)

	// Conversation events from the creates may arrive first.
	req.NoError(bobConn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	var ev map[string]any
	for {
		_, raw, err := bobConn.ReadMessage()
		req.NoError(err)
		ev = map[string]any{}
		req.NoError(json.Unmarshal(raw, &ev))
		if ev["event"] == "message.created" {
			break
		}
	}
	req.EqualValues(conv.ID, ev["conversation_id"])
	req.EqualValues(posted.ID, ev["message_id"])

	var msgs []struct {
		Content  string `json:"content"`
		SenderID string `json:"sender_id"`
	}
	status = s.do(t, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", conv.ID), bobToken, nil, &msgs)
	req.Equal(http.StatusOK, status)
	req.Len(msgs, 1)
	req.Equal("hello", msgs[0].Content)
	req.Equal(aliceID, msgs[0].SenderID)
}

func TestErrorMapping(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	_, aliceToken := s.signup(t, "alice", authz.RoleVolunteer)
	bobID, bobToken := s.signup(t, "bob", authz.RoleVolunteer)
	_, carolToken := s.signup(t, "carol", authz.RoleVolunteer)
	annID, annToken := s.signup(t, "ann", authz.RoleVolunteer)
	_, leadToken := s.signup(t, "lead", authz.RoleCoreTeam)
	_, rootToken := s.signup(t, "root", authz.RoleSuperAdmin)

	var conv struct {
		ID int64 `json:"id"`
	}
	req.Equal(http.StatusCreated, s.do(t, http.MethodPost, "/api/conversations", aliceToken, map[string]any{
		"type": "direct", "participant_ids": []string{bobID},
	}, &conv))
	messages := fmt.Sprintf("/api/conversations/%d/messages", conv.ID)

	t.Run("unauthenticated", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/conversations", "", nil, nil))
		require.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/conversations", "garbage", nil, nil))
	})

	t.Run("validation", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, messages, aliceToken, map[string]string{"content": "   "}, nil))
		require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, messages, aliceToken, map[string]string{}, nil))
		require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/conversations", aliceToken, map[string]any{"type": "broadcast"}, nil))
		require.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/conversations/abc", aliceToken, nil, nil))
	})

	t.Run("not a participant", func(t *testing.T) {
		require.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, messages, carolToken, map[string]string{"content": "hi"}, nil))
		require.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, messages, carolToken, nil, nil))
	})

	t.Run("not found", func(t *testing.T) {
		require.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/conversations/9999/messages", aliceToken, nil, nil))
		require.Equal(t, http.StatusNotFound, s.do(t, http.MethodPatch, "/api/messages/9999", aliceToken, map[string]string{"content": "x"}, nil))
	})

	t.Run("editing someone else's message", func(t *testing.T) {
		var msg struct {
			ID int64 `json:"id"`
		}
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, messages, aliceToken, map[string]string{"content": "mine"}, &msg))
		require.Equal(t, http.StatusForbidden, s.do(t, http.MethodPatch, fmt.Sprintf("/api/messages/%d", msg.ID), bobToken, map[string]string{"content": "yours"}, nil))
		require.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, fmt.Sprintf("/api/messages/%d", msg.ID), aliceToken, nil, nil))
	})

	t.Run("deleting a conversation", func(t *testing.T) {
		require.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, fmt.Sprintf("/api/conversations/%d", conv.ID), aliceToken, nil, nil))
		require.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, fmt.Sprintf("/api/conversations/%d", conv.ID), rootToken, nil, nil))
		require.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, messages, aliceToken, nil, nil))
	})

	t.Run("incomplete team", func(t *testing.T) {
		var project, task struct {
			ID int64 `json:"id"`
		}
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/projects", leadToken, map[string]string{"title": "Delivery"}, &project))
		require.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/projects", annToken, map[string]string{"title": "Nope"}, nil))
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/tasks", project.ID), leadToken, map[string]any{
			"title": "Pack", "assignee_ids": []string{annID, bobID},
		}, &task))

		taskPath := fmt.Sprintf("/api/tasks/%d", task.ID)
		require.Equal(t, http.StatusConflict, s.do(t, http.MethodPatch, taskPath, annToken, map[string]string{"status": "completed"}, nil))

		var progress struct {
			FullyComplete bool `json:"fully_complete"`
		}
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, taskPath+"/completions", annToken, nil, &progress))
		require.False(t, progress.FullyComplete)
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, taskPath+"/completions", bobToken, nil, &progress))
		require.True(t, progress.FullyComplete)

		var stored struct {
			Status string `json:"status"`
		}
		require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, taskPath, carolToken, nil, &stored))
		require.Equal(t, "completed", stored.Status)
	})

	t.Run("creating users", func(t *testing.T) {
		body := map[string]string{"email": "new@example.org", "display_name": "New", "password": "Password1!"}
		require.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/users", aliceToken, body, nil))
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/users", rootToken, body, nil))
		require.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/users", rootToken, body, nil))
	})

	t.Run("me", func(t *testing.T) {
		var me struct {
			ID           string   `json:"id"`
			Capabilities []string `json:"capabilities"`
		}
		require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/auth/me", leadToken, nil, &me))
		require.Equal(t, []string{"manage_tasks"}, me.Capabilities)
	})
}
