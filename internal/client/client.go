// Package client talks to the hub API over HTTP and listens to its event socket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"sandwich_hub/internal/events"
	"sandwich_hub/internal/service"
)

// Client is an authenticated API client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

// Login exchanges credentials for a token and returns a client using it.
func Login(ctx context.Context, baseURL, email, password string, hc *http.Client) (*Client, *service.TokenResponse, error) {
	c := New(baseURL, "", hc)
	var res service.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, &res); err != nil {
		return nil, nil, err
	}
	c.token = res.AccessToken
	return c, &res, nil
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

func (c *Client) Conversations(ctx context.Context) ([]*service.ConversationSummary, error) {
	var res []*service.ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Messages(ctx context.Context, conversationID int64) ([]*service.MessageResponse, error) {
	var res []*service.MessageResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", conversationID), nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Post(ctx context.Context, conversationID int64, content string) (*service.MessageResponse, error) {
	var res service.MessageResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/conversations/%d/messages", conversationID), map[string]string{"content": content}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Subscribe reads events from /ws until ctx is done or the connection drops.
// Events published while disconnected are lost; callers re-fetch after reconnecting.
func (c *Client) Subscribe(ctx context.Context, handle func(events.Event)) error {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), http.Header{"Authorization": {"Bearer " + c.token}})
	if err != nil {
		return fmt.Errorf("dial events: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}
		handle(ev)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
