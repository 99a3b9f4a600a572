package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// RedisRelay shares events between server instances over Redis pub/sub.
// Every event is delivered to the local publisher immediately and relayed to
// the channel; envelopes coming back from the same instance are ignored.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   Publisher
	origin  string
	log     *slog.Logger
}

type relayEnvelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// NewRedisClient parses url and checks the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

func NewRedisRelay(client *redis.Client, channel string, local Publisher, log *slog.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
		origin:  uuid.NewString(),
		log:     log,
	}
}

var _ Publisher = (*RedisRelay)(nil)

func (r *RedisRelay) Publish(ctx context.Context, ev Event) {
	r.local.Publish(ctx, ev)

	payload, err := json.Marshal(relayEnvelope{Origin: r.origin, Event: ev})
	if err != nil {
		r.log.Error("relay: marshal event", "event", ev.Name, "error", err)
		return
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.log.Warn("relay: publish failed", "event", ev.Name, "error", err)
	}
}

// Run forwards events published by other instances to the local publisher
// until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay: subscribe %s: %w", r.channel, err)
	}
	r.log.Info("relay: subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.forward(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) forward(ctx context.Context, payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn("relay: dropping malformed envelope", "error", err)
		return
	}
	if env.Origin == r.origin {
		return
	}
	r.local.Publish(ctx, env.Event)
}
