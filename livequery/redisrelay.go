package livequery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

// RedisRelay republishes Notifications to a Redis pub/sub channel so a
// multi-node deployment's other nodes observe the same live-query
// mutations (§4.9 presupposes subscriber nodes other than the writer can
// exist, since a notification targets "the subscriber node").
//
// Grounded in queue/redis/queue.go (teacher)'s go-redis/v9 client setup
// and Config-from-env pattern (WHEN_REDIS_URL), repurposed from a job
// queue's blocking dequeue to a pub/sub fan-out.
type RedisRelay struct {
	client  *redis.Client
	ctx     context.Context
	channel string
}

// RedisConfig configures RedisRelay, mirroring queue/redis.Config's
// RedisURL/KeyPrefix shape.
type RedisConfig struct {
	RedisURL string // defaults to SURDB_REDIS_URL, then redis://localhost:6379/0
	Channel  string // defaults to "surdb:livequery"
}

// NewRedisRelay connects to Redis and verifies the connection with Ping,
// matching the teacher's NewQueue.
func NewRedisRelay(ctx context.Context, cfg RedisConfig) (*RedisRelay, error) {
	url := cfg.RedisURL
	if url == "" {
		url = os.Getenv("SURDB_REDIS_URL")
	}
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("livequery: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("livequery: connect redis: %w", err)
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "surdb:livequery"
	}
	return &RedisRelay{client: client, ctx: ctx, channel: channel}, nil
}

// wireNotification is the JSON shape published to Redis; value.Value has
// no general JSON codec of its own (§3.1's variant set is richer than
// JSON), so the relay carries only the scalar/string-rendered projection
// a cross-node client needs to know something changed.
type wireNotification struct {
	Action string `json:"action"`
	ID     string `json:"id"`
	Result string `json:"result"`
}

// Publish implements Relay.
func (r *RedisRelay) Publish(n Notification) error {
	w := wireNotification{Action: n.Action.String(), ID: n.ID, Result: n.Result.String()}
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("livequery: marshal notification: %w", err)
	}
	return r.client.Publish(r.ctx, r.channel, data).Err()
}

// Close releases the underlying Redis client.
func (r *RedisRelay) Close() error { return r.client.Close() }

var _ Relay = (*RedisRelay)(nil)
