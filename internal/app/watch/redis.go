package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/R3E-Network/souschef/internal/app/system"
	"github.com/R3E-Network/souschef/internal/logging"
)

var _ system.Service = (*RedisBridge)(nil)
var _ Publisher = (*RedisBridge)(nil)

// DefaultRedisChannel is the pub/sub channel used when none is configured.
const DefaultRedisChannel = "souschef:changes"

// RedisBridge publishes local changes to a Redis channel and replays changes
// published by other processes into the local hub. Stores should publish to
// the bridge instead of the hub when it is enabled.
type RedisBridge struct {
	client  *redis.Client
	hub     *Hub
	channel string
	origin  string
	log     *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewRedisBridge wires hub to the Redis channel.
func NewRedisBridge(client *redis.Client, hub *Hub, channel string, log *logging.Logger) *RedisBridge {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if log == nil {
		log = logging.NewDefault("watch-redis")
	}
	return &RedisBridge{
		client:  client,
		hub:     hub,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log,
	}
}

func (b *RedisBridge) Name() string { return "watch-redis-bridge" }

// Publish delivers c locally and forwards it to other processes.
func (b *RedisBridge) Publish(c Change) {
	b.hub.Publish(c)

	c.Origin = b.origin
	payload, err := json.Marshal(c)
	if err != nil {
		b.log.WithError(err).Warn("encode change for redis")
		return
	}
	if err := b.client.Publish(context.Background(), b.channel, payload).Err(); err != nil {
		b.log.WithError(err).WithField("collection", c.Collection).Warn("publish change to redis")
	}
}

// Start subscribes to the channel and relays remote changes until Stop.
func (b *RedisBridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	b.running = true

	go b.relay(runCtx, pubsub, b.done)
	b.log.WithField("channel", b.channel).Info("redis change bridge started")
	return nil
}

func (b *RedisBridge) relay(ctx context.Context, pubsub *redis.PubSub, done chan struct{}) {
	defer close(done)
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				b.log.WithError(err).Warn("decode change from redis")
				continue
			}
			if c.Origin == b.origin {
				continue
			}
			b.hub.Publish(c)
		}
	}
}

// Stop ends the relay loop.
func (b *RedisBridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	cancel, done := b.cancel, b.done
	b.running = false
	b.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.log.Info("redis change bridge stopped")
	return nil
}
