// README: Transports for order frames (in-process, Redis pub/sub).
package events

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"courier/internal/types"
)

const channelPrefix = "courier:order:"

func Channel(orderID types.ID) string {
	return channelPrefix + orderID.String()
}

// LocalTransport delivers straight into the hub of this process.
type LocalTransport struct {
	hub *Hub
}

func NewLocalTransport(hub *Hub) *LocalTransport {
	return &LocalTransport{hub: hub}
}

func (t *LocalTransport) Publish(_ context.Context, orderID types.ID, frame []byte) error {
	t.hub.Deliver(Group(orderID), frame)
	return nil
}

// RedisTransport publishes through Redis so every replica's hub receives the
// frame; Run must be running for frames to reach local subscribers.
type RedisTransport struct {
	client   *redis.Client
	hub      *Hub
	log      *zap.Logger
	retryMin time.Duration
	retryMax time.Duration
}

func NewRedisTransport(client *redis.Client, hub *Hub, log *zap.Logger) *RedisTransport {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisTransport{client: client, hub: hub, log: log, retryMin: 500 * time.Millisecond, retryMax: 30 * time.Second}
}

func (t *RedisTransport) Publish(ctx context.Context, orderID types.ID, frame []byte) error {
	return t.client.Publish(ctx, Channel(orderID), frame).Err()
}

// Run feeds frames from every order channel into the hub until ctx is done.
// While Redis is unreachable it keeps retrying the subscription with backoff.
// ready, if non-nil, is closed once the subscription is confirmed.
func (t *RedisTransport) Run(ctx context.Context, ready chan<- struct{}) {
	ps := t.subscribe(ctx)
	if ps == nil {
		return
	}
	defer ps.Close()
	if ready != nil {
		close(ready)
	}
	t.log.Info("realtime subscriber started", zap.String("pattern", channelPrefix+"*"))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			orderID := strings.TrimPrefix(msg.Channel, channelPrefix)
			t.hub.Deliver(Group(types.ID(orderID)), []byte(msg.Payload))
		}
	}
}

// subscribe returns nil only when ctx ends first.
func (t *RedisTransport) subscribe(ctx context.Context) *redis.PubSub {
	backoff := t.retryMin
	for attempt := 1; ; attempt++ {
		ps := t.client.PSubscribe(ctx, channelPrefix+"*")
		_, err := ps.Receive(ctx)
		if err == nil {
			return ps
		}
		_ = ps.Close()
		if ctx.Err() != nil {
			return nil
		}
		t.log.Warn("subscribe order channels failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", backoff),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff = min(backoff*2, t.retryMax)
	}
}
