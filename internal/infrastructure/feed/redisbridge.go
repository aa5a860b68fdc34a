package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisChannel carries change events between nodes.
const redisChannel = "circle:feed"

// envelope wraps an event with the publishing node's id so a node never
// re-applies its own events.
type envelope struct {
	Node  string `json:"node"`
	Event Event  `json:"event"`
}

// RedisBridge carries the change feed over redis pub/sub. A node that
// holds a LISTEN connection forwards events here; relay-mode nodes
// (those behind a transaction-pooling proxy) run the bridge as their
// only feed source.
type RedisBridge struct {
	rdb  *redis.Client
	hub  *Hub
	node string
	log  *zap.Logger
}

// NewRedisBridge constructs a bridge publishing into hub.
func NewRedisBridge(rdb *redis.Client, hub *Hub, log *zap.Logger) *RedisBridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBridge{
		rdb:  rdb,
		hub:  hub,
		node: uuid.NewString(),
		log:  log.Named("feedbridge"),
	}
}

// Forward publishes ev for peer nodes.
func (b *RedisBridge) Forward(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(envelope{Node: b.node, Event: ev})
	if err != nil {
		return fmt.Errorf("feedbridge: encode: %w", err)
	}
	if err := b.rdb.Publish(ctx, redisChannel, payload).Err(); err != nil {
		return fmt.Errorf("feedbridge: publish: %w", err)
	}
	return nil
}

// Run consumes peer events until ctx is canceled. go-redis re-dials the
// pub/sub connection itself, so one subscribe loop is enough.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, redisChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("feedbridge: subscription closed")
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("malformed relay payload", zap.Error(err))
				continue
			}
			if env.Node == b.node {
				continue
			}
			b.hub.Publish(env.Event)
		}
	}
}
