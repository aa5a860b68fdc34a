package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DefaultChannel is the NOTIFY channel the setup.sql triggers emit on.
const DefaultChannel = "circle_changes"

const listenRetryDelay = 2 * time.Second

// PgListener turns PostgreSQL LISTEN/NOTIFY payloads into hub events.
// The database triggers publish one JSON document per row change:
// {"op":"insert","table":"messages","row":{...}}.
type PgListener struct {
	pool    *pgxpool.Pool
	hub     *Hub
	relay   *RedisBridge // optional: re-publish for relay-mode peers
	channel string
	log     *zap.Logger
}

// NewPgListener constructs a listener publishing into hub. relay may be
// nil when no cross-node relay is configured.
func NewPgListener(pool *pgxpool.Pool, hub *Hub, relay *RedisBridge, log *zap.Logger) *PgListener {
	if log == nil {
		log = zap.NewNop()
	}
	return &PgListener{
		pool:    pool,
		hub:     hub,
		relay:   relay,
		channel: DefaultChannel,
		log:     log.Named("pglisten"),
	}
}

// Run listens until ctx is canceled, reconnecting after transient
// failures. It holds one pooled connection for the whole LISTEN session;
// transaction-pooling proxies cannot carry LISTEN, which is what the
// redis relay mode exists for.
func (l *PgListener) Run(ctx context.Context) error {
	for {
		if err := l.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.Warn("listen session ended, retrying", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(listenRetryDelay):
		}
	}
}

func (l *PgListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("pglisten: acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+l.channel); err != nil {
		return fmt.Errorf("pglisten: listen %s: %w", l.channel, err)
	}
	l.log.Info("listening", zap.String("channel", l.channel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("pglisten: wait: %w", err)
		}
		var ev Event
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			l.log.Warn("malformed notification payload", zap.Error(err))
			continue
		}
		l.hub.Publish(ev)
		if l.relay != nil {
			if err := l.relay.Forward(ctx, ev); err != nil {
				l.log.Warn("relay forward failed", zap.Error(err))
			}
		}
	}
}
