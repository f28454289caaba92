package relayd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// broker fans message frames across relay instances through a Redis channel.
// Each instance publishes every row it stores and broadcasts every frame it
// receives, so clients see inserts regardless of which instance took the
// write. With no broker configured the hub alone covers the single-instance
// case.
type broker struct {
	rdb     *redis.Client
	channel string
	log     zerolog.Logger
}

func newBroker(ctx context.Context, addr, channel string, log zerolog.Logger) (*broker, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &broker{rdb: rdb, channel: channel, log: log}, nil
}

func (b *broker) close() error { return b.rdb.Close() }

// publish pushes one stored-row frame to the shared channel.
func (b *broker) publish(ctx context.Context, frame []byte) {
	if err := b.rdb.Publish(ctx, b.channel, frame).Err(); err != nil {
		b.log.Error().Err(err).Str("channel", b.channel).Msg("redis publish failed")
	}
}

// run forwards frames from the shared channel into the hub until ctx ends.
func (b *broker) run(ctx context.Context, h *hub) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.publish([]byte(msg.Payload))
		}
	}
}
