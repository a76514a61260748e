package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bruhbug-service/internal/entity"
)

// EventBus carries record change events over a Redis pub/sub channel.
// Delivery is best effort: subscribers that are not connected miss events.
type EventBus struct {
	rdb     redis.UniversalClient
	channel string
	log     *zap.Logger
}

func NewEventBus(rdb redis.UniversalClient, channel string, log *zap.Logger) *EventBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventBus{rdb: rdb, channel: channel, log: log.Named("events")}
}

func (b *EventBus) Publish(ctx context.Context, ev entity.RecordEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, data).Err()
}

// Subscribe returns a stream of events that is closed when ctx is done or the
// connection drops. Undecodable messages are skipped.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan entity.RecordEvent, error) {
	ps := b.rdb.Subscribe(ctx, b.channel)
	// wait for the subscription confirmation so events published after return are seen
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan entity.RecordEvent, 16)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev entity.RecordEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.log.Warn("skip undecodable event", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
