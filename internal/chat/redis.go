package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "chat:"

// RedisPublisher broadcasts messages over Redis pub/sub so subscribers
// connected to any instance receive them.
type RedisPublisher struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedisPublisher creates a publisher on client
func NewRedisPublisher(client *redis.Client, logger *zap.SugaredLogger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

// Publish sends out on the room's channel
func (p *RedisPublisher) Publish(ctx context.Context, room string, out Outbound) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}
	if err := p.client.Publish(ctx, channelPrefix+room, data).Err(); err != nil {
		return fmt.Errorf("publish chat message: %w", err)
	}
	return nil
}

// Listen delivers every message published on any room channel to hub's
// local subscribers until ctx is cancelled.
func (p *RedisPublisher) Listen(ctx context.Context, hub *Hub) {
	pubsub := p.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	p.logger.Info("Chat pub/sub listener started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Chat pub/sub listener stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var out Outbound
			if err := json.Unmarshal([]byte(msg.Payload), &out); err != nil {
				p.logger.Warnw("Dropping malformed chat message from redis", "channel", msg.Channel, "error", err)
				continue
			}
			hub.Deliver(strings.TrimPrefix(msg.Channel, channelPrefix), out)
		}
	}
}
