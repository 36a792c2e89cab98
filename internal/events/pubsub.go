// ============================================================================
// events/pubsub.go - Redis Pub/Sub for pool events
// ============================================================================
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/minidex/internal/constants"
	"github.com/aman-zulfiqar/minidex/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// ChannelAll carries every pool event.
	ChannelAll = constants.PubSubChannelPools
)

// PoolChannel is the channel carrying events of a single pool.
func PoolChannel(pool string) string {
	return constants.PubSubChannelPoolPrefix + pool
}

type Publisher struct {
	client redis.UniversalClient
	logger *logrus.Logger
}

var _ Sink = (*Publisher)(nil)

func NewPublisher(client redis.UniversalClient, logger *logrus.Logger) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Publisher{client: client, logger: logger}, nil
}

// Publish sends ev to the global channel and to its pool's channel.
func (p *Publisher) Publish(ctx context.Context, ev *models.PoolEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, ChannelAll, data)
	pipe.Publish(ctx, PoolChannel(ev.Pool), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe delivers events published on channel to handler until ctx is
// cancelled. Payloads that do not decode are logged and skipped.
func (p *Publisher) Subscribe(ctx context.Context, channel string, handler func(*models.PoolEvent)) error {
	sub := p.client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	p.logger.WithField("channel", channel).Info("subscribed to pool events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.PoolEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				p.logger.WithError(err).WithField("channel", msg.Channel).Warn("dropping undecodable event")
				continue
			}
			handler(&ev)
		}
	}
}
