package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/01moynul/basegigs-golang/internal/models"
)

// ChannelPrefix namespaces per-user pub/sub channels.
const ChannelPrefix = "basegigs:user:"

// Channel returns the pub/sub channel for userID.
func Channel(userID int64) string {
	return fmt.Sprintf("%s%d", ChannelPrefix, userID)
}

// RedisPublisher publishes notifications as JSON on per-user channels.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, n *models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "encode notification")
	}
	if err := p.client.Publish(ctx, Channel(n.UserID), payload).Err(); err != nil {
		return errors.Wrap(err, "publish notification")
	}
	return nil
}

// Subscribe streams userID's notifications until ctx is done. The returned
// channel is closed when the subscription ends.
func (p *RedisPublisher) Subscribe(ctx context.Context, userID int64) (<-chan *models.Notification, error) {
	sub := p.client.Subscribe(ctx, Channel(userID))
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, errors.Wrap(err, "subscribe notifications")
	}

	out := make(chan *models.Notification)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var n models.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					continue
				}
				select {
				case out <- &n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
