package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/supervisor/internal/infra/notify"
)

// Publisher implements notify.Sink by publishing JSON on a pub/sub channel.
type Publisher struct {
	client  *Client
	channel string
}

// NewPublisher creates a publisher for channel.
func NewPublisher(client *Client, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

// Channel returns the fully qualified channel name.
func (p *Publisher) Channel() string {
	return channelName(p.client.prefix, p.channel)
}

func (p *Publisher) Notify(ctx context.Context, n notify.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := p.client.rdb.Publish(ctx, p.Channel(), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.Channel(), err)
	}
	return nil
}

func channelName(prefix, channel string) string {
	return fmt.Sprintf("%s:%s", prefix, channel)
}
