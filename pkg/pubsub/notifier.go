package pubsub

import (
	"context"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// Notifier publishes sync summaries. A nil Notifier is a no-op so callers
// can run without Pub/Sub configured.
type Notifier struct {
	pub *pubsub.Publisher
}

// SyncNotifier wraps the sync topic publisher.
func (c *Client) SyncNotifier() *Notifier {
	if c == nil {
		return nil
	}
	return &Notifier{pub: c.SyncPublisher()}
}

// Publish sends one message and waits for the server ack.
func (n *Notifier) Publish(ctx context.Context, data []byte) error {
	if n == nil || n.pub == nil {
		return nil
	}
	result := n.pub.Publish(ctx, &pubsub.Message{Data: data})
	_, err := result.Get(ctx)
	return err
}
