package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Broker carries group messages between hub processes. Each hub subscribes to
// the channels of the groups it has local members for; publishing reaches
// every subscribed process, including the publisher's own.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of payloads and a cancel function that
	// tears the subscription down.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func())
}

// RedisBroker implements Broker on Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, func()) {
	ctx, cancel := context.WithCancel(ctx)
	pubsub := b.client.Subscribe(ctx, channel)

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, cancel
}
