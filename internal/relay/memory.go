package relay

import (
	"context"
	"fmt"
	"sync"
)

// MemoryTopic is an in-process Topic and Subscription for tests: every
// publish is recorded and streamed to the active receiver in order.
type MemoryTopic struct {
	mu        sync.Mutex
	published []PublishedMessage
	stream    chan PublishedMessage
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Data        []byte
	OrderingKey string
	Attributes  map[string]string
}

// NewMemoryTopic returns a topic buffering up to capacity messages.
func NewMemoryTopic(capacity int) *MemoryTopic {
	if capacity <= 0 {
		capacity = 64
	}
	return &MemoryTopic{stream: make(chan PublishedMessage, capacity)}
}

// Publish records the message and queues it for the receiver.
func (t *MemoryTopic) Publish(ctx context.Context, data []byte, orderingKey string, attrs map[string]string) (string, error) {
	msg := PublishedMessage{
		Data:        append([]byte(nil), data...),
		OrderingKey: orderingKey,
		Attributes:  attrs,
	}
	t.mu.Lock()
	t.published = append(t.published, msg)
	id := fmt.Sprintf("memory-%d", len(t.published))
	t.mu.Unlock()

	select {
	case t.stream <- msg:
		return id, nil
	case <-ctx.Done():
		return "", fmt.Errorf("publish canceled: %w", ctx.Err())
	}
}

// Receive streams queued messages into the handler until ctx ends.
func (t *MemoryTopic) Receive(ctx context.Context, handler func(ctx context.Context, data []byte, attrs map[string]string) error) error {
	for {
		select {
		case msg := <-t.stream:
			// Redelivery is not modeled; handler errors are dropped
			// the same way a dead-lettered message would be.
			_ = handler(ctx, msg.Data, msg.Attributes)
		case <-ctx.Done():
			return nil
		}
	}
}

// Published returns a copy of every recorded publish.
func (t *MemoryTopic) Published() []PublishedMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PublishedMessage, len(t.published))
	copy(out, t.published)
	return out
}
