package relay

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"

	"github.com/google/uuid"

	"github.com/JakeFAU/multibar"
)

// Topic publishes one encoded update. Implementations must deliver
// messages sharing an ordering key in publish order.
type Topic interface {
	Publish(ctx context.Context, data []byte, orderingKey string, attrs map[string]string) (string, error)
}

// PubSubTopic is the Google Cloud Pub/Sub Topic implementation.
type PubSubTopic struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubTopic connects to the project's topic with message ordering
// enabled. Authentication uses Application Default Credentials.
func NewPubSubTopic(ctx context.Context, projectID, topicID string) (*PubSubTopic, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check topic %q: %w", topicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}
	topic.EnableMessageOrdering = true
	return &PubSubTopic{client: client, topic: topic}, nil
}

// Publish sends one message and waits for the server's ack, so callers
// learn about delivery failures instead of silently losing progress.
func (t *PubSubTopic) Publish(ctx context.Context, data []byte, orderingKey string, attrs map[string]string) (string, error) {
	msg := &pubsub.Message{
		Data:        data,
		OrderingKey: orderingKey,
		Attributes:  attrs,
	}
	if msg.Attributes == nil {
		msg.Attributes = make(map[string]string)
	}
	otel.GetTextMapPropagator().Inject(ctx, attrCarrier(msg.Attributes))

	id, err := t.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		// A failed publish poisons its ordering key until resumed.
		t.topic.ResumePublish(orderingKey)
		return "", fmt.Errorf("publish update: %w", err)
	}
	return id, nil
}

// Close flushes pending publishes and closes the client.
func (t *PubSubTopic) Close() error {
	t.topic.Stop()
	if err := t.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

// Publisher hands out remote handles for one coordinator run.
type Publisher struct {
	topic Topic
	runID uuid.UUID
}

// NewPublisher binds a topic to the run every handle will report into.
func NewPublisher(topic Topic, runID uuid.UUID) *Publisher {
	return &Publisher{topic: topic, runID: runID}
}

// Handle returns the remote handle for worker i.
func (p *Publisher) Handle(i int) *Handle {
	return &Handle{topic: p.topic, runID: p.runID, worker: i}
}

// Handle mirrors multibar.Handle for a remote worker. Unlike the local
// handle, every call returns an error: remote delivery can fail and the
// worker is the only party who can decide whether that matters.
type Handle struct {
	topic  Topic
	runID  uuid.UUID
	worker int
}

// Worker returns the zero-based index this handle reports for.
func (h *Handle) Worker() int { return h.worker }

// Next advances the worker's count by one step.
func (h *Handle) Next(ctx context.Context) error {
	return h.publish(ctx, multibar.OpNext, 0)
}

// Set moves the worker's count to v.
func (h *Handle) Set(ctx context.Context, v int64) error {
	return h.publish(ctx, multibar.OpSet, v)
}

// Finish moves the worker's count to its length.
func (h *Handle) Finish(ctx context.Context) error {
	return h.publish(ctx, multibar.OpFinish, 0)
}

// Cancel stops the worker at its current count.
func (h *Handle) Cancel(ctx context.Context) error {
	return h.publish(ctx, multibar.OpCancel, 0)
}

func (h *Handle) publish(ctx context.Context, op multibar.Op, v int64) error {
	data, err := EncodeUpdate(h.runID, multibar.Update{Worker: h.worker, Op: op, Value: v})
	if err != nil {
		return err
	}
	if _, err := h.topic.Publish(ctx, data, orderingKey(h.worker), nil); err != nil {
		return err
	}
	return nil
}

// attrCarrier adapts Pub/Sub attributes to the OpenTelemetry
// propagation.TextMapCarrier interface.
type attrCarrier map[string]string

func (c attrCarrier) Get(key string) string { return c[key] }

func (c attrCarrier) Set(key, value string) { c[key] = value }

func (c attrCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
