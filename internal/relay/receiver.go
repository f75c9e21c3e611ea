package relay

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/JakeFAU/multibar"
)

// Subscription delivers raw messages to a handler until ctx ends. The
// handler's error decides the ack: nil acks, non-nil nacks for
// redelivery.
type Subscription interface {
	Receive(ctx context.Context, handler func(ctx context.Context, data []byte, attrs map[string]string) error) error
}

// PubSubSubscription adapts a Google Cloud Pub/Sub subscription.
type PubSubSubscription struct {
	client *pubsub.Client
	sub    *pubsub.Subscription
}

// NewPubSubSubscription connects to the project's subscription. The
// subscription must have message ordering enabled to preserve the
// per-worker FIFO guarantee.
func NewPubSubSubscription(ctx context.Context, projectID, subscriptionID string) (*PubSubSubscription, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	sub := client.Subscription(subscriptionID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check subscription %q: %w", subscriptionID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub subscription %q does not exist in project %q", subscriptionID, projectID)
	}
	return &PubSubSubscription{client: client, sub: sub}, nil
}

// Receive pumps messages into the handler until ctx is canceled.
func (s *PubSubSubscription) Receive(ctx context.Context, handler func(ctx context.Context, data []byte, attrs map[string]string) error) error {
	err := s.sub.Receive(ctx, func(msgCtx context.Context, m *pubsub.Message) {
		msgCtx = otel.GetTextMapPropagator().Extract(msgCtx, attrCarrier(m.Attributes))
		if err := handler(msgCtx, m.Data, m.Attributes); err != nil {
			m.Nack()
			return
		}
		m.Ack()
	})
	if err != nil {
		return fmt.Errorf("receive from subscription: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *PubSubSubscription) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

// Receiver feeds decoded remote updates into a local coordinator. It is
// the trust boundary: malformed payloads, foreign runs, and
// out-of-range worker ids are dropped with a warning here, so bad
// network input can never panic the consumer loop.
type Receiver struct {
	multi  *multibar.Multi
	logger *zap.Logger
}

// NewReceiver wires a coordinator and logger.
func NewReceiver(multi *multibar.Multi, logger *zap.Logger) *Receiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Receiver{multi: multi, logger: logger}
}

// Run consumes the subscription until ctx ends or the run completes.
func (r *Receiver) Run(ctx context.Context, sub Subscription) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.multi.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return sub.Receive(ctx, r.handle)
}

// handle applies one raw message. It always returns nil for messages
// that fail validation: redelivering garbage cannot fix it.
func (r *Receiver) handle(_ context.Context, data []byte, _ map[string]string) error {
	runID, u, err := DecodeUpdate(data)
	if err != nil {
		r.logger.Warn("discarding malformed remote update", zap.Error(err))
		return nil
	}
	if runID != r.multi.RunID() {
		r.logger.Warn("discarding update for foreign run",
			zap.Stringer("run_id", runID), zap.Stringer("local_run_id", r.multi.RunID()))
		return nil
	}
	if u.Worker >= r.multi.Workers() {
		r.logger.Warn("discarding update for out-of-range worker",
			zap.Int("worker", u.Worker), zap.Int("workers", r.multi.Workers()))
		return nil
	}
	h := r.multi.Handle(u.Worker)
	switch u.Op {
	case multibar.OpNext:
		h.Next()
	case multibar.OpSet:
		h.Set(u.Value)
	case multibar.OpFinish:
		h.Finish()
	case multibar.OpCancel:
		h.Cancel()
	}
	return nil
}
