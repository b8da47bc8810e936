package relay

import (
	"context"
	"errors"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox/registry"
	"github.com/angelmondragon/learnhub-backend/pkg/pubsub"
)

// message carries the stored envelope verbatim. Attributes let subscribers filter without
// decoding the body.
func message(event models.OutboxEvent, resolved *registry.Resolved) *gcppubsub.Message {
	env := resolved.Envelope
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":         env.EventID,
			"event_type":       string(event.EventType),
			"aggregate_type":   string(event.AggregateType),
			"aggregate_id":     event.AggregateID.String(),
			"envelope_version": strconv.Itoa(env.Version),
			"occurred_at":      env.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

// permanent reports whether retrying err can never succeed. Rows the registry rejects and
// messages Pub/Sub refuses as malformed qualify. Missing topics and IAM errors stay
// retryable since an operator can fix them.
func permanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, registry.ErrUndeliverable) {
		return true
	}
	return status.Code(err) == codes.InvalidArgument
}

type publisherSource interface {
	Publisher(topic string) *gcppubsub.Publisher
}

// PubSubSink sends through the cached publishers of a pubsub client.
type PubSubSink struct {
	source publisherSource
}

func NewPubSubSink(client *pubsub.Client) *PubSubSink {
	return &PubSubSink{source: client}
}

func (s *PubSubSink) Send(ctx context.Context, topic string, msg *gcppubsub.Message) Ticket {
	publisher := s.source.Publisher(topic)
	if publisher == nil {
		return failed{err: errors.New("no publisher for topic " + topic)}
	}
	return result{publisher.Publish(ctx, msg)}
}

type result struct {
	*gcppubsub.PublishResult
}

func (r result) Wait(ctx context.Context) error {
	_, err := r.Get(ctx)
	return err
}

type failed struct {
	err error
}

func (f failed) Wait(context.Context) error {
	return f.err
}
