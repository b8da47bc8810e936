package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox/registry"
)

type inlineTx struct{}

func (inlineTx) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type memStore struct {
	rows      []models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
	failed    []uuid.UUID
	parked    map[uuid.UUID]error
}

func (m *memStore) FetchUnpublishedForPublish(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if len(m.rows) > limit {
		return m.rows[:limit], nil
	}
	return m.rows, nil
}

func (m *memStore) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memStore) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

func (m *memStore) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ int, cause error) error {
	if m.parked == nil {
		m.parked = map[uuid.UUID]error{}
	}
	m.parked[id] = cause
	return nil
}

// scriptedSink fails messages whose aggregate id has an entry in errs.
type scriptedSink struct {
	errs  map[string]error
	sent  []*gcppubsub.Message
	topic string
}

func (s *scriptedSink) Send(_ context.Context, topic string, msg *gcppubsub.Message) Ticket {
	s.topic = topic
	s.sent = append(s.sent, msg)
	return failed{err: s.errs[msg.Attributes["aggregate_id"]]}
}

func paymentRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	data, err := json.Marshal(map[string]any{"payment_id": uuid.New(), "status": "completed"})
	require.NoError(t, err)
	env, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Data:       data,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentCompleted,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
		Payload:       datatypes.JSON(env),
		AttemptCount:  attempts,
		CreatedAt:     time.Now().Add(-time.Second),
	}
}

func newRelay(t *testing.T, store *memStore, sink Sink, opts Options) *Relay {
	t.Helper()
	reg, err := registry.New("learnhub-domain-events")
	require.NoError(t, err)
	r, err := New(Params{
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:       inlineTx{},
		Store:    store,
		Registry: reg,
		Sink:     sink,
		Options:  opts,
	})
	require.NoError(t, err)
	return r
}

func TestDrainSettlesEachRow(t *testing.T) {
	ok := paymentRow(t, 0)
	transient := paymentRow(t, 2)
	malformed := paymentRow(t, 0)
	exhausted := paymentRow(t, 4)
	orphan := paymentRow(t, 0)
	orphan.AggregateType = enums.AggregateCertificate

	store := &memStore{rows: []models.OutboxEvent{ok, transient, malformed, exhausted, orphan}}
	sink := &scriptedSink{errs: map[string]error{
		transient.AggregateID.String(): status.Error(codes.Unavailable, "try later"),
		malformed.AggregateID.String(): status.Error(codes.InvalidArgument, "attribute too long"),
		exhausted.AggregateID.String(): errors.New("deadline exceeded"),
	}}
	r := newRelay(t, store, sink, Options{MaxAttempts: 5})

	claimed, err := r.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, claimed)

	require.Equal(t, []uuid.UUID{ok.ID}, store.published)
	require.Equal(t, []uuid.UUID{transient.ID}, store.failed)
	require.Len(t, store.parked, 3)
	require.ErrorIs(t, store.parked[orphan.ID], registry.ErrUndeliverable)
	require.Equal(t, codes.InvalidArgument, status.Code(store.parked[malformed.ID]))
	require.ErrorContains(t, store.parked[exhausted.ID], "gave up after 5 attempts")

	// the orphan never reaches the sink
	require.Len(t, sink.sent, 4)
	require.Equal(t, "learnhub-domain-events", sink.topic)
}

func TestDrainEmptyOutbox(t *testing.T) {
	store := &memStore{}
	sink := &scriptedSink{}
	r := newRelay(t, store, sink, Options{})

	claimed, err := r.Drain(context.Background())
	require.NoError(t, err)
	require.Zero(t, claimed)
	require.Empty(t, sink.sent)
}

func TestDrainRespectsBatchSize(t *testing.T) {
	store := &memStore{rows: []models.OutboxEvent{paymentRow(t, 0), paymentRow(t, 0), paymentRow(t, 0)}}
	r := newRelay(t, store, &scriptedSink{}, Options{BatchSize: 2})

	claimed, err := r.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, claimed)
	require.Len(t, store.published, 2)
}

func TestDrainClaimError(t *testing.T) {
	store := &memStore{fetchErr: errors.New("connection reset")}
	r := newRelay(t, store, &scriptedSink{}, Options{})

	_, err := r.Drain(context.Background())
	require.ErrorContains(t, err, "connection reset")
}

func TestMessageAttributes(t *testing.T) {
	row := paymentRow(t, 0)
	reg, err := registry.New("topic")
	require.NoError(t, err)
	resolved, err := reg.Resolve(row)
	require.NoError(t, err)

	msg := message(row, resolved)
	require.Equal(t, []byte(row.Payload), msg.Data)
	require.Equal(t, "payment_completed", msg.Attributes["event_type"])
	require.Equal(t, "payment", msg.Attributes["aggregate_type"])
	require.Equal(t, row.AggregateID.String(), msg.Attributes["aggregate_id"])
	require.Equal(t, resolved.Envelope.EventID, msg.Attributes["event_id"])
	require.Equal(t, "1", msg.Attributes["envelope_version"])
	require.Equal(t, "2026-03-01T09:00:00Z", msg.Attributes["occurred_at"])
}

func TestPermanent(t *testing.T) {
	require.False(t, permanent(nil))
	require.False(t, permanent(errors.New("timeout")))
	require.False(t, permanent(status.Error(codes.NotFound, "topic gone")))
	require.False(t, permanent(status.Error(codes.Unavailable, "busy")))
	require.True(t, permanent(status.Error(codes.InvalidArgument, "bad attribute")))
	require.True(t, permanent(registry.ErrUndeliverable))
}

func TestRunStopsWhenProbeFails(t *testing.T) {
	reg, err := registry.New("topic")
	require.NoError(t, err)
	r, err := New(Params{
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:       inlineTx{},
		Store:    &memStore{},
		Registry: reg,
		Sink:     &scriptedSink{},
		Probes: []Probe{{Name: "pubsub", Check: func(context.Context) error {
			return errors.New("topic missing")
		}}},
	})
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.ErrorContains(t, err, "pubsub not ready")
}

func TestRunReturnsOnCancel(t *testing.T) {
	store := &memStore{}
	r := newRelay(t, store, &scriptedSink{}, Options{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.Run(ctx), context.DeadlineExceeded)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	require.Error(t, err)
}

func TestPacer(t *testing.T) {
	p := newPacer(100 * time.Millisecond)
	p.jitter = func(d time.Duration) time.Duration { return d }

	require.Zero(t, p.next(true, nil))
	require.Equal(t, 100*time.Millisecond, p.next(false, nil))

	boom := errors.New("boom")
	require.Equal(t, 200*time.Millisecond, p.next(false, boom))
	require.Equal(t, 400*time.Millisecond, p.next(false, boom))
	for i := 0; i < 10; i++ {
		p.next(false, boom)
	}
	require.Equal(t, maxPause, p.next(false, boom))

	require.Equal(t, 100*time.Millisecond, p.next(false, nil))
}
