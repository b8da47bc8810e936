// Package relay moves committed outbox rows onto Pub/Sub.
//
// Each pass claims a batch inside one transaction, hands every decodable row to the sink
// without waiting, then collects the delivery results and marks rows published, failed or
// parked before the transaction commits. Parked rows keep their payload and last error so
// they can be replayed by hand.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	"github.com/angelmondragon/learnhub-backend/pkg/metrics"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultMaxAttempts    = 10
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type store interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, maxAttempts int, cause error) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

// Sink accepts a message for topic and reports the delivery result through the ticket.
type Sink interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) Ticket
}

// Ticket is a pending delivery.
type Ticket interface {
	Wait(ctx context.Context) error
}

// Probe is a readiness check run once before the first pass.
type Probe struct {
	Name  string
	Check func(context.Context) error
}

type Options struct {
	BatchSize      int
	MaxAttempts    int
	PollInterval   time.Duration
	PublishTimeout time.Duration
}

type Params struct {
	Logger   *logger.Logger
	DB       txRunner
	Store    store
	Registry resolver
	Sink     Sink
	Metrics  *metrics.RelayMetrics
	Probes   []Probe
	Options  Options
}

type Relay struct {
	logg     *logger.Logger
	db       txRunner
	store    store
	registry resolver
	sink     Sink
	metrics  *metrics.RelayMetrics
	probes   []Probe
	opts     Options
	pace     *pacer
}

func New(params Params) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Store == nil:
		return nil, errors.New("outbox store is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.Sink == nil:
		return nil, errors.New("sink is required")
	}

	opts := params.Options
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}

	return &Relay{
		logg:     params.Logger,
		db:       params.DB,
		store:    params.Store,
		registry: params.Registry,
		sink:     params.Sink,
		metrics:  params.Metrics,
		probes:   params.Probes,
		opts:     opts,
		pace:     newPacer(opts.PollInterval),
	}, nil
}

// Run drains the outbox until ctx ends. It returns ctx.Err() on shutdown and an error
// only when a readiness probe fails.
func (r *Relay) Run(ctx context.Context) error {
	for _, probe := range r.probes {
		if err := probe.Check(ctx); err != nil {
			r.logg.Error(r.logg.WithField(ctx, "dependency", probe.Name), "readiness probe failed", err)
			return fmt.Errorf("%s not ready: %w", probe.Name, err)
		}
	}

	for {
		claimed, err := r.Drain(ctx)
		if err != nil && ctx.Err() == nil {
			r.logg.Error(ctx, "outbox pass failed", err)
		}
		full := err == nil && claimed >= r.opts.BatchSize
		if err := sleep(ctx, r.pace.next(full, err)); err != nil {
			return err
		}
	}
}

// Drain runs one pass and reports how many rows it claimed.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	start := time.Now()
	var oldest time.Time
	claimed := 0

	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.opts.BatchSize, r.opts.MaxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(rows)
		if claimed == 0 {
			return nil
		}
		oldest = rows[0].CreatedAt

		deliveries := r.send(ctx, rows)
		tally := map[string]int{}
		for _, d := range deliveries {
			outcome, err := r.settle(ctx, tx, d)
			if err != nil {
				return err
			}
			tally[outcome]++
			r.metrics.Outcome(string(d.event.EventType), outcome)
		}

		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"claimed":   claimed,
			"published": tally[metrics.RelayPublished],
			"retry":     tally[metrics.RelayRetry],
			"parked":    tally[metrics.RelayParked],
		}), "outbox batch relayed")
		return nil
	})

	if claimed > 0 {
		r.metrics.Batch(time.Since(start), oldest)
	}
	return claimed, err
}

type delivery struct {
	event    models.OutboxEvent
	resolved *registry.Resolved
	ticket   Ticket
	err      error
}

// send resolves every row and hands the good ones to the sink before waiting on any.
func (r *Relay) send(ctx context.Context, rows []models.OutboxEvent) []delivery {
	publishCtx, cancel := context.WithTimeout(ctx, r.opts.PublishTimeout)
	defer cancel()

	deliveries := make([]delivery, len(rows))
	for i, event := range rows {
		deliveries[i].event = event
		resolved, err := r.registry.Resolve(event)
		if err != nil {
			deliveries[i].err = err
			continue
		}
		deliveries[i].resolved = resolved
		deliveries[i].ticket = r.sink.Send(publishCtx, resolved.Route.Topic, message(event, resolved))
	}
	for i := range deliveries {
		if deliveries[i].ticket == nil {
			if deliveries[i].err == nil {
				deliveries[i].err = errors.New("sink returned no ticket")
			}
			continue
		}
		deliveries[i].err = deliveries[i].ticket.Wait(publishCtx)
	}
	return deliveries
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, d delivery) (string, error) {
	id := d.event.ID
	if d.err == nil {
		if err := r.store.MarkPublishedTx(tx, id); err != nil {
			return "", fmt.Errorf("mark %s published: %w", id, err)
		}
		r.logg.Debug(r.rowContext(ctx, d), "outbox event published")
		return metrics.RelayPublished, nil
	}

	attempt := d.event.AttemptCount + 1
	rowCtx := r.logg.WithFields(r.rowContext(ctx, d), map[string]any{"attempt": attempt, "error": d.err.Error()})

	var cause error
	switch {
	case permanent(d.err):
		cause = d.err
	case attempt >= r.opts.MaxAttempts:
		cause = fmt.Errorf("gave up after %d attempts: %w", attempt, d.err)
	}
	if cause != nil {
		if err := r.store.MarkTerminalTx(tx, id, r.opts.MaxAttempts, cause); err != nil {
			return "", fmt.Errorf("park %s: %w", id, err)
		}
		r.logg.Warn(rowCtx, "outbox event parked")
		return metrics.RelayParked, nil
	}

	if err := r.store.MarkFailedTx(tx, id, d.err); err != nil {
		return "", fmt.Errorf("mark %s failed: %w", id, err)
	}
	r.logg.Warn(rowCtx, "outbox publish will be retried")
	return metrics.RelayRetry, nil
}

func (r *Relay) rowContext(ctx context.Context, d delivery) context.Context {
	fields := map[string]any{
		"outbox_id":      d.event.ID.String(),
		"event_type":     d.event.EventType,
		"aggregate_type": d.event.AggregateType,
		"aggregate_id":   d.event.AggregateID.String(),
	}
	if d.resolved != nil {
		fields["event_id"] = d.resolved.Envelope.EventID
		fields["topic"] = d.resolved.Route.Topic
	}
	return r.logg.WithFields(ctx, fields)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
