package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

// EnvelopeVersion is stamped on events that do not pick their own.
const EnvelopeVersion = 1

// DomainEvent is what services hand to Emit. Data is marshalled into the envelope as is.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

// Emitter writes domain events inside a caller-owned transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("unknown outbox event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("%s: unknown aggregate type %q", e.EventType, e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("%s: aggregate id required", e.EventType)
	}
	return nil
}

// envelope wraps the event data with a time-ordered ULID event id.
func (e DomainEvent) envelope(now time.Time) (PayloadEnvelope, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("marshal %s data: %w", e.EventType, err)
	}
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	version := e.Version
	if version == 0 {
		version = EnvelopeVersion
	}
	return PayloadEnvelope{
		Version:    version,
		EventID:    ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		OccurredAt: occurred.UTC(),
		Actor:      e.Actor,
		Data:       data,
	}, nil
}

// Emit stores event in tx so it commits or rolls back with the business write.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("outbox emit needs the caller's transaction")
	}
	if err := event.validate(); err != nil {
		return err
	}
	env, err := event.envelope(time.Now().UTC())
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := s.repo.Insert(tx, models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("insert %s outbox row: %w", event.EventType, err)
	}

	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"event_id":     env.EventID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID.String(),
	}), "outbox event queued")
	return nil
}
