package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
)

func TestEmitWritesEnvelopeInsideTx(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)

	aggregateID := uuid.New()
	actorID := uuid.New()
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventEnrollmentCreated,
			AggregateType: enums.AggregateEnrollment,
			AggregateID:   aggregateID,
			Actor:         &ActorRef{UserID: actorID, Role: enums.RoleStudent},
			Data:          map[string]string{"course_id": "c-1"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListForAggregate(aggregateID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.EventEnrollmentCreated, rows[0].EventType)
	require.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.Equal(t, actorID, envelope.Actor.UserID)
	require.JSONEq(t, `{"course_id":"c-1"}`, string(envelope.Data))
}

func TestEmitRolledBackWithBusinessTx(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)

	aggregateID := uuid.New()
	boom := errors.New("boom")
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventPaymentCompleted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   aggregateID,
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := repo.ListForAggregate(aggregateID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEmitRejectsMissingTxAndUnknownType(t *testing.T) {
	client := dbtest.Open(t)
	svc := NewService(NewRepository(client.DB()), nil)

	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventPaymentFailed}))

	for _, event := range []DomainEvent{
		{EventType: "mystery", AggregateType: enums.AggregatePayment, AggregateID: uuid.New()},
		{EventType: enums.EventPaymentFailed, AggregateType: "course", AggregateID: uuid.New()},
		{EventType: enums.EventPaymentFailed, AggregateType: enums.AggregatePayment},
	} {
		err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
			return svc.Emit(context.Background(), tx, event)
		})
		require.Error(t, err, "%+v", event)
	}
}

func TestEmitUsesULIDEventIDs(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)
	aggregateID := uuid.New()

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventEnrollmentRemoved,
			AggregateType: enums.AggregateEnrollment,
			AggregateID:   aggregateID,
			Data:          map[string]string{"reason": "refund"},
		})
	}))

	rows, err := repo.ListForAggregate(aggregateID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	_, err = ulid.ParseStrict(envelope.EventID)
	require.NoError(t, err)
}

func TestRepositoryClaimAndMark(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	svc := NewService(repo, nil)
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		for _, id := range []uuid.UUID{first, second} {
			if err := svc.Emit(ctx, tx, DomainEvent{
				EventType:     enums.EventCertificateIssued,
				AggregateType: enums.AggregateCertificate,
				AggregateID:   id,
				Data:          map[string]string{"certificate_id": id.String()},
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.NoError(t, repo.MarkPublishedTx(tx, rows[0].ID))
		return repo.MarkTerminalTx(tx, rows[1].ID, 3, errors.New("bad payload"))
	}))

	pending, err := repo.FetchUnpublished(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, 3, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		require.Empty(t, rows)
		return nil
	}))
}
