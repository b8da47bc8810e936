package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/learnhub-backend/internal/catalog"
	"github.com/angelmondragon/learnhub-backend/internal/enrollments"
	"github.com/angelmondragon/learnhub-backend/internal/gateway"
	"github.com/angelmondragon/learnhub-backend/internal/ledger"
	"github.com/angelmondragon/learnhub-backend/pkg/auth"
	"github.com/angelmondragon/learnhub-backend/pkg/db"
	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/angelmondragon/learnhub-backend/pkg/ids"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	"github.com/angelmondragon/learnhub-backend/pkg/metrics"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/learnhub-backend/pkg/pagination"
)

const (
	statusNew     = "new"
	expiredReason = "expired"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives the payment lifecycle and grants enrollment when a payment settles.
type Service interface {
	InitiatePayment(ctx context.Context, actor auth.Actor, input InitiateInput) (*InitiateResult, error)
	ConfirmPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID, gatewayReference string) (*ConfirmResult, error)
	RefundPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID, input RefundInput) (*Payment, error)
	FailPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID, reason string) (*Payment, error)
	CancelPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) (*Payment, error)
	ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
	GetPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) (*Payment, error)
	ListHistory(ctx context.Context, learnerID uuid.UUID, params pagination.Params) (*PaymentList, error)
	ListAll(ctx context.Context, actor auth.Actor, status *enums.PaymentStatus, params pagination.Params) (*PaymentList, error)
}

// ServiceParams wires the payment service.
type ServiceParams struct {
	Repository      ledger.PaymentRepository
	Enrollments     enrollments.Service
	Catalog         catalog.Catalog
	Gateway         gateway.Gateway
	Tx              txRunner
	Outbox          outbox.Emitter
	Metrics         *metrics.PipelineMetrics
	Logger          *logger.Logger
	DefaultCurrency enums.Currency
	Clock           func() time.Time
}

type service struct {
	repo            ledger.PaymentRepository
	enrollments     enrollments.Service
	catalog         catalog.Catalog
	gateway         gateway.Gateway
	tx              txRunner
	outbox          outbox.Emitter
	metrics         *metrics.PipelineMetrics
	logg            *logger.Logger
	defaultCurrency enums.Currency
	now             func() time.Time
}

// NewService validates dependencies and builds the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if params.Enrollments == nil {
		return nil, fmt.Errorf("enrollment service required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	currency := params.DefaultCurrency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("invalid default currency %q", currency)
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:            params.Repository,
		enrollments:     params.Enrollments,
		catalog:         params.Catalog,
		gateway:         params.Gateway,
		tx:              params.Tx,
		outbox:          params.Outbox,
		metrics:         params.Metrics,
		logg:            params.Logger,
		defaultCurrency: currency,
		now:             clock,
	}, nil
}

func (s *service) InitiatePayment(ctx context.Context, actor auth.Actor, input InitiateInput) (*InitiateResult, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "learner identity required")
	}
	if input.CourseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course id required")
	}
	method := input.Method
	if method == "" {
		method = enums.PaymentMethodGatewayA
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	course, err := s.catalog.GetCourse(ctx, input.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.IsPublished {
		return nil, pkgerrors.New(pkgerrors.CodeCourseUnavailable, "course is not published")
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, actor.UserID, course.ID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyEnrolled, "learner already enrolled in course")
	}
	if err := s.rejectPending(ctx, actor.UserID, course.ID); err != nil {
		return nil, err
	}

	currency := course.Currency
	if !currency.IsValid() {
		currency = s.defaultCurrency
	}
	if course.PriceCents == 0 {
		return s.initiateFree(ctx, actor, course, currency)
	}
	if method == enums.PaymentMethodFree {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free method is only valid for free courses")
	}

	now := s.now().UTC()
	payment := &models.Payment{
		ID:            uuid.New(),
		LearnerID:     actor.UserID,
		CourseID:      course.ID,
		AmountCents:   course.PriceCents,
		Currency:      currency,
		Method:        method,
		Status:        enums.PaymentStatusPending,
		TransactionID: ids.NewTransactionID(),
		CreatedAt:     now,
	}
	handoff, err := s.gateway.Handoff(ctx, payment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable")
	}
	metadata, err := json.Marshal(paymentMetadata{CourseTitle: course.Title, HandoffExpiresAt: &handoff.ExpiresAt})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payment metadata")
	}
	payment.Metadata = datatypes.JSON(metadata)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}
		return s.emit(ctx, tx, actor, payment, enums.EventPaymentInitiated, "")
	})
	if err != nil {
		if db.IsUniqueViolation(err, ledger.PendingPairIndex) {
			if pendingErr := s.rejectPending(ctx, actor.UserID, course.ID); pendingErr != nil {
				return nil, pendingErr
			}
			// the competing payment settled between the insert and the lookup
			return nil, pkgerrors.New(pkgerrors.CodePaymentInProgress, "another payment for this course was just started")
		}
		return nil, db.StoreError(err, "create payment")
	}

	s.metrics.PaymentTransition(statusNew, string(enums.PaymentStatusPending))
	s.info(ctx, course.ID, "payment initiated")
	return &InitiateResult{Payment: FromModel(payment), Handoff: handoff}, nil
}

func (s *service) initiateFree(ctx context.Context, actor auth.Actor, course *models.Course, currency enums.Currency) (*InitiateResult, error) {
	now := s.now().UTC()
	invoice := ids.NewInvoiceNumber()
	metadata, err := json.Marshal(paymentMetadata{CourseTitle: course.Title})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payment metadata")
	}
	payment := &models.Payment{
		ID:              uuid.New(),
		LearnerID:       actor.UserID,
		CourseID:        course.ID,
		AmountCents:     0,
		Currency:        currency,
		Method:          enums.PaymentMethodFree,
		Status:          enums.PaymentStatusCompleted,
		TransactionID:   ids.NewTransactionID(),
		InvoiceNumber:   &invoice,
		InvoiceIssuedAt: &now,
		CompletedAt:     &now,
		Metadata:        datatypes.JSON(metadata),
		CreatedAt:       now,
	}

	var enrollment *models.Enrollment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}
		var err error
		enrollment, err = s.enrollments.EnrollTx(ctx, tx, actor.UserID, course.ID, enums.EnrollmentSourceFree)
		if err != nil {
			return err
		}
		return s.emit(ctx, tx, actor, payment, enums.EventPaymentCompleted, "")
	})
	if err != nil {
		return nil, db.StoreError(err, "complete free payment")
	}

	s.metrics.PaymentTransition(statusNew, string(enums.PaymentStatusCompleted))
	s.metrics.EnrollmentCreated(string(enums.EnrollmentSourceFree))
	s.info(ctx, course.ID, "free course payment completed")
	view := enrollments.FromModel(enrollment)
	return &InitiateResult{Payment: FromModel(payment), Enrollment: &view}, nil
}

// rejectPending returns PAYMENT_IN_PROGRESS carrying the open payment, if there is one.
func (s *service) rejectPending(ctx context.Context, learnerID, courseID uuid.UUID) error {
	pending, err := s.repo.FindPendingByPair(ctx, learnerID, courseID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil
		}
		return db.StoreError(err, "load pending payment")
	}
	return pkgerrors.New(pkgerrors.CodePaymentInProgress, "a payment for this course is already pending").
		WithDetails(FromModel(pending))
}

func (s *service) ConfirmPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID, gatewayReference string) (*ConfirmResult, error) {
	payment, err := s.loadForActor(ctx, actor, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, alreadyProcessed(payment.Status)
	}
	reference := strings.TrimSpace(gatewayReference)
	if err := s.gateway.VerifyConfirmation(ctx, payment, reference); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	invoice := ids.NewInvoiceNumber()
	var enrollment *models.Enrollment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).Transition(ctx, payment.ID, enums.PaymentStatusPending, enums.PaymentStatusCompleted, map[string]any{
			"completed_at":      now,
			"gateway_reference": reference,
			"invoice_number":    invoice,
			"invoice_issued_at": now,
		})
		if err != nil {
			return err
		}
		if !moved {
			return alreadyProcessed("")
		}
		payment.Status = enums.PaymentStatusCompleted
		payment.CompletedAt = &now
		payment.GatewayReference = &reference
		payment.InvoiceNumber = &invoice
		payment.InvoiceIssuedAt = &now

		enrollment, err = s.enrollments.EnrollTx(ctx, tx, payment.LearnerID, payment.CourseID, enums.EnrollmentSourcePayment)
		if err != nil {
			return err
		}
		return s.emit(ctx, tx, actor, payment, enums.EventPaymentCompleted, "")
	})
	if err != nil {
		return nil, db.StoreError(err, "confirm payment")
	}

	s.metrics.PaymentTransition(string(enums.PaymentStatusPending), string(enums.PaymentStatusCompleted))
	s.metrics.EnrollmentCreated(string(enums.EnrollmentSourcePayment))
	s.info(ctx, payment.CourseID, "payment confirmed")
	return &ConfirmResult{Payment: FromModel(payment), Enrollment: enrollments.FromModel(enrollment)}, nil
}

func (s *service) RefundPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID, input RefundInput) (*Payment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	payment, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeNotCompleted, "only completed payments can be refunded")
	}

	amount := payment.AmountCents
	if input.AmountCents != nil {
		amount = *input.AmountCents
		if amount <= 0 || amount > payment.AmountCents {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be greater than zero and at most the amount paid")
		}
	}
	full := amount == payment.AmountCents

	now := s.now().UTC()
	updates := map[string]any{
		"refund_amount_cents": amount,
		"refunded_by":         actor.UserID,
		"refunded_at":         now,
	}
	var reason *string
	if trimmed := strings.TrimSpace(input.Reason); trimmed != "" {
		reason = &trimmed
		updates["refund_reason"] = trimmed
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).Transition(ctx, payment.ID, enums.PaymentStatusCompleted, enums.PaymentStatusRefunded, updates)
		if err != nil {
			return err
		}
		if !moved {
			return alreadyProcessed("")
		}
		payment.Status = enums.PaymentStatusRefunded
		payment.RefundAmountCents = &amount
		payment.RefundReason = reason
		payment.RefundedBy = &actor.UserID
		payment.RefundedAt = &now

		if full {
			if _, err := s.enrollments.RemoveTx(ctx, tx, payment.LearnerID, payment.CourseID); err != nil {
				return err
			}
		}
		return s.emit(ctx, tx, actor, payment, enums.EventPaymentRefunded, input.Reason)
	})
	if err != nil {
		return nil, db.StoreError(err, "refund payment")
	}

	s.metrics.PaymentTransition(string(enums.PaymentStatusCompleted), string(enums.PaymentStatusRefunded))
	s.info(ctx, payment.CourseID, "payment refunded")
	view := FromModel(payment)
	return &view, nil
}

func (s *service) FailPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID, reason string) (*Payment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	payment, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "gateway reported failure"
	}
	now := s.now().UTC()
	updates := map[string]any{"failed_at": now, "failure_reason": reason}
	if err := s.transition(ctx, &actor, payment, enums.PaymentStatusFailed, updates, enums.EventPaymentFailed, reason); err != nil {
		return nil, err
	}
	payment.FailedAt = &now
	payment.FailureReason = &reason
	view := FromModel(payment)
	return &view, nil
}

func (s *service) CancelPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) (*Payment, error) {
	payment, err := s.loadForActor(ctx, actor, paymentID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.transition(ctx, &actor, payment, enums.PaymentStatusCancelled, map[string]any{"cancelled_at": now}, enums.EventPaymentCancelled, ""); err != nil {
		return nil, err
	}
	payment.CancelledAt = &now
	view := FromModel(payment)
	return &view, nil
}

// ExpireStale cancels pending payments older than olderThan. Each payment is cancelled in its own
// transaction; failures are collected and the rest still run.
func (s *service) ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("expiry window must be positive")
	}
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	now := s.now().UTC()
	stale, err := s.repo.ListPendingBefore(ctx, now.Add(-olderThan), limit)
	if err != nil {
		return 0, db.StoreError(err, "list stale payments")
	}

	var (
		expired int
		errs    error
	)
	for i := range stale {
		payment := &stale[i]
		updates := map[string]any{"cancelled_at": now, "failure_reason": expiredReason}
		err := s.transition(ctx, nil, payment, enums.PaymentStatusCancelled, updates, enums.EventPaymentCancelled, expiredReason)
		switch {
		case err == nil:
			expired++
		case pkgerrors.Is(err, pkgerrors.CodeInvalidTransition):
			// settled by another writer since the listing
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire payment %s: %w", payment.ID, err))
		}
	}
	return expired, errs
}

func (s *service) GetPayment(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) (*Payment, error) {
	payment, err := s.loadForActor(ctx, actor, paymentID)
	if err != nil {
		return nil, err
	}
	view := FromModel(payment)
	return &view, nil
}

func (s *service) ListHistory(ctx context.Context, learnerID uuid.UUID, params pagination.Params) (*PaymentList, error) {
	if learnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "learner identity required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByLearner(ctx, learnerID, cursor, params.Limit)
	if err != nil {
		return nil, db.StoreError(err, "list payments")
	}
	return toPage(rows, params.Limit), nil
}

func (s *service) ListAll(ctx context.Context, actor auth.Actor, status *enums.PaymentStatus, params pagination.Params) (*PaymentList, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, status, cursor, params.Limit)
	if err != nil {
		return nil, db.StoreError(err, "list payments")
	}
	return toPage(rows, params.Limit), nil
}

// transition applies a single-row status change with its event. A nil actor marks a system change.
func (s *service) transition(ctx context.Context, actor *auth.Actor, payment *models.Payment, to enums.PaymentStatus, updates map[string]any, eventType enums.OutboxEventType, reason string) error {
	from := payment.Status
	if !from.CanTransitionTo(to) {
		return invalidTransition(from, to)
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).Transition(ctx, payment.ID, from, to, updates)
		if err != nil {
			return err
		}
		if !moved {
			current, err := s.repo.WithTx(tx).FindByID(ctx, payment.ID)
			if err != nil {
				return err
			}
			return invalidTransition(current.Status, to)
		}
		payment.Status = to
		var ref auth.Actor
		if actor != nil {
			ref = *actor
		}
		return s.emit(ctx, tx, ref, payment, eventType, reason)
	})
	if err != nil {
		return db.StoreError(err, "update payment status")
	}
	s.metrics.PaymentTransition(string(from), string(to))
	s.info(ctx, payment.CourseID, "payment "+string(to))
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actor auth.Actor, payment *models.Payment, eventType enums.OutboxEventType, reason string) error {
	now := s.now().UTC()
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentStatusEvent{
			PaymentID:         payment.ID,
			TransactionID:     payment.TransactionID,
			LearnerID:         payment.LearnerID,
			CourseID:          payment.CourseID,
			AmountCents:       payment.AmountCents,
			Currency:          payment.Currency,
			Method:            payment.Method,
			Status:            payment.Status,
			InvoiceNumber:     payment.InvoiceNumber,
			RefundAmountCents: payment.RefundAmountCents,
			Reason:            reason,
			OccurredAt:        now,
		},
		OccurredAt: now,
	}
	if actor.UserID != uuid.Nil {
		event.Actor = &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) load(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, db.StoreError(err, "load payment")
	}
	return payment, nil
}

func (s *service) loadForActor(ctx context.Context, actor auth.Actor, paymentID uuid.UUID) (*models.Payment, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	payment, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessLearner(payment.LearnerID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another learner")
	}
	return payment, nil
}

func (s *service) info(ctx context.Context, courseID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithCourseID(ctx, courseID.String()), msg)
}

func requireAdmin(actor auth.Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

func alreadyProcessed(status enums.PaymentStatus) error {
	msg := "payment has already been processed"
	if status != "" {
		msg = fmt.Sprintf("payment is already %s", status)
	}
	return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, msg)
}

func invalidTransition(from, to enums.PaymentStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move payment from %s to %s", from, to)).
		WithDetails(TransitionDetails{From: from, To: to})
}

func toPage(rows []models.Payment, limit int) *PaymentList {
	views := make([]Payment, 0, len(rows))
	for i := range rows {
		views = append(views, FromModel(&rows[i]))
	}
	page := pagination.Trim(views, limit, func(p Payment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return &page
}
