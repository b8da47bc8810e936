// Package registry maps outbox rows onto the topics and payload schemas they publish with.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox"
	"github.com/angelmondragon/learnhub-backend/pkg/outbox/payloads"
)

// ErrUndeliverable marks rows that no amount of retrying will publish.
var ErrUndeliverable = errors.New("outbox event undeliverable")

// Route describes where an event type goes and how its data decodes.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

// Resolved is a validated outbox row ready to publish.
type Resolved struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

// Registry is immutable after New.
type Registry struct {
	routes map[enums.OutboxEventType]Route
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// New builds the registry with every domain event routed to topic.
func New(topic string) (*Registry, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("domain topic is required")
	}

	routes := []Route{
		{EventType: enums.EventEnrollmentCreated, AggregateType: enums.AggregateEnrollment, decode: decodeAs[payloads.EnrollmentCreatedEvent]},
		{EventType: enums.EventEnrollmentRemoved, AggregateType: enums.AggregateEnrollment, decode: decodeAs[payloads.EnrollmentRemovedEvent]},
		{EventType: enums.EventPaymentInitiated, AggregateType: enums.AggregatePayment, decode: decodeAs[payloads.PaymentStatusEvent]},
		{EventType: enums.EventPaymentCompleted, AggregateType: enums.AggregatePayment, decode: decodeAs[payloads.PaymentStatusEvent]},
		{EventType: enums.EventPaymentFailed, AggregateType: enums.AggregatePayment, decode: decodeAs[payloads.PaymentStatusEvent]},
		{EventType: enums.EventPaymentCancelled, AggregateType: enums.AggregatePayment, decode: decodeAs[payloads.PaymentStatusEvent]},
		{EventType: enums.EventPaymentRefunded, AggregateType: enums.AggregatePayment, decode: decodeAs[payloads.PaymentStatusEvent]},
		{EventType: enums.EventCertificateIssued, AggregateType: enums.AggregateCertificate, decode: decodeAs[payloads.CertificateIssuedEvent]},
		{EventType: enums.EventCertificateRevoked, AggregateType: enums.AggregateCertificate, decode: decodeAs[payloads.CertificateRevokedEvent]},
	}

	r := &Registry{routes: make(map[enums.OutboxEventType]Route, len(routes))}
	for _, route := range routes {
		route.Topic = topic
		r.routes[route.EventType] = route
	}
	return r, nil
}

// Lookup returns the route for eventType.
func (r *Registry) Lookup(eventType enums.OutboxEventType) (Route, bool) {
	if r == nil {
		return Route{}, false
	}
	route, ok := r.routes[eventType]
	return route, ok
}

// Resolve checks the row against its route and decodes the payload. Every error wraps
// ErrUndeliverable.
func (r *Registry) Resolve(event models.OutboxEvent) (*Resolved, error) {
	route, ok := r.Lookup(event.EventType)
	if !ok {
		return nil, undeliverable("unsupported event type %q", event.EventType)
	}
	if route.AggregateType != event.AggregateType {
		return nil, undeliverable("%s belongs to %s aggregates, row says %s", event.EventType, route.AggregateType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, undeliverable("%s row has no aggregate id", event.EventType)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, undeliverable("envelope: %v", err)
	}
	if envelope.Version < 1 {
		return nil, undeliverable("envelope version %d", envelope.Version)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, undeliverable("%s envelope carries no data", event.EventType)
	}

	payload, err := route.decode(data)
	if err != nil {
		return nil, undeliverable("%s data: %v", event.EventType, err)
	}
	return &Resolved{Route: route, Envelope: envelope, Payload: payload}, nil
}

func undeliverable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUndeliverable, fmt.Sprintf(format, args...))
}
