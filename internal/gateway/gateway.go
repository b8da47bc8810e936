// Package gateway isolates the payment gateway. The real processor is external; this package
// mints the client handoff token and is the single place where a gateway confirmation is trusted.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/learnhub-backend/pkg/db/models"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
)

const handoffIssuer = "learnhub-payments"

// Handoff is what the client needs to continue the payment with the gateway.
type Handoff struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandoffClaims travel to the gateway inside the handoff token.
type HandoffClaims struct {
	PaymentID     uuid.UUID           `json:"payment_id"`
	TransactionID string              `json:"transaction_id"`
	AmountCents   int64               `json:"amount_cents"`
	Currency      enums.Currency      `json:"currency"`
	Method        enums.PaymentMethod `json:"method"`
	jwt.RegisteredClaims
}

// ConfirmationVerifier decides whether a gateway reference proves a payment succeeded.
type ConfirmationVerifier interface {
	VerifyConfirmation(ctx context.Context, payment *models.Payment, reference string) error
}

// Gateway mints handoff tokens and verifies confirmations.
type Gateway interface {
	ConfirmationVerifier
	Handoff(ctx context.Context, payment *models.Payment) (*Handoff, error)
}

// Simulated stands in for a real processor. It signs handoffs with a shared secret and
// trusts any non-empty confirmation reference.
type Simulated struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSimulated builds the simulated gateway.
func NewSimulated(secret string, ttl time.Duration) (*Simulated, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("gateway secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("handoff ttl must be positive")
	}
	return &Simulated{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (g *Simulated) Handoff(_ context.Context, payment *models.Payment) (*Handoff, error) {
	if payment == nil {
		return nil, fmt.Errorf("payment required")
	}
	now := g.now().UTC()
	expiresAt := now.Add(g.ttl)
	claims := HandoffClaims{
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		AmountCents:   payment.AmountCents,
		Currency:      payment.Currency,
		Method:        payment.Method,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    handoffIssuer,
			Subject:   payment.LearnerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        payment.TransactionID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return nil, fmt.Errorf("signing handoff: %w", err)
	}
	return &Handoff{Token: signed, ExpiresAt: expiresAt}, nil
}

// ParseHandoff validates a handoff token minted by this gateway.
func (g *Simulated) ParseHandoff(token string) (*HandoffClaims, error) {
	claims := &HandoffClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(*jwt.Token) (interface{}, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(handoffIssuer),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyConfirmation trusts any non-empty reference.
// TODO: verify the processor's signed confirmation once a real gateway is integrated.
func (g *Simulated) VerifyConfirmation(_ context.Context, payment *models.Payment, reference string) error {
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment required")
	}
	if strings.TrimSpace(reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway reference is required")
	}
	return nil
}
