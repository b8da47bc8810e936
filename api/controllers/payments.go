package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/learnhub-backend/api/responses"
	"github.com/angelmondragon/learnhub-backend/api/validators"
	"github.com/angelmondragon/learnhub-backend/internal/payments"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	"github.com/angelmondragon/learnhub-backend/pkg/types"
)

const maxReasonLength = 500

type initiatePaymentRequest struct {
	CourseID uuid.UUID `json:"course_id" validate:"required"`
	Method   string    `json:"method" validate:"omitempty,oneof=gateway_a gateway_b manual free"`
}

type confirmPaymentRequest struct {
	GatewayReference string `json:"gateway_reference" validate:"required,max=255"`
}

type failPaymentRequest struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=500"`
}

type refundPaymentRequest struct {
	Amount *string `json:"amount"`
	Reason string  `json:"reason" validate:"max=500"`
}

// InitiatePayment opens a checkout for the caller. Free courses complete immediately.
func InitiatePayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payments")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body initiatePaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithCourseID(r.Context(), body.CourseID.String())
		result, err := svc.InitiatePayment(ctx, actor, payments.InitiateInput{
			CourseID: body.CourseID,
			Method:   enums.PaymentMethod(body.Method),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ConfirmPayment settles a pending payment with the gateway's reference.
func ConfirmPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payments")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmPayment(r.Context(), actor, paymentID, strings.TrimSpace(body.GatewayReference))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func CancelPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payments")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.CancelPayment(r.Context(), actor, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// GatewayPaymentFailed records a failure reported by the gateway.
func GatewayPaymentFailed(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payments")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body failPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.FailPayment(r.Context(), actor, body.PaymentID, validators.TrimText(body.Reason, maxReasonLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func GetPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payments")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.GetPayment(r.Context(), actor, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// ListPaymentHistory returns the caller's payments, newest first.
func ListPaymentHistory(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payments")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListHistory(r.Context(), actor.UserID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminListPayments lists every payment, optionally filtered by status.
func AdminListPayments(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payments")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.PaymentStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParsePaymentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}

		list, err := svc.ListAll(r.Context(), actor, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminRefundPayment refunds a completed payment. Omitting the amount refunds it in full.
func AdminRefundPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "payments")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		paymentID, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body refundPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := payments.RefundInput{Reason: validators.TrimText(body.Reason, maxReasonLength)}
		if body.Amount != nil {
			cents, err := types.ParseAmount(*body.Amount)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund amount").WithDetails(map[string]any{"field": "amount"}))
				return
			}
			input.AmountCents = &cents
		}

		payment, err := svc.RefundPayment(r.Context(), actor, paymentID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}
