// Package errors carries typed domain failures from services to the HTTP layer.
// Each Code maps to one response status and public message.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodePaymentRequired   Code = "PAYMENT_REQUIRED"
	CodeAlreadyEnrolled   Code = "ALREADY_ENROLLED"
	CodeAlreadyIssued     Code = "ALREADY_ISSUED"
	CodeAlreadyRevoked    Code = "ALREADY_REVOKED"
	CodeAlreadyProcessed  Code = "ALREADY_PROCESSED"
	CodePaymentInProgress Code = "PAYMENT_IN_PROGRESS"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeNotCompleted      Code = "NOT_COMPLETED"
	CodeNotEligible       Code = "NOT_ELIGIBLE"
	CodeCourseUnavailable Code = "COURSE_UNAVAILABLE"
	CodeNotEnrolled       Code = "NOT_ENROLLED"
	CodeStoreUnavailable  Code = "STORE_UNAVAILABLE"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code surfaces over HTTP. DetailsAllowed gates whether Details reach the client.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type trait uint8

const (
	retryable trait = 1 << iota
	withDetails
)

func describe(status int, message string, traits trait) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  message,
		Retryable:      traits&retryable != 0,
		DetailsAllowed: traits&withDetails != 0,
	}
}

var catalog = map[Code]Metadata{
	CodeValidation:   describe(http.StatusBadRequest, "validation failed", withDetails),
	CodeUnauthorized: describe(http.StatusUnauthorized, "authentication required", 0),
	CodeForbidden:    describe(http.StatusForbidden, "access denied", 0),
	CodeNotFound:     describe(http.StatusNotFound, "resource not found", 0),

	CodeConflict:          describe(http.StatusConflict, "conflict detected", 0),
	CodeIdempotency:       describe(http.StatusConflict, "idempotency key reused", withDetails),
	CodeAlreadyEnrolled:   describe(http.StatusConflict, "already enrolled in course", 0),
	CodeAlreadyIssued:     describe(http.StatusConflict, "certificate already issued", 0),
	CodeAlreadyRevoked:    describe(http.StatusConflict, "certificate already revoked", 0),
	CodeAlreadyProcessed:  describe(http.StatusConflict, "payment already processed", 0),
	CodePaymentInProgress: describe(http.StatusConflict, "payment already in progress", withDetails),

	CodePaymentRequired: describe(http.StatusPaymentRequired, "payment required", withDetails),

	CodeInvalidTransition: describe(http.StatusUnprocessableEntity, "state transition disallowed", withDetails),
	CodeNotCompleted:      describe(http.StatusUnprocessableEntity, "payment is not completed", 0),
	CodeNotEligible:       describe(http.StatusUnprocessableEntity, "not eligible for certificate", withDetails),
	CodeCourseUnavailable: describe(http.StatusUnprocessableEntity, "course is not available", 0),
	CodeNotEnrolled:       describe(http.StatusUnprocessableEntity, "not enrolled in course", 0),

	CodeStoreUnavailable: describe(http.StatusServiceUnavailable, "store unavailable", retryable),
	CodeDependency:       describe(http.StatusServiceUnavailable, "dependency unavailable", retryable|withDetails),
	CodeInternal:         describe(http.StatusInternalServerError, "internal server error", retryable),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	meta, ok := catalog[code]
	if !ok {
		return catalog[CodeInternal]
	}
	return meta
}

// Error is a coded failure. Message is safe to show callers; the cause stays server side.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err == nil || !stdErrors.As(err, &typed) {
		return nil
	}
	return typed
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
