package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEveryCodeHasMetadata(t *testing.T) {
	codes := []Code{
		CodeValidation, CodeUnauthorized, CodeForbidden, CodeNotFound, CodeConflict,
		CodeIdempotency, CodePaymentRequired, CodeAlreadyEnrolled, CodeAlreadyIssued,
		CodeAlreadyRevoked, CodeAlreadyProcessed, CodePaymentInProgress, CodeInvalidTransition,
		CodeNotCompleted, CodeNotEligible, CodeCourseUnavailable, CodeNotEnrolled,
		CodeStoreUnavailable, CodeInternal, CodeDependency,
	}
	for _, code := range codes {
		meta, ok := catalog[code]
		require.True(t, ok, code)
		require.NotZero(t, meta.HTTPStatus, code)
		require.NotEmpty(t, meta.PublicMessage, code)
	}
}

func TestMetadataFor(t *testing.T) {
	cases := []struct {
		code      Code
		status    int
		retryable bool
		details   bool
	}{
		{CodeValidation, http.StatusBadRequest, false, true},
		{CodeUnauthorized, http.StatusUnauthorized, false, false},
		{CodePaymentRequired, http.StatusPaymentRequired, false, true},
		{CodeAlreadyEnrolled, http.StatusConflict, false, false},
		{CodePaymentInProgress, http.StatusConflict, false, true},
		{CodeInvalidTransition, http.StatusUnprocessableEntity, false, true},
		{CodeNotEnrolled, http.StatusUnprocessableEntity, false, false},
		{CodeStoreUnavailable, http.StatusServiceUnavailable, true, false},
		{CodeDependency, http.StatusServiceUnavailable, true, true},
		{CodeInternal, http.StatusInternalServerError, true, false},
	}
	for _, tc := range cases {
		meta := MetadataFor(tc.code)
		require.Equal(t, tc.status, meta.HTTPStatus, tc.code)
		require.Equal(t, tc.retryable, meta.Retryable, tc.code)
		require.Equal(t, tc.details, meta.DetailsAllowed, tc.code)
	}
	require.Equal(t, "certificate already issued", MetadataFor(CodeAlreadyIssued).PublicMessage)
	require.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestErrorCarriesCodeMessageAndCause(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	require.Equal(t, CodeValidation, base.Code())
	require.Equal(t, "missing foo", base.Message())
	require.Nil(t, base.Details())
	require.Equal(t, "VALIDATION_ERROR: missing foo", base.Error())

	base.WithDetails(map[string]any{"field": "foo"})
	require.Equal(t, map[string]any{"field": "foo"}, base.Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeStoreUnavailable, cause, "load enrollment")
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, CodeStoreUnavailable, wrapped.Code())
	require.Nil(t, Wrap(CodeInternal, nil, "x").Unwrap())
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	require.Equal(t, CodeInternal, e.Code())
	require.Empty(t, e.Message())
	require.Nil(t, e.Details())
	require.Nil(t, e.WithDetails("x"))
	require.Nil(t, e.Unwrap())
}

func TestAsCodeOfIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeAlreadyIssued, "certificate exists"))
	require.Equal(t, CodeAlreadyIssued, As(err).Code())
	require.True(t, Is(err, CodeAlreadyIssued))
	require.False(t, Is(err, CodeAlreadyRevoked))
	require.Equal(t, CodeAlreadyIssued, CodeOf(err))
	require.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
	require.Nil(t, As(nil))
}
