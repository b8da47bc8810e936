package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
)

type refundBody struct {
	Reason string `json:"reason" validate:"required,max=20"`
	Method string `json:"method,omitempty" validate:"omitempty,oneof=gateway_a manual"`
}

type bulkBody struct {
	AssumedQuizScore *int `json:"assumed_quiz_score,omitempty" validate:"omitempty,gte=0,lte=100"`
}

func TestDecodeJSONBodyValidatesFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"method":"cash"}`))
	var body refundBody
	err := DecodeJSONBody(req, &body)

	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["reason"])
	require.Equal(t, "must be one of: gateway_a, manual", details["method"])
}

func TestDecodeJSONBodyRejectsUnknownFieldsAndTrailingData(t *testing.T) {
	var body refundBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"dup","extra":1}`))
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(DecodeJSONBody(req, &body)))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"dup"}{"reason":"again"}`))
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(DecodeJSONBody(req, &body)))
}

func TestDecodeJSONBodyRequiresBody(t *testing.T) {
	var body refundBody
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(DecodeJSONBody(req, &body)))
}

func TestDecodeOptionalJSONBodyAcceptsEmptyBody(t *testing.T) {
	var body bulkBody
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, DecodeOptionalJSONBody(req, &body))
	require.Nil(t, body.AssumedQuizScore)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"assumed_quiz_score":120}`))
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(DecodeOptionalJSONBody(req, &body)))
}

func TestTrimText(t *testing.T) {
	require.Equal(t, "dup", TrimText("  dup  ", 10))
	require.Equal(t, "résu", TrimText("résumé", 4))
	require.Equal(t, "anything", TrimText("anything", 0))
}
