package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
)

func withParam(r *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	req := withParam(httptest.NewRequest(http.MethodGet, "/", nil), "courseId", id.String())
	got, err := ParseUUIDParam(req, "courseId")
	require.NoError(t, err)
	require.Equal(t, id, got)

	req = withParam(httptest.NewRequest(http.MethodGet, "/", nil), "courseId", "nope")
	_, err = ParseUUIDParam(req, "courseId")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&cursor=abc", nil)
	params, err := ParsePagination(req)
	require.NoError(t, err)
	require.Equal(t, 10, params.Limit)
	require.Equal(t, "abc", params.Cursor)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	params, err = ParsePagination(req)
	require.NoError(t, err)
	require.Equal(t, 25, params.Limit)

	req = httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err = ParsePagination(req)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestParseOptionalUUIDQuery(t *testing.T) {
	got, err := ParseOptionalUUIDQuery(httptest.NewRequest(http.MethodGet, "/", nil), "course_id")
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = ParseOptionalUUIDQuery(httptest.NewRequest(http.MethodGet, "/?course_id=bad", nil), "course_id")
	require.Error(t, err)
}
