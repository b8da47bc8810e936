package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/learnhub-backend/api/middleware"
	"github.com/angelmondragon/learnhub-backend/pkg/auth"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func student() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Role: enums.RoleStudent}
}

func admin() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
}

type requestOpts struct {
	actor  *auth.Actor
	params map[string]string
	body   string
}

func newRequest(method, target string, opts requestOpts) *http.Request {
	var body io.Reader
	if opts.body != "" {
		body = strings.NewReader(opts.body)
	}
	req := httptest.NewRequest(method, target, body)
	ctx := req.Context()
	if opts.actor != nil {
		ctx = middleware.WithActor(ctx, *opts.actor)
	}
	if len(opts.params) > 0 {
		routeCtx := chi.NewRouteContext()
		for k, v := range opts.params {
			routeCtx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	}
	return req.WithContext(ctx)
}

func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	handler(resp, req)
	return resp
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Error.Code
}
