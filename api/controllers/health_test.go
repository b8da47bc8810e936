package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/learnhub-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	resp := serve(HealthReady(cfg, testLogger(), stubPinger{}, stubPinger{}), newRequest(http.MethodGet, "/health/ready", requestOpts{}))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "test", resp.Header().Get("X-LearnHub-Env"))

	resp = serve(HealthReady(cfg, testLogger(), stubPinger{}, stubPinger{err: errors.New("redis down")}), newRequest(http.MethodGet, "/health/ready", requestOpts{}))
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	require.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, resp))
}

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	resp := serve(HealthLive(cfg), newRequest(http.MethodGet, "/health/live", requestOpts{}))
	require.Equal(t, http.StatusOK, resp.Code)
}
