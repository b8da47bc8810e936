package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/learnhub-backend/internal/certificates"
	"github.com/angelmondragon/learnhub-backend/internal/payments"
	pkgAuth "github.com/angelmondragon/learnhub-backend/pkg/auth"
	"github.com/angelmondragon/learnhub-backend/pkg/config"
	"github.com/angelmondragon/learnhub-backend/pkg/enums"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type memoryIdempotency struct {
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotency) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key] = value.(string)
	return nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("idem:%s:%s", scope, id)
}

type stubPayments struct {
	payments.Service
	initiated int
}

func (s *stubPayments) InitiatePayment(_ context.Context, _ pkgAuth.Actor, input payments.InitiateInput) (*payments.InitiateResult, error) {
	s.initiated++
	return &payments.InitiateResult{Payment: payments.Payment{CourseID: input.CourseID, Status: enums.PaymentStatusPending}}, nil
}

type stubCertificates struct {
	certificates.Service
}

func (stubCertificates) Verify(_ context.Context, id string) (*certificates.Verification, error) {
	return &certificates.Verification{Valid: true}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "learnhub", ExpirationMinutes: 30},
		API: config.APIConfig{RequestTimeout: 5 * time.Second},
	}
}

func newTestRouter(t *testing.T, deps Dependencies) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	deps.DB = stubPinger{}
	deps.Redis = stubPinger{}
	if deps.Idempotency == nil {
		deps.Idempotency = &memoryIdempotency{data: map[string]string{}}
	}
	return NewRouter(cfg, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), deps), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t, Dependencies{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, resp.Code, path)
		require.NotEmpty(t, resp.Header().Get("X-Request-Id"))
	}
}

func TestPublicVerifyNeedsNoToken(t *testing.T) {
	router, _ := newTestRouter(t, Dependencies{Certificates: stubCertificates{}})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/public/certificates/CERT-01ABC/verify", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"valid":true`)
}

func TestLearnerRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, Dependencies{})

	for _, path := range []string{"/api/v1/enrollments", "/api/v1/payments", "/api/v1/certificates"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUnauthorized, resp.Code, path)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	router, cfg := newTestRouter(t, Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/payments", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.RoleStudent))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusForbidden, resp.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway/failed", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearer(t, cfg, enums.RoleInstructor))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestInitiatePaymentIsIdempotent(t *testing.T) {
	svc := &stubPayments{}
	router, cfg := newTestRouter(t, Dependencies{Payments: svc})
	token := bearer(t, cfg, enums.RoleStudent)
	body := `{"course_id":"` + uuid.NewString() + `"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	req.Header.Set("Authorization", token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Zero(t, svc.initiated)

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
		req.Header.Set("Authorization", token)
		req.Header.Set("Idempotency-Key", "checkout-1")
		resp = httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		require.Equal(t, http.StatusCreated, resp.Code)
	}
	require.Equal(t, 1, svc.initiated)
}
