package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/learnhub-backend/api/responses"
	pkgerrors "github.com/angelmondragon/learnhub-backend/pkg/errors"
	"github.com/angelmondragon/learnhub-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/learnhub-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"

	enrollmentReplayTTL = 24 * time.Hour
	paymentReplayTTL    = 7 * 24 * time.Hour
	reservationTTL      = time.Minute
	maxIdempotencyKey   = 255
	maxReplayBody       = 1 << 20
)

type replayPolicy struct {
	method string
	match  func(path string) bool
	ttl    time.Duration
}

var replayPolicies = []replayPolicy{
	{http.MethodPost, pathIs("/api/v1/enrollments"), enrollmentReplayTTL},
	{http.MethodPost, pathIs("/api/v1/payments"), paymentReplayTTL},
	{http.MethodPost, pathAround("/api/v1/payments/", "/confirm"), paymentReplayTTL},
	{http.MethodPost, pathAround("/api/admin/v1/payments/", "/refund"), paymentReplayTTL},
}

// storedResponse is either a reservation held while the first request runs or the
// finished response kept for replay.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes the money and enrollment writes safe to retry. The first request with
// a key reserves it, runs, and stores its response unless it failed with a 5xx. Later
// requests with the same key and body get the stored response back; a different body or
// a still-running first request is a 409.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := replayTTL(r.Method, normalizedPath(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" || len(clientKey) > maxIdempotencyKey {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required, at most 255 characters"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := fingerprintOf(body)
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			reserved, err := store.SetNX(ctx, key, encodeStored(storedResponse{Pending: true, Fingerprint: fingerprint}), reservationTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replay(ctx, logg, w, store, key, fingerprint)
				return
			}

			// the reservation outlives the request context, so cleanup must too
			bg := context.WithoutCancel(ctx)
			kept := false
			defer func() {
				if !kept {
					if err := store.Del(bg, key); err != nil {
						logg.Error(ctx, "release idempotency reservation", err)
					}
				}
			}()

			tee := &teeWriter{ResponseWriter: w}
			next.ServeHTTP(tee, r)
			if tee.code() >= http.StatusInternalServerError || tee.overflow {
				return
			}

			done := storedResponse{
				Fingerprint: fingerprint,
				Status:      tee.code(),
				ContentType: tee.Header().Get("Content-Type"),
				Body:        tee.body.Bytes(),
			}
			if err := store.Set(bg, key, encodeStored(done), ttl); err != nil {
				logg.Error(ctx, "persist idempotent response", err)
				return
			}
			kept = true
		})
	}
}

func replay(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store pkgredis.IdempotencyStore, key, fingerprint string) {
	raw, err := store.Get(ctx, key)
	if pkgredis.IsMiss(err) {
		// reservation expired between SETNX and GET; the caller may simply retry
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotent response"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotent response"))
		return
	}
	switch {
	case stored.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case stored.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func encodeStored(s storedResponse) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// normalizedPath uses the raw URL path because middleware on a subrouter only sees a
// partial chi pattern.
func normalizedPath(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	path := r.URL.Path
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

func replayTTL(method, path string) (time.Duration, bool) {
	for _, p := range replayPolicies {
		if p.method == method && p.match(path) {
			return p.ttl, true
		}
	}
	return 0, false
}

func pathIs(want string) func(string) bool {
	return func(path string) bool { return path == want }
}

func pathAround(prefix, suffix string) func(string) bool {
	return func(path string) bool {
		return len(path) > len(prefix)+len(suffix) && strings.HasPrefix(path, prefix) && strings.HasSuffix(path, suffix)
	}
}

// teeWriter passes the response through while keeping a copy for replay.
type teeWriter struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	overflow bool
}

func (t *teeWriter) WriteHeader(code int) {
	if t.status == 0 {
		t.status = code
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(b []byte) (int, error) {
	if t.status == 0 {
		t.status = http.StatusOK
	}
	if t.body.Len()+len(b) > maxReplayBody {
		t.overflow = true
	} else {
		t.body.Write(b)
	}
	return t.ResponseWriter.Write(b)
}

func (t *teeWriter) Unwrap() http.ResponseWriter {
	return t.ResponseWriter
}

func (t *teeWriter) code() int {
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}
