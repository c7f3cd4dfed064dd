package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mw "github.com/kiranshivaraju/pilotwatch/internal/sandbox/middleware"
	"github.com/kiranshivaraju/pilotwatch/internal/sandbox/store"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Store ---

type mockStore struct {
	store.Store
	tokens map[string]*models.User
	err    error
}

func (m *mockStore) UserByToken(_ context.Context, token string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.tokens[token]
	if !ok {
		return nil, store.ErrInvalidToken
	}
	return u, nil
}

// --- Mock Counter ---

type mockCounter struct {
	counter int64
	err     error
}

func (m *mockCounter) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	m.counter++
	return m.counter, m.err
}

// --- helpers ---

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}

func authedRequest(token string) *http.Request {
	req := httptest.NewRequest("GET", "/test", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

var demoUser = &models.User{ID: "u1", Email: "demo@example.com"}

// ========================================
// Auth Middleware Tests
// ========================================

func TestAuth_MissingAuthHeader(t *testing.T) {
	auth := mw.NewAuth(&mockStore{})
	w := httptest.NewRecorder()
	auth.Authenticate(okHandler()).ServeHTTP(w, authedRequest(""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errBody(t, w)["code"])
}

func TestAuth_InvalidBearerFormat(t *testing.T) {
	auth := mw.NewAuth(&mockStore{})
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()
	auth.Authenticate(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_UnknownToken(t *testing.T) {
	auth := mw.NewAuth(&mockStore{tokens: map[string]*models.User{}})
	w := httptest.NewRecorder()
	auth.Authenticate(okHandler()).ServeHTTP(w, authedRequest("stale"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token is invalid or expired", errBody(t, w)["message"])
}

func TestAuth_StoreError(t *testing.T) {
	auth := mw.NewAuth(&mockStore{err: errors.New("boom")})
	w := httptest.NewRecorder()
	auth.Authenticate(okHandler()).ServeHTTP(w, authedRequest("tok"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAuth_ValidToken(t *testing.T) {
	auth := mw.NewAuth(&mockStore{tokens: map[string]*models.User{"tok": demoUser}})

	var got *models.User
	var gotOK bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, gotOK = mw.GetUser(r)
		w.WriteHeader(http.StatusOK)
	})
	w := httptest.NewRecorder()
	auth.Authenticate(inner).ServeHTTP(w, authedRequest("tok"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gotOK)
	assert.Equal(t, "u1", got.ID)
}

// ========================================
// RequestID Middleware Tests
// ========================================

func TestRequestID_EchoesCallerID(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	mw.RequestID(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestRequestID_AssignsID(t *testing.T) {
	w := httptest.NewRecorder()
	mw.RequestID(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestRequestID_AppearsInErrorBody(t *testing.T) {
	auth := mw.NewAuth(&mockStore{})
	req := authedRequest("")
	req.Header.Set("X-Request-ID", "req-7")
	w := httptest.NewRecorder()
	mw.RequestID(auth.Authenticate(okHandler())).ServeHTTP(w, req)

	assert.Equal(t, "req-7", errBody(t, w)["request_id"])
}

// ========================================
// Rate Limit Middleware Tests
// ========================================

func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(mw.SetUser(r.Context(), demoUser)))
	})
}

func TestRateLimit_UnderLimit(t *testing.T) {
	rl := mw.NewRateLimit(&mockCounter{}, 10)
	w := httptest.NewRecorder()
	withUser(rl.Limit(okHandler())).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_OverLimit(t *testing.T) {
	rl := mw.NewRateLimit(&mockCounter{counter: 10}, 10)
	w := httptest.NewRecorder()
	withUser(rl.Limit(okHandler())).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, float64(60), errBody(t, w)["retry_after"])
}

func TestRateLimit_CounterErrorFailsOpen(t *testing.T) {
	rl := mw.NewRateLimit(&mockCounter{err: errors.New("redis down")}, 10)
	w := httptest.NewRecorder()
	withUser(rl.Limit(okHandler())).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_NoUserPassesThrough(t *testing.T) {
	mc := &mockCounter{}
	rl := mw.NewRateLimit(mc, 10)
	w := httptest.NewRecorder()
	rl.Limit(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, mc.counter)
}

// ========================================
// Recovery / Logger Middleware Tests
// ========================================

func TestRecovery_CatchesPanic(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	w := httptest.NewRecorder()
	mw.Recovery(panicky).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestLogger_PassesStatusThrough(t *testing.T) {
	teapot := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	w := httptest.NewRecorder()
	mw.Logger(teapot).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLogger_RecordsAuthenticatedUser(t *testing.T) {
	buf := captureLog(t)
	auth := mw.NewAuth(&mockStore{tokens: map[string]*models.User{"tok": demoUser}})

	w := httptest.NewRecorder()
	mw.Logger(auth.Authenticate(okHandler())).ServeHTTP(w, authedRequest("tok"))
	require.Equal(t, http.StatusOK, w.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request", line["msg"])
	assert.Equal(t, "u1", line["user_id"])
	assert.EqualValues(t, http.StatusOK, line["status"])
}

func TestLogger_OmitsUserForAnonymousRequests(t *testing.T) {
	buf := captureLog(t)

	w := httptest.NewRecorder()
	mw.Logger(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "user_id")
}
