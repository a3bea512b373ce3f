package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(&Config{
		Secret:   "test-secret-at-least-32-chars-long!!",
		Password: "hunter2",
		TTL:      time.Hour,
	}, testLogger())
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresSecretAndPassword(t *testing.T) {
	_, err := NewService(&Config{Password: "x"}, testLogger())
	assert.Error(t, err, "missing secret must refuse to start")

	_, err = NewService(&Config{Secret: "x"}, testLogger())
	assert.Error(t, err, "missing password must refuse to start")
}

func TestLogin_RoundTrip(t *testing.T) {
	svc := newTestService(t)

	token, expires, err := svc.Login("hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Login("wrong")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestVerify_WrongSecret(t *testing.T) {
	svc := newTestService(t)
	other, err := NewService(&Config{
		Secret:   "a-completely-different-signing-secret",
		Password: "hunter2",
	}, testLogger())
	require.NoError(t, err)

	token, _, err := other.Login("hunter2")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_Expired(t *testing.T) {
	svc, err := NewService(&Config{
		Secret:   "test-secret-at-least-32-chars-long!!",
		Password: "hunter2",
		TTL:      -time.Minute,
	}, testLogger())
	require.NoError(t, err)

	token, _, err := svc.Login("hunter2")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredSession)
}

func TestVerify_Garbage(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)

	var gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		gotRole = claims.Role
		w.WriteHeader(http.StatusOK)
	})
	reject := func(w http.ResponseWriter, _ *http.Request, _ error) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	handler := svc.Middleware(reject)(next)

	// No cookie.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid session.
	token, _, err := svc.Login("hunter2")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", gotRole)

	// Tampered token.
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token + "x"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
