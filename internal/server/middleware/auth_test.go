package middleware_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tritonJS826/ai-crm/internal/server/middleware"
)

const testSecret = "test-secret"

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func signToken(t *testing.T, sub, role string, exp time.Time, secret string) string {
	t.Helper()
	claims := middleware.AppClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func runHandshake(t *testing.T, target string) (*middleware.RequestMetadata, int) {
	t.Helper()

	var captured *middleware.RequestMetadata
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = middleware.ReqMetadataFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.Chain(final,
		middleware.RequestMetadataMiddleware(),
		middleware.NewAuthMiddleware(newTestLogger(), testSecret),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return captured, rec.Code
}

func TestAuthAcceptsValidToken(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	token := signToken(t, "user-1", "agent", exp, testSecret)

	meta, code := runHandshake(t, "/ws?token="+token)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, meta)
	assert.Equal(t, "user-1", meta.UserID)
	assert.Equal(t, "agent", meta.Role)
	assert.WithinDuration(t, exp, meta.TokenExpiry, time.Second)
}

func TestAuthAdmitsExpiredToken(t *testing.T) {
	// Expiry is enforced per-frame by the session guard, not at the
	// handshake, so the client learns the precise cause.
	token := signToken(t, "user-1", "", time.Now().Add(-time.Hour), testSecret)

	meta, code := runHandshake(t, "/ws?token="+token)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, meta)
	assert.True(t, meta.TokenExpiry.Before(time.Now()))
}

func TestAuthRejectsMissingToken(t *testing.T) {
	meta, code := runHandshake(t, "/ws")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Nil(t, meta)
}

func TestAuthRejectsBadSignature(t *testing.T) {
	token := signToken(t, "user-1", "", time.Now().Add(time.Hour), "other-secret")
	meta, code := runHandshake(t, "/ws?token="+token)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Nil(t, meta)
}

func TestAuthRejectsMissingSubject(t *testing.T) {
	token := signToken(t, "", "", time.Now().Add(time.Hour), testSecret)
	meta, code := runHandshake(t, "/ws?token="+token)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Nil(t, meta)
}

func TestAuthRejectsMissingExpiry(t *testing.T) {
	claims := middleware.AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	meta, code := runHandshake(t, "/ws?token="+token)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Nil(t, meta)
}

func TestAuthAcceptsBearerHeader(t *testing.T) {
	token := signToken(t, "user-1", "", time.Now().Add(time.Hour), testSecret)

	var captured *middleware.RequestMetadata
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = middleware.ReqMetadataFrom(r.Context())
	})
	handler := middleware.Chain(final,
		middleware.RequestMetadataMiddleware(),
		middleware.NewAuthMiddleware(newTestLogger(), testSecret),
	)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotNil(t, captured)
	assert.Equal(t, "user-1", captured.UserID)
}
