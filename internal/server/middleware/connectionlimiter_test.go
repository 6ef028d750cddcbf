package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tritonJS826/ai-crm/internal/server/middleware"
	"github.com/tritonJS826/ai-crm/pkg/config"
)

func withUserID(userID string) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if meta, ok := middleware.ReqMetadataFrom(r.Context()); ok {
				meta.UserID = userID
			}
			next.ServeHTTP(w, r)
		})
	}
}

func runLimited(t *testing.T, cfg config.ConnectionLimitConfig, count int, cycled *[]string) int {
	t.Helper()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.Chain(next,
		middleware.RequestMetadataMiddleware(),
		withUserID("user-1"),
		middleware.NewConnectionLimiter(
			newTestLogger(),
			func(userID string) int { return count },
			func(userID string) { *cycled = append(*cycled, userID) },
			cfg,
		),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	return rec.Code
}

func TestLimiterDisabledWhenZero(t *testing.T) {
	var cycled []string
	code := runLimited(t, config.ConnectionLimitConfig{MaxPerUser: 0}, 99, &cycled)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, cycled)
}

func TestLimiterAllowsUnderLimit(t *testing.T) {
	var cycled []string
	code := runLimited(t, config.ConnectionLimitConfig{MaxPerUser: 2, Mode: "reject"}, 1, &cycled)
	assert.Equal(t, http.StatusOK, code)
}

func TestLimiterRejectMode(t *testing.T) {
	var cycled []string
	code := runLimited(t, config.ConnectionLimitConfig{MaxPerUser: 1, Mode: "reject"}, 1, &cycled)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Empty(t, cycled)
}

func TestLimiterCycleMode(t *testing.T) {
	var cycled []string
	code := runLimited(t, config.ConnectionLimitConfig{MaxPerUser: 1, Mode: "cycle"}, 1, &cycled)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"user-1"}, cycled)
}
