package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestResolveRateTier(t *testing.T) {
	tests := []struct {
		path string
		tier string
	}{
		{"/webhook/stripe", "strict"},
		{"/api/admin/login", "strict"},
		{"/api/checkout/session", "strict"},
		{"/api/admin/orders/ship", "general"},
		{"/healthz", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			limit, burst, tier := resolveRateTier(req)

			assert.Equal(t, tt.tier, tier)
			if tt.tier == "strict" {
				assert.Equal(t, limitStrict, limit)
				assert.Equal(t, burstStrict, burst)
			} else {
				assert.Equal(t, limitGeneral, limit)
				assert.Equal(t, burstGeneral, burst)
			}
		})
	}
}

func TestRateLimitMiddleware_StrictBurstExhausted(t *testing.T) {
	handler := RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// A unique address keeps this test isolated from the shared visitor map.
	addr := "203.0.113.77:1234"
	var lastCode int
	for i := 0; i < burstStrict+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, lastCode)
}

func TestRateLimitMiddleware_TiersAreSeparateBuckets(t *testing.T) {
	handler := RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	addr := "203.0.113.78:1234"

	// Drain the strict bucket.
	for i := 0; i < burstStrict+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/login", nil)
		req.RemoteAddr = addr
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	// General requests from the same address still go through.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetVisitor_ReusesLimiter(t *testing.T) {
	key := fmt.Sprintf("ip:%s:general", "198.51.100.9")

	first := getVisitor(key, rate.Limit(10), 20)
	second := getVisitor(key, rate.Limit(10), 20)

	assert.Same(t, first, second)
}
