package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-store/internal/domain/auth"
	"github.com/xenking/kart-store/internal/events"
	"github.com/xenking/kart-store/internal/seed"
	"github.com/xenking/kart-store/pkg/httpmiddleware"
)

const testSecret = "test-secret-0123456789"

func testServer(t *testing.T, mutate func(cfg *Config)) *server {
	t.Helper()

	cfg := &Config{
		InMemory:  true,
		Auth:      AuthConfig{Secret: testSecret, Issuer: "kart-store", TTL: time.Hour},
		RateLimit: RateLimitConfig{RPS: 1000, Burst: 1000},
		CORS:      CORSConfig{Origins: []string{"https://shop.example.com"}},
	}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	lg := zap.NewNop()
	st, err := openStorage(t.Context(), lg, cfg)
	require.NoError(t, err)
	t.Cleanup(st.close)

	srv, err := newServer(lg, cfg, st, events.Nop{}, metricnoop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)
	return srv
}

func token(t *testing.T, id auth.Identity) string {
	t.Helper()
	tok, err := auth.NewTokenManager([]byte(testSecret), "kart-store", time.Hour).Issue(id)
	require.NoError(t, err)
	return tok
}

func serve(srv *server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, req)
	return w
}

func field(t *testing.T, body []byte, name string) string {
	t.Helper()
	var out string
	require.NoError(t, jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		if key == name {
			out = raw.String()
		}
		return nil
	}))
	return out
}

func TestProbes(t *testing.T) {
	srv := testServer(t, nil)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"ok"`, field(t, w.Body.Bytes(), "status"))

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	srv.health.SetReady(true)
	w = serve(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareStack(t *testing.T) {
	srv := testServer(t, nil)

	t.Run("RequestID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set(httpmiddleware.HeaderRequestID, "abc-123")
		w := serve(srv, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "abc-123", w.Header().Get(httpmiddleware.HeaderRequestID))

		w = serve(srv, httptest.NewRequest(http.MethodGet, "/api/products", nil))
		assert.NotEmpty(t, w.Header().Get(httpmiddleware.HeaderRequestID))
	})

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
		req.Header.Set("Origin", "https://shop.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := serve(srv, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("UnknownOrigin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := serve(srv, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRateLimit(t *testing.T) {
	srv := testServer(t, func(cfg *Config) {
		cfg.RateLimit = RateLimitConfig{RPS: 0.01, Burst: 2}
	})

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set("X-Forwarded-For", ip)
		return serve(srv, req).Code
	}
	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2"))

	// Probes are not rate limited.
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, http.StatusOK, serve(srv, req).Code)
}

func TestPlaceOrderWithDemoData(t *testing.T) {
	srv := testServer(t, nil)
	user := token(t, auth.Identity{UserID: seed.UserID, Role: auth.RoleUser})

	req := httptest.NewRequest(http.MethodPost, "/api/orders",
		strings.NewReader(`{"coupon_code":"SAVE20","payment_method":"UPI"}`))
	req.Header.Set("Authorization", "Bearer "+user)
	w := serve(srv, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := w.Body.Bytes()
	assert.Equal(t, "133.97", field(t, body, "subtotal"))
	assert.Equal(t, "3.00", field(t, body, "discount_amount"))
	assert.Equal(t, "130.97", field(t, body, "total_price"))
	assert.Equal(t, `"UPI"`, field(t, body, "payment_method"))
	assert.NotEqual(t, "null", field(t, body, "shipping_address"))

	req = httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+user)
	w = serve(srv, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", field(t, w.Body.Bytes(), "item_count"))

	admin := token(t, auth.Identity{UserID: seed.AdminID, Role: auth.RoleAdmin})
	req = httptest.NewRequest(http.MethodGet, "/api/orders/stats", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	w = serve(srv, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", field(t, w.Body.Bytes(), "total_orders"))
}
