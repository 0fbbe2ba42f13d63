package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-pos/internal/config"
	"github.com/iliyamo/restaurant-pos/internal/utils"
)

const secret = "test-secret"

func protected(roles ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("/v1", JWTAuth(secret), RequireRole(roles...))
	g.GET("/whoami", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"id": c.Get(CtxUserID), "role": c.Get(CtxRole), "actor": actor(c)})
	})
	return e
}

func bearer(t *testing.T, id uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, role, 5)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + tok.Token
}

func TestJWTAndRole(t *testing.T) {
	e := protected("ADMIN", "STAFF")
	cases := []struct {
		name   string
		auth   string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"unknown role", bearer(t, 3, "GUEST"), http.StatusForbidden},
		{"staff", bearer(t, 3, "STAFF"), http.StatusOK},
		{"admin", bearer(t, 4, "ADMIN"), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
			if tc.auth != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.auth)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, 7, "STAFF"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["id"] != float64(7) || body["role"] != "STAFF" || body["actor"] != "7" {
		t.Fatalf("body = %v", body)
	}
}

func TestRequestLoggerAssignsAndKeepsRequestID(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(zerolog.New(&buf)))
	e.GET("/ping", func(c echo.Context) error {
		Logger(c, zerolog.Nop()).Info().Msg("inside")
		return c.String(http.StatusOK, "pong")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatal("no request id assigned")
	}

	buf.Reset()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get(echo.HeaderXRequestID); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %d: %s", len(lines), buf.String())
	}
	for _, l := range lines {
		if !strings.Contains(l, `"request_id":"abc-123"`) {
			t.Errorf("line without request id: %s", l)
		}
	}
	if !strings.Contains(lines[1], `"status":200`) || !strings.Contains(lines[1], `"path":"/ping"`) {
		t.Errorf("access line = %s", lines[1])
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(200, hdr, []byte(`{"ok":true}`))
	if err != nil {
		t.Fatal(err)
	}
	status, got, body, ok := decodePayload(bs)
	if !ok || status != 200 || got.Get("Content-Type") != "application/json" || string(body) != `{"ok":true}` {
		t.Fatalf("decode = %d %v %q %v", status, got, body, ok)
	}
	if _, _, _, ok := decodePayload(bs[:5]); ok {
		t.Fatal("truncated payload decoded")
	}
}

func TestCacheKeyIncludesPathParams(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "pos:cache", KeyStrategy: "route_query"}
	e := echo.New()
	key := func(id string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/tables/"+id, nil), httptest.NewRecorder())
		c.SetPath("/v1/tables/:id")
		c.SetParamNames("id")
		c.SetParamValues(id)
		return cacheKey(cfg, c)
	}
	a, b := key("1"), key("2")
	if a == b {
		t.Fatal("different tables share a cache key")
	}
	if !strings.HasPrefix(a, "pos:cache:") || a != key("1") {
		t.Fatalf("key not stable or not prefixed: %s", a)
	}
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/orders")
	c.Set(CtxUserID, uint64(5))

	cases := map[string]string{
		"ip":            "rl:ip:10.0.0.9",
		"user":          "rl:user:5",
		"ip_user_route": "rl:ip:10.0.0.9:user:5:route:POST /v1/orders",
	}
	for strategy, want := range cases {
		if got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c); got != want {
			t.Errorf("%s: got %q, want %q", strategy, got, want)
		}
	}
}

func TestDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.Use(NewRedisCache(config.CacheConfig{Enabled: true}, nil))
	e.Use(NewCacheInvalidator(config.CacheConfig{Enabled: true}, nil, zerolog.Nop()))
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil))
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "x") })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
		t.Fatalf("middleware not inert: %d %v", rec.Code, rec.Header())
	}
}
