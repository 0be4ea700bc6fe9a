package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scriptguard/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Auth.JWTSecret = "test-secret"
	// No DB behind these tests; they only exercise paths that reject
	// before any storage call.
	return NewServer(cfg, nil)
}

func TestLoaderEndpointBlocksBrowsers(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/loader/authenticate",
		strings.NewReader(`{"key":"K","hwid":"H"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0")
	rec := httptest.NewRecorder()

	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Browsers are not allowed")
}

func TestLoaderEndpointAllowsGameClients(t *testing.T) {
	server := newTestServer(t)

	// Roblox user agents contain browser tokens but must pass the
	// browser filter; the empty body then fails validation, which is
	// enough to show the filter let it through.
	req := httptest.NewRequest(http.MethodPost, "/api/loader/authenticate",
		strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Roblox/WinInet")
	rec := httptest.NewRecorder()

	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":false`)
}

func TestLoaderEndpointRejectsMalformedBody(t *testing.T) {
	server := newTestServer(t)

	cases := []string{
		`{}`,
		`{"key":"K"}`,
		`{"hwid":"H"}`,
		`not json`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/loader/authenticate", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Roblox/WinInet")
		rec := httptest.NewRecorder()

		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestIPLimitersEvictIdleEntries(t *testing.T) {
	limiters := newIPLimiters(5, 10)
	base := time.Now()

	limiters.get("1.1.1.1", base)
	limiters.get("2.2.2.2", base)
	assert.Len(t, limiters.entries, 2)

	// Activity keeps an entry alive across the sweep.
	limiters.get("2.2.2.2", base.Add(limiterIdleTTL-time.Minute))

	limiters.get("3.3.3.3", base.Add(limiterIdleTTL+time.Minute))
	assert.NotContains(t, limiters.entries, "1.1.1.1", "idle entry should be swept")
	assert.Contains(t, limiters.entries, "2.2.2.2")
	assert.Contains(t, limiters.entries, "3.3.3.3")
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/licenses", nil)
	rec := httptest.NewRecorder()

	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
