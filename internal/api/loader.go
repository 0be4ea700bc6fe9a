package api

import (
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/scriptguard/internal/loader"
)

var browserUA = regexp.MustCompile(`(?i)Mozilla|Chrome|Safari|Edge|Opera`)
var loaderUA = regexp.MustCompile(`(?i)Roblox`)

// blockBrowsers rejects requests from web browsers; the loader endpoint
// serves game clients only and must not be explorable from a browser.
func blockBrowsers() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ua := c.Request().UserAgent()
			if browserUA.MatchString(ua) && !loaderUA.MatchString(ua) {
				return c.HTML(http.StatusForbidden, "<h1>403 Forbidden</h1><p>Browsers are not allowed to access this endpoint.</p>")
			}
			return next(c)
		}
	}
}

const limiterIdleTTL = 10 * time.Minute

type ipLimiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ipLimiters holds one token bucket per client IP. Entries idle for
// longer than limiterIdleTTL are swept out so the map stays bounded by
// the set of recently active clients.
type ipLimiters struct {
	mu        sync.Mutex
	rps       float64
	burst     int
	entries   map[string]*ipLimiterEntry
	lastSweep time.Time
}

func newIPLimiters(rps float64, burst int) *ipLimiters {
	return &ipLimiters{rps: rps, burst: burst, entries: map[string]*ipLimiterEntry{}}
}

func (l *ipLimiters) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= limiterIdleTTL {
		for key, e := range l.entries {
			if now.Sub(e.lastSeen) >= limiterIdleTTL {
				delete(l.entries, key)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[ip]
	if !ok {
		e = &ipLimiterEntry{lim: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	return e.lim
}

// rateLimitByIP applies a token-bucket limiter per client IP.
func rateLimitByIP(rps float64, burst int) echo.MiddlewareFunc {
	limiters := newIPLimiters(rps, burst)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiters.get(c.RealIP(), time.Now()).Allow() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded")
			}
			return next(c)
		}
	}
}

type loaderAuthRequest struct {
	Key      string `json:"key" validate:"required"`
	Hwid     string `json:"hwid" validate:"required"`
	Executor string `json:"executor"`
}

// handleLoaderAuthenticate is the public authentication endpoint.
// Malformed bodies are rejected before the state machine runs; all
// negative authentication outcomes come back as 200 with valid=false.
func (s *Server) handleLoaderAuthenticate(c echo.Context) error {
	var req loaderAuthRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, loader.AuthResult{Valid: false, Message: "Bad Request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, loader.AuthResult{Valid: false, Message: "Bad Request"})
	}

	result, err := s.loader.Authenticate(c.Request().Context(), loader.AuthRequest{
		Key:      req.Key,
		Hwid:     req.Hwid,
		Executor: req.Executor,
		IP:       c.RealIP(),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Authentication failed")
	}

	return c.JSON(http.StatusOK, result)
}
