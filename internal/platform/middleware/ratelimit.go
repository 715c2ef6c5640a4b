package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig throttles one client to Rate requests per second with bursts
// of up to Burst. Clients silent for IdleTTL are forgotten.
type RateLimitConfig struct {
	Rate    rate.Limit
	Burst   int
	IdleTTL time.Duration
}

// LoginRateLimitConfig allows five quick attempts, then one every two seconds.
func LoginRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Rate: 0.5, Burst: 5, IdleTTL: 10 * time.Minute}
}

type client struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// clientLimiters hands out one limiter per client key and sweeps idle ones at
// most once per IdleTTL.
type clientLimiters struct {
	mu        sync.Mutex
	cfg       RateLimitConfig
	clients   map[string]*client
	lastSweep time.Time
	now       func() time.Time
}

func newClientLimiters(cfg RateLimitConfig) *clientLimiters {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &clientLimiters{cfg: cfg, clients: make(map[string]*client), now: time.Now}
}

// reserve takes a token for key. It returns zero when the request may pass,
// otherwise how long the client must wait; a refused request consumes nothing.
func (l *clientLimiters) reserve(key string) time.Duration {
	now := l.now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.cfg.IdleTTL {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) >= l.cfg.IdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}
	c, ok := l.clients[key]
	if !ok {
		c = &client{lim: rate.NewLimiter(l.cfg.Rate, l.cfg.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.mu.Unlock()

	r := c.lim.ReserveN(now, 1)
	if !r.OK() {
		return time.Second
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
	}
	return delay
}

func (l *clientLimiters) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// RateLimit throttles requests per client IP. It guards the login endpoint
// against password guessing.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	limiters := newClientLimiters(cfg)
	limit := strconv.FormatFloat(float64(cfg.Rate), 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			if wait := limiters.reserve(c.RealIP()); wait > 0 {
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, slow down")
			}
			return next(c)
		}
	}
}
