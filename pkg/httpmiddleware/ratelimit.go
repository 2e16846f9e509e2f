package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ThrottleConfig configures per-client request throttling.
type ThrottleConfig struct {
	// Max is the number of requests a client may make per Window.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// window counts requests of one client in the current and previous fixed
// windows. The sliding count weights the previous window by its overlap.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

// Throttler is a sliding-window request limiter keyed by client.
type Throttler struct {
	max    int
	period time.Duration
	key    func(*http.Request) string
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewThrottler returns a Throttler. A non-positive Max disables throttling.
func NewThrottler(cfg ThrottleConfig) *Throttler {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Throttler{
		max:     cfg.Max,
		period:  cfg.Window,
		key:     cfg.KeyFunc,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Take records a request for key. It reports whether the request fits the
// limit, how many requests remain and when the current window ends.
func (t *Throttler) Take(key string) (ok bool, remaining int, reset time.Time) {
	now := t.now()
	start := now.Truncate(t.period)

	t.mu.Lock()
	defer t.mu.Unlock()

	w, found := t.windows[key]
	switch {
	case !found:
		w = &window{start: start}
		t.windows[key] = w
	case start.Sub(w.start) == t.period:
		w.prev, w.curr, w.start = w.curr, 0, start
	case start.After(w.start):
		w.prev, w.curr, w.start = 0, 0, start
	}

	reset = start.Add(t.period)
	overlap := 1 - float64(now.Sub(start))/float64(t.period)
	used := w.prev*overlap + w.curr
	if used >= float64(t.max) {
		return false, 0, reset
	}
	w.curr++
	return true, max(0, t.max-int(math.Ceil(used+1))), reset
}

// Evict drops clients idle for more than two windows.
func (t *Throttler) Evict() {
	cutoff := t.now().Truncate(t.period).Add(-2 * t.period)

	t.mu.Lock()
	defer t.mu.Unlock()
	for key, w := range t.windows {
		if !w.start.After(cutoff) {
			delete(t.windows, key)
		}
	}
}

// Run evicts idle clients periodically until ctx is done.
func (t *Throttler) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * t.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Evict()
		}
	}
}

// Middleware rejects requests over the limit with 429. Every response
// carries X-RateLimit-* headers.
func (t *Throttler) Middleware() Middleware {
	limit := strconv.Itoa(t.max)
	return func(next http.Handler) http.Handler {
		if t.max <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := t.key(r)
			ok, remaining, reset := t.Take(key)

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !ok {
				retry := max(1, int(math.Ceil(reset.Sub(t.now()).Seconds())))
				h.Set("Retry-After", strconv.Itoa(retry))
				zctx.From(r.Context()).Debug("Request throttled", zap.String("client", key))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For address, then X-Real-IP, then
// the remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
