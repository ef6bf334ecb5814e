package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/bankauth"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Throttle is a coarse per-client token bucket in front of the API. It does
// not replace the Redis-backed login limiter, which is shared across
// replicas.
type Throttle struct {
	limit   rate.Limit
	burst   int
	buckets *gocache.Cache
	onError ErrorHandler
}

// NewThrottle allows perSecond requests per client IP with the given burst.
// Idle buckets are dropped after idle.
func NewThrottle(perSecond float64, burst int, idle time.Duration, onError ErrorHandler) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	if onError == nil {
		onError = DefaultErrorHandler
	}
	return &Throttle{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: gocache.New(idle, idle),
		onError: onError,
	}
}

// Handler applies the throttle to next.
func (t *Throttle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := t.bucket(clientIP(r))
		if !lim.Allow() {
			res := lim.Reserve()
			delay := res.Delay()
			res.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			t.onError(w, r, &bankauth.RateLimitedError{Action: "request", RetryAfter: delay})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Throttle) bucket(key string) *rate.Limiter {
	if v, ok := t.buckets.Get(key); ok {
		t.buckets.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(t.limit, t.burst)
	if err := t.buckets.Add(key, lim, gocache.DefaultExpiration); err != nil {
		// Lost the race; use the winner's bucket.
		if v, ok := t.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// Len reports the number of live client buckets.
func (t *Throttle) Len() int {
	return t.buckets.ItemCount()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
