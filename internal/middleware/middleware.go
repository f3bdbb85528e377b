package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Logging logs one line per request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// CORS allows the configured origin and answers preflights.
func CORS(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, userId")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitIdleEvict is how long a client IP may sit idle before its
// limiter entry is swept, keeping the per-IP map bounded.
const rateLimitIdleEvict = 3 * time.Minute

// RateLimit allows rps requests per second per client IP with the given
// burst, answering 429 beyond it. Idle client entries are evicted.
func RateLimit(rps rate.Limit, burst int) func(http.Handler) http.Handler {
	return rateLimitWithClock(rps, burst, time.Now)
}

func rateLimitWithClock(rps rate.Limit, burst int, now func() time.Time) func(http.Handler) http.Handler {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}
	var mu sync.Mutex
	clients := make(map[string]*client)
	nextSweep := now().Add(rateLimitIdleEvict)

	allow := func(ip string) bool {
		mu.Lock()
		defer mu.Unlock()
		ts := now()
		if ts.After(nextSweep) {
			for addr, c := range clients {
				if ts.Sub(c.lastSeen) > rateLimitIdleEvict {
					delete(clients, addr)
				}
			}
			nextSweep = ts.Add(rateLimitIdleEvict)
		}
		c, ok := clients[ip]
		if !ok {
			c = &client{limiter: rate.NewLimiter(rps, burst)}
			clients[ip] = c
		}
		c.lastSeen = ts
		return c.limiter.AllowN(ts, 1)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			if !allow(ip) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
