// internal/middleware/ratelimit.go
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientLimiter tracks the limiter state for a single client IP.
type ClientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	clients = make(map[string]*ClientLimiter)
	mu      sync.Mutex
)

func init() {
	go cleanupClients()
}

func cleanupClients() {
	for {
		time.Sleep(10 * time.Minute)

		mu.Lock()
		for ip, client := range clients {
			if time.Since(client.lastSeen) > 15*time.Minute {
				delete(clients, ip)
				slog.Debug("Removed limiter for inactive IP", "ip", ip)
			}
		}
		mu.Unlock()
	}
}

// RateLimitMiddleware limits requests per client IP. rps is the sustained
// allowance, burst the momentary one.
func RateLimitMiddleware(next http.Handler, rps float64, burst int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Behind a proxy the real client IP lives in X-Forwarded-For or
		// X-Real-IP; fall back to RemoteAddr without its port.
		var clientIP string
		xff := r.Header.Get("X-Forwarded-For")
		if xff != "" {
			clientIP = strings.Split(xff, ",")[0]
		} else {
			clientIP = r.Header.Get("X-Real-IP")
		}

		if clientIP == "" {
			clientIP = strings.Split(r.RemoteAddr, ":")[0]
		}

		mu.Lock()
		clientData, found := clients[clientIP]
		if !found {
			clientData = &ClientLimiter{
				limiter: rate.NewLimiter(rate.Limit(rps), burst),
			}
			clients[clientIP] = clientData
			slog.Debug("Created new limiter", "ip", clientIP, "rps", rps, "burst", burst)
		}
		clientData.lastSeen = time.Now()
		limiterInstance := clientData.limiter
		mu.Unlock()

		if !limiterInstance.Allow() {
			slog.Warn("Rate limit exceeded", "ip", clientIP, "path", r.URL.Path)
			http.Error(w, `{"error":"too many requests, please try again later"}`, http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
