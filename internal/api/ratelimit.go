package api

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AgentRateLimiter enforces a per-agent requests-per-minute ceiling,
// grounded on the pack's per-tenant token-bucket pattern but trimmed to
// what a single-process memory sidecar needs: one limiter per agent ID,
// reclaimed after it has been idle past cleanupTTL.
type AgentRateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	rpm        int
	burst      int
	cleanupTTL time.Duration
}

func NewAgentRateLimiter(rpm, burst int, cleanupTTL time.Duration) *AgentRateLimiter {
	if cleanupTTL <= 0 {
		cleanupTTL = 10 * time.Minute
	}
	l := &AgentRateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		rpm:        rpm,
		burst:      burst,
		cleanupTTL: cleanupTTL,
	}
	go l.cleanupLoop()
	return l
}

func (l *AgentRateLimiter) limiterFor(agentID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[agentID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.rpm)/60.0), l.burst)
		l.limiters[agentID] = lim
	}
	l.lastAccess[agentID] = time.Now()
	return lim
}

func (l *AgentRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupTTL / 2)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for id, last := range l.lastAccess {
			if now.Sub(last) > l.cleanupTTL {
				delete(l.limiters, id)
				delete(l.lastAccess, id)
			}
		}
		l.mu.Unlock()
	}
}

// Middleware rejects requests past the per-agent rate with 429, keying on
// the agent ID from agentIDFrom (bearer claim or agent_id query parameter),
// or the request's remote address when neither is present.
func (l *AgentRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := agentIDFrom(r)
		if key == "" {
			key = r.RemoteAddr
		}
		if !l.limiterFor(key).Allow() {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
