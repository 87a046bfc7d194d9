package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter counts requests per client in fixed minute and hour windows.
// A zero limit disables that window.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int

	clients map[string]*clientUsage
	now     func() time.Time
}

type clientUsage struct {
	minuteStart time.Time
	minuteCount int
	hourStart   time.Time
	hourCount   int
}

// NewRateLimiter creates a limiter with the given per-client limits.
func NewRateLimiter(requestsPerMinute, requestsPerHour int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// Allow records a request from clientID, or returns a *RateLimitError when a
// window is exhausted. Rejected requests are not counted.
func (rl *RateLimiter) Allow(clientID string) *RateLimitError {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[clientID]
	if !ok {
		u = &clientUsage{minuteStart: now, hourStart: now}
		rl.clients[clientID] = u
	}
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart, u.minuteCount = now, 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart, u.hourCount = now, 0
	}

	if rl.requestsPerMinute > 0 && u.minuteCount >= rl.requestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute, RetryAfter: u.minuteStart.Add(time.Minute).Sub(now)}
	}
	if rl.requestsPerHour > 0 && u.hourCount >= rl.requestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour, RetryAfter: u.hourStart.Add(time.Hour).Sub(now)}
	}

	u.minuteCount++
	u.hourCount++
	return nil
}

// Usage returns the request counts of the current windows for clientID.
func (rl *RateLimiter) Usage(clientID string) (minute, hour int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if u, ok := rl.clients[clientID]; ok {
		return u.minuteCount, u.hourCount
	}
	return 0, 0
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}
