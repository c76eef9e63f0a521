package mesh

import (
	"sync"
	"time"
)

// Default publish limits.
const (
	DefaultRateLimit  = 30
	DefaultRateWindow = time.Minute
)

type senderWindow struct {
	count   int
	resetAt time.Time
}

// RateLimiter throttles publishes per sender over a fixed window. State
// lives only in the memory of the writer gate; the publish path is a single
// logical writer process.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	senders map[string]*senderWindow

	now func() time.Time // overridable in tests
}

// NewRateLimiter creates a limiter allowing limit publishes per window per
// sender.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		senders: make(map[string]*senderWindow),
		now:     time.Now,
	}
}

// Allow records one publish attempt by sender and returns ErrRateLimited
// once the sender exceeds the limit inside the current window. Rejected
// publishes are not retried by this layer.
func (r *RateLimiter) Allow(sender string) error {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.senders[sender]
	if w == nil || now.After(w.resetAt) {
		w = &senderWindow{resetAt: now.Add(r.window)}
		r.senders[sender] = w
	}

	w.count++
	if w.count > r.limit {
		return ErrRateLimited
	}
	return nil
}
