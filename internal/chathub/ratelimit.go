package chathub

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// sendBudgetSweepEvery bounds how often refilled budgets are dropped.
const sendBudgetSweepEvery = time.Minute

// SendLimiter is the per-identity budget for the rate-limited operations. A user
// keeps the same budget across reconnects.
type SendLimiter struct {
	clock clock.Clock
	limit rate.Limit
	burst int

	mu        sync.Mutex
	budgets   map[string]*rate.Limiter
	lastSweep time.Time
}

// NewSendLimiter returns nil, which allows everything, when rps or burst is not positive.
func NewSendLimiter(rps float64, burst int, clk clock.Clock) *SendLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if clk == nil {
		clk = clock.New()
	}
	return &SendLimiter{
		clock:     clk,
		limit:     rate.Limit(rps),
		burst:     burst,
		budgets:   make(map[string]*rate.Limiter),
		lastSweep: clk.Now(),
	}
}

// Allow spends one unit of userID's budget, reporting false when it is exhausted.
func (l *SendLimiter) Allow(userID string) bool {
	if l == nil || userID == "" {
		return true
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.budgets[userID]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.budgets[userID] = b
	}
	allowed := b.AllowN(now, 1)

	if now.Sub(l.lastSweep) >= sendBudgetSweepEvery {
		l.sweepLocked(now)
	}
	return allowed
}

// sweepLocked drops budgets that have refilled completely. A full budget is
// indistinguishable from a fresh one, so dropping it changes no decision.
func (l *SendLimiter) sweepLocked(now time.Time) {
	for id, b := range l.budgets {
		if b.TokensAt(now) >= float64(l.burst) {
			delete(l.budgets, id)
		}
	}
	l.lastSweep = now
}

// Len reports how many identities currently hold a partly spent budget.
func (l *SendLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.budgets)
}
