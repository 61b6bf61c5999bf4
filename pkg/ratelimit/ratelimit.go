// Package ratelimit provides a token bucket shared by outbound API clients
// and message publishers.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter allows maxTokens calls per refill interval, refilling one token
// each interval up to the bucket size.
type Limiter struct {
	mu             sync.Mutex
	tokens         int
	maxTokens      int
	refillInterval time.Duration
	lastRefill     time.Time
	now            func() time.Time
}

func New(maxTokens int, refillInterval time.Duration) *Limiter {
	if maxTokens <= 0 {
		maxTokens = 1
	}
	return &Limiter{
		tokens:         maxTokens,
		maxTokens:      maxTokens,
		refillInterval: refillInterval,
		lastRefill:     time.Now(),
		now:            time.Now,
	}
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens > 0 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := l.refillInterval - l.now().Sub(l.lastRefill)
		l.mu.Unlock()
		if wait <= 0 {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Allow takes a token if one is available without blocking.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	if l.tokens > 0 {
		l.tokens--
		return true
	}
	return false
}

// Available returns the current token count.
func (l *Limiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

func (l *Limiter) refill() {
	if l.refillInterval <= 0 {
		l.tokens = l.maxTokens
		return
	}
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	newTokens := int(elapsed / l.refillInterval)
	if newTokens > 0 {
		l.tokens += newTokens
		if l.tokens > l.maxTokens {
			l.tokens = l.maxTokens
		}
		l.lastRefill = l.lastRefill.Add(time.Duration(newTokens) * l.refillInterval)
	}
}
