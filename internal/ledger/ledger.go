// Package ledger tracks which items have already been published and when each
// pool last published, so cycles can skip duplicates and respect cadence.
//
// The ledger is in-memory only. A restart forgets everything.
package ledger

import (
	"sync"
	"time"

	"crypto-herald/internal/domain"

	"github.com/rs/zerolog/log"
)

// PoolConfig bounds a pool. When more than High ids are held the oldest are
// dropped until Low remain. MinDelay is the minimum gap between two
// publishes from the pool; zero disables the gate.
type PoolConfig struct {
	High     int
	Low      int
	MinDelay time.Duration
}

var (
	DigestPoolConfig = PoolConfig{High: 150, Low: 100, MinDelay: 60 * time.Minute}
	AlertPoolConfig  = PoolConfig{High: 100, Low: 50}
)

type PoolStats struct {
	Size        int       `json:"size"`
	Evictions   int       `json:"evictions"`
	LastPublish time.Time `json:"last_publish,omitempty"`
}

type pool struct {
	cfg         PoolConfig
	seen        map[string]struct{}
	order       []string
	lastPublish time.Time
	evictions   int
}

type Ledger struct {
	mu    sync.Mutex
	pools map[domain.Pool]*pool
	now   func() time.Time

	// OnEvict, when set, is called with the number of ids dropped.
	OnEvict func(p domain.Pool, dropped int)
}

// New builds a ledger with the given pools. Pools not listed are created on
// first use with DigestPoolConfig bounds and no delay.
func New(cfgs map[domain.Pool]PoolConfig) *Ledger {
	l := &Ledger{pools: make(map[domain.Pool]*pool), now: time.Now}
	for name, cfg := range cfgs {
		l.pools[name] = newPool(cfg)
	}
	return l
}

// NewDefault returns the digest and alert pools with the given digest delay.
func NewDefault(digestDelay time.Duration) *Ledger {
	digest := DigestPoolConfig
	digest.MinDelay = digestDelay
	return New(map[domain.Pool]PoolConfig{
		domain.PoolDigest: digest,
		domain.PoolAlert:  AlertPoolConfig,
	})
}

// SetClock replaces the time source.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func newPool(cfg PoolConfig) *pool {
	if cfg.Low <= 0 || cfg.Low > cfg.High {
		cfg.Low = cfg.High
	}
	return &pool{cfg: cfg, seen: make(map[string]struct{})}
}

func (l *Ledger) get(name domain.Pool) *pool {
	p, ok := l.pools[name]
	if !ok {
		cfg := DigestPoolConfig
		cfg.MinDelay = 0
		p = newPool(cfg)
		l.pools[name] = p
	}
	return p
}

func (l *Ledger) HasBeenSent(name domain.Pool, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pools[name]
	if !ok {
		return false
	}
	_, found := p.seen[id]
	return found
}

// MarkSent records id in the pool. Marking an id twice is a no-op and does
// not refresh its position.
func (l *Ledger) MarkSent(name domain.Pool, id string) {
	l.mu.Lock()
	p := l.get(name)
	if _, found := p.seen[id]; found {
		l.mu.Unlock()
		return
	}
	p.seen[id] = struct{}{}
	p.order = append(p.order, id)

	dropped := 0
	if p.cfg.High > 0 && len(p.order) > p.cfg.High {
		dropped = len(p.order) - p.cfg.Low
		for _, old := range p.order[:dropped] {
			delete(p.seen, old)
		}
		kept := make([]string, p.cfg.Low)
		copy(kept, p.order[dropped:])
		p.order = kept
		p.evictions += dropped
	}
	hook := l.OnEvict
	l.mu.Unlock()

	if dropped > 0 {
		log.Debug().Str("pool", string(name)).Int("dropped", dropped).Msg("ledger pool trimmed")
		if hook != nil {
			hook(name, dropped)
		}
	}
}

// ReadyForNext reports whether the pool's minimum delay has elapsed since its
// last recorded publish. A pool that never published is always ready.
func (l *Ledger) ReadyForNext(name domain.Pool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pools[name]
	if !ok || p.cfg.MinDelay <= 0 || p.lastPublish.IsZero() {
		return true
	}
	return l.now().Sub(p.lastPublish) >= p.cfg.MinDelay
}

// RecordPublish stamps the pool with the current time after a successful
// publish.
func (l *Ledger) RecordPublish(name domain.Pool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.get(name).lastPublish = l.now()
}

// NextReady returns when the pool will next be ready, or the zero time when
// it is ready now.
func (l *Ledger) NextReady(name domain.Pool) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pools[name]
	if !ok || p.cfg.MinDelay <= 0 || p.lastPublish.IsZero() {
		return time.Time{}
	}
	next := p.lastPublish.Add(p.cfg.MinDelay)
	if !l.now().Before(next) {
		return time.Time{}
	}
	return next
}

func (l *Ledger) Size(name domain.Pool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.pools[name]; ok {
		return len(p.order)
	}
	return 0
}

func (l *Ledger) Stats() map[domain.Pool]PoolStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[domain.Pool]PoolStats, len(l.pools))
	for name, p := range l.pools {
		out[name] = PoolStats{Size: len(p.order), Evictions: p.evictions, LastPublish: p.lastPublish}
	}
	return out
}

// Reset forgets all ids and publish times.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, p := range l.pools {
		l.pools[name] = newPool(p.cfg)
	}
}
