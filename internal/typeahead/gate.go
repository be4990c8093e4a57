// Package typeahead bounds queries driven by fast-changing input. Each
// caller key gets a slot: a new call debounces, supersedes whatever the
// same key had in flight, and waits for the key's rate limiter. Results of
// a superseded call are discarded so the last request always wins.
package typeahead

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrSuperseded is returned to a call replaced by a newer call on the same key.
	ErrSuperseded = errors.New("typeahead: superseded by a newer request")
	// ErrRateLimited is returned when the key's limiter cannot admit the call
	// before its context ends.
	ErrRateLimited = errors.New("typeahead: rate limited")
)

const pruneThreshold = 4096

type Config struct {
	Debounce time.Duration
	RPS      float64
	Burst    int
	IdleTTL  time.Duration
}

type slot struct {
	seq      uint64
	cancel   context.CancelFunc
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Gate tracks one slot per key.
type Gate struct {
	cfg   Config
	mu    sync.Mutex
	slots map[string]*slot
	now   func() time.Time
}

func NewGate(cfg Config) *Gate {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &Gate{cfg: cfg, slots: make(map[string]*slot), now: time.Now}
}

// begin registers a new call on key, cancelling the previous one.
func (g *Gate) begin(ctx context.Context, key string) (context.Context, uint64, *rate.Limiter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[key]
	if !ok {
		if len(g.slots) >= pruneThreshold {
			g.pruneLocked()
		}
		limit := rate.Inf
		if g.cfg.RPS > 0 {
			limit = rate.Limit(g.cfg.RPS)
		}
		s = &slot{limiter: rate.NewLimiter(limit, g.cfg.Burst)}
		g.slots[key] = s
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	s.lastSeen = g.now()

	callCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return callCtx, s.seq, s.limiter
}

// current reports whether seq is still the newest call on key.
func (g *Gate) current(key string, seq uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[key]
	return ok && s.seq == seq
}

func (g *Gate) finish(key string, seq uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.slots[key]; ok && s.seq == seq && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (g *Gate) pruneLocked() {
	cutoff := g.now().Add(-g.cfg.IdleTTL)
	for k, s := range g.slots {
		if s.cancel == nil && s.lastSeen.Before(cutoff) {
			delete(g.slots, k)
		}
	}
}

// Len returns the number of tracked keys.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}

// Do runs fn for key once the debounce delay passed and the limiter admits
// it. fn receives a context that is cancelled when a newer call on the same
// key arrives. A nil gate runs fn directly.
func Do[T any](ctx context.Context, g *Gate, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if g == nil {
		return fn(ctx)
	}

	callCtx, seq, limiter := g.begin(ctx, key)
	defer g.finish(key, seq)

	if g.cfg.Debounce > 0 {
		timer := time.NewTimer(g.cfg.Debounce)
		select {
		case <-callCtx.Done():
			timer.Stop()
			return zero, g.interrupted(ctx, key, seq)
		case <-timer.C:
		}
	}

	if err := limiter.Wait(callCtx); err != nil {
		if !g.current(key, seq) {
			return zero, ErrSuperseded
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, ErrRateLimited
	}

	result, err := fn(callCtx)
	if !g.current(key, seq) {
		return zero, ErrSuperseded
	}
	if err != nil {
		return zero, err
	}
	return result, nil
}

func (g *Gate) interrupted(parent context.Context, key string, seq uint64) error {
	if !g.current(key, seq) {
		return ErrSuperseded
	}
	return parent.Err()
}
