package token

import (
	"context"
	"sync"
	"time"

	"gym-access-control/backend/internal/clock"
)

// ReplayStore remembers decisions keyed by a token's integrity proof for the
// token's validity window, so a repeat presentation (terminal retry, double
// scan) resolves to the first decision instead of a second independent grant.
type ReplayStore interface {
	// Put stores v for proof until expiresAt.
	Put(ctx context.Context, proof string, v any, expiresAt time.Time)
	// Get returns the value for proof if present and not expired.
	Get(ctx context.Context, proof string) (v any, ok bool)
}

type replayEntry struct {
	v         any
	expiresAt time.Time
}

// sweepEvery is the number of inserts between full expiry sweeps. Tokens
// scanned once and never re-presented would otherwise pin their entries until
// process restart.
const sweepEvery = 64

// MemoryReplayStore is an in-memory ReplayStore. Safe for concurrent use by
// many terminals; expired entries are dropped on read and swept in bulk every
// sweepEvery inserts.
type MemoryReplayStore struct {
	mu   sync.RWMutex
	m    map[string]replayEntry
	clk  clock.Clock
	puts int
}

// NewMemoryReplayStore returns a new in-memory replay store. A nil clk falls
// back to the system clock.
func NewMemoryReplayStore(clk clock.Clock) *MemoryReplayStore {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemoryReplayStore{
		m:   make(map[string]replayEntry),
		clk: clk,
	}
}

// Put stores v for proof until expiresAt.
func (s *MemoryReplayStore) Put(ctx context.Context, proof string, v any, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[proof] = replayEntry{v: v, expiresAt: expiresAt}
	s.puts++
	if s.puts >= sweepEvery {
		s.puts = 0
		now := s.clk.Now()
		for k, e := range s.m {
			if !e.expiresAt.After(now) {
				delete(s.m, k)
			}
		}
	}
}

// Get returns the value for proof if present and not expired.
func (s *MemoryReplayStore) Get(ctx context.Context, proof string) (any, bool) {
	s.mu.RLock()
	e, ok := s.m[proof]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expiresAt.After(s.clk.Now()) {
		s.mu.Lock()
		delete(s.m, proof)
		s.mu.Unlock()
		return nil, false
	}
	return e.v, true
}
