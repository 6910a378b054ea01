// Package gate serializes crossings into the non-reentrant integration routine.
//
// The gate is not reentrant: calling WithExclusiveAccess (directly or through
// the app service) from inside the guarded function deadlocks. This is part of
// the contract, not a bug. There is no fairness or ordering guarantee between
// waiting callers.
//
// A panic inside the guarded function releases the lock and is returned to that
// caller as a ROUTINE_ABORTED error. The lock stays usable afterwards: the state
// it protects lives inside the routine, not in the gate.
package gate

import (
	"sync"
	"sync/atomic"

	"gomvdist/internal/errors"
)

// Gate is a mutual-exclusion point around one external stateful resource.
type Gate struct {
	mu sync.Mutex

	acquisitions atomic.Int64
	contended    atomic.Int64
	aborted      atomic.Int64
}

// Stats is a point-in-time snapshot of gate counters.
type Stats struct {
	Acquisitions int64 `json:"acquisitions"`
	Contended    int64 `json:"contended"`
	Aborted      int64 `json:"aborted"`
}

var (
	defaultGate *Gate
	defaultOnce sync.Once
)

// Default returns the process-wide gate, creating it on first use.
func Default() *Gate {
	defaultOnce.Do(func() {
		defaultGate = New()
	})
	return defaultGate
}

// New creates an independent gate. Production code should share Default.
func New() *Gate {
	return &Gate{}
}

// WithExclusiveAccess runs fn while holding the gate. The lock is released on
// every exit path before any failure is reported.
func (g *Gate) WithExclusiveAccess(fn func()) (err error) {
	if !g.mu.TryLock() {
		g.contended.Add(1)
		g.mu.Lock()
	}
	g.acquisitions.Add(1)

	defer func() {
		r := recover()
		g.mu.Unlock()
		if r != nil {
			g.aborted.Add(1)
			err = errors.RoutineAborted(r)
		}
	}()

	fn()
	return nil
}

// Stats returns the current counters.
func (g *Gate) Stats() Stats {
	return Stats{
		Acquisitions: g.acquisitions.Load(),
		Contended:    g.contended.Load(),
		Aborted:      g.aborted.Load(),
	}
}
