// Package testkit provides deterministic stand-ins for the integration routine.
package testkit

import (
	"sync"
	"sync/atomic"
	"time"

	"gomvdist/ports"
)

// Interval is one observed routine crossing.
type Interval struct {
	Enter time.Time
	Exit  time.Time
}

// Overlaps reports whether two crossings were in flight at the same time.
func (i Interval) Overlaps(o Interval) bool {
	return i.Enter.Before(o.Exit) && o.Enter.Before(i.Exit)
}

// DistCall captures the flat arguments of one MVDist call.
type DistCall struct {
	N           int32
	Cov         []float64
	Nu          int32
	M           int32
	Lower       []float64
	Constraints []float64
	Upper       []float64
	Infin       []int32
	Delta       []float64
	MaxPts      int32
	AbsEps      float64
	RelEps      float64
}

// CritCall captures the flat arguments of one MVCrit call.
type CritCall struct {
	N           int32
	Cov         []float64
	Nu          int32
	M           int32
	Lower       []float64
	Constraints []float64
	Upper       []float64
	Infin       []int32
	Alpha       float64
	MaxPts      int32
	AbsEps      float64
}

// RecordingRoutine is an instrumented ports.RoutinePort. It returns Result,
// holds each crossing open for Hold and records entry/exit times, arguments and
// the highest number of simultaneous crossings it observed.
type RecordingRoutine struct {
	Result ports.RawOutcome
	Hold   time.Duration
	// Panic, when non-nil, is raised inside the crossing.
	Panic interface{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu        sync.Mutex
	intervals []Interval
	dist      []DistCall
	crit      []CritCall
}

var _ ports.RoutinePort = (*RecordingRoutine)(nil)

// NewRecordingRoutine returns a stand-in that reports result for every call.
func NewRecordingRoutine(result ports.RawOutcome) *RecordingRoutine {
	return &RecordingRoutine{Result: result}
}

func (r *RecordingRoutine) MVDist(n int32, cov []float64, nu int32, m int32, lower, constraints, upper []float64,
	infin []int32, delta []float64, maxpts int32, abseps, releps float64) ports.RawOutcome {
	defer r.cross()()
	r.mu.Lock()
	r.dist = append(r.dist, DistCall{
		N: n, Cov: cov, Nu: nu, M: m, Lower: lower, Constraints: constraints, Upper: upper,
		Infin: infin, Delta: delta, MaxPts: maxpts, AbsEps: abseps, RelEps: releps,
	})
	r.mu.Unlock()
	return r.Result
}

func (r *RecordingRoutine) MVCrit(n int32, cov []float64, nu int32, m int32, lower, constraints, upper []float64,
	infin []int32, alpha float64, maxpts int32, abseps float64) ports.RawOutcome {
	defer r.cross()()
	r.mu.Lock()
	r.crit = append(r.crit, CritCall{
		N: n, Cov: cov, Nu: nu, M: m, Lower: lower, Constraints: constraints, Upper: upper,
		Infin: infin, Alpha: alpha, MaxPts: maxpts, AbsEps: abseps,
	})
	r.mu.Unlock()
	return r.Result
}

// cross marks entry and returns the matching exit func.
func (r *RecordingRoutine) cross() func() {
	enter := time.Now()
	now := r.inFlight.Add(1)
	for {
		seen := r.maxInFlight.Load()
		if now <= seen || r.maxInFlight.CompareAndSwap(seen, now) {
			break
		}
	}
	if r.Hold > 0 {
		time.Sleep(r.Hold)
	}
	if r.Panic != nil {
		r.record(enter)
		panic(r.Panic)
	}
	return func() {
		r.record(enter)
	}
}

func (r *RecordingRoutine) record(enter time.Time) {
	exit := time.Now()
	r.inFlight.Add(-1)
	r.mu.Lock()
	r.intervals = append(r.intervals, Interval{Enter: enter, Exit: exit})
	r.mu.Unlock()
}

// Calls is the total number of crossings.
func (r *RecordingRoutine) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dist) + len(r.crit)
}

// DistCalls returns the recorded MVDist arguments.
func (r *RecordingRoutine) DistCalls() []DistCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DistCall(nil), r.dist...)
}

// CritCalls returns the recorded MVCrit arguments.
func (r *RecordingRoutine) CritCalls() []CritCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CritCall(nil), r.crit...)
}

// Intervals returns the recorded crossings.
func (r *RecordingRoutine) Intervals() []Interval {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Interval(nil), r.intervals...)
}

// MaxInFlight is the most crossings observed at once.
func (r *RecordingRoutine) MaxInFlight() int {
	return int(r.maxInFlight.Load())
}

// OverlappingPairs counts pairs of recorded crossings that overlap in time.
func (r *RecordingRoutine) OverlappingPairs() int {
	intervals := r.Intervals()
	count := 0
	for i := range intervals {
		for j := i + 1; j < len(intervals); j++ {
			if intervals[i].Overlaps(intervals[j]) {
				count++
			}
		}
	}
	return count
}
