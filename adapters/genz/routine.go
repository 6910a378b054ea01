// Package genz is a pure-Go multivariate normal and Student-t rectangle
// probability routine in the style of Genz's MVDIST/MVCRIT.
//
// A Routine keeps a randomisation generator and scratch buffers between calls.
// It is not safe for concurrent use; route calls through the invocation gate.
package genz

import (
	"math"
	"math/rand/v2"

	"gomvdist/ports"
)

// MaxDimension bounds both the variable count n and the constraint count m.
const MaxDimension = 100

// Routine status codes.
const (
	informNormal  int32 = 0
	informLimit   int32 = 1
	informInvalid int32 = 2
	informNotPSD  int32 = 3
)

// Bound codes of the calling contract.
const (
	codeUnbounded int32 = -1
	codeUpperOnly int32 = 0
	codeLowerOnly int32 = 1
	codeBothSided int32 = 2
)

// Routine implements ports.RoutinePort.
type Routine struct {
	rng        *rand.Rand
	generators []float64

	w     []float64
	y     []float64
	shift []float64
	means []float64
}

var _ ports.RoutinePort = (*Routine)(nil)

// New returns a routine with a fixed randomisation seed, so a fresh process
// reproduces the same sequence of estimates.
func New() *Routine {
	return NewSeeded(0x6d76646973742d31, 0x67656e7a)
}

// NewSeeded returns a routine whose lattice shifts come from a PCG seeded with (seed1, seed2).
func NewSeeded(seed1, seed2 uint64) *Routine {
	return &Routine{
		rng:        rand.New(rand.NewPCG(seed1, seed2)),
		generators: richtmyerGenerators(MaxDimension + 1),
		means:      make([]float64, shifts),
	}
}

// MVDist estimates P(a ≤ (C·Z + δ)/r ≤ b) with Z ~ N(0, Σ) and r = sqrt(χ²_ν/ν),
// or r = 1 when nu ≤ 0.
func (r *Routine) MVDist(n int32, cov []float64, nu int32, m int32, lower, constraints, upper []float64,
	infin []int32, delta []float64, maxpts int32, abseps, releps float64) ports.RawOutcome {

	if !validShape(n, m, cov, lower, constraints, upper, infin) || len(delta) != int(m) {
		return ports.RawOutcome{Inform: informInvalid}
	}
	sigma, ok := covariance(int(n), cov)
	if !ok {
		return ports.RawOutcome{Inform: informNotPSD}
	}

	d := constraintCovariance(sigma, int(n), int(m), constraints)
	p := factor(d, limits(lower, upper, infin), delta, int(nu))
	value, errEst, evals, limited := r.integrate(p, int(maxpts), abseps, releps)

	inform := informNormal
	if limited {
		inform = informLimit
	}
	return ports.RawOutcome{
		Error:       errEst,
		Value:       math.Min(math.Max(value, 0), 1),
		Evaluations: int32(evals),
		Inform:      inform,
	}
}

// reserve grows the scratch buffers to fit dims lattice coordinates and k variables.
func (r *Routine) reserve(dims, k int) {
	if cap(r.w) < dims {
		r.w = make([]float64, dims)
		r.shift = make([]float64, dims)
	}
	r.w = r.w[:dims]
	r.shift = r.shift[:dims]
	if cap(r.y) < k {
		r.y = make([]float64, k)
	}
	r.y = r.y[:k]
}

func validShape(n, m int32, cov, lower, constraints, upper []float64, infin []int32) bool {
	if n < 1 || n > MaxDimension || m < 1 || m > MaxDimension {
		return false
	}
	nn, mm := int(n), int(m)
	if len(cov) != nn*nn || len(constraints) != mm*nn {
		return false
	}
	if len(lower) != mm || len(upper) != mm || len(infin) != mm {
		return false
	}
	for _, code := range infin {
		if code < codeUnbounded || code > codeBothSided {
			return false
		}
	}
	return true
}

// richtmyerGenerators returns frac(sqrt(p)) for the first count primes.
func richtmyerGenerators(count int) []float64 {
	gens := make([]float64, 0, count)
	for candidate := 2; len(gens) < count; candidate++ {
		if isPrime(candidate) {
			root := math.Sqrt(float64(candidate))
			gens = append(gens, root-math.Floor(root))
		}
	}
	return gens
}

func isPrime(v int) bool {
	if v < 2 {
		return false
	}
	for f := 2; f*f <= v; f++ {
		if v%f == 0 {
			return false
		}
	}
	return true
}
