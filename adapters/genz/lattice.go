package genz

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// shifts is the number of random shifts per lattice batch; the spread of
	// the shifted estimates gives the error estimate.
	shifts = 8
	// initialPoints is the lattice size of the first batch.
	initialPoints = 32
	// errorScale turns a standard error into the reported error bound.
	errorScale = 3.5
	// chiPower caps the exponent of the u = v^k warp on the χ coordinate.
	chiPower = 4
)

// eval computes the integrand at w. y is scratch for the sampled variables.
func (p *problem) eval(w, y []float64) float64 {
	scale, weight := 1.0, 1.0
	next := 0
	if p.nu > 0 {
		var u float64
		u, weight = chiWarp(w[0], p.nu)
		scale = chiScale(u, p.nu)
		next = 1
	}

	for _, r := range p.fixed {
		if r.lo*scale-r.delta > 0 || r.hi*scale-r.delta < 0 {
			return 0
		}
	}

	value := 1.0
	last := len(p.groups) - 1
	for j, group := range p.groups {
		lo, hi := math.Inf(-1), math.Inf(1)
		for _, r := range group {
			s := 0.0
			for l := 0; l < j; l++ {
				s += r.coef[l] * y[l]
			}
			c := r.coef[j]
			a := (r.lo*scale - r.delta - s) / c
			b := (r.hi*scale - r.delta - s) / c
			if c < 0 {
				a, b = b, a
			}
			lo = math.Max(lo, a)
			hi = math.Min(hi, b)
		}
		if !(lo < hi) {
			return 0
		}

		mirrored := lo > 0
		if mirrored {
			lo, hi = -hi, -lo
		}
		pa := distuv.UnitNormal.CDF(lo)
		mass := distuv.UnitNormal.CDF(hi) - pa
		if mass <= 0 {
			return 0
		}
		value *= mass

		if j < last {
			z := distuv.UnitNormal.Quantile(clampProbability(pa + w[next]*mass))
			if mirrored {
				z = -z
			}
			y[j] = z
			next++
		}
	}
	return value * weight
}

// chiWarp substitutes u = v^k with k = min(ν, chiPower) and returns u with
// the Jacobian k·v^(k-1). The χ quantile behaves like u^(1/ν) near zero; the
// warp turns that cusp into a polynomial the lattice rule integrates well.
func chiWarp(v float64, nu int) (u, jacobian float64) {
	k := float64(min(nu, chiPower))
	return math.Pow(v, k), k * math.Pow(v, k-1)
}

// chiScale maps u to sqrt(χ²_ν / ν) by inversion.
func chiScale(u float64, nu int) float64 {
	u = math.Min(math.Max(u, 1e-15), 1-1e-15)
	q := 2 * mathext.GammaIncRegInv(0.5*float64(nu), u)
	return math.Max(math.Sqrt(q/float64(nu)), 1e-300)
}

func clampProbability(p float64) float64 {
	if p <= 0 {
		return 1e-300
	}
	if p >= 1 {
		return 1 - 1e-16
	}
	return p
}

// estimate is the running result of the lattice rule.
type estimate struct {
	value    float64
	variance float64
	evals    int
	done     bool
}

// add folds one batch into the estimate by inverse-variance weighting.
func (e *estimate) add(mean, variance float64) {
	switch {
	case !e.done:
		e.value, e.variance, e.done = mean, variance, true
	case variance == 0 || e.variance == 0:
		if variance <= e.variance {
			e.value, e.variance = mean, variance
		}
	default:
		total := e.variance + variance
		e.value += (mean - e.value) * e.variance / total
		e.variance = e.variance * variance / total
	}
}

func (e *estimate) errorBound() float64 {
	return errorScale * math.Sqrt(e.variance)
}

// integrate runs randomised Richtmyer lattice batches with the baker's transform
// and antithetic points until the error bound meets the tolerance or the next
// batch would exceed maxpts.
func (r *Routine) integrate(p *problem, maxpts int, abseps, releps float64) (value, errEst float64, evals int, limited bool) {
	dims := p.dims()
	r.reserve(dims, len(p.groups))

	if dims == 0 {
		return p.eval(r.w, r.y), 0, 1, false
	}
	// The smallest batch is one antithetic pair per shift.
	if maxpts < 2*shifts {
		return 0, 1, 0, true
	}

	points := initialPoints
	if per := maxpts / (2 * shifts); per < points {
		points = max(per, 1)
	}

	var est estimate
	means := r.means[:shifts]
	for {
		for s := range means {
			for d := 0; d < dims; d++ {
				r.shift[d] = r.rng.Float64()
			}
			acc := 0.0
			for i := 1; i <= points; i++ {
				for d := 0; d < dims; d++ {
					x := float64(i)*r.generators[d] + r.shift[d]
					r.w[d] = math.Abs(2*(x-math.Floor(x)) - 1)
				}
				v := p.eval(r.w, r.y)
				for d := 0; d < dims; d++ {
					r.w[d] = 1 - r.w[d]
				}
				v += p.eval(r.w, r.y)
				acc += v / 2
			}
			means[s] = acc / float64(points)
		}
		est.evals += 2 * shifts * points
		mean, variance, err := batchStats(means)
		if err != nil {
			return est.value, math.Inf(1), est.evals, true
		}
		est.add(mean, variance)

		errEst = est.errorBound()
		if errEst <= math.Max(abseps, releps*math.Abs(est.value)) {
			return est.value, errEst, est.evals, false
		}

		next := points * 2
		if remaining := (maxpts - est.evals) / (2 * shifts); next > remaining {
			next = remaining
		}
		if next < points {
			return est.value, errEst, est.evals, true
		}
		points = next
	}
}

// batchStats returns the mean of the shift estimates and the variance of that mean.
func batchStats(means []float64) (mean, variance float64, err error) {
	mean, err = stats.Mean(means)
	if err != nil {
		return 0, 0, err
	}
	variance, err = stats.SampleVariance(means)
	if err != nil {
		return 0, 0, err
	}
	return mean, variance / float64(len(means)), nil
}
