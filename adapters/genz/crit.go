package genz

import (
	"math"

	"gomvdist/ports"
)

const (
	maxBracketSteps = 64
	maxRootSteps    = 100
)

// MVCrit finds t with P(limits(t)) = 1 - alpha, where each row's limits are
// (-∞, upper+t] for upper-only rows, [lower-t, ∞) for lower-only rows and
// [lower-t, upper+t] for two-sided rows. Unbounded rows never bind.
//
// The reported error is on the probability scale: |P(t) - (1-alpha)| plus the
// integration error at t.
func (r *Routine) MVCrit(n int32, cov []float64, nu int32, m int32, lower, constraints, upper []float64,
	infin []int32, alpha float64, maxpts int32, abseps float64) ports.RawOutcome {

	if !validShape(n, m, cov, lower, constraints, upper, infin) || !validCritical(alpha, lower, upper, infin) {
		return ports.RawOutcome{Inform: informInvalid}
	}
	sigma, ok := covariance(int(n), cov)
	if !ok {
		return ports.RawOutcome{Inform: informNotPSD}
	}

	d := constraintCovariance(sigma, int(n), int(m), constraints)
	noShift := make([]float64, m)
	target := 1 - alpha
	tol := abseps / 2

	s := &critSearch{budget: int(maxpts)}
	s.probability = func(t float64) (float64, float64, bool) {
		remaining := s.budget - s.evals
		if remaining < 2*shifts {
			return 0, 0, false
		}
		p := factor(d, criticalLimits(lower, upper, infin, t), noShift, int(nu))
		value, errEst, evals, limited := r.integrate(p, remaining, tol, 0)
		s.evals += evals
		return value, errEst, !limited
	}

	t, g, errEst, converged := s.solve(target, tol)
	inform := informNormal
	if !converged {
		inform = informLimit
	}
	return ports.RawOutcome{
		Error:       math.Abs(g) + errEst,
		Value:       t,
		Evaluations: int32(s.evals),
		Inform:      inform,
	}
}

// critSearch solves P(t) = target for a nondecreasing P.
type critSearch struct {
	budget      int
	evals       int
	probability func(t float64) (p, errEst float64, ok bool)
}

// solve brackets the root and refines it with Illinois regula falsi. It returns
// the best t, its residual P(t)-target, the integration error at t and whether
// the search finished within budget.
func (s *critSearch) solve(target, tol float64) (t, residual, errEst float64, converged bool) {
	p0, e0, ok := s.probability(0)
	if !ok {
		return 0, p0 - target, e0, false
	}
	g0 := p0 - target
	if math.Abs(g0) <= tol {
		return 0, g0, e0, true
	}

	// Bracket: glo < 0 <= ghi.
	lo, hi := 0.0, 0.0
	glo, ghi := g0, g0
	elo, ehi := e0, e0
	step := 1.0
	for i := 0; ; i++ {
		if i == maxBracketSteps {
			return 0, g0, e0, false
		}
		var tt float64
		if g0 < 0 {
			tt = lo + step
		} else {
			tt = hi - step
		}
		p, e, ok := s.probability(tt)
		if !ok {
			return tt, p - target, e, false
		}
		g := p - target
		if math.Abs(g) <= tol {
			return tt, g, e, true
		}
		if g0 < 0 {
			if g >= 0 {
				hi, ghi, ehi = tt, g, e
				break
			}
			lo, glo, elo = tt, g, e
		} else {
			if g < 0 {
				lo, glo, elo = tt, g, e
				break
			}
			hi, ghi, ehi = tt, g, e
		}
		step *= 2
	}

	best, bestG, bestE := hi, ghi, ehi
	if -glo < ghi {
		best, bestG, bestE = lo, glo, elo
	}

	side := 0
	for i := 0; i < maxRootSteps; i++ {
		tt := hi - ghi*(hi-lo)/(ghi-glo)
		if !(tt > lo && tt < hi) {
			tt = 0.5 * (lo + hi)
		}
		p, e, ok := s.probability(tt)
		if !ok {
			return best, bestG, bestE, false
		}
		g := p - target
		if math.Abs(g) < math.Abs(bestG) {
			best, bestG, bestE = tt, g, e
		}
		if math.Abs(g) <= tol || hi-lo <= 1e-12*(1+math.Abs(tt)) {
			return best, bestG, bestE, true
		}
		if g < 0 {
			lo, glo = tt, g
			if side == -1 {
				ghi /= 2
			}
			side = -1
		} else {
			hi, ghi = tt, g
			if side == 1 {
				glo /= 2
			}
			side = 1
		}
	}
	return best, bestG, bestE, false
}

func validCritical(alpha float64, lower, upper []float64, infin []int32) bool {
	if !(alpha > 0 && alpha < 1) {
		return false
	}
	bounded := false
	for i, code := range infin {
		switch code {
		case codeUpperOnly:
			if !isFinite(upper[i]) {
				return false
			}
			bounded = true
		case codeLowerOnly:
			if !isFinite(lower[i]) {
				return false
			}
			bounded = true
		case codeBothSided:
			if !isFinite(lower[i]) || !isFinite(upper[i]) || lower[i] > upper[i] {
				return false
			}
			bounded = true
		}
	}
	return bounded
}

func criticalLimits(lower, upper []float64, infin []int32, t float64) []interval {
	lims := make([]interval, len(infin))
	for i, code := range infin {
		lo, hi := math.Inf(-1), math.Inf(1)
		switch code {
		case codeUpperOnly:
			hi = upper[i] + t
		case codeLowerOnly:
			lo = lower[i] - t
		case codeBothSided:
			lo, hi = lower[i]-t, upper[i]+t
		}
		lims[i] = interval{lo: lo, hi: hi}
	}
	return lims
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
