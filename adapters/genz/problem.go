package genz

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// psdTolerance is the most negative eigenvalue, relative to the largest, still treated as zero.
	psdTolerance = 1e-10
	// rankTolerance is the residual variance, relative to the largest diagonal, below which
	// a constraint row is treated as dependent on rows already factored.
	rankTolerance = 1e-10
)

// interval is one constraint row's limits on the C·Z scale.
type interval struct {
	lo, hi float64
}

// row is a constraint after factorisation: C_i·Z = Σ coef[l]·Y_l with Y standard normal.
type row struct {
	coef  []float64
	lo    float64
	hi    float64
	delta float64
}

// problem is a factored integration problem ready for the lattice rule.
type problem struct {
	nu     int
	groups [][]*row // groups[j] bounds integration variable j
	fixed  []*row   // rows that do not depend on any variable
}

// dims is the number of quasi-random coordinates the integrand consumes.
// The last variable is integrated in closed form.
func (p *problem) dims() int {
	d := 0
	if len(p.groups) > 1 {
		d = len(p.groups) - 1
	}
	if p.nu > 0 {
		d++
	}
	return d
}

// covariance reads the lower triangle of a column-major n×n buffer and checks
// positive semidefiniteness.
func covariance(n int, cov []float64) (*mat.SymDense, bool) {
	sym := mat.NewSymDense(n, nil)
	for j := 0; j < n; j++ {
		for i := j; i < n; i++ {
			v := cov[j*n+i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, false
			}
			sym.SetSym(i, j, v)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(sym, false) {
		return nil, false
	}
	values := eig.Values(nil)
	lowest, largest := math.Inf(1), 0.0
	for _, v := range values {
		lowest = math.Min(lowest, v)
		largest = math.Max(largest, math.Abs(v))
	}
	if lowest < -psdTolerance*math.Max(1, largest) {
		return nil, false
	}
	return sym, true
}

// constraintCovariance returns D = C Σ Cᵀ for a column-major m×n constraint buffer.
func constraintCovariance(sigma *mat.SymDense, n, m int, constraints []float64) *mat.Dense {
	// The column-major m×n buffer is Cᵀ in row-major order.
	ct := mat.NewDense(n, m, constraints)
	var sc mat.Dense
	sc.Mul(sigma, ct)
	var d mat.Dense
	d.Mul(ct.T(), &sc)
	return &d
}

// factor builds a problem from D = C Σ Cᵀ with a pivoted, rank-revealing Cholesky
// decomposition. Pivots are chosen in Genz–Bretz order: at each step the row with
// the smallest conditional probability goes next, which keeps integrand variance low.
func factor(d *mat.Dense, lims []interval, delta []float64, nu int) *problem {
	m, _ := d.Dims()

	largest := 0.0
	for i := 0; i < m; i++ {
		largest = math.Max(largest, d.At(i, i))
	}
	eps := rankTolerance * largest

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	g := make([][]float64, m)
	for i := range g {
		g[i] = make([]float64, m)
	}
	means := make([]float64, 0, m)

	k := 0
	for k < m {
		best, bestProb, bestVar := -1, math.Inf(1), 0.0
		for i := k; i < m; i++ {
			pi := order[i]
			v := d.At(pi, pi)
			mu := 0.0
			for l := 0; l < k; l++ {
				v -= g[i][l] * g[i][l]
				mu += g[i][l] * means[l]
			}
			if v <= eps {
				continue
			}
			s := math.Sqrt(v)
			a := (lims[pi].lo - delta[pi] - mu) / s
			b := (lims[pi].hi - delta[pi] - mu) / s
			prob := distuv.UnitNormal.CDF(b) - distuv.UnitNormal.CDF(a)
			if best < 0 || prob < bestProb {
				best, bestProb, bestVar = i, prob, v
			}
		}
		if best < 0 {
			break
		}

		order[k], order[best] = order[best], order[k]
		g[k], g[best] = g[best], g[k]

		s := math.Sqrt(bestVar)
		g[k][k] = s
		for i := k + 1; i < m; i++ {
			v := d.At(order[i], order[k])
			for l := 0; l < k; l++ {
				v -= g[i][l] * g[k][l]
			}
			g[i][k] = v / s
		}

		pk := order[k]
		mu := 0.0
		for l := 0; l < k; l++ {
			mu += g[k][l] * means[l]
		}
		a := (lims[pk].lo - delta[pk] - mu) / s
		b := (lims[pk].hi - delta[pk] - mu) / s
		means = append(means, truncatedMean(a, b))
		k++
	}

	p := &problem{nu: nu, groups: make([][]*row, k)}
	coefTol := math.Sqrt(eps)
	for i := 0; i < m; i++ {
		pi := order[i]
		r := &row{coef: g[i][:k], lo: lims[pi].lo, hi: lims[pi].hi, delta: delta[pi]}
		last := -1
		if i < k {
			last = i
		} else {
			for l := k - 1; l >= 0; l-- {
				if math.Abs(g[i][l]) > coefTol {
					last = l
					break
				}
			}
		}
		if last < 0 {
			p.fixed = append(p.fixed, r)
			continue
		}
		p.groups[last] = append(p.groups[last], r)
	}
	return p
}

// truncatedMean is E[Z | a ≤ Z ≤ b] for a standard normal Z.
func truncatedMean(a, b float64) float64 {
	mass := distuv.UnitNormal.CDF(b) - distuv.UnitNormal.CDF(a)
	if mass < 1e-12 {
		switch {
		case a > 0:
			return a
		case b < 0:
			return b
		default:
			return 0
		}
	}
	return (distuv.UnitNormal.Prob(a) - distuv.UnitNormal.Prob(b)) / mass
}

// limits converts routine bound codes into intervals.
func limits(lower, upper []float64, infin []int32) []interval {
	lims := make([]interval, len(infin))
	for i, code := range infin {
		lo, hi := math.Inf(-1), math.Inf(1)
		switch code {
		case codeUpperOnly:
			hi = upper[i]
		case codeLowerOnly:
			lo = lower[i]
		case codeBothSided:
			lo, hi = lower[i], upper[i]
		}
		lims[i] = interval{lo: lo, hi: hi}
	}
	return lims
}
