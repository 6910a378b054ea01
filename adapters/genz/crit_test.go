package genz

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestMVCrit_UnivariateNormal(t *testing.T) {
	tests := []struct {
		name   string
		infin  int32
		expect float64
	}{
		{"two sided", codeBothSided, distuv.UnitNormal.Quantile(0.975)},
		{"upper only", codeUpperOnly, distuv.UnitNormal.Quantile(0.95)},
		{"lower only", codeLowerOnly, distuv.UnitNormal.Quantile(0.95)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			out := r.MVCrit(1, []float64{1}, 0, 1,
				[]float64{0}, []float64{1}, []float64{0},
				[]int32{tt.infin}, 0.05, 10000, 1e-7)

			require.Equal(t, informNormal, out.Inform)
			assert.InDelta(t, tt.expect, out.Value, 1e-4)
			assert.LessOrEqual(t, out.Error, 1e-7)
			assert.Greater(t, out.Evaluations, int32(0))
		})
	}
}

func TestMVCrit_OffsetsShiftTheRoot(t *testing.T) {
	r := New()
	// P(Z ≤ 1 + t) = 0.95 gives t = z(0.95) - 1.
	out := r.MVCrit(1, []float64{1}, 0, 1,
		[]float64{0}, []float64{1}, []float64{1},
		[]int32{codeUpperOnly}, 0.05, 10000, 1e-7)

	require.Equal(t, informNormal, out.Inform)
	assert.InDelta(t, distuv.UnitNormal.Quantile(0.95)-1, out.Value, 1e-4)
}

func TestMVCrit_StudentT(t *testing.T) {
	r := New()
	out := r.MVCrit(1, []float64{1}, 10, 1,
		[]float64{0}, []float64{1}, []float64{0},
		[]int32{codeBothSided}, 0.05, 1000000, 2e-4)

	want := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: 10}.Quantile(0.975)
	require.Equal(t, informNormal, out.Inform)
	assert.InDelta(t, want, out.Value, 5e-3)
}

func TestMVCrit_InvalidBounds(t *testing.T) {
	tests := []struct {
		name  string
		alpha float64
		lower float64
		upper float64
		infin int32
	}{
		{"alpha zero", 0, 0, 0, codeBothSided},
		{"alpha one", 1, 0, 0, codeBothSided},
		{"alpha NaN", math.NaN(), 0, 0, codeBothSided},
		{"all unbounded", 0.05, 0, 0, codeUnbounded},
		{"lower above upper", 0.05, 1, -1, codeBothSided},
		{"infinite active bound", 0.05, 0, math.Inf(1), codeUpperOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			out := r.MVCrit(1, []float64{1}, 0, 1,
				[]float64{tt.lower}, []float64{1}, []float64{tt.upper},
				[]int32{tt.infin}, tt.alpha, 1000, 1e-5)
			assert.Equal(t, informInvalid, out.Inform)
		})
	}
}

func TestMVCrit_BudgetExhausted(t *testing.T) {
	r := New()
	cov := []float64{1, 0.5, 0.5, 1}
	out := r.MVCrit(2, cov, 3, 2,
		[]float64{0, 0}, []float64{1, 0, 0, 1}, []float64{0, 0},
		[]int32{codeBothSided, codeBothSided}, 0.05, 50, 1e-12)

	assert.Equal(t, informLimit, out.Inform)
	assert.LessOrEqual(t, out.Evaluations, int32(50))
}

func TestCritSearch_Solve(t *testing.T) {
	// P(t) = Φ(t) has its 0.9 root at z(0.9).
	s := &critSearch{budget: 1 << 20}
	s.probability = func(t float64) (float64, float64, bool) {
		s.evals++
		return distuv.UnitNormal.CDF(t), 0, true
	}

	tt, residual, errEst, converged := s.solve(0.9, 1e-10)
	require.True(t, converged)
	assert.InDelta(t, distuv.UnitNormal.Quantile(0.9), tt, 1e-8)
	assert.LessOrEqual(t, math.Abs(residual), 1e-10)
	assert.Zero(t, errEst)
	assert.Less(t, s.evals, 80)
}
