package app

import (
	"context"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"gomvdist/adapters/genz"
	"gomvdist/domain/bounds"
	"gomvdist/domain/outcome"
	"gomvdist/internal"
	"gomvdist/internal/config"
	"gomvdist/internal/covariance"
	"gomvdist/internal/errors"
	"gomvdist/internal/gate"
	"gomvdist/internal/layout"
	"gomvdist/internal/testkit"
	"gomvdist/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var quietLogger = internal.NewLoggerTo(io.Discard, internal.LogLevelError)

func newTestService(routine ports.RoutinePort, opts ...ServiceOption) *DistributionService {
	opts = append([]ServiceOption{WithGate(gate.New()), WithLogger(quietLogger)}, opts...)
	return NewDistributionService(routine, opts...)
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// identityPlusSum stacks the n×n identity on a row of ones.
func identityPlusSum(n int) *mat.Dense {
	m := mat.NewDense(n+1, n, nil)
	for j := 0; j < n; j++ {
		m.Set(j, j, 1)
		m.Set(n, j, 1)
	}
	return m
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func simpleRequest() ProbabilityRequest {
	return ProbabilityRequest{
		Covariance:  mat.NewDense(2, 2, []float64{1, 0.5, 0.25, 1}),
		Constraints: mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}),
		Lower:       []float64{-1, -2, -3},
		Upper:       []float64{1, 2, 3},
		Kinds:       []bounds.Kind{bounds.BothSided, bounds.LowerOnly, bounds.Unbounded},
	}
}

func TestRectangleProbability_FlatArguments(t *testing.T) {
	routine := testkit.NewRecordingRoutine(ports.RawOutcome{Value: 0.7, Error: 1e-6, Evaluations: 640})
	svc := newTestService(routine)

	req := simpleRequest()
	req.DegreesOfFreedom = 6
	req.Shift = []float64{0.1, 0.2, 0.3}
	req.MaxEvaluations = 5000
	req.AbsoluteTolerance = 1e-4
	req.RelativeTolerance = 1e-3

	result, err := svc.RectangleProbability(req)
	require.NoError(t, err)
	assert.Equal(t, outcome.MVResult{Value: 0.7, Error: 1e-6, Evaluations: 640, Status: outcome.Normal}, result)

	calls := routine.DistCalls()
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, int32(2), call.N)
	assert.Equal(t, int32(3), call.M)
	assert.Equal(t, int32(6), call.Nu)
	assert.Equal(t, []float64{1, 0.25, 0.5, 1}, call.Cov)
	assert.Equal(t, []float64{1, 3, 5, 2, 4, 6}, call.Constraints)
	assert.Equal(t, []int32{2, 1, -1}, call.Infin)
	assert.Equal(t, []float64{-1, -2, -3}, call.Lower)
	assert.Equal(t, []float64{1, 2, 3}, call.Upper)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, call.Delta)
	assert.Equal(t, int32(5000), call.MaxPts)
	assert.Equal(t, 1e-4, call.AbsEps)
	assert.Equal(t, 1e-3, call.RelEps)
}

func TestRectangleProbability_AppliesDefaults(t *testing.T) {
	routine := testkit.NewRecordingRoutine(ports.RawOutcome{Value: 0.5})
	svc := newTestService(routine, WithDefaults(config.IntegrationConfig{
		MaxEvaluations:    4321,
		AbsoluteTolerance: 2e-5,
		RelativeTolerance: 1e-2,
	}))

	_, err := svc.RectangleProbability(simpleRequest())
	require.NoError(t, err)

	call := routine.DistCalls()[0]
	assert.Equal(t, int32(4321), call.MaxPts)
	assert.Equal(t, 2e-5, call.AbsEps)
	assert.Equal(t, 1e-2, call.RelEps)
	assert.Equal(t, []float64{0, 0, 0}, call.Delta, "nil shift is a zero shift")
}

func TestRectangleProbability_DoesNotAliasCallerSlices(t *testing.T) {
	routine := testkit.NewRecordingRoutine(ports.RawOutcome{})
	svc := newTestService(routine)

	req := simpleRequest()
	req.Shift = []float64{0, 0, 0}
	_, err := svc.RectangleProbability(req)
	require.NoError(t, err)

	req.Lower[0] = 100
	req.Shift[0] = 100
	call := routine.DistCalls()[0]
	assert.Equal(t, -1.0, call.Lower[0])
	assert.Equal(t, 0.0, call.Delta[0])
}

func TestRectangleProbability_RejectsBeforeCrossing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *ProbabilityRequest)
	}{
		{"constraint columns disagree with covariance", func(r *ProbabilityRequest) {
			r.Constraints = mat.NewDense(3, 3, make([]float64, 9))
		}},
		{"non-square covariance", func(r *ProbabilityRequest) {
			r.Covariance = mat.NewDense(2, 3, make([]float64, 6))
		}},
		{"lower too short", func(r *ProbabilityRequest) { r.Lower = []float64{0, 0} }},
		{"upper too long", func(r *ProbabilityRequest) { r.Upper = []float64{0, 0, 0, 0} }},
		{"kinds too short", func(r *ProbabilityRequest) { r.Kinds = r.Kinds[:2] }},
		{"shift too short", func(r *ProbabilityRequest) { r.Shift = []float64{0} }},
		{"NaN active bound", func(r *ProbabilityRequest) { r.Lower[0] = math.NaN() }},
		{"negative evaluations", func(r *ProbabilityRequest) { r.MaxEvaluations = -5 }},
		{"negative tolerance", func(r *ProbabilityRequest) { r.AbsoluteTolerance = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			routine := testkit.NewRecordingRoutine(ports.RawOutcome{})
			svc := newTestService(routine)

			req := simpleRequest()
			tt.mutate(&req)
			_, err := svc.RectangleProbability(req)

			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrContractViolation)
			assert.Zero(t, routine.Calls())
		})
	}
}

func TestRectangleProbability_NaNOnInactiveBoundIsIgnored(t *testing.T) {
	routine := testkit.NewRecordingRoutine(ports.RawOutcome{})
	svc := newTestService(routine)

	req := simpleRequest()
	req.Upper[1] = math.NaN() // row 1 is lower-only
	req.Lower[2] = math.NaN() // row 2 is unbounded

	_, err := svc.RectangleProbability(req)
	require.NoError(t, err)
	assert.Equal(t, 1, routine.Calls())
}

func TestRectangleProbability_StatusInterpretation(t *testing.T) {
	tests := []struct {
		inform int32
		code   string
	}{
		{2, errors.CodeInvalidDimension},
		{3, errors.CodeNotPSD},
		{4, errors.CodeUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			svc := newTestService(testkit.NewRecordingRoutine(ports.RawOutcome{Inform: tt.inform}))
			_, err := svc.RectangleProbability(simpleRequest())
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}

	svc := newTestService(testkit.NewRecordingRoutine(ports.RawOutcome{Value: 0.3, Inform: 1}))
	result, err := svc.RectangleProbability(simpleRequest())
	require.NoError(t, err)
	assert.Equal(t, outcome.EvaluationLimitReached, result.Status)
	assert.False(t, result.Converged())
}

func TestCriticalValue_FlatArguments(t *testing.T) {
	routine := testkit.NewRecordingRoutine(ports.RawOutcome{Value: 2.1, Error: 1e-6, Evaluations: 900})
	svc := newTestService(routine)

	req := simpleRequest()
	result, err := svc.CriticalValue(CriticalRequest{
		Covariance:       req.Covariance,
		DegreesOfFreedom: 3,
		Lower:            req.Lower,
		Upper:            req.Upper,
		Kinds:            req.Kinds,
		Constraints:      req.Constraints,
		Alpha:            0.05,
	})
	require.NoError(t, err)
	assert.Equal(t, 2.1, result.Value)

	calls := routine.CritCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, 0.05, calls[0].Alpha)
	assert.Equal(t, int32(3), calls[0].Nu)
	assert.Equal(t, []float64{1, 3, 5, 2, 4, 6}, calls[0].Constraints)
	assert.Equal(t, int32(100000), calls[0].MaxPts)
	assert.Equal(t, 1e-5, calls[0].AbsEps)
}

func TestCriticalValue_StatusInterpretation(t *testing.T) {
	req := simpleRequest()
	crit := CriticalRequest{
		Covariance: req.Covariance, Lower: req.Lower, Upper: req.Upper,
		Kinds: req.Kinds, Constraints: req.Constraints, Alpha: 0.1,
	}

	svc := newTestService(testkit.NewRecordingRoutine(ports.RawOutcome{Inform: 2}))
	_, err := svc.CriticalValue(crit)
	assert.ErrorIs(t, err, errors.ErrInvalidBounds)

	svc = newTestService(testkit.NewRecordingRoutine(ports.RawOutcome{Inform: 3}))
	_, err = svc.CriticalValue(crit)
	require.Error(t, err)
	assert.Equal(t, "unrecognized status code 3", err.Error())
}

func TestConcurrentCallersAreSerialized(t *testing.T) {
	const callers = 12
	routine := testkit.NewRecordingRoutine(ports.RawOutcome{Value: 0.5})
	routine.Hold = 2 * time.Millisecond

	shared := gate.New()
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc := newTestService(routine, WithGate(shared))
			var err error
			if i%2 == 0 {
				_, err = svc.RectangleProbability(simpleRequest())
			} else {
				req := simpleRequest()
				_, err = svc.CriticalValue(CriticalRequest{
					Covariance: req.Covariance, Lower: req.Lower, Upper: req.Upper,
					Kinds: req.Kinds, Constraints: req.Constraints, Alpha: 0.05,
				})
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, callers, routine.Calls())
	assert.Equal(t, 1, routine.MaxInFlight())
	assert.Zero(t, routine.OverlappingPairs())
	assert.Equal(t, int64(callers), shared.Stats().Acquisitions)
}

func TestRoutinePanicIsRecovered(t *testing.T) {
	shared := gate.New()
	crashing := testkit.NewRecordingRoutine(ports.RawOutcome{})
	crashing.Panic = "stack smashed"

	_, err := newTestService(crashing, WithGate(shared)).RectangleProbability(simpleRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRoutineAborted)

	healthy := testkit.NewRecordingRoutine(ports.RawOutcome{Value: 0.9})
	svc := newTestService(healthy, WithGate(shared))
	result, err := svc.RectangleProbability(simpleRequest())
	require.NoError(t, err)
	assert.Equal(t, 0.9, result.Value)
	assert.Equal(t, int64(1), svc.GateStats().Aborted)
}

func TestProbabilityBatch(t *testing.T) {
	routine := testkit.NewRecordingRoutine(ports.RawOutcome{Value: 0.4})
	svc := newTestService(routine, WithBatchWorkers(3))

	reqs := make([]ProbabilityRequest, 7)
	for i := range reqs {
		reqs[i] = simpleRequest()
	}
	reqs[4].Lower = []float64{0}

	results, err := svc.ProbabilityBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, len(reqs))

	for i, r := range results {
		assert.Equal(t, i, r.Index)
		if i == 4 {
			assert.ErrorIs(t, r.Err, errors.ErrContractViolation)
			continue
		}
		require.NoError(t, r.Err)
		assert.Equal(t, 0.4, r.Result.Value)
	}
	assert.Equal(t, 6, routine.Calls())
	assert.Equal(t, 1, routine.MaxInFlight())
}

func TestProbabilityBatch_CancelledContext(t *testing.T) {
	routine := testkit.NewRecordingRoutine(ports.RawOutcome{})
	svc := newTestService(routine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := svc.ProbabilityBatch(ctx, []ProbabilityRequest{simpleRequest(), simpleRequest()})
	assert.ErrorIs(t, err, context.Canceled)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, routine.Calls())
}

func TestRectangleProbability_FourDimensionalStudentT(t *testing.T) {
	svc := newTestService(genz.New())

	result, err := svc.RectangleProbability(ProbabilityRequest{
		Covariance:        identity(4),
		DegreesOfFreedom:  8,
		Lower:             fill(5, 0),
		Upper:             fill(5, 1),
		Kinds:             bounds.Repeat(bounds.BothSided, 5),
		Constraints:       identityPlusSum(4),
		Shift:             fill(5, 0),
		MaxEvaluations:    100000,
		AbsoluteTolerance: 1e-5,
	})
	require.NoError(t, err)

	assert.Equal(t, outcome.Normal, result.Status)
	assert.Greater(t, result.Evaluations, int32(0))
	assert.Less(t, result.Evaluations, int32(100000))
	assert.InDelta(t, 0.001, result.Value, 1e-4)
	assert.LessOrEqual(t, result.Error, 1e-5)
}

func TestRectangleProbability_EmpiricalCovariance(t *testing.T) {
	sample, err := layout.FromRows([][]float64{
		{90, 60, 90},
		{90, 90, 30},
		{60, 60, 60},
		{60, 60, 90},
		{30, 30, 30},
	})
	require.NoError(t, err)

	cov, err := covariance.Empirical(sample)
	require.NoError(t, err)
	assert.InDelta(t, 630.0, cov.At(0, 0), 1e-9)
	assert.InDelta(t, 450.0, cov.At(0, 1), 1e-9)
	assert.InDelta(t, 225.0, cov.At(0, 2), 1e-9)

	svc := newTestService(genz.New())
	result, err := svc.RectangleProbability(ProbabilityRequest{
		Covariance:       cov,
		DegreesOfFreedom: 4,
		Lower:            fill(4, 0),
		Upper:            fill(4, 100),
		Kinds:            bounds.Repeat(bounds.BothSided, 4),
		Constraints:      identityPlusSum(3),
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Value, 0.0)
	assert.LessOrEqual(t, result.Value, 1.0)
	assert.Greater(t, result.Evaluations, int32(0))
}

func TestCriticalValue_MatchesNormalQuantile(t *testing.T) {
	svc := newTestService(genz.New())

	result, err := svc.CriticalValue(CriticalRequest{
		Covariance:  identity(1),
		Lower:       []float64{0},
		Upper:       []float64{0},
		Kinds:       []bounds.Kind{bounds.BothSided},
		Constraints: identity(1),
		Alpha:       0.05,
	})
	require.NoError(t, err)
	assert.Equal(t, outcome.Normal, result.Status)
	assert.InDelta(t, 1.959964, result.Value, 1e-3)
}

func TestCriticalValue_RejectsMismatchBeforeCrossing(t *testing.T) {
	routine := testkit.NewRecordingRoutine(ports.RawOutcome{})
	svc := newTestService(routine)

	req := simpleRequest()
	_, err := svc.CriticalValue(CriticalRequest{
		Covariance:  req.Covariance,
		Lower:       req.Lower,
		Upper:       req.Upper,
		Kinds:       req.Kinds[:2],
		Constraints: req.Constraints,
		Alpha:       0.05,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrContractViolation)
	assert.Zero(t, routine.Calls())
}
