package app

import (
	"context"
	"math"
	"time"

	"gomvdist/domain/bounds"
	"gomvdist/domain/core"
	"gomvdist/domain/outcome"
	"gomvdist/internal"
	"gomvdist/internal/config"
	"gomvdist/internal/errors"
	"gomvdist/internal/gate"
	"gomvdist/internal/interpret"
	"gomvdist/internal/layout"
	"gomvdist/ports"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// DistributionService exposes rectangle probabilities and critical values
// over a non-reentrant routine. It is safe for concurrent use: every routine
// call crosses the shared invocation gate alone.
//
// Do not call the service from inside a routine implementation; the gate is
// not reentrant and the call deadlocks.
type DistributionService struct {
	routinePort ports.RoutinePort
	gate        *gate.Gate
	logger      *internal.Logger
	defaults    config.IntegrationConfig
	workers     int
}

// ServiceOption customizes a DistributionService
type ServiceOption func(*DistributionService)

// WithGate replaces the process-wide gate, e.g. to isolate tests
func WithGate(g *gate.Gate) ServiceOption {
	return func(s *DistributionService) { s.gate = g }
}

// WithLogger sets the service logger
func WithLogger(l *internal.Logger) ServiceOption {
	return func(s *DistributionService) { s.logger = l }
}

// WithDefaults sets the limits used when a request leaves them at zero
func WithDefaults(cfg config.IntegrationConfig) ServiceOption {
	return func(s *DistributionService) { s.defaults = cfg }
}

// WithBatchWorkers bounds concurrent requests in ProbabilityBatch
func WithBatchWorkers(n int) ServiceOption {
	return func(s *DistributionService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewDistributionService creates a distribution service around routinePort
func NewDistributionService(routinePort ports.RoutinePort, opts ...ServiceOption) *DistributionService {
	s := &DistributionService{
		routinePort: routinePort,
		gate:        gate.Default(),
		logger:      internal.DefaultLogger,
		defaults:    config.Default().Integration,
		workers:     config.Default().Batch.Workers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProbabilityRequest is the input of RectangleProbability.
//
// Covariance is n×n, Constraints is m×n, and Lower, Upper, Kinds and Shift
// hold one entry per constraint row. A nil Shift means no shift.
// DegreesOfFreedom ≤ 0 selects the multivariate normal.
// A zero MaxEvaluations, or zero for both tolerances, takes the configured default.
type ProbabilityRequest struct {
	Covariance        mat.Matrix
	DegreesOfFreedom  int
	Lower             []float64
	Upper             []float64
	Kinds             []bounds.Kind
	Constraints       mat.Matrix
	Shift             []float64
	MaxEvaluations    int
	AbsoluteTolerance float64
	RelativeTolerance float64
}

// CriticalRequest is the input of CriticalValue. Alpha is the target tail
// probability: the returned value t gives probability 1-Alpha.
type CriticalRequest struct {
	Covariance        mat.Matrix
	DegreesOfFreedom  int
	Lower             []float64
	Upper             []float64
	Kinds             []bounds.Kind
	Constraints       mat.Matrix
	Alpha             float64
	MaxEvaluations    int
	AbsoluteTolerance float64
}

// routineArgs is the flat, column-major form shared by both entry points.
type routineArgs struct {
	n, m        int32
	cov         []float64
	nu          int32
	lower       []float64
	constraints []float64
	upper       []float64
	infin       []int32
	maxpts      int32
}

// RectangleProbability computes the probability mass inside the constrained region.
func (s *DistributionService) RectangleProbability(req ProbabilityRequest) (outcome.MVResult, error) {
	callID := core.NewCallID()
	start := time.Now()

	args, err := s.prepare(layout.Problem{
		Covariance:  req.Covariance,
		Constraints: req.Constraints,
		Lower:       req.Lower,
		Upper:       req.Upper,
		Kinds:       req.Kinds,
	}, req.DegreesOfFreedom, req.MaxEvaluations)
	if err != nil {
		s.logger.Debug("[%s] probability rejected: %v", callID.Short(), err)
		return outcome.MVResult{}, err
	}

	delta := make([]float64, args.m)
	if req.Shift != nil {
		if err := layout.CheckShift(req.Shift, int(args.m)); err != nil {
			s.logger.Debug("[%s] probability rejected: %v", callID.Short(), err)
			return outcome.MVResult{}, err
		}
		copy(delta, req.Shift)
	}

	abseps, releps := req.AbsoluteTolerance, req.RelativeTolerance
	if abseps == 0 && releps == 0 {
		abseps, releps = s.defaults.AbsoluteTolerance, s.defaults.RelativeTolerance
	}
	if err := checkTolerance("absolute tolerance", abseps); err != nil {
		return outcome.MVResult{}, err
	}
	if err := checkTolerance("relative tolerance", releps); err != nil {
		return outcome.MVResult{}, err
	}

	var raw ports.RawOutcome
	err = s.gate.WithExclusiveAccess(func() {
		raw = s.routinePort.MVDist(args.n, args.cov, args.nu, args.m, args.lower, args.constraints, args.upper,
			args.infin, delta, args.maxpts, abseps, releps)
	})
	if err != nil {
		s.logger.Error("[%s] probability routine aborted: %v", callID.Short(), err)
		return outcome.MVResult{}, err
	}

	result, err := interpret.Probability(raw)
	s.logCall(callID, "probability", args, raw, start, err)
	return result, err
}

// CriticalValue finds the bound offset giving probability 1-Alpha.
func (s *DistributionService) CriticalValue(req CriticalRequest) (outcome.MVResult, error) {
	callID := core.NewCallID()
	start := time.Now()

	args, err := s.prepare(layout.Problem{
		Covariance:  req.Covariance,
		Constraints: req.Constraints,
		Lower:       req.Lower,
		Upper:       req.Upper,
		Kinds:       req.Kinds,
	}, req.DegreesOfFreedom, req.MaxEvaluations)
	if err != nil {
		s.logger.Debug("[%s] critical value rejected: %v", callID.Short(), err)
		return outcome.MVResult{}, err
	}

	abseps := req.AbsoluteTolerance
	if abseps == 0 {
		abseps = s.defaults.AbsoluteTolerance
	}
	if err := checkTolerance("absolute tolerance", abseps); err != nil {
		return outcome.MVResult{}, err
	}

	var raw ports.RawOutcome
	err = s.gate.WithExclusiveAccess(func() {
		raw = s.routinePort.MVCrit(args.n, args.cov, args.nu, args.m, args.lower, args.constraints, args.upper,
			args.infin, req.Alpha, args.maxpts, abseps)
	})
	if err != nil {
		s.logger.Error("[%s] critical value routine aborted: %v", callID.Short(), err)
		return outcome.MVResult{}, err
	}

	result, err := interpret.Critical(raw)
	s.logCall(callID, "critical value", args, raw, start, err)
	return result, err
}

// BatchResult pairs one batch request with its outcome
type BatchResult struct {
	Index  int
	Result outcome.MVResult
	Err    error
}

// ProbabilityBatch evaluates reqs with at most the configured number of requests
// in flight. Routine calls are still serialized by the gate. Per-request failures
// are reported in the results; the returned error is only the context's.
func (s *DistributionService) ProbabilityBatch(ctx context.Context, reqs []ProbabilityRequest) ([]BatchResult, error) {
	results := make([]BatchResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range reqs {
		results[i].Index = i
		if err := gctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Result, results[i].Err = s.RectangleProbability(reqs[i])
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

// GateStats exposes the gate counters
func (s *DistributionService) GateStats() gate.Stats {
	return s.gate.Stats()
}

// prepare validates shapes and scalar limits and lays the problem out for the routine.
func (s *DistributionService) prepare(p layout.Problem, nu, maxEvaluations int) (routineArgs, error) {
	n, m, err := p.Check()
	if err != nil {
		return routineArgs{}, err
	}
	for i, k := range p.Kinds {
		if (k.HasLower() && math.IsNaN(p.Lower[i])) || (k.HasUpper() && math.IsNaN(p.Upper[i])) {
			return routineArgs{}, errors.ContractViolation("bounds for row %d are NaN", i)
		}
	}
	if nu > math.MaxInt32 || nu < math.MinInt32 {
		return routineArgs{}, errors.ContractViolation("degrees of freedom %d out of range", nu)
	}
	if maxEvaluations == 0 {
		maxEvaluations = s.defaults.MaxEvaluations
	}
	if maxEvaluations < 1 || maxEvaluations > math.MaxInt32 {
		return routineArgs{}, errors.ContractViolation("max evaluations %d out of range", maxEvaluations)
	}

	return routineArgs{
		n:           int32(n),
		m:           int32(m),
		cov:         layout.ToColumnMajor(p.Covariance),
		nu:          int32(nu),
		lower:       append([]float64(nil), p.Lower...),
		constraints: layout.ToColumnMajor(p.Constraints),
		upper:       append([]float64(nil), p.Upper...),
		infin:       layout.EncodeBounds(p.Kinds),
		maxpts:      int32(maxEvaluations),
	}, nil
}

func checkTolerance(name string, v float64) error {
	if math.IsNaN(v) || v < 0 {
		return errors.ContractViolation("%s must be non-negative, got %v", name, v)
	}
	return nil
}

func (s *DistributionService) logCall(callID core.CallID, op string, args routineArgs, raw ports.RawOutcome, start time.Time, err error) {
	if err != nil {
		s.logger.Warn("[%s] %s failed n=%d m=%d inform=%d: %v", callID.Short(), op, args.n, args.m, raw.Inform, err)
		return
	}
	s.logger.Debug("[%s] %s n=%d m=%d nu=%d value=%.6g error=%.2e evals=%d inform=%d in %s",
		callID.Short(), op, args.n, args.m, args.nu, raw.Value, raw.Error, raw.Evaluations, raw.Inform,
		time.Since(start).Round(time.Microsecond))
}
