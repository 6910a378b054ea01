package ports

// RawOutcome is the tuple returned by the integration routine, untranslated.
type RawOutcome struct {
	Error       float64
	Value       float64
	Evaluations int32
	Inform      int32
}

// RoutinePort is the calling contract of the non-reentrant integration routine.
//
// Matrices are flat and column-major: cov is n×n and constraints is m×n.
// infin holds one bound code per constraint row (-1 unbounded, 0 upper only,
// 1 lower only, 2 both). Implementations may keep internal state between calls
// and are not required to be safe for concurrent use; callers serialize access.
type RoutinePort interface {
	MVDist(n int32, cov []float64, nu int32, m int32, lower, constraints, upper []float64,
		infin []int32, delta []float64, maxpts int32, abseps, releps float64) RawOutcome

	MVCrit(n int32, cov []float64, nu int32, m int32, lower, constraints, upper []float64,
		infin []int32, alpha float64, maxpts int32, abseps float64) RawOutcome
}
