package outcome

// Status classifies how the routine stopped.
type Status int

const (
	// Normal means the estimate met the requested tolerance.
	Normal Status = iota
	// EvaluationLimitReached means the evaluation cap stopped the routine first;
	// Value and Error are still the best available estimate.
	EvaluationLimitReached
)

func (s Status) String() string {
	switch s {
	case Normal:
		return "normal"
	case EvaluationLimitReached:
		return "evaluation_limit_reached"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MVResult is the outcome of one routine call. It is built once and returned by value.
type MVResult struct {
	Value       float64 `json:"value" yaml:"value"`
	Error       float64 `json:"error" yaml:"error"`
	Evaluations int32   `json:"evaluations" yaml:"evaluations"`
	Status      Status  `json:"status" yaml:"status"`
}

// Converged reports whether the requested tolerance was met.
func (r MVResult) Converged() bool {
	return r.Status == Normal
}
