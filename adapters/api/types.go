package api

import (
	"gomvdist/app"
	"gomvdist/domain/bounds"
	"gomvdist/domain/outcome"
	"gomvdist/internal/layout"
)

// ProbabilityBody is the wire form of a rectangle probability request.
// Matrices are row-major: one inner slice per row.
type ProbabilityBody struct {
	Covariance        [][]float64   `json:"covariance" yaml:"covariance"`
	DegreesOfFreedom  int           `json:"degrees_of_freedom" yaml:"degrees_of_freedom"`
	Lower             []float64     `json:"lower" yaml:"lower"`
	Upper             []float64     `json:"upper" yaml:"upper"`
	Kinds             []bounds.Kind `json:"kinds" yaml:"kinds"`
	Constraints       [][]float64   `json:"constraints" yaml:"constraints"`
	Shift             []float64     `json:"shift,omitempty" yaml:"shift,omitempty"`
	MaxEvaluations    int           `json:"max_evaluations,omitempty" yaml:"max_evaluations,omitempty"`
	AbsoluteTolerance float64       `json:"absolute_tolerance,omitempty" yaml:"absolute_tolerance,omitempty"`
	RelativeTolerance float64       `json:"relative_tolerance,omitempty" yaml:"relative_tolerance,omitempty"`
}

// CriticalBody is the wire form of a critical value request
type CriticalBody struct {
	Covariance        [][]float64   `json:"covariance" yaml:"covariance"`
	DegreesOfFreedom  int           `json:"degrees_of_freedom" yaml:"degrees_of_freedom"`
	Lower             []float64     `json:"lower" yaml:"lower"`
	Upper             []float64     `json:"upper" yaml:"upper"`
	Kinds             []bounds.Kind `json:"kinds" yaml:"kinds"`
	Constraints       [][]float64   `json:"constraints" yaml:"constraints"`
	Alpha             float64       `json:"alpha" yaml:"alpha"`
	MaxEvaluations    int           `json:"max_evaluations,omitempty" yaml:"max_evaluations,omitempty"`
	AbsoluteTolerance float64       `json:"absolute_tolerance,omitempty" yaml:"absolute_tolerance,omitempty"`
}

// BatchBody wraps several probability requests
type BatchBody struct {
	Requests []ProbabilityBody `json:"requests" yaml:"requests"`
}

// BatchItem is one entry of a batch response; exactly one of Result and Error is set.
type BatchItem struct {
	Index  int               `json:"index"`
	Result *outcome.MVResult `json:"result,omitempty"`
	Error  *ErrorBody        `json:"error,omitempty"`
}

// ErrorBody is the JSON error envelope
type ErrorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode *int32 `json:"status_code,omitempty"`
}

// ToRequest converts the wire form into a service request
func (b ProbabilityBody) ToRequest() (app.ProbabilityRequest, error) {
	cov, err := layout.FromRows(b.Covariance)
	if err != nil {
		return app.ProbabilityRequest{}, err
	}
	constraints, err := layout.FromRows(b.Constraints)
	if err != nil {
		return app.ProbabilityRequest{}, err
	}
	return app.ProbabilityRequest{
		Covariance:        cov,
		DegreesOfFreedom:  b.DegreesOfFreedom,
		Lower:             b.Lower,
		Upper:             b.Upper,
		Kinds:             b.Kinds,
		Constraints:       constraints,
		Shift:             b.Shift,
		MaxEvaluations:    b.MaxEvaluations,
		AbsoluteTolerance: b.AbsoluteTolerance,
		RelativeTolerance: b.RelativeTolerance,
	}, nil
}

// ToRequest converts the wire form into a service request
func (b CriticalBody) ToRequest() (app.CriticalRequest, error) {
	cov, err := layout.FromRows(b.Covariance)
	if err != nil {
		return app.CriticalRequest{}, err
	}
	constraints, err := layout.FromRows(b.Constraints)
	if err != nil {
		return app.CriticalRequest{}, err
	}
	return app.CriticalRequest{
		Covariance:        cov,
		DegreesOfFreedom:  b.DegreesOfFreedom,
		Lower:             b.Lower,
		Upper:             b.Upper,
		Kinds:             b.Kinds,
		Constraints:       constraints,
		Alpha:             b.Alpha,
		MaxEvaluations:    b.MaxEvaluations,
		AbsoluteTolerance: b.AbsoluteTolerance,
	}, nil
}
