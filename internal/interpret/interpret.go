// Package interpret turns raw routine status codes into typed outcomes or errors.
package interpret

import (
	"gomvdist/domain/outcome"
	"gomvdist/internal/errors"
	"gomvdist/ports"
)

// Status codes shared by both routine entry points.
const (
	InformNormal  int32 = 0
	InformLimit   int32 = 1
	InformInvalid int32 = 2
	InformNotPSD  int32 = 3
)

type failure struct {
	code    string
	message string
}

// Failure vocabularies. Anything not listed, and not 0 or 1, is unrecognized.
var (
	probabilityFailures = map[int32]failure{
		InformInvalid: {errors.CodeInvalidDimension, "invalid dimensionality selection"},
		InformNotPSD:  {errors.CodeNotPSD, "covariance matrix not positive semidefinite"},
	}
	criticalFailures = map[int32]failure{
		InformInvalid: {errors.CodeInvalidBounds, "invalid bounds supplied"},
	}
)

// Probability interprets an MVDist outcome.
func Probability(raw ports.RawOutcome) (outcome.MVResult, error) {
	return interpret(raw, probabilityFailures)
}

// Critical interprets an MVCrit outcome.
func Critical(raw ports.RawOutcome) (outcome.MVResult, error) {
	return interpret(raw, criticalFailures)
}

func interpret(raw ports.RawOutcome, failures map[int32]failure) (outcome.MVResult, error) {
	var status outcome.Status
	switch raw.Inform {
	case InformNormal:
		status = outcome.Normal
	case InformLimit:
		status = outcome.EvaluationLimitReached
	default:
		if f, ok := failures[raw.Inform]; ok {
			return outcome.MVResult{}, errors.RoutineFailure(f.code, f.message, raw.Inform)
		}
		return outcome.MVResult{}, errors.UnrecognizedStatus(raw.Inform)
	}

	return outcome.MVResult{
		Value:       raw.Value,
		Error:       raw.Error,
		Evaluations: raw.Evaluations,
		Status:      status,
	}, nil
}
