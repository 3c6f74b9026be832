package motionplan

import (
	"github.com/pkg/errors"
)

// ErrPlannerFailed is returned when a planner cannot connect source and target.
var ErrPlannerFailed = errors.New("motion planner failed to find path")

// NewPlannerFailedError returns ErrPlannerFailed.
func NewPlannerFailedError() error {
	return ErrPlannerFailed
}

// NewUnsupportedAlgorithmError is returned when a planner is configured with an unknown mode.
func NewUnsupportedAlgorithmError(algo string) error {
	return errors.Errorf("unsupported planning algorithm %q, must be one of %q or %q", algo, ModeAStar, ModeLazyAStar)
}
