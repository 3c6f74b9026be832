// Package control implements the steering PID law used by the trajectory tracker.
package control

import (
	"sync"
	"time"

	"go.viam.com/gridnav/utils"
)

const defaultErrorBufferLength = 10

// PIDConfig holds the gains of a PID controller and the length of its error history.
type PIDConfig struct {
	Kp              float64 `json:"kp"`
	Ki              float64 `json:"ki"`
	Kd              float64 `json:"kd"`
	ErrorBuffLength int     `json:"error_buff_length"`
}

// DefaultPIDConfig is a proportional-only controller.
func DefaultPIDConfig() PIDConfig {
	return PIDConfig{Kp: 1, ErrorBuffLength: defaultErrorBufferLength}
}

// Validate ensures all parts of the config are valid.
func (cfg *PIDConfig) Validate(path string) error {
	if cfg.ErrorBuffLength < 1 {
		return utils.NewOutOfRangeConfigError(path, "error_buff_length", cfg.ErrorBuffLength, ">= 1")
	}
	return nil
}

// Terms are the components of the last PID output.
type Terms struct {
	Proportional float64
	Integral     float64
	Derivative   float64
	Output       float64
}

// PID is a discrete PID controller whose integral is bounded by its error history. The derivative
// is taken against the newest recorded sample and the integral is recomputed over the whole
// history on every step.
type PID struct {
	mu     sync.Mutex
	cfg    PIDConfig
	buffer *ErrorBuffer
	last   Terms
}

// NewPID returns a PID controller for cfg.
func NewPID(cfg PIDConfig) (*PID, error) {
	if err := cfg.Validate("pid"); err != nil {
		return nil, err
	}
	return &PID{cfg: cfg, buffer: NewErrorBuffer(cfg.ErrorBuffLength)}, nil
}

// Next records err at now and returns kp*err + ki*integral + kd*derivative. The derivative is zero
// when there is no prior sample or no time has passed since it.
func (p *PID) Next(err float64, now time.Time) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var derivative float64
	if prev, ok := p.buffer.Last(); ok {
		if dt := now.Sub(prev.Time).Seconds(); dt != 0 {
			derivative = (err - prev.Value) / dt
		}
	}
	p.buffer.Push(ErrorSample{Time: now, Value: err})
	integral := p.buffer.Integral()

	p.last = Terms{
		Proportional: p.cfg.Kp * err,
		Integral:     p.cfg.Ki * integral,
		Derivative:   p.cfg.Kd * derivative,
	}
	p.last.Output = p.last.Proportional + p.last.Integral + p.last.Derivative
	return p.last.Output
}

// LastTerms returns the weighted terms of the most recent output.
func (p *PID) LastTerms() Terms {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// History returns a copy of the recorded error samples, oldest first.
func (p *PID) History() []ErrorSample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.Samples()
}

// Config returns the controller gains.
func (p *PID) Config() PIDConfig {
	return p.cfg
}

// Reset clears the error history.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer.Reset()
	p.last = Terms{}
}
