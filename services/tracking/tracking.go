// Package tracking follows a plan with a PID steering law driven by pose observations.
package tracking

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/gridnav/control"
	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/spatialmath"
	"go.viam.com/gridnav/utils"
)

// Config configures a Tracker.
type Config struct {
	PlanLookahead     int     `json:"plan_lookahead"`
	TranslationWeight float64 `json:"translation_weight"`
	RotationWeight    float64 `json:"rotation_weight"`
	Speed             float64 `json:"speed"`
	control.PIDConfig
}

// DefaultConfig returns the tracker defaults: steer on lateral error only, proportionally.
func DefaultConfig() Config {
	return Config{
		PlanLookahead:     5,
		TranslationWeight: 1,
		RotationWeight:    0,
		Speed:             1,
		PIDConfig:         control.DefaultPIDConfig(),
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.PlanLookahead < 0 {
		return utils.NewOutOfRangeConfigError(path, "plan_lookahead", cfg.PlanLookahead, ">= 0")
	}
	if cfg.TranslationWeight < 0 {
		return utils.NewOutOfRangeConfigError(path, "translation_weight", cfg.TranslationWeight, ">= 0")
	}
	if cfg.RotationWeight < 0 {
		return utils.NewOutOfRangeConfigError(path, "rotation_weight", cfg.RotationWeight, ">= 0")
	}
	if cfg.TranslationWeight+cfg.RotationWeight == 0 {
		return utils.NewConfigValidationError(path, errors.New("translation_weight and rotation_weight cannot both be 0"))
	}
	if cfg.Speed < 0 {
		return utils.NewOutOfRangeConfigError(path, "speed", cfg.Speed, ">= 0")
	}
	return cfg.PIDConfig.Validate(path)
}

// DriveCommand is a steering angle in radians and a speed in meters per second.
type DriveCommand struct {
	SteeringAngle float64 `json:"steering_angle"`
	Speed         float64 `json:"speed"`
}

// CommandSink accepts one drive command per pose observation.
type CommandSink interface {
	SendCommand(ctx context.Context, cmd DriveCommand) error
}

// CommandSinkFunc adapts a function to the CommandSink interface.
type CommandSinkFunc func(ctx context.Context, cmd DriveCommand) error

// SendCommand calls f.
func (f CommandSinkFunc) SendCommand(ctx context.Context, cmd DriveCommand) error {
	return f(ctx, cmd)
}

// Tracker steers along a plan. It owns its copy of the plan and drops waypoints as they fall
// behind the robot. A Tracker is not safe for concurrent use.
type Tracker struct {
	remaining         []spatialmath.Configuration
	lookahead         int
	translationWeight float64
	rotationWeight    float64
	speed             float64
	pid               *control.PID
	clock             clock.Clock
	errors            []float64
	done              bool
	logger            logging.Logger
}

// NewTracker returns a tracker following a copy of plan. A nil clk uses the wall clock.
func NewTracker(plan []spatialmath.Configuration, cfg Config, clk clock.Clock, logger logging.Logger) (*Tracker, error) {
	if err := cfg.Validate("tracker"); err != nil {
		return nil, err
	}
	pid, err := control.NewPID(cfg.PIDConfig)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	total := cfg.TranslationWeight + cfg.RotationWeight
	return &Tracker{
		remaining:         append([]spatialmath.Configuration{}, plan...),
		lookahead:         cfg.PlanLookahead,
		translationWeight: cfg.TranslationWeight / total,
		rotationWeight:    cfg.RotationWeight / total,
		speed:             cfg.Speed,
		pid:               pid,
		clock:             clk,
		logger:            logger.Sublogger("tracking"),
	}, nil
}

// ComputeError drops the leading waypoints that are not in front of pose and returns the weighted
// lateral and heading error to the lookahead waypoint. It returns false once the plan is empty.
func (t *Tracker) ComputeError(pose spatialmath.Configuration) (bool, float64) {
	for len(t.remaining) > 0 {
		if spatialmath.ToRobotFrame(pose, t.remaining[0].Position()).X > 0 {
			break
		}
		t.remaining = t.remaining[1:]
	}
	if len(t.remaining) == 0 {
		return false, 0
	}

	goal := t.remaining[min(t.lookahead, len(t.remaining)-1)]
	translationError := spatialmath.ToRobotFrame(pose, goal.Position()).Y
	rotationError := goal.Theta - pose.Theta

	err := t.translationWeight*translationError + t.rotationWeight*rotationError
	t.errors = append(t.errors, err)
	return true, err
}

// ComputeSteeringAngle returns the PID output for err at the current clock time.
func (t *Tracker) ComputeSteeringAngle(err float64) float64 {
	return t.pid.Next(err, t.clock.Now())
}

// HandlePose runs one control step and reports whether the plan is complete. When the plan
// completes the returned command has zero speed and every later command does too.
func (t *Tracker) HandlePose(ctx context.Context, pose spatialmath.Configuration) (DriveCommand, bool) {
	ok, err := t.ComputeError(pose)
	if !ok {
		if !t.done {
			t.logger.Infow("trajectory complete", "pose", pose.String(), "samples", len(t.errors))
		}
		t.done = true
		t.speed = 0
	}
	cmd := DriveCommand{SteeringAngle: t.ComputeSteeringAngle(err), Speed: t.speed}
	t.logger.CDebugw(ctx, "control step", "error", err, "steering_deg", utils.RadToDeg(cmd.SteeringAngle), "remaining", len(t.remaining))
	return cmd, t.done
}

// Run handles poses in arrival order and sends one command per pose to sink. It returns nil after
// sending the stop command for a completed plan.
func (t *Tracker) Run(ctx context.Context, poses <-chan spatialmath.Configuration, sink CommandSink) error {
	for {
		var pose spatialmath.Configuration
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-poses:
			if !ok {
				return errors.New("pose feed closed before the plan was complete")
			}
			pose = p
		}

		cmd, done := t.HandlePose(ctx, pose)
		if err := sink.SendCommand(ctx, cmd); err != nil {
			return errors.Wrap(err, "sending drive command")
		}
		if done {
			return nil
		}
	}
}

// Remaining returns a copy of the waypoints not yet passed.
func (t *Tracker) Remaining() []spatialmath.Configuration {
	return append([]spatialmath.Configuration{}, t.remaining...)
}

// Errors returns a copy of every error computed so far.
func (t *Tracker) Errors() []float64 {
	return append([]float64{}, t.errors...)
}

// Gains returns the PID configuration.
func (t *Tracker) Gains() control.PIDConfig {
	return t.pid.Config()
}
