// Package config defines the structures to configure the planner and follower processes.
package config

import (
	"net"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/motionplan"
	"go.viam.com/gridnav/services/replan"
	"go.viam.com/gridnav/services/tracking"
	"go.viam.com/gridnav/utils"
)

const (
	// DefaultBindAddress is the default address that will be listened on. This default may
	// not be used in some situations.
	DefaultBindAddress = "localhost:8080"

	defaultCarSize           = 0.33
	defaultCollisionDelta    = 0.05
	defaultLatticeResolution = 0.1
	defaultReconcileInterval = time.Second
)

// A Config describes the configuration of a gridnav deployment.
type Config struct {
	ConfigFilePath string `json:"-"`

	Map         MapConfig         `json:"map"`
	Robot       RobotConfig       `json:"robot"`
	Planner     PlannerConfig     `json:"planner"`
	Tracker     tracking.Config   `json:"tracker"`
	Network     NetworkConfig     `json:"network"`
	Diagnostics DiagnosticsConfig `json:"diagnostics"`
	Log         LogConfig         `json:"log"`
}

// Default returns a config with every field set to its default.
func Default() *Config {
	return &Config{
		Robot: RobotConfig{CarWidth: defaultCarSize, CarLength: defaultCarSize},
		Planner: PlannerConfig{
			CollisionDelta:        defaultCollisionDelta,
			LatticeResolution:     defaultLatticeResolution,
			Algo:                  motionplan.ModeAStar,
			OrientationWindowSize: replan.DefaultOrientationWindowSize,
			ReconcileInterval:     defaultReconcileInterval,
		},
		Tracker: tracking.DefaultConfig(),
		Network: NetworkConfig{BindAddress: DefaultBindAddress},
	}
}

// Ensure ensures all parts of the config are valid. The map section is only required by the
// planner and is validated there.
func (c *Config) Ensure() error {
	if err := c.Robot.Validate("robot"); err != nil {
		return err
	}
	if err := c.Planner.Validate("planner"); err != nil {
		return err
	}
	if err := c.Tracker.Validate("tracker"); err != nil {
		return err
	}
	if err := c.Network.Validate("network"); err != nil {
		return err
	}
	return c.Log.Validate("log")
}

// MapPath returns the map descriptor path, resolved against the config file's directory.
func (c *Config) MapPath() string {
	if c.Map.YAML == "" || filepath.IsAbs(c.Map.YAML) || c.ConfigFilePath == "" {
		return c.Map.YAML
	}
	return filepath.Join(filepath.Dir(c.ConfigFilePath), c.Map.YAML)
}

// MapConfig points at a map_server style map descriptor.
type MapConfig struct {
	YAML string `json:"yaml"`
}

// Validate ensures all parts of the config are valid.
func (cfg *MapConfig) Validate(path string) error {
	if cfg.YAML == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "yaml")
	}
	return nil
}

// RobotConfig describes the car footprint in meters.
type RobotConfig struct {
	CarWidth  float64 `json:"car_width"`
	CarLength float64 `json:"car_length"`
}

// Validate ensures all parts of the config are valid.
func (cfg *RobotConfig) Validate(path string) error {
	if cfg.CarWidth <= 0 {
		return utils.NewOutOfRangeConfigError(path, "car_width", cfg.CarWidth, "> 0")
	}
	if cfg.CarLength <= 0 {
		return utils.NewOutOfRangeConfigError(path, "car_length", cfg.CarLength, "> 0")
	}
	return nil
}

// PlannerConfig configures collision checking, the grid planner and the replan loop.
type PlannerConfig struct {
	CollisionDelta        float64       `json:"collision_delta"`
	LatticeResolution     float64       `json:"lattice_resolution"`
	Algo                  string        `json:"algo"`
	OrientationWindowSize int           `json:"orientation_window_size"`
	ReconcileInterval     time.Duration `json:"reconcile_interval"`
}

// Validate ensures all parts of the config are valid.
func (cfg *PlannerConfig) Validate(path string) error {
	if cfg.CollisionDelta <= 0 {
		return utils.NewOutOfRangeConfigError(path, "collision_delta", cfg.CollisionDelta, "> 0")
	}
	if cfg.LatticeResolution <= 0 {
		return utils.NewOutOfRangeConfigError(path, "lattice_resolution", cfg.LatticeResolution, "> 0")
	}
	switch cfg.Algo {
	case motionplan.ModeAStar, motionplan.ModeLazyAStar:
	default:
		return utils.NewConfigValidationError(path, motionplan.NewUnsupportedAlgorithmError(cfg.Algo))
	}
	if cfg.OrientationWindowSize < 1 {
		return utils.NewOutOfRangeConfigError(path, "orientation_window_size", cfg.OrientationWindowSize, ">= 1")
	}
	if cfg.ReconcileInterval <= 0 {
		return utils.NewOutOfRangeConfigError(path, "reconcile_interval", cfg.ReconcileInterval, "> 0")
	}
	return nil
}

// GridPlannerConfig returns the grid planner settings.
func (cfg *PlannerConfig) GridPlannerConfig() motionplan.GridPlannerConfig {
	return motionplan.GridPlannerConfig{Mode: cfg.Algo, LatticeResolution: cfg.LatticeResolution}
}

// ReplanConfig returns the coordinator settings.
func (cfg *PlannerConfig) ReplanConfig() replan.Config {
	return replan.Config{OrientationWindowSize: cfg.OrientationWindowSize}
}

// NetworkConfig describes networking settings for the web server.
type NetworkConfig struct {
	// BindAddress is the address that the web server will bind to.
	BindAddress string `json:"bind_address"`
}

// Validate ensures all parts of the config are valid.
func (nc *NetworkConfig) Validate(path string) error {
	if nc.BindAddress == "" {
		nc.BindAddress = DefaultBindAddress
	}
	if _, _, err := net.SplitHostPort(nc.BindAddress); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "error validating bind_address"))
	}
	return nil
}

// DiagnosticsConfig controls what the follower writes about its error trace on exit.
type DiagnosticsConfig struct {
	OutputDir string `json:"output_dir"`
	Dump      bool   `json:"dump"`
	Plot      bool   `json:"plot"`
}

// LogConfig controls log verbosity and an optional rotating log file.
type LogConfig struct {
	Debug bool                `json:"debug"`
	File  *logging.FileConfig `json:"file,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *LogConfig) Validate(path string) error {
	if cfg.File != nil && cfg.File.Path == "" {
		return utils.NewConfigValidationFieldRequiredError(path+".file", "path")
	}
	return nil
}
