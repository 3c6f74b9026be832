// Package main runs the trajectory follower: it fetches the planner's plan once, steers along it
// from a live pose feed, and records how well it tracked.
package main

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/gridnav/config"
	"go.viam.com/gridnav/diagnostics"
	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/services/tracking"
	"go.viam.com/gridnav/spatialmath"
	"go.viam.com/gridnav/web"
)

var logger = logging.NewLogger("follower")

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=follower config file"`
	PlannerURL string `flag:"planner,default=http://localhost:8080,usage=base url of the planner"`
	PoseURL    string `flag:"poses,required,usage=websocket url of the pose feed"`
	CommandURL string `flag:"commands,required,usage=websocket url that accepts drive commands"`
	Debug      bool   `flag:"debug"`
}

func main() {
	goutils.ContextualMain(runFollower, logger)
}

func runFollower(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	logging.ReplaceGlobal(logger)
	config.InitLoggingSettings(logger, argsParsed.Debug)

	cfg, err := config.Read(ctx, argsParsed.ConfigFile, logger)
	if err != nil {
		return err
	}
	config.UpdateFileConfigDebug(cfg.Log.Debug)
	if cfg.Log.File != nil {
		logger.AddAppender(logging.NewFileAppender(*cfg.Log.File))
	}

	// The plan hand-off and the command connection are independent; set both up at once.
	var (
		plan     []spatialmath.Configuration
		commands *web.CommandWriter
	)
	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	setup, setupCtx := errgroup.WithContext(setupCtx)
	setup.Go(func() error {
		var err error
		plan, err = web.FetchPlan(setupCtx, nil, argsParsed.PlannerURL)
		return err
	})
	setup.Go(func() error {
		var err error
		commands, err = web.DialCommandWriter(setupCtx, argsParsed.CommandURL)
		return err
	})
	err = setup.Wait()
	cancel()
	if commands != nil {
		defer func() {
			err = multierr.Combine(err, commands.Close())
		}()
	}
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		return errors.New("planner has no plan to follow")
	}
	logger.Infow("following plan", "waypoints", len(plan))

	tracker, err := tracking.NewTracker(plan, cfg.Tracker, clock.New(), logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, writeDiagnostics(cfg.Diagnostics, tracker, logger))
	}()

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	return tracker.Run(ctx, web.DialPoseFeed(feedCtx, argsParsed.PoseURL, logger), commands)
}

func writeDiagnostics(cfg config.DiagnosticsConfig, tracker *tracking.Tracker, logger logging.Logger) error {
	errs := tracker.Errors()
	summary, err := diagnostics.Summarize(errs)
	if err == nil {
		logger.Infow("tracking summary",
			"samples", summary.Count,
			"mean", summary.Mean,
			"stddev", summary.StdDev,
			"max_abs", summary.MaxAbs,
			"median", summary.Median)
	}

	var result error
	if cfg.Dump {
		path, err := diagnostics.DumpErrors(cfg.OutputDir, tracker.Gains(), errs)
		result = multierr.Append(result, err)
		if err == nil {
			logger.Infow("wrote error trace", "path", path)
		}
	}
	if cfg.Plot {
		path, err := diagnostics.PlotErrors(cfg.OutputDir, tracker.Gains(), errs)
		result = multierr.Append(result, err)
		if err == nil {
			logger.Infow("wrote error plot", "path", path)
		}
	}
	return result
}
