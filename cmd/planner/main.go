// Package main runs the planner: it keeps a plan between the latest source and goal on an
// occupancy grid map and serves it over HTTP.
package main

import (
	"context"
	"time"

	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/gridnav/collision"
	"go.viam.com/gridnav/config"
	"go.viam.com/gridnav/jobmanager"
	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/motionplan"
	"go.viam.com/gridnav/occupancy"
	"go.viam.com/gridnav/services/replan"
	rutils "go.viam.com/gridnav/utils"
	"go.viam.com/gridnav/web"
)

var logger = logging.NewLogger("planner")

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=planner config file"`
	Debug      bool   `flag:"debug"`
	Watch      bool   `flag:"watch,usage=reload log settings when the config file changes"`
}

func main() {
	goutils.ContextualMain(runPlanner, logger)
}

func runPlanner(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := goutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	logging.ReplaceGlobal(logger)
	config.InitLoggingSettings(logger, argsParsed.Debug)

	initialReadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	cfg, err := config.Read(initialReadCtx, argsParsed.ConfigFile, logger)
	cancel()
	if err != nil {
		return err
	}
	config.UpdateFileConfigDebug(cfg.Log.Debug)
	if cfg.Log.File != nil {
		logger.AddAppender(logging.NewFileAppender(*cfg.Log.File))
	}
	if err := cfg.Map.Validate("map"); err != nil {
		return err
	}

	grid, err := occupancy.ReadMapServerFiles(cfg.MapPath())
	if err != nil {
		return err
	}
	checker, err := collision.NewChecker(
		grid, cfg.Robot.CarWidth, cfg.Robot.CarLength, cfg.Planner.CollisionDelta, logger.Sublogger("collision"))
	if err != nil {
		return err
	}
	planner, err := motionplan.NewGridPlanner(checker, cfg.Planner.GridPlannerConfig(), logger.Sublogger("motionplan"))
	if err != nil {
		return err
	}

	broadcaster := web.NewBroadcaster()
	coordinator := replan.NewCoordinator(checker, planner, broadcaster, cfg.Planner.ReplanConfig(), logger)

	jm, err := jobmanager.New(logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, jm.Shutdown())
	}()
	if err := coordinator.Schedule(jm, cfg.Planner.ReconcileInterval); err != nil {
		return err
	}
	jm.Start()

	if argsParsed.Watch {
		watcher, watchErr := config.NewWatcher(ctx, argsParsed.ConfigFile, logger)
		if watchErr != nil {
			return watchErr
		}
		workers := rutils.NewStoppableWorkers(ctx, func(ctx context.Context) {
			for {
				select {
				case <-ctx.Done():
					return
				case newCfg := <-watcher.Config():
					logger.Info("config file changed, only log settings are applied without a restart")
					config.UpdateFileConfigDebug(newCfg.Log.Debug)
				}
			}
		})
		defer func() {
			workers.Stop()
			err = multierr.Combine(err, watcher.Close())
		}()
	}

	return web.NewServer(coordinator, broadcaster, logger).RunWeb(ctx, cfg.Network.BindAddress)
}
