package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/utils"
)

// Editors often write a file in several steps; wait for them to settle before re-reading.
const reloadDebounce = 250 * time.Millisecond

// A Watcher is responsible for producing configs whenever the config file changes.
type Watcher interface {
	Config() <-chan *Config
	Close() error
}

type fsConfigWatcher struct {
	fsWatcher *fsnotify.Watcher
	configCh  chan *Config
	workers   utils.StoppableWorkers
}

// NewWatcher returns a Watcher that re-reads the config at path when it is written or replaced.
// Configs that fail to read are logged and skipped.
func NewWatcher(ctx context.Context, path string, logger logging.Logger) (Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: atomic saves replace the file, which drops a watch on the file itself.
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "failed to watch config directory"), fsWatcher.Close())
	}

	w := &fsConfigWatcher{fsWatcher: fsWatcher, configCh: make(chan *Config)}
	debounced := debounce.New(reloadDebounce)
	reload := make(chan struct{}, 1)
	w.workers = utils.NewStoppableWorkers(ctx, func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				logger.Warnw("config watcher error", "error", err)
			case event, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				debounced(func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})
			case <-reload:
				cfg, err := Read(ctx, abs, logger)
				if err != nil {
					logger.Warnw("failed to reload config", "path", abs, "error", err)
					continue
				}
				select {
				case w.configCh <- cfg:
				case <-ctx.Done():
					return
				}
			}
		}
	})
	return w, nil
}

// Config returns a channel of configs read after each change.
func (w *fsConfigWatcher) Config() <-chan *Config {
	return w.configCh
}

// Close stops watching the file.
func (w *fsConfigWatcher) Close() error {
	w.workers.Stop()
	return w.fsWatcher.Close()
}
