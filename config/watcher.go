package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/sodistec/sodistec/logging"
	"github.com/sodistec/sodistec/utils"
)

// reloadDelay is how long the file has to be quiet before it is re-read. Editors and config
// management tools often save in several writes.
var reloadDelay = 200 * time.Millisecond

// A Watcher re-reads a config file whenever it changes on disk and hands every valid new config
// to a callback. Invalid intermediate versions, e.g. a partially written file, are logged and
// skipped. Nothing is ever written back to the file.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	workers   utils.StoppableWorkers
}

// NewWatcher starts watching filePath. The directory is watched rather than the file so that
// editors replacing the file via rename are still observed.
func NewWatcher(
	ctx context.Context,
	filePath string,
	logger logging.Logger,
	onChange func(*Config),
) (*Watcher, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "cannot create config watcher")
	}
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot watch %q", filePath), fsWatcher.Close())
	}

	w := &Watcher{fsWatcher: fsWatcher}
	reload := make(chan struct{}, 1)
	debounced := debounce.New(reloadDelay)
	w.workers = utils.NewStoppableWorkersWithContext(ctx, func(ctx context.Context) {
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
				if filepath.Clean(event.Name) != absPath || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				debounced(func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})
			case <-reload:
				cfg, err := Read(ctx, filePath, logger)
				if err != nil {
					logger.Warnw("ignoring invalid config change", "path", filePath, "error", err)
					continue
				}
				logger.Infow("config changed", "path", filePath)
				onChange(cfg)
			}
		}
	})
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.fsWatcher.Close()
	w.workers.Stop()
	return err
}
