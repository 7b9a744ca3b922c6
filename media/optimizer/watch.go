package optimizer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leeforge/catalogkit/concurrency"
	apperrors "github.com/leeforge/catalogkit/errors"
	"github.com/leeforge/catalogkit/logging"
	"go.uber.org/zap"
)

// Watch converts source images as they are created or rewritten below the
// public directory until ctx is done. A file is converted once it has been
// quiet for debounce. onResult, when set, sees every result.
func (o *Optimizer) Watch(ctx context.Context, debounce time.Duration, onResult func(Result)) error {
	ctx = ensureRunID(ctx)
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.WrapWithType(err, apperrors.ErrorTypeIO, "create watcher")
	}
	defer watcher.Close()

	if err := o.watchTree(watcher, o.opts.PublicDir); err != nil {
		return err
	}

	logger := logging.WithContext(o.logger, ctx)
	logger.Info("watching", zap.String("dir", o.opts.PublicDir), zap.Duration("debounce", debounce))

	root := o.backupRoot(ctx)
	sem := concurrency.NewSemaphore(o.exec.Workers())
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if !o.isBackupDir(info.Name()) {
						if err := o.watchTree(watcher, ev.Name); err != nil {
							logger.Warn("watch directory", zap.String("dir", ev.Name), zap.Error(err))
						}
					}
					continue
				}
			}
			if (ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) && o.isSource(ev.Name) {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))

		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < debounce {
					continue
				}
				delete(pending, path)

				if err := sem.Acquire(ctx); err != nil {
					return nil
				}
				wg.Add(1)
				go func(path string) {
					defer wg.Done()
					defer sem.Release()

					start := time.Now()
					r := o.convertOne(ctx, root, path)
					r.Duration = time.Since(start)
					o.logResult(ctx, r)
					if onResult != nil {
						onResult(r)
					}
				}(path)
			}
		}
	}
}

// watchTree adds dir and every non-backup directory below it.
func (o *Optimizer) watchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && o.isBackupDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return apperrors.NewIO("watch", path, err)
		}
		return nil
	})
}
