package optimizer

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leeforge/catalogkit/concurrency"
	apperrors "github.com/leeforge/catalogkit/errors"
	"github.com/leeforge/catalogkit/logging"
	"github.com/leeforge/catalogkit/media/processor"
	"github.com/leeforge/catalogkit/media/storage"
	"github.com/leeforge/catalogkit/utils"
	"go.uber.org/zap"
)

// Options holds the paths and encoder settings of the batch passes.
type Options struct {
	PublicDir string

	// BackupPrefix names backup directories: <prefix>_<timestamp>.
	BackupPrefix string
	Extensions   []string
	Background   color.Color

	ConvertQuality    int
	OptimizeThreshold int64
	OptimizeQuality   int

	Hero HeroOptions

	Workers int
}

type HeroOptions struct {
	Patterns   []string
	OutputDir  string
	Spec       processor.TargetSpec
	SizeBudget int64
}

// Optimizer runs the convert, optimize and hero passes over a public
// directory. A failing item never stops a pass.
type Optimizer struct {
	opts       Options
	normalizer *processor.Normalizer
	backups    storage.Provider
	exec       *concurrency.ParallelExecutor
	logger     logging.Logger
	now        func() time.Time
}

// New creates an optimizer. backups may be nil to disable source backups.
func New(opts Options, backups storage.Provider, logger logging.Logger) *Optimizer {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.BackupPrefix == "" {
		opts.BackupPrefix = "images_backup"
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{"png", "jpg", "jpeg"}
	}
	if opts.Hero.OutputDir == "" {
		opts.Hero.OutputDir = opts.PublicDir
	}
	return &Optimizer{
		opts:       opts,
		normalizer: processor.NewNormalizer(),
		backups:    backups,
		exec:       concurrency.NewParallelExecutor(opts.Workers),
		logger:     logger.Named("optimizer"),
		now:        time.Now,
	}
}

// Run executes the convert pass followed by the optimize pass. Both passes
// back up into the same directory.
func (o *Optimizer) Run(ctx context.Context) *Summary {
	ctx = ensureRunID(ctx)
	ctx = context.WithValue(ctx, backupRootKey{}, o.backupRoot(ctx))
	summary := NewSummary(logging.GetRunID(ctx))
	summary.Merge(o.ConvertPass(ctx))
	summary.Merge(o.OptimizePass(ctx))
	return summary
}

func ensureRunID(ctx context.Context) context.Context {
	if logging.GetRunID(ctx) != "" {
		return ctx
	}
	return logging.SetRunID(ctx, uuid.NewString())
}

// runItems processes paths on the worker pool and collects results in order.
func (o *Optimizer) runItems(ctx context.Context, paths []string, fn func(context.Context, string) Result) *Summary {
	ctx = ensureRunID(ctx)
	results := make([]Result, len(paths))
	tasks := make([]func(context.Context) error, len(paths))
	for i, path := range paths {
		tasks[i] = func(ctx context.Context) error {
			start := time.Now()
			r := fn(ctx, path)
			r.Duration = time.Since(start)
			results[i] = r
			o.logResult(ctx, r)
			return r.Err
		}
	}

	errs := o.exec.ExecuteContext(ctx, tasks)

	summary := NewSummary(logging.GetRunID(ctx))
	for i, r := range results {
		if r.Status == "" {
			// never started: the context was cancelled
			r = Result{Path: paths[i]}.fail(errs[i])
		}
		summary.Add(r)
	}
	return summary
}

func (o *Optimizer) logResult(ctx context.Context, r Result) {
	logger := logging.WithContext(o.logger, ctx).With(
		zap.String("pass", r.Pass),
		zap.String("path", r.Path),
		zap.String("status", string(r.Status)),
	)

	switch {
	case r.Status == StatusFailed:
		logger.Error("item failed", zap.String("reason", r.Reason))
	case r.Reason != "" && r.wrote():
		logger.Warn("item written with warning",
			zap.String("output", r.Output), zap.Int64("bytes", r.OutputSize), zap.String("reason", r.Reason))
	case r.Status == StatusSkipped || r.Status == StatusUnchanged:
		logger.Info("item left as is", zap.String("reason", r.Reason))
	default:
		logger.Info("item written",
			zap.String("output", r.Output),
			zap.Int64("input_bytes", r.InputSize),
			zap.Int64("output_bytes", r.OutputSize),
			zap.Duration("took", r.Duration))
	}
}

// walk lists regular files under the public directory, skipping backup
// directories, for which keep returns true. Paths come back in lexical order.
func (o *Optimizer) walk(ctx context.Context, keep func(path string, d fs.DirEntry) bool) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(o.opts.PublicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != o.opts.PublicDir && o.isBackupDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && keep(path, d) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.NewIO("walk", o.opts.PublicDir, err)
	}
	return paths, nil
}

func (o *Optimizer) isBackupDir(name string) bool {
	return strings.HasPrefix(name, o.opts.BackupPrefix)
}

func (o *Optimizer) isSource(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, want := range o.opts.Extensions {
		if ext == strings.ToLower(strings.TrimPrefix(want, ".")) {
			return true
		}
	}
	return false
}

type backupRootKey struct{}

// backupRoot is the backup directory name shared by ctx, or the one for a
// pass started now.
func (o *Optimizer) backupRoot(ctx context.Context) string {
	if root, ok := ctx.Value(backupRootKey{}).(string); ok {
		return root
	}
	return fmt.Sprintf("%s_%s", o.opts.BackupPrefix, o.now().Format("20060102_150405"))
}

// backup stores data under <root>/<path relative to the public dir>.
func (o *Optimizer) backup(ctx context.Context, root, path string, data []byte) error {
	if o.backups == nil {
		return nil
	}
	rel, err := filepath.Rel(o.opts.PublicDir, path)
	if err != nil {
		return apperrors.NewIO("backup", path, err)
	}
	if _, err := o.backups.Put(ctx, filepath.ToSlash(filepath.Join(root, rel)), bytes.NewReader(data)); err != nil {
		return err
	}
	return nil
}

// writeOutput replaces path with encoded image data. A failed write is an
// encode failure of format.
func writeOutput(path string, format processor.Format, data []byte) error {
	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		return apperrors.NewEncode(string(format), apperrors.NewIO("write", path, err))
	}
	return nil
}

func readSource(path string) ([]byte, os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, apperrors.NewIO("stat", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, apperrors.NewIO("read", path, err)
	}
	return data, info, nil
}
