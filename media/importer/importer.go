// Package importer copies externally supplied product photos into the asset
// store under their catalog file names.
package importer

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	apperrors "github.com/leeforge/catalogkit/errors"
	"github.com/leeforge/catalogkit/logging"
	"github.com/leeforge/catalogkit/media/storage"
	"go.uber.org/zap"
)

// Mapping names one source file, relative to the source directory, and the
// file name it gets in the target folder.
type Mapping struct {
	Source string
	Target string
}

type Options struct {
	SourceDir    string
	TargetFolder string

	// BackupFolder receives a copy of the target folder before the first
	// import. An existing non-empty backup is never overwritten.
	BackupFolder string
	Mapping      []Mapping
}

// Result is the outcome of one mapping entry.
type Result struct {
	Source string
	Target string
	URL    string
	Size   int64
	Err    error
}

func (r Result) OK() bool {
	return r.Err == nil
}

type Report struct {
	RunID    string
	BackedUp int
	Results  []Result
	Duration time.Duration
}

func (r *Report) Copied() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

func (r *Report) Failed() int {
	return len(r.Results) - r.Copied()
}

// Errors collects the failed entries.
func (r *Report) Errors() *apperrors.ErrorChain {
	chain := apperrors.NewErrorChain()
	for _, res := range r.Results {
		chain.Add(res.Err)
	}
	return chain
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d copied, %d failed", r.RunID, r.Copied(), r.Failed())
	if r.BackedUp > 0 {
		fmt.Fprintf(&b, ", %d backed up", r.BackedUp)
	}
	b.WriteString("\n")

	var total uint64
	for _, res := range r.Results {
		if res.OK() {
			total += uint64(res.Size)
			fmt.Fprintf(&b, "  + %s -> %s (%s)\n", res.Source, res.Target, humanize.Bytes(uint64(res.Size)))
		}
	}
	if total > 0 {
		fmt.Fprintf(&b, "copied %s\n", humanize.Bytes(total))
	}

	if r.Failed() > 0 {
		b.WriteString("failed:\n")
		f := apperrors.NewErrorFormatter(false, true)
		for _, res := range r.Results {
			if !res.OK() {
				fmt.Fprintf(&b, "  - %s: %s\n", res.Source, f.Format(res.Err))
			}
		}
	}
	return b.String()
}

// Importer copies mapped files from a local directory into a Provider.
type Importer struct {
	opts   Options
	store  storage.Provider
	logger logging.Logger
}

func New(opts Options, store storage.Provider, logger logging.Logger) *Importer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Importer{
		opts:   opts,
		store:  store,
		logger: logger.Named("importer"),
	}
}

// Run backs up the target folder once, then copies every mapping entry in
// order. Missing sources are reported as NotFound; no entry stops the rest.
// Only a failed backup or a cancelled context aborts the run.
func (im *Importer) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: logging.GetRunID(ctx)}
	logger := logging.WithContext(im.logger, ctx)

	backedUp, err := im.backup(ctx)
	if err != nil {
		return nil, err
	}
	report.BackedUp = backedUp
	if backedUp > 0 {
		logger.Info("target folder backed up",
			zap.String("backup", im.opts.BackupFolder),
			zap.Int("objects", backedUp))
	}

	for _, m := range im.opts.Mapping {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := im.copyOne(ctx, m)
		report.Results = append(report.Results, res)
		if res.OK() {
			logger.Info("copied",
				zap.String("source", res.Source),
				zap.String("target", res.Target),
				zap.Int64("size", res.Size))
		} else {
			logger.Warn("copy failed", zap.String("source", res.Source), zap.Error(res.Err))
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (im *Importer) copyOne(ctx context.Context, m Mapping) Result {
	res := Result{Source: m.Source, Target: path.Join(im.opts.TargetFolder, m.Target)}

	src := filepath.Join(im.opts.SourceDir, filepath.FromSlash(m.Source))
	f, err := os.Open(src)
	if os.IsNotExist(err) {
		res.Err = apperrors.NewNotFound("source image", m.Source)
		return res
	}
	if err != nil {
		res.Err = apperrors.NewIO("open", src, err)
		return res
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		res.Err = apperrors.NewIO("stat", src, err)
		return res
	}
	if info.IsDir() {
		res.Err = apperrors.NewValidation(fmt.Sprintf("source %q is a directory", m.Source))
		return res
	}

	url, err := im.store.Put(ctx, res.Target, f)
	if err != nil {
		res.Err = apperrors.Wrap(err, "put "+res.Target)
		return res
	}
	res.URL = url
	res.Size = info.Size()
	return res
}

// backup copies every object below the target folder to the backup folder,
// unless the backup folder already holds objects or the target is empty.
func (im *Importer) backup(ctx context.Context) (int, error) {
	if im.opts.BackupFolder == "" {
		return 0, nil
	}

	existing, err := im.store.List(ctx, im.opts.BackupFolder)
	if err != nil {
		return 0, apperrors.Wrap(err, "list backup folder")
	}
	if len(existing) > 0 {
		return 0, nil
	}

	objects, err := im.store.List(ctx, im.opts.TargetFolder)
	if err != nil {
		return 0, apperrors.Wrap(err, "list target folder")
	}

	prefix := strings.Trim(im.opts.TargetFolder, "/") + "/"
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Path, prefix)
		if err := im.copyObject(ctx, obj.Path, path.Join(im.opts.BackupFolder, rel)); err != nil {
			return 0, err
		}
	}
	return len(objects), nil
}

func (im *Importer) copyObject(ctx context.Context, from, to string) error {
	rc, err := im.store.Open(ctx, from)
	if err != nil {
		return apperrors.Wrap(err, "backup "+from)
	}
	defer rc.Close()

	if _, err := im.store.Put(ctx, to, rc); err != nil {
		return apperrors.Wrap(err, "backup "+from)
	}
	return nil
}
