package optimizer

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/leeforge/catalogkit/logging"
	"github.com/leeforge/catalogkit/media/processor"
)

// OptimizePass re-encodes WebP files at or above the size threshold and
// keeps the new encoding only when it is strictly smaller. A replaced file
// is backed up first.
func (o *Optimizer) OptimizePass(ctx context.Context) *Summary {
	ctx = ensureRunID(ctx)
	paths, err := o.walk(ctx, func(path string, d fs.DirEntry) bool {
		if !strings.EqualFold(filepath.Ext(path), processor.FormatWebP.Ext()) {
			return false
		}
		info, err := d.Info()
		return err == nil && info.Size() >= o.opts.OptimizeThreshold
	})
	if err != nil {
		summary := NewSummary(logging.GetRunID(ctx))
		summary.Add(Result{Pass: PassOptimize, Path: o.opts.PublicDir}.fail(err))
		return summary
	}

	root := o.backupRoot(ctx)
	return o.runItems(ctx, paths, func(ctx context.Context, path string) Result {
		return o.optimizeOne(ctx, root, path)
	})
}

func (o *Optimizer) optimizeOne(ctx context.Context, backupRoot, path string) Result {
	res := Result{Pass: PassOptimize, Path: path, Output: path}

	data, _, err := readSource(path)
	if err != nil {
		return res.fail(err)
	}
	res.InputSize = int64(len(data))

	encoded, err := o.normalizer.Reencode(data, processor.FormatWebP, o.opts.OptimizeQuality, o.opts.Background)
	if err != nil {
		return res.fail(err)
	}

	if int64(len(encoded)) >= res.InputSize {
		res.Status = StatusUnchanged
		res.OutputSize = res.InputSize
		res.Reason = "re-encoding is not smaller"
		return res
	}

	if err := o.backup(ctx, backupRoot, path, data); err != nil {
		return res.fail(err)
	}
	if err := writeOutput(path, processor.FormatWebP, encoded); err != nil {
		return res.fail(err)
	}

	res.Status = StatusOptimized
	res.OutputSize = int64(len(encoded))
	return res
}
