package optimizer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/leeforge/catalogkit/errors"
	"github.com/leeforge/catalogkit/logging"
	"github.com/leeforge/catalogkit/media/processor"
)

// ConvertPass re-encodes every source image under the public directory to a
// WebP sibling at the original dimensions. Sources whose WebP is newer are
// skipped. Each converted source is backed up first.
func (o *Optimizer) ConvertPass(ctx context.Context) *Summary {
	ctx = ensureRunID(ctx)
	paths, err := o.walk(ctx, func(path string, _ fs.DirEntry) bool {
		return o.isSource(path)
	})
	if err != nil {
		summary := NewSummary(logging.GetRunID(ctx))
		summary.Add(Result{Pass: PassConvert, Path: o.opts.PublicDir}.fail(err))
		return summary
	}

	root := o.backupRoot(ctx)
	return o.runItems(ctx, paths, func(ctx context.Context, path string) Result {
		return o.convertOne(ctx, root, path)
	})
}

func webpPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + processor.FormatWebP.Ext()
}

func (o *Optimizer) convertOne(ctx context.Context, backupRoot, src string) Result {
	res := Result{Pass: PassConvert, Path: src, Output: webpPath(src)}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return res.fail(apperrors.NewIO("stat", src, err))
	}
	res.InputSize = srcInfo.Size()

	if outInfo, err := os.Stat(res.Output); err == nil && outInfo.ModTime().After(srcInfo.ModTime()) {
		res.Status = StatusSkipped
		res.OutputSize = outInfo.Size()
		res.Reason = "webp is newer than source"
		return res
	}

	data, _, err := readSource(src)
	if err != nil {
		return res.fail(err)
	}

	if err := o.backup(ctx, backupRoot, src, data); err != nil {
		return res.fail(err)
	}

	encoded, err := o.normalizer.Reencode(data, processor.FormatWebP, o.opts.ConvertQuality, o.opts.Background)
	if err != nil {
		return res.fail(err)
	}

	if err := writeOutput(res.Output, processor.FormatWebP, encoded); err != nil {
		return res.fail(err)
	}

	res.Status = StatusConverted
	res.OutputSize = int64(len(encoded))
	return res
}
