package optimizer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	apperrors "github.com/leeforge/catalogkit/errors"
	"github.com/leeforge/catalogkit/logging"
)

// HeroPass normalizes every hero image matched by the configured patterns
// to the hero spec and writes <base><ext> into the output directory.
func (o *Optimizer) HeroPass(ctx context.Context) *Summary {
	ctx = ensureRunID(ctx)

	if err := o.opts.Hero.Spec.Validate(); err != nil {
		summary := NewSummary(logging.GetRunID(ctx))
		summary.Add(Result{Pass: PassHero, Path: o.opts.PublicDir}.fail(err))
		return summary
	}

	paths, err := o.heroSources()
	if err != nil {
		summary := NewSummary(logging.GetRunID(ctx))
		summary.Add(Result{Pass: PassHero, Path: o.opts.PublicDir}.fail(err))
		return summary
	}

	return o.runItems(ctx, paths, o.heroOne)
}

func (o *Optimizer) heroSources() ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	for _, pattern := range o.opts.Hero.Patterns {
		matches, err := filepath.Glob(filepath.Join(o.opts.PublicDir, pattern))
		if err != nil {
			return nil, apperrors.NewInvalidSpec("pattern", pattern, err.Error())
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (o *Optimizer) heroOutput(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(o.opts.Hero.OutputDir, base+o.opts.Hero.Spec.Format.Ext())
}

func (o *Optimizer) heroOne(ctx context.Context, src string) Result {
	res := Result{Pass: PassHero, Path: src, Output: o.heroOutput(src)}

	data, _, err := readSource(src)
	if err != nil {
		return res.fail(err)
	}
	res.InputSize = int64(len(data))

	encoded, err := o.normalizer.NormalizeBytes(data, o.opts.Hero.Spec)
	if err != nil {
		return res.fail(err)
	}

	if err := writeOutput(res.Output, o.opts.Hero.Spec.Format, encoded); err != nil {
		return res.fail(err)
	}

	res.Status = StatusConverted
	res.OutputSize = int64(len(encoded))
	if budget := o.opts.Hero.SizeBudget; budget > 0 && res.OutputSize > budget {
		res.Reason = fmt.Sprintf("%s exceeds the %s budget",
			humanize.Bytes(uint64(res.OutputSize)), humanize.Bytes(uint64(budget)))
	}
	return res
}
