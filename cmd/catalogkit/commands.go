package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/leeforge/catalogkit/catalog"
	"github.com/leeforge/catalogkit/config"
	"github.com/leeforge/catalogkit/logging"
	"github.com/leeforge/catalogkit/media/importer"
	"github.com/leeforge/catalogkit/media/optimizer"
	"github.com/leeforge/catalogkit/media/processor"
	"github.com/leeforge/catalogkit/media/storage"
	"go.uber.org/zap"
)

type app struct {
	settings *config.Settings
	logger   logging.Logger
	stdout   io.Writer
	stderr   io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"optimize":      {summary: "convert png/jpg to webp, then shrink large webp files", run: runOptimize},
	"hero":          {summary: "normalize hero images to the portrait target", run: runHero},
	"watch":         {summary: "convert new source images as they appear", run: runWatch},
	"audit":         {summary: "report incomplete products and broken image references", run: runAudit},
	"enrich":        {summary: "merge enrichment records into the catalog", run: runEnrich},
	"spellcheck":    {summary: "find (and with -fix, correct) misspellings in product copy", run: runSpellcheck},
	"import-images": {summary: "copy mapped source photos into the asset store", run: runImportImages},
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) storage() (storage.Provider, error) {
	return storage.NewProvider(a.settings.Storage)
}

func (a *app) heroSpec() (processor.TargetSpec, error) {
	h := a.settings.Media.Hero
	bg, err := processor.ParseColor(h.Background)
	if err != nil {
		return processor.TargetSpec{}, err
	}
	format, err := processor.ParseFormat(h.Format)
	if err != nil {
		return processor.TargetSpec{}, err
	}
	anchor, err := processor.ParseAnchor(h.Anchor)
	if err != nil {
		return processor.TargetSpec{}, err
	}
	return processor.TargetSpec{
		Width:      h.Width,
		Height:     h.Height,
		Background: bg,
		Quality:    *h.Quality,
		Format:     format,
		Anchor:     anchor,
	}, nil
}

func (a *app) optimizer(workers int) (*optimizer.Optimizer, error) {
	s := a.settings
	spec, err := a.heroSpec()
	if err != nil {
		return nil, err
	}
	backups, err := a.storage()
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = s.Workers
	}

	return optimizer.New(optimizer.Options{
		PublicDir:         s.Media.PublicDir,
		BackupPrefix:      s.Media.BackupPrefix,
		Extensions:        s.Media.Convert.Extensions,
		Background:        spec.Background,
		ConvertQuality:    *s.Media.Convert.Quality,
		OptimizeThreshold: s.Media.Optimize.Threshold,
		OptimizeQuality:   *s.Media.Optimize.Quality,
		Hero: optimizer.HeroOptions{
			Patterns:   s.Media.Hero.Patterns,
			OutputDir:  s.HeroOutputDir(),
			Spec:       spec,
			SizeBudget: s.Media.Hero.SizeBudget,
		},
		Workers: workers,
	}, backups, a.logger), nil
}

func (a *app) catalogStore(ctx context.Context, path string) (*catalog.FileStore, []catalog.Product, error) {
	if path == "" {
		path = a.settings.Catalog.Path
	}
	store, err := catalog.NewFileStore(path)
	if err != nil {
		return nil, nil, err
	}
	records, err := store.ReadAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	return store, records, nil
}

func (a *app) logSummary(s *optimizer.Summary) {
	a.logger.Info("pass finished",
		zap.Int("converted", s.Count(optimizer.StatusConverted)),
		zap.Int("optimized", s.Count(optimizer.StatusOptimized)),
		zap.Int("skipped", s.Count(optimizer.StatusSkipped)),
		zap.Int("unchanged", s.Count(optimizer.StatusUnchanged)),
		zap.Int("failed", s.Count(optimizer.StatusFailed)),
		zap.Int64("saved_bytes", s.Saved()))
}

func runOptimize(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("optimize")
	workers := fs.Int("workers", 0, "parallel items (default from settings)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	o, err := a.optimizer(*workers)
	if err != nil {
		return err
	}
	summary := o.Run(ctx)
	fmt.Fprint(a.stdout, summary.String())
	a.logSummary(summary)
	return nil
}

func runHero(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("hero")
	workers := fs.Int("workers", 0, "parallel items (default from settings)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	o, err := a.optimizer(*workers)
	if err != nil {
		return err
	}
	summary := o.HeroPass(ctx)
	fmt.Fprint(a.stdout, summary.String())
	a.logSummary(summary)
	return nil
}

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("watch")
	debounce := fs.Duration("debounce", a.settings.Media.Watch.Debounce, "quiet period before a file is converted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	o, err := a.optimizer(0)
	if err != nil {
		return err
	}
	return o.Watch(ctx, *debounce, func(r optimizer.Result) {
		line := fmt.Sprintf("%s %s", r.Status, r.Path)
		if r.Reason != "" {
			line += ": " + r.Reason
		}
		fmt.Fprintln(a.stdout, line)
	})
}

func runAudit(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("audit")
	catalogPath := fs.String("catalog", "", "catalog file (default from settings)")
	reportPath := fs.String("report", a.settings.Catalog.ReportPath, "JSON report path, empty to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, records, err := a.catalogStore(ctx, *catalogPath)
	if err != nil {
		return err
	}
	assets, err := a.storage()
	if err != nil {
		return err
	}

	report, err := catalog.Audit(ctx, records, assets, catalog.AuditOptions{
		MinDetailLength: a.settings.Catalog.MinDetailLength,
	})
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, report.String())

	if *reportPath != "" {
		if err := report.WriteJSON(*reportPath); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "\nDetailed results saved to %s\n", *reportPath)
	}
	a.logger.Info("audit finished",
		zap.Int("total", report.Total),
		zap.Int("incomplete", len(report.Incomplete)),
		zap.Int("broken_images", len(report.MissingImages)))
	return nil
}

func runEnrich(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("enrich")
	catalogPath := fs.String("catalog", "", "catalog file (default from settings)")
	file := fs.String("file", a.settings.Catalog.EnrichmentPath, "enrichment records (JSON or YAML)")
	dryRun := fs.Bool("dry-run", false, "report without writing the catalog")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, records, err := a.catalogStore(ctx, *catalogPath)
	if err != nil {
		return err
	}
	enrichments, err := catalog.LoadEnrichments(*file)
	if err != nil {
		return err
	}

	report := catalog.EnrichAll(records, enrichments)
	fmt.Fprintf(a.stdout, "enriched %d, unchanged %d, not found %d\n",
		len(report.Enriched), len(report.Unchanged), len(report.NotFound))
	for _, e := range report.Errors.Errors() {
		fmt.Fprintf(a.stdout, "  - %s\n", e.Error())
		a.logger.Warn("enrichment skipped", zap.Error(e))
	}

	if *dryRun || len(report.Enriched) == 0 {
		return nil
	}
	if err := store.WriteAll(ctx, records); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "wrote %s\n", store.Path())
	return nil
}

func runSpellcheck(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("spellcheck")
	catalogPath := fs.String("catalog", "", "catalog file (default from settings)")
	fix := fs.Bool("fix", false, "apply corrections and write the catalog")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, records, err := a.catalogStore(ctx, *catalogPath)
	if err != nil {
		return err
	}

	sc := catalog.NewSpellChecker(a.settings.Spelling.Corrections, !a.settings.Spelling.DisableDefaults)
	findings := sc.Check(records)
	for _, f := range findings {
		fmt.Fprintln(a.stdout, f.String())
	}
	fmt.Fprintf(a.stdout, "%d finding(s) in %d product(s)\n", len(findings), len(records))

	if !*fix {
		return nil
	}
	changed := sc.Fix(records)
	if changed == 0 {
		return nil
	}
	if err := store.WriteAll(ctx, records); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "fixed %d field(s) in %s\n", changed, store.Path())
	return nil
}

func runImportImages(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("import-images")
	source := fs.String("source", a.settings.Assets.SourceDir, "directory holding the source photos")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := a.storage()
	if err != nil {
		return err
	}

	s := a.settings.Assets
	mapping := make([]importer.Mapping, 0, len(s.Mapping))
	for _, m := range s.Mapping {
		mapping = append(mapping, importer.Mapping{Source: m.Source, Target: m.Target})
	}

	report, err := importer.New(importer.Options{
		SourceDir:    *source,
		TargetFolder: s.TargetFolder,
		BackupFolder: s.BackupFolder,
		Mapping:      mapping,
	}, store, a.logger).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, report.String())
	return nil
}
