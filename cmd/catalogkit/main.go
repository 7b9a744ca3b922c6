// Catalogkit maintains the media and product catalog of a storefront:
// image conversion and hero normalization, catalog audit, enrichment,
// spell checking and asset import.
//
// Usage:
//
//	catalogkit [-config dir] <command> [flags]
//
// Settings are read from <dir>/settings.yaml and its layered variants;
// CATALOGKIT_ENV selects the environment overlay.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"
	"github.com/leeforge/catalogkit/config"
	apperrors "github.com/leeforge/catalogkit/errors"
	"github.com/leeforge/catalogkit/logging"
	"go.uber.org/zap"
)

// Version is set at build time.
var Version = "dev"

const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitInternal = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (code int) {
	fs := flag.NewFlagSet("catalogkit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config", "", "settings directory (default $CATALOGKIT_CONFIG_PATH or ./config)")
	showVersion := fs.Bool("version", false, "print the version and exit")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *showVersion {
		fmt.Fprintf(stdout, "catalogkit %s\n", Version)
		return exitOK
	}
	if fs.NArg() < 1 {
		printUsage(stderr, fs)
		return exitUsage
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		printUsage(stderr, fs)
		return exitUsage
	}

	opts := config.DefaultConfigOptions()
	if *configDir != "" {
		opts.BasePath = *configDir
	}
	settings, _, err := config.LoadSettings(opts)
	if err != nil {
		fmt.Fprintf(stderr, "load settings: %v\n", err)
		return exitFailure
	}

	logger := logging.Init(settings.Log)
	defer logging.Sync()

	ctx = logging.SetRunID(ctx, uuid.NewString())
	ctx = logging.SetCommand(ctx, name)
	logger = logging.WithContext(logger, ctx)

	defer apperrors.ErrorRecoverWithHandler(func(e *apperrors.AppError) {
		logger.Error("internal error", zap.String("error", e.Error()), zap.Strings("stack", e.Stack))
		fmt.Fprintf(stderr, "internal error: %v\n", e)
		code = exitInternal
	})

	a := &app{
		settings: settings,
		logger:   logger,
		stdout:   stdout,
		stderr:   stderr,
	}

	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		logger.Error("command failed", zap.Error(err))
		fmt.Fprintf(stderr, "%s: %s\n", name, apperrors.NewErrorFormatter(false, true).Format(err))
		return exitFailure
	}
	return exitOK
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: catalogkit [flags] <command> [command flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, commands[name].summary)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}
