package optimizer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	apperrors "github.com/leeforge/catalogkit/errors"
)

// Status is the outcome of one item.
type Status string

const (
	StatusConverted Status = "converted"
	StatusOptimized Status = "optimized"
	StatusSkipped   Status = "skipped"
	StatusUnchanged Status = "unchanged"
	StatusFailed    Status = "failed"
)

var statusOrder = []Status{StatusConverted, StatusOptimized, StatusSkipped, StatusUnchanged, StatusFailed}

const (
	PassConvert  = "convert"
	PassOptimize = "optimize"
	PassHero     = "hero"
)

// Result describes what happened to one source file.
type Result struct {
	Pass       string
	Path       string
	Output     string
	Status     Status
	InputSize  int64
	OutputSize int64

	// Reason explains skips, failures and warnings.
	Reason   string
	Err      error
	Duration time.Duration
}

func (r Result) fail(err error) Result {
	r.Status = StatusFailed
	r.Err = err
	r.Reason = err.Error()
	return r
}

// wrote reports whether the item produced a new output file.
func (r Result) wrote() bool {
	return r.Status == StatusConverted || r.Status == StatusOptimized
}

// Summary aggregates the results of one pass or a sequence of passes.
type Summary struct {
	RunID       string
	Results     []Result
	BytesBefore int64
	BytesAfter  int64
	counts      map[Status]int
	errors      *apperrors.ErrorChain
}

func NewSummary(runID string) *Summary {
	return &Summary{
		RunID:  runID,
		counts: make(map[Status]int),
		errors: apperrors.NewErrorChain(),
	}
}

func (s *Summary) Add(r Result) {
	s.Results = append(s.Results, r)
	s.counts[r.Status]++
	if r.wrote() {
		s.BytesBefore += r.InputSize
		s.BytesAfter += r.OutputSize
	}
	if r.Err != nil {
		s.errors.Add(apperrors.Wrap(r.Err, r.Path))
	}
}

// Merge appends every result of other.
func (s *Summary) Merge(other *Summary) {
	for _, r := range other.Results {
		s.Add(r)
	}
}

func (s *Summary) Count(status Status) int {
	return s.counts[status]
}

// Saved is the number of bytes saved by written outputs; negative when they grew.
func (s *Summary) Saved() int64 {
	return s.BytesBefore - s.BytesAfter
}

func (s *Summary) Errors() *apperrors.ErrorChain {
	return s.errors
}

// String renders the human readable report.
func (s *Summary) String() string {
	var b strings.Builder

	counts := make([]string, 0, len(statusOrder))
	for _, st := range statusOrder {
		counts = append(counts, fmt.Sprintf("%d %s", s.counts[st], st))
	}
	fmt.Fprintf(&b, "run %s: %s\n", s.RunID, strings.Join(counts, ", "))

	saved := s.Saved()
	if saved >= 0 {
		fmt.Fprintf(&b, "saved %s (%s -> %s)\n",
			humanize.Bytes(uint64(saved)), humanize.Bytes(uint64(s.BytesBefore)), humanize.Bytes(uint64(s.BytesAfter)))
	} else {
		fmt.Fprintf(&b, "grew %s (%s -> %s)\n",
			humanize.Bytes(uint64(-saved)), humanize.Bytes(uint64(s.BytesBefore)), humanize.Bytes(uint64(s.BytesAfter)))
	}

	var failed []Result
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool { return failed[i].Path < failed[j].Path })
		formatter := apperrors.NewErrorFormatter(false, false)
		b.WriteString("failed:\n")
		for _, r := range failed {
			fmt.Fprintf(&b, "  %s: %s\n", r.Path, formatter.Format(r.Err))
		}
	}

	return b.String()
}
