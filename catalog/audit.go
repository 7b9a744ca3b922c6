package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/leeforge/catalogkit/json"
	"github.com/leeforge/catalogkit/utils"
)

// AssetChecker answers whether an image path exists in the asset store.
type AssetChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

const (
	IssueDetailedDescription = "Missing detailed description"
	IssuePainPoint           = "Missing pain point headline"
	IssueSensoryDescription  = "Missing sensory description"
	IssueBenefits            = "Missing benefits section"
)

type AuditOptions struct {
	// MinDetailLength is the number of characters a detailed or sensory
	// description must exceed to count as written.
	MinDetailLength int
}

type ProductIssues struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Issues       []string `json:"issues"`
	BrokenImages []string `json:"broken_images"`
}

// AuditReport is also the layout of the exported JSON file.
type AuditReport struct {
	Version       int                 `json:"version" default:"1"`
	Total         int                 `json:"total"`
	Complete      []string            `json:"complete"`
	Incomplete    []ProductIssues     `json:"incomplete"`
	MissingImages map[string][]string `json:"missing_images"`
}

// Audit checks every record for missing copy and broken image references.
// Incomplete products are ordered by issue count, most first.
func Audit(ctx context.Context, records []Product, assets AssetChecker, opts AuditOptions) (*AuditReport, error) {
	report := &AuditReport{
		Version:       1,
		Total:         len(records),
		Complete:      []string{},
		Incomplete:    []ProductIssues{},
		MissingImages: map[string][]string{},
	}

	for _, p := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var issues []string
		if utf8.RuneCountInString(p.DetailedDescription) <= opts.MinDetailLength {
			issues = append(issues, IssueDetailedDescription)
		}
		if strings.TrimSpace(p.PainPointHeadline) == "" {
			issues = append(issues, IssuePainPoint)
		}
		if utf8.RuneCountInString(p.SensoryDescription) <= opts.MinDetailLength {
			issues = append(issues, IssueSensoryDescription)
		}
		if len(p.Benefits) == 0 {
			issues = append(issues, IssueBenefits)
		}

		broken := brokenImages(ctx, p, assets)
		if len(broken) > 0 {
			report.MissingImages[p.ID] = broken
			issues = append(issues, fmt.Sprintf("%d broken image(s)", len(broken)))
		}

		if len(issues) == 0 {
			report.Complete = append(report.Complete, p.Name)
			continue
		}
		report.Incomplete = append(report.Incomplete, ProductIssues{
			ID:           p.ID,
			Name:         p.Name,
			Issues:       issues,
			BrokenImages: append([]string{}, broken...),
		})
	}

	sort.SliceStable(report.Incomplete, func(i, j int) bool {
		return len(report.Incomplete[i].Issues) > len(report.Incomplete[j].Issues)
	})
	return report, nil
}

// brokenImages returns local image refs the asset store cannot find. Remote
// urls are not checked; a failing lookup counts as broken.
func brokenImages(ctx context.Context, p Product, assets AssetChecker) []string {
	if assets == nil {
		return nil
	}
	var broken []string
	for _, ref := range p.ImageRefs() {
		if isRemote(ref) {
			continue
		}
		ok, err := assets.Exists(ctx, strings.TrimLeft(ref, "/"))
		if err != nil || !ok {
			broken = append(broken, ref)
		}
	}
	return broken
}

func isRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "//")
}

// NeedContent counts incomplete products with at least one missing field.
func (r *AuditReport) NeedContent() int {
	n := 0
	for _, p := range r.Incomplete {
		for _, issue := range p.Issues {
			if strings.HasPrefix(issue, "Missing") {
				n++
				break
			}
		}
	}
	return n
}

// String renders the console report.
func (r *AuditReport) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Total products: %d\n\n", r.Total)
	fmt.Fprintf(&b, "INCOMPLETE PRODUCTS (%d)\n", len(r.Incomplete))
	for _, p := range r.Incomplete {
		fmt.Fprintf(&b, "  x %s (%s)\n", p.Name, p.ID)
		for _, issue := range p.Issues {
			fmt.Fprintf(&b, "    - %s\n", issue)
		}
		for _, img := range p.BrokenImages {
			fmt.Fprintf(&b, "      image: %s\n", img)
		}
	}

	fmt.Fprintf(&b, "\nCOMPLETE PRODUCTS (%d)\n", len(r.Complete))
	for _, name := range r.Complete {
		fmt.Fprintf(&b, "  + %s\n", name)
	}

	pct := 0.0
	if r.Total > 0 {
		pct = float64(len(r.Complete)) / float64(r.Total) * 100
	}
	fmt.Fprintf(&b, "\nComplete: %d/%d (%.1f%%)\n", len(r.Complete), r.Total, pct)
	fmt.Fprintf(&b, "Need content updates: %d\n", r.NeedContent())
	fmt.Fprintf(&b, "Have broken images: %d\n", len(r.MissingImages))
	return b.String()
}

// WriteJSON exports the report.
func (r *AuditReport) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, append(data, '\n'), 0644)
}
