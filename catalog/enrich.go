package catalog

import (
	"fmt"

	apperrors "github.com/leeforge/catalogkit/errors"
)

// Enrichment carries the optional fields to merge into the product with ID.
type Enrichment struct {
	ID                   string         `json:"id" yaml:"id" validate:"required"`
	DetailedDescription  string         `json:"detailedDescription,omitempty" yaml:"detailedDescription,omitempty"`
	PainPointHeadline    string         `json:"painPointHeadline,omitempty" yaml:"painPointHeadline,omitempty"`
	SensoryDescription   string         `json:"sensoryDescription,omitempty" yaml:"sensoryDescription,omitempty"`
	Benefits             []Benefit      `json:"benefits,omitempty" yaml:"benefits,omitempty" validate:"dive"`
	Images               []ProductImage `json:"images,omitempty" yaml:"images,omitempty" validate:"dive"`
	StockLevel           StockLevel     `json:"stockLevel,omitempty" yaml:"stockLevel,omitempty" validate:"omitempty,oneof=in-stock low-stock out-of-stock"`
	StockCount           *int           `json:"stockCount,omitempty" yaml:"stockCount,omitempty" validate:"omitempty,gte=0"`
	TrustBadges          []string       `json:"trustBadges,omitempty" yaml:"trustBadges,omitempty" validate:"unique"`
	FrequentlyBoughtWith []string       `json:"frequentlyBoughtWith,omitempty" yaml:"frequentlyBoughtWith,omitempty"`
	AverageRating        *float64       `json:"averageRating,omitempty" yaml:"averageRating,omitempty" validate:"omitempty,gte=0,lte=5"`
	ReviewCount          *int           `json:"reviewCount,omitempty" yaml:"reviewCount,omitempty" validate:"omitempty,gte=0"`
}

// Enrich merges e into the record with e.ID. Only fields the record is
// missing are filled; record order and every other field stay untouched.
// It reports whether the record changed.
func Enrich(records []Product, e Enrichment) (bool, error) {
	if err := validate.Struct(e); err != nil {
		return false, apperrors.NewValidation(fmt.Sprintf("enrichment %q: %v", e.ID, err)).WithDetail("id", e.ID)
	}

	i := Index(records, e.ID)
	if i < 0 {
		return false, apperrors.NewNotFound("product", e.ID)
	}

	p := &records[i]
	changed := false
	fillString(&p.DetailedDescription, e.DetailedDescription, &changed)
	fillString(&p.PainPointHeadline, e.PainPointHeadline, &changed)
	fillString(&p.SensoryDescription, e.SensoryDescription, &changed)
	fillSlice(&p.Benefits, e.Benefits, &changed)
	fillSlice(&p.Images, e.Images, &changed)
	fillSlice(&p.TrustBadges, e.TrustBadges, &changed)
	fillSlice(&p.FrequentlyBoughtWith, e.FrequentlyBoughtWith, &changed)
	fillPtr(&p.StockCount, e.StockCount, &changed)
	fillPtr(&p.AverageRating, e.AverageRating, &changed)
	fillPtr(&p.ReviewCount, e.ReviewCount, &changed)
	if p.StockLevel == "" && e.StockLevel != "" {
		p.StockLevel = e.StockLevel
		changed = true
	}

	return changed, nil
}

func fillString(dst *string, v string, changed *bool) {
	if *dst == "" && v != "" {
		*dst = v
		*changed = true
	}
}

func fillSlice[T any](dst *[]T, v []T, changed *bool) {
	if len(*dst) == 0 && len(v) > 0 {
		*dst = append([]T(nil), v...)
		*changed = true
	}
}

func fillPtr[T any](dst **T, v *T, changed *bool) {
	if *dst == nil && v != nil {
		val := *v
		*dst = &val
		*changed = true
	}
}

// EnrichReport lists product ids by outcome, in enrichment order.
type EnrichReport struct {
	Enriched  []string
	Unchanged []string
	NotFound  []string
	Errors    *apperrors.ErrorChain
}

// EnrichAll applies every enrichment; a failing one never stops the rest.
func EnrichAll(records []Product, enrichments []Enrichment) *EnrichReport {
	report := &EnrichReport{Errors: apperrors.NewErrorChain()}
	for _, e := range enrichments {
		changed, err := Enrich(records, e)
		switch {
		case apperrors.TypeOf(err) == apperrors.ErrorTypeNotFound:
			report.NotFound = append(report.NotFound, e.ID)
			report.Errors.Add(err)
		case err != nil:
			report.Errors.Add(err)
		case changed:
			report.Enriched = append(report.Enriched, e.ID)
		default:
			report.Unchanged = append(report.Unchanged, e.ID)
		}
	}
	return report
}

// LoadEnrichments reads a JSON or YAML list of enrichments.
func LoadEnrichments(path string) ([]Enrichment, error) {
	var out []Enrichment
	if err := ReadFile(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}
