package catalog

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/leeforge/catalogkit/errors"
)

// StockLevel is the coarse availability shown on a product page.
type StockLevel string

const (
	InStock    StockLevel = "in-stock"
	LowStock   StockLevel = "low-stock"
	OutOfStock StockLevel = "out-of-stock"
)

type Benefit struct {
	Icon        string `json:"icon" yaml:"icon"`
	Title       string `json:"title" yaml:"title" validate:"required"`
	Description string `json:"description" yaml:"description"`
}

type ProductImage struct {
	Type string `json:"type" yaml:"type"`
	URL  string `json:"url" yaml:"url" validate:"required"`
	Alt  string `json:"alt" yaml:"alt"`
}

// Product is one catalog record. Optional scalar enrichment fields are
// pointers so that "missing" and zero can be told apart. Keys the struct
// does not declare are kept in Extra and written back unchanged.
type Product struct {
	ID                  string  `json:"id" yaml:"id" validate:"required"`
	Name                string  `json:"name" yaml:"name" validate:"required"`
	Price               float64 `json:"price,omitempty" yaml:"price,omitempty" validate:"gte=0"`
	Image               string  `json:"image,omitempty" yaml:"image,omitempty"`
	Category            string  `json:"category,omitempty" yaml:"category,omitempty"`
	Description         string  `json:"description,omitempty" yaml:"description,omitempty"`
	DetailedDescription string  `json:"detailedDescription,omitempty" yaml:"detailedDescription,omitempty"`
	Variants            []int   `json:"variants,omitempty" yaml:"variants,omitempty"`

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

	Extra map[string]any `json:"-" yaml:"-"`
}

// ImageRefs returns the main image followed by gallery urls, without duplicates.
func (p Product) ImageRefs() []string {
	seen := make(map[string]struct{})
	var refs []string
	add := func(ref string) {
		if ref == "" {
			return
		}
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	add(p.Image)
	for _, img := range p.Images {
		add(img.URL)
	}
	return refs
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints of every record and id uniqueness.
func Validate(records []Product) error {
	chain := apperrors.NewErrorChain()
	seen := make(map[string]int, len(records))

	for i, p := range records {
		if err := validate.Struct(p); err != nil {
			chain.Add(apperrors.NewValidation(fmt.Sprintf("product %d (%s): %v", i, p.ID, err)).
				WithDetail("id", p.ID))
		}
		if p.ID == "" {
			continue
		}
		if first, ok := seen[p.ID]; ok {
			chain.Add(apperrors.NewValidation(fmt.Sprintf("product %d: duplicate id %q (first at %d)", i, p.ID, first)).
				WithDetail("id", p.ID))
			continue
		}
		seen[p.ID] = i
	}

	if chain.HasErrors() {
		return apperrors.WrapWithType(chain, apperrors.ErrorTypeValidation, "invalid catalog")
	}
	return nil
}

// Index returns the position of the record with id, or -1.
func Index(records []Product, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}
