package catalog

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/leeforge/catalogkit/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func sampleProducts() []Product {
	return []Product{
		{ID: "walnut-oil", Name: "Walnut Oil", Price: 12.5, Image: "/products/walnut-oil.webp", Variants: []int{250, 500}},
		{ID: "raw-honey", Name: "Raw Honey", Price: 9, Image: "/products/raw-honey.webp"},
	}
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	records := append(sampleProducts(), Product{ID: "walnut-oil", Name: "Again"})

	err := Validate(records)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrValidation))
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestValidateFieldRules(t *testing.T) {
	rating := 6.0
	records := []Product{{ID: "x", Name: "X", AverageRating: &rating}}
	assert.Error(t, Validate(records))

	records[0].AverageRating = nil
	records[0].StockLevel = "plenty"
	assert.Error(t, Validate(records))

	records[0].StockLevel = LowStock
	records[0].TrustBadges = []string{"organic", "organic"}
	assert.Error(t, Validate(records))

	records[0].TrustBadges = []string{"organic"}
	assert.NoError(t, Validate(records))
}

func TestImageRefs(t *testing.T) {
	p := Product{
		Image: "/products/a.webp",
		Images: []ProductImage{
			{URL: "/products/a.webp"},
			{URL: "/products/b.webp"},
		},
	}
	assert.Equal(t, []string{"/products/a.webp", "/products/b.webp"}, p.ImageRefs())
	assert.Nil(t, Product{}.ImageRefs())
}

func TestFileStoreRoundTripKeepsOrder(t *testing.T) {
	for _, name := range []string{"products.json", "products.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data", name)
			store, err := NewFileStore(path)
			require.NoError(t, err)

			in := sampleProducts()
			in[1].StockCount = intPtr(0)
			require.NoError(t, store.WriteAll(context.Background(), in))

			out, err := store.ReadAll(context.Background())
			require.NoError(t, err)
			require.Len(t, out, 2)
			assert.Equal(t, "walnut-oil", out[0].ID)
			assert.Equal(t, []int{250, 500}, out[0].Variants)
			require.NotNil(t, out[1].StockCount)
			assert.Equal(t, 0, *out[1].StockCount)
		})
	}
}

func TestFileStoreKeepsUndeclaredFields(t *testing.T) {
	cases := map[string]string{
		"products.json": `[{"id":"a","name":"A","originalPrice":700,"badge":"new","meta":{"sku":"A-1"}}]`,
		"products.yaml": "- id: a\n  name: A\n  originalPrice: 700\n  badge: new\n  meta:\n    sku: A-1\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			store, err := NewFileStore(path)
			require.NoError(t, err)

			records, err := store.ReadAll(context.Background())
			require.NoError(t, err)
			changed, err := Enrich(records, Enrichment{ID: "a", PainPointHeadline: "Headline"})
			require.NoError(t, err)
			require.True(t, changed)
			require.NoError(t, store.WriteAll(context.Background(), records))

			out, err := store.ReadAll(context.Background())
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, "Headline", out[0].PainPointHeadline)
			assert.EqualValues(t, 700, out[0].Extra["originalPrice"])
			assert.Equal(t, "new", out[0].Extra["badge"])
			assert.Equal(t, map[string]any{"sku": "A-1"}, out[0].Extra["meta"])
			assert.NotContains(t, out[0].Extra, "name")

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), "originalPrice")
		})
	}
}

func TestProductJSONKeepsFieldOrder(t *testing.T) {
	p := Product{ID: "a", Name: "A", Extra: map[string]any{"zeta": 1, "badge": "new", "name": "shadowed"}}

	data, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a","name":"A","badge":"new","zeta":1}`, string(data))
}

func TestFileStoreErrors(t *testing.T) {
	_, err := NewFileStore("products.csv")
	assert.True(t, stderrors.Is(err, apperrors.ErrValidation))

	store, err := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	_, err = store.ReadAll(context.Background())
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	store, err = NewFileStore(bad)
	require.NoError(t, err)
	_, err = store.ReadAll(context.Background())
	assert.True(t, stderrors.Is(err, apperrors.ErrValidation))
}

func TestFileStoreWriteRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	err = store.WriteAll(context.Background(), []Product{{ID: "", Name: "nameless"}})
	assert.True(t, stderrors.Is(err, apperrors.ErrValidation))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnrichFillsOnlyMissingFields(t *testing.T) {
	records := sampleProducts()
	records[0].PainPointHeadline = "Keep this"

	changed, err := Enrich(records, Enrichment{
		ID:                  "walnut-oil",
		PainPointHeadline:   "Replace attempt",
		DetailedDescription: "Cold pressed.",
		Benefits:            []Benefit{{Icon: "leaf", Title: "Omega-3"}},
		StockLevel:          InStock,
		StockCount:          intPtr(12),
	})
	require.NoError(t, err)
	assert.True(t, changed)

	p := records[0]
	assert.Equal(t, "Keep this", p.PainPointHeadline)
	assert.Equal(t, "Cold pressed.", p.DetailedDescription)
	assert.Len(t, p.Benefits, 1)
	assert.Equal(t, InStock, p.StockLevel)
	assert.Equal(t, 12, *p.StockCount)
	assert.Equal(t, "Walnut Oil", p.Name)
	assert.Empty(t, records[1].DetailedDescription)
}

func TestEnrichIsIdempotent(t *testing.T) {
	records := sampleProducts()
	e := Enrichment{ID: "raw-honey", SensoryDescription: "Golden."}

	changed, err := Enrich(records, e)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = Enrich(records, e)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestEnrichErrors(t *testing.T) {
	records := sampleProducts()

	_, err := Enrich(records, Enrichment{ID: "ghost"})
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))

	_, err = Enrich(records, Enrichment{})
	assert.True(t, stderrors.Is(err, apperrors.ErrValidation))
}

func TestEnrichAllReport(t *testing.T) {
	records := sampleProducts()
	records[1].PainPointHeadline = "Already there"

	report := EnrichAll(records, []Enrichment{
		{ID: "walnut-oil", PainPointHeadline: "New"},
		{ID: "ghost", PainPointHeadline: "New"},
		{ID: "raw-honey", PainPointHeadline: "Ignored"},
	})

	assert.Equal(t, []string{"walnut-oil"}, report.Enriched)
	assert.Equal(t, []string{"raw-honey"}, report.Unchanged)
	assert.Equal(t, []string{"ghost"}, report.NotFound)
	assert.Len(t, report.Errors.Errors(), 1)
}

func TestLoadEnrichmentsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrichment.yaml")
	doc := `
- id: walnut-oil
  painPointHeadline: Tired of bland salads?
  benefits:
    - icon: heart
      title: Heart healthy
  stockCount: 4
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	out, err := LoadEnrichments(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Tired of bland salads?", out[0].PainPointHeadline)
	assert.Equal(t, "Heart healthy", out[0].Benefits[0].Title)
	assert.Equal(t, 4, *out[0].StockCount)
}
