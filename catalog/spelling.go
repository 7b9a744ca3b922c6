package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCorrections maps common misspellings found in product copy to
// their correct form. Keys are lower case.
var DefaultCorrections = map[string]string{
	"recieve":      "receive",
	"occured":      "occurred",
	"seperate":     "separate",
	"definately":   "definitely",
	"accomodate":   "accommodate",
	"acheive":      "achieve",
	"beleive":      "believe",
	"calender":     "calendar",
	"concious":     "conscious",
	"excelent":     "excellent",
	"experiance":   "experience",
	"familar":      "familiar",
	"finaly":       "finally",
	"goverment":    "government",
	"guarentee":    "guarantee",
	"immediatly":   "immediately",
	"independant":  "independent",
	"maintainance": "maintenance",
	"necesary":     "necessary",
	"occassion":    "occasion",
	"prefered":     "preferred",
	"reccomend":    "recommend",
	"refered":      "referred",
	"relevent":     "relevant",
	"succesful":    "successful",
	"sugest":       "suggest",
	"tommorrow":    "tomorrow",
	"untill":       "until",
	"usefull":      "useful",
	"wierd":        "weird",
	"anitoxidants": "antioxidants",
	"naturaly":     "naturally",
	"artifical":    "artificial",
	"healty":       "healthy",
	"protien":      "protein",
	"vitamine":     "vitamin",
	"colection":    "collection",
}

// FindingKind classifies a spelling finding.
type FindingKind string

const (
	KindMisspelling   FindingKind = "misspelling"
	KindDoubleSpace   FindingKind = "double_space"
	KindMissingPeriod FindingKind = "missing_period"
)

type Finding struct {
	ProductID  string      `json:"product_id"`
	Field      string      `json:"field"`
	Kind       FindingKind `json:"kind"`
	Word       string      `json:"word,omitempty"`
	Correction string      `json:"correction,omitempty"`
	Context    string      `json:"context,omitempty"`
}

func (f Finding) String() string {
	switch f.Kind {
	case KindMisspelling:
		return fmt.Sprintf("%s.%s: %q -> %q (...%s...)", f.ProductID, f.Field, f.Word, f.Correction, f.Context)
	case KindDoubleSpace:
		return fmt.Sprintf("%s.%s: double space (...%s...)", f.ProductID, f.Field, f.Context)
	default:
		return fmt.Sprintf("%s.%s: missing final period", f.ProductID, f.Field)
	}
}

// SpellChecker finds whole-word misspellings from a fixed corrections
// dictionary. Matching ignores case; replacements keep the case shape of
// the original word.
type SpellChecker struct {
	corrections map[string]string
	pattern     *regexp.Regexp
}

// NewSpellChecker merges extra over DefaultCorrections. With useDefaults
// false only extra is used.
func NewSpellChecker(extra map[string]string, useDefaults bool) *SpellChecker {
	fold := cases.Fold()
	corrections := make(map[string]string)
	if useDefaults {
		for k, v := range DefaultCorrections {
			corrections[fold.String(k)] = v
		}
	}
	for k, v := range extra {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		corrections[fold.String(k)] = v
	}

	sc := &SpellChecker{corrections: corrections}
	if len(corrections) == 0 {
		return sc
	}

	words := make([]string, 0, len(corrections))
	for k := range corrections {
		words = append(words, k)
	}
	// longest first so alternation prefers the full word
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	sc.pattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	return sc
}

// Len returns the dictionary size.
func (sc *SpellChecker) Len() int {
	return len(sc.corrections)
}

type textField struct {
	name        string
	value       *string
	description bool
}

func productFields(p *Product) []textField {
	fields := []textField{
		{name: "name", value: &p.Name},
		{name: "description", value: &p.Description, description: true},
		{name: "detailedDescription", value: &p.DetailedDescription, description: true},
		{name: "painPointHeadline", value: &p.PainPointHeadline},
		{name: "sensoryDescription", value: &p.SensoryDescription, description: true},
	}
	for i := range p.Benefits {
		b := &p.Benefits[i]
		fields = append(fields,
			textField{name: fmt.Sprintf("benefits[%d].title", i), value: &b.Title},
			textField{name: fmt.Sprintf("benefits[%d].description", i), value: &b.Description},
		)
	}
	return fields
}

// Check reports misspellings in every text field plus double spaces and
// missing final periods in description fields. Records are not modified.
func (sc *SpellChecker) Check(records []Product) []Finding {
	var findings []Finding
	for i := range records {
		p := records[i]
		for _, f := range productFields(&p) {
			findings = append(findings, sc.checkText(p.ID, f, *f.value)...)
		}
	}
	return findings
}

func (sc *SpellChecker) checkText(id string, f textField, text string) []Finding {
	var findings []Finding

	if sc.pattern != nil {
		for _, loc := range sc.pattern.FindAllStringIndex(text, -1) {
			word := text[loc[0]:loc[1]]
			findings = append(findings, Finding{
				ProductID:  id,
				Field:      f.name,
				Kind:       KindMisspelling,
				Word:       word,
				Correction: sc.correct(word),
				Context:    snippet(text, loc[0], loc[1]),
			})
		}
	}

	if !f.description {
		return findings
	}
	if idx := strings.Index(text, "  "); idx >= 0 {
		findings = append(findings, Finding{
			ProductID: id,
			Field:     f.name,
			Kind:      KindDoubleSpace,
			Context:   snippet(text, idx, idx+2),
		})
	}
	if trimmed := strings.TrimSpace(text); trimmed != "" && !strings.HasSuffix(trimmed, ".") {
		findings = append(findings, Finding{
			ProductID: id,
			Field:     f.name,
			Kind:      KindMissingPeriod,
		})
	}
	return findings
}

var multiSpace = regexp.MustCompile(` {2,}`)

// Fix applies corrections in place and collapses runs of spaces. It
// returns the number of fields that changed.
func (sc *SpellChecker) Fix(records []Product) int {
	changed := 0
	for i := range records {
		for _, f := range productFields(&records[i]) {
			fixed := sc.FixText(*f.value)
			if f.description {
				fixed = multiSpace.ReplaceAllString(fixed, " ")
			}
			if fixed != *f.value {
				*f.value = fixed
				changed++
			}
		}
	}
	return changed
}

// FixText replaces every misspelled word in text.
func (sc *SpellChecker) FixText(text string) string {
	if sc.pattern == nil {
		return text
	}
	return sc.pattern.ReplaceAllStringFunc(text, sc.correct)
}

func (sc *SpellChecker) correct(word string) string {
	repl, ok := sc.corrections[cases.Fold().String(word)]
	if !ok {
		return word
	}
	return matchCase(word, repl)
}

func matchCase(word, repl string) string {
	switch {
	case word == strings.ToUpper(word) && utf8.RuneCountInString(word) > 1:
		return cases.Upper(language.English).String(repl)
	case startsUpper(word):
		return cases.Title(language.English, cases.NoLower).String(repl)
	}
	return repl
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

// snippet returns up to 20 bytes of text around [start, end), widened to
// rune boundaries.
func snippet(text string, start, end int) string {
	from := max(start-20, 0)
	to := min(end+20, len(text))
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return strings.TrimSpace(text[from:to])
}
