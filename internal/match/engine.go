// Package match scores free-text product names against catalog
// entries and resolves ambiguous references to catalog products.
package match

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Candidate is a catalog entry considered for a free-text name.
type Candidate struct {
	ID   string
	Name string
}

// AliasRule rewrites a shorthand product-family name into the
// catalog's full naming convention before search. Rules are
// configuration, not code: they encode one catalog's naming scheme.
type AliasRule struct {
	Pattern     string `json:"pattern" validate:"required"`
	Replacement string `json:"replacement" validate:"required"`

	compiled *regexp.Regexp
}

// Engine resolves free-text names against the catalog.
type Engine struct {
	aliases       []AliasRule
	variantMarker string
}

// Config tunes the engine for one catalog.
type Config struct {
	// AliasRules rewrite shorthand family names ("Pure Turkey") into
	// full catalog names before search.
	AliasRules []AliasRule
	// DefaultVariantMarker is a token identifying the default variant
	// of a product family, preferred when several candidates return.
	DefaultVariantMarker string
}

// NewEngine compiles alias rules and returns the engine. Invalid
// patterns are dropped rather than failing the whole engine; a bad
// alias only lowers the hit rate.
func NewEngine(cfg Config) *Engine {
	e := &Engine{variantMarker: cfg.DefaultVariantMarker}
	for _, rule := range cfg.AliasRules {
		compiled, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			continue
		}
		rule.compiled = compiled
		e.aliases = append(e.aliases, rule)
	}
	return e
}

var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips everything that is not a letter, digit or
// space, folding accents so "café" and "cafe" compare equal.
func fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Score rates the similarity of two product names in [0,1]. A
// substring containment in either direction scores a flat 0.8;
// otherwise the score is the token-overlap count over the longer word
// list.
func Score(a, b string) float64 {
	na, nb := fold(a), fold(b)
	if na == "" || nb == "" {
		return 0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.8
	}
	wordsA := strings.Fields(na)
	wordsB := strings.Fields(nb)
	longest := len(wordsA)
	if len(wordsB) > longest {
		longest = len(wordsB)
	}
	if longest == 0 {
		return 0
	}
	matched := 0
	for _, wa := range wordsA {
		for _, wb := range wordsB {
			if strings.Contains(wb, wa) || strings.Contains(wa, wb) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(longest)
}

// ApplyAliases rewrites a shorthand name using the first matching
// alias rule. Names without a matching rule pass through unchanged.
func (e *Engine) ApplyAliases(name string) string {
	for _, rule := range e.aliases {
		if rule.compiled != nil && rule.compiled.MatchString(name) {
			return rule.compiled.ReplaceAllString(name, rule.Replacement)
		}
	}
	return name
}

// Resolve picks one candidate for a free-text name. The policy is a
// tie-break, not a re-rank: exact case-insensitive name match first,
// then a candidate carrying the default-variant marker, then the first
// candidate as returned by the search.
func (e *Engine) Resolve(name string, candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	lowered := strings.ToLower(strings.TrimSpace(name))
	for _, c := range candidates {
		if strings.ToLower(strings.TrimSpace(c.Name)) == lowered {
			return c, true
		}
	}
	if e.variantMarker != "" {
		marker := strings.ToLower(e.variantMarker)
		for _, c := range candidates {
			if strings.Contains(strings.ToLower(c.Name), marker) {
				return c, true
			}
		}
	}
	return candidates[0], true
}

// RankClosest orders candidates by descending similarity to the given
// name. Used for presentation (closest unmatched products first), not
// for automatic selection.
func RankClosest(name string, candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Score(name, ranked[i].Name) > Score(name, ranked[j].Name)
	})
	return ranked
}
