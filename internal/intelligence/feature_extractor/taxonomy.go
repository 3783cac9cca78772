package feature_extractor

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/turtacn/RigorAudit/pkg/errors"
)

// ---------------------------------------------------------------------------
// Match modes
// ---------------------------------------------------------------------------

// MatchMode selects how a PatternRule is applied to text.
type MatchMode int

const (
	// ModeCaseInsensitive searches the pattern anywhere, ignoring case.
	ModeCaseInsensitive MatchMode = iota
	// ModeStrictToken is case-sensitive and rejects a match that has an ASCII
	// letter immediately before or after it, so "DIC" never matches inside
	// "medication".
	ModeStrictToken
)

func (m MatchMode) String() string {
	switch m {
	case ModeCaseInsensitive:
		return "case_insensitive"
	case ModeStrictToken:
		return "strict_token"
	default:
		return fmt.Sprintf("MatchMode(%d)", int(m))
	}
}

// ---------------------------------------------------------------------------
// Rules and categories
// ---------------------------------------------------------------------------

// PatternRule is one regular expression attached to a category.
type PatternRule struct {
	Category string    `json:"category"`
	Pattern  string    `json:"pattern"`
	Mode     MatchMode `json:"mode"`
}

// CategoryDef declares a category and its rules in evaluation order. The
// Category field of each rule is filled in by NewTaxonomy.
type CategoryDef struct {
	Name  string
	Rules []PatternRule
}

// CI declares a case-insensitive rule.
func CI(pattern string) PatternRule {
	return PatternRule{Pattern: pattern, Mode: ModeCaseInsensitive}
}

// Strict declares a strict-token rule.
func Strict(pattern string) PatternRule {
	return PatternRule{Pattern: pattern, Mode: ModeStrictToken}
}

type compiledRule struct {
	PatternRule
	re *regexp.Regexp
}

// findAll returns the byte spans of every non-overlapping match in text.
func (r compiledRule) findAll(text string) [][]int {
	if r.Mode != ModeStrictToken {
		return r.re.FindAllStringIndex(text, -1)
	}

	var spans [][]int
	pos := 0
	for pos <= len(text) {
		loc := r.re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if tokenIsolated(text, start, end) {
			spans = append(spans, []int{start, end})
			if end > start {
				pos = end
				continue
			}
		}
		// Rejected (or empty) candidate: retry one rune past its start.
		_, size := utf8.DecodeRuneInString(text[start:])
		if size == 0 {
			break
		}
		pos = start + size
	}
	return spans
}

func tokenIsolated(text string, start, end int) bool {
	if start > 0 && isASCIILetter(text[start-1]) {
		return false
	}
	if end < len(text) && isASCIILetter(text[end]) {
		return false
	}
	return true
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// ---------------------------------------------------------------------------
// Taxonomy
// ---------------------------------------------------------------------------

// Taxonomy is an immutable, ordered mapping from category name to compiled
// pattern rules. Build it once at startup and share it freely.
type Taxonomy struct {
	order []string
	rules map[string][]compiledRule
}

// NewTaxonomy compiles defs. It fails on an empty definition list, a
// duplicate or empty category name, a category without rules, or any pattern
// that does not compile.
func NewTaxonomy(defs []CategoryDef) (*Taxonomy, error) {
	if len(defs) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyTaxonomy, "taxonomy has no categories")
	}

	t := &Taxonomy{
		order: make([]string, 0, len(defs)),
		rules: make(map[string][]compiledRule, len(defs)),
	}
	for _, def := range defs {
		if def.Name == "" {
			return nil, errors.New(errors.ErrCodeInvalidPattern, "category name must not be empty")
		}
		if _, dup := t.rules[def.Name]; dup {
			return nil, errors.Newf(errors.ErrCodeDuplicateCategory, "category %q declared twice", def.Name)
		}
		if len(def.Rules) == 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidPattern, "category %q has no rules", def.Name)
		}

		compiled := make([]compiledRule, 0, len(def.Rules))
		for i, r := range def.Rules {
			r.Category = def.Name
			expr := r.Pattern
			if r.Mode == ModeCaseInsensitive {
				expr = "(?i)" + expr
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInvalidPattern, "pattern does not compile").
					WithDetail(fmt.Sprintf("category=%s rule=%d pattern=%q", def.Name, i, r.Pattern))
			}
			compiled = append(compiled, compiledRule{PatternRule: r, re: re})
		}
		t.order = append(t.order, def.Name)
		t.rules[def.Name] = compiled
	}
	return t, nil
}

// Categories returns the category names in declaration order.
func (t *Taxonomy) Categories() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Rules returns a copy of the rules of category, or nil if it is unknown.
func (t *Taxonomy) Rules(category string) []PatternRule {
	compiled, ok := t.rules[category]
	if !ok {
		return nil
	}
	out := make([]PatternRule, len(compiled))
	for i, c := range compiled {
		out[i] = c.PatternRule
	}
	return out
}

// Has reports whether category is part of the taxonomy.
func (t *Taxonomy) Has(category string) bool {
	_, ok := t.rules[category]
	return ok
}

// Len returns the number of categories.
func (t *Taxonomy) Len() int { return len(t.order) }

// DefaultTaxonomy compiles the built-in statistical-reporting taxonomy.
func DefaultTaxonomy() (*Taxonomy, error) {
	return NewTaxonomy(DefaultCategoryDefs())
}

// MustDefaultTaxonomy is DefaultTaxonomy for program start-up; it panics if
// the built-in table is broken.
func MustDefaultTaxonomy() *Taxonomy {
	t, err := DefaultTaxonomy()
	if err != nil {
		panic(err)
	}
	return t
}
