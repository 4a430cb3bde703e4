package highlight

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rivo/uniseg"
)

// ChangeRange is a half-open span [Start, End) of the current text, in the
// highlighter's units. A zero-width range marks a deletion point.
type ChangeRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Unit int

const (
	// Graphemes counts user-perceived characters, so an emoji with modifiers
	// or a letter with a combining accent is one unit.
	Graphemes Unit = iota
	Runes
)

func (u Unit) String() string {
	if u == Runes {
		return "runes"
	}
	return "graphemes"
}

// Highlighter diffs the current text against a fixed baseline. It is not
// safe for concurrent use.
type Highlighter struct {
	unit        Unit
	baseline    string
	baseTokens  []string
	hasBaseline bool
}

func New(unit Unit) *Highlighter {
	return &Highlighter{unit: unit}
}

// SetBaseline starts a new comparison session against text.
func (h *Highlighter) SetBaseline(text string) {
	h.baseline = text
	h.baseTokens = Tokenize(text, h.unit)
	h.hasBaseline = true
}

// Reset drops the baseline; Recompute returns nothing until the next SetBaseline.
func (h *Highlighter) Reset() {
	h.baseline = ""
	h.baseTokens = nil
	h.hasBaseline = false
}

func (h *Highlighter) Baseline() (string, bool) {
	return h.baseline, h.hasBaseline
}

func (h *Highlighter) Unit() Unit { return h.unit }

// Recompute returns every span where current differs from the baseline.
// An unset or empty baseline yields no ranges.
func (h *Highlighter) Recompute(current string) []ChangeRange {
	if !h.hasBaseline || h.baseline == "" {
		return []ChangeRange{}
	}
	return diffTokens(h.baseTokens, Tokenize(current, h.unit))
}

// Diff is Recompute without a Highlighter.
func Diff(baseline, current string, unit Unit) []ChangeRange {
	if baseline == "" {
		return []ChangeRange{}
	}
	return diffTokens(Tokenize(baseline, unit), Tokenize(current, unit))
}

func diffTokens(a, b []string) []ChangeRange {
	// autojunk off: in prose, frequent characters like spaces would
	// otherwise be ignored as anchors on texts over 200 units
	matcher := difflib.NewMatcherWithJunk(a, b, false, nil)

	ranges := []ChangeRange{}
	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		ranges = append(ranges, ChangeRange{Start: op.J1, End: op.J2})
	}
	return ranges
}

// Tokenize splits text into diff units.
func Tokenize(text string, unit Unit) []string {
	if text == "" {
		return nil
	}
	if unit == Runes {
		tokens := make([]string, 0, len(text))
		for _, r := range text {
			tokens = append(tokens, string(r))
		}
		return tokens
	}

	tokens := make([]string, 0, len(text))
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		tokens = append(tokens, gr.Str())
	}
	return tokens
}

// Slice returns the text of r within text, measured in unit.
func Slice(text string, r ChangeRange, unit Unit) string {
	tokens := Tokenize(text, unit)
	if r.Start < 0 || r.End > len(tokens) || r.Start > r.End {
		return ""
	}
	return strings.Join(tokens[r.Start:r.End], "")
}
