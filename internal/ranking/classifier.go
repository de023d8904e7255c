package ranking

import (
	"strings"

	"github.com/gunturawaludins/mkbd-new/internal/dataprocessing"
)

// RowTag is the role a row plays in a calculation.
type RowTag int

const (
	TagNone RowTag = iota
	TagTotal
	TagSubtotal
	TagTarget
)

func (t RowTag) String() string {
	switch t {
	case TagTotal:
		return "total"
	case TagSubtotal:
		return "subtotal"
	case TagTarget:
		return "target"
	default:
		return "none"
	}
}

// Phrase matches row text. All phrases must be present, at least one of
// Any when Any is set, and none of None. Matching is case-insensitive.
type Phrase struct {
	All  []string
	Any  []string
	None []string
}

// Match reports whether text satisfies the phrase.
func (p Phrase) Match(text string) bool {
	t := strings.ToUpper(text)
	for _, s := range p.All {
		if !strings.Contains(t, strings.ToUpper(s)) {
			return false
		}
	}
	if len(p.Any) > 0 {
		hit := false
		for _, s := range p.Any {
			if strings.Contains(t, strings.ToUpper(s)) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, s := range p.None {
		if strings.Contains(t, strings.ToUpper(s)) {
			return false
		}
	}
	return len(p.All) > 0 || len(p.Any) > 0
}

// AnyPhrase matches when any of its phrases does.
type AnyPhrase []Phrase

// Match reports whether any phrase matches text.
func (a AnyPhrase) Match(text string) bool {
	for _, p := range a {
		if p.Match(text) {
			return true
		}
	}
	return false
}

// Matcher is anything that can test row text.
type Matcher interface {
	Match(text string) bool
}

// RowClassifier tags rows for a calculation.
type RowClassifier interface {
	Classify(row dataprocessing.Row, headers []string) RowTag
}

// TagRule assigns Tag to rows matching Matcher.
type TagRule struct {
	Tag     RowTag
	Matcher Matcher
}

// PhraseClassifier evaluates its rules in order; the first match wins and
// unmatched rows get Default.
type PhraseClassifier struct {
	Rules   []TagRule
	Default RowTag
}

// Classify implements RowClassifier.
func (c PhraseClassifier) Classify(row dataprocessing.Row, headers []string) RowTag {
	text := dataprocessing.RowText(row, headers)
	for _, r := range c.Rules {
		if r.Matcher.Match(text) {
			return r.Tag
		}
	}
	return c.Default
}

// PortfolioClassifier recognises the concentration table layout: the
// portfolio total row, subtotal rows, and instrument rows as targets.
var PortfolioClassifier = PhraseClassifier{
	Rules: []TagRule{
		{Tag: TagTotal, Matcher: AnyPhrase{
			{All: []string{"portfolio tidak terkonsentrasi"}},
			{All: []string{"total portfolio"}},
			{All: []string{"total portofolio milik"}},
			{All: []string{"total portofolio"}},
		}},
		{Tag: TagSubtotal, Matcher: Phrase{All: []string{"sub total"}}},
	},
	Default: TagTarget,
}

// Label names a row found by phrase.
type Label struct {
	Name   string
	Phrase Matcher
}

// FirstLabel returns the first label whose phrase matches text.
func FirstLabel(labels []Label, text string) (string, bool) {
	for _, l := range labels {
		if l.Phrase.Match(text) {
			return l.Name, true
		}
	}
	return "", false
}

// findRow returns the index of the first (or, with last set, the final)
// row matching m.
func findRow(rows []dataprocessing.Row, headers []string, m Matcher, last bool) int {
	idx := -1
	for i, r := range rows {
		if m.Match(dataprocessing.RowText(r, headers)) {
			if !last {
				return i
			}
			idx = i
		}
	}
	return idx
}
