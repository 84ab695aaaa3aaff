// Package parser extracts structured supplier data from raw product pages.
// Extraction is driven entirely by ordered regular-expression lists: the
// search routine is shared by every field and trigger, and site-specific
// behavior lives in the pattern data of a Site.
package parser

import "regexp"

// Mode selects what Search reports for a match.
type Mode int

const (
	// ModeValue returns the first capture group of the winning pattern.
	ModeValue Mode = iota
	// ModePresence only reports whether any pattern matched.
	ModePresence
)

// PatternList is an ordered list of compiled patterns. Earlier patterns win.
type PatternList []*regexp.Regexp

// Compile builds a PatternList from expressions. Every pattern is matched
// case-insensitively and '.' also matches line breaks.
// It panics on an invalid expression, so pattern sets must be static data.
func Compile(exprs ...string) PatternList {
	list := make(PatternList, 0, len(exprs))
	for _, expr := range exprs {
		list = append(list, regexp.MustCompile(`(?is)`+expr))
	}
	return list
}

// Search evaluates patterns strictly in list order against page and stops at
// the first pattern that matches. In ModeValue the first capture group is
// returned (the whole match when the pattern has no group). In ModePresence
// the returned value is always empty. found is false when no pattern matched.
func Search(patterns PatternList, page string, mode Mode) (value string, found bool) {
	for _, re := range patterns {
		if mode == ModePresence {
			if re.MatchString(page) {
				return "", true
			}
			continue
		}

		match := re.FindStringSubmatch(page)
		if match == nil {
			continue
		}
		if len(match) > 1 {
			return match[1], true
		}
		return match[0], true
	}
	return "", false
}

// Find is Search in ModeValue.
func (p PatternList) Find(page string) (string, bool) {
	return Search(p, page, ModeValue)
}

// Contains is Search in ModePresence.
func (p PatternList) Contains(page string) bool {
	_, found := Search(p, page, ModePresence)
	return found
}
