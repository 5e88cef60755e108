// Package textutil tokenizes memory text and derives keyword tags from it.
package textutil

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Tokens splits text into case-folded words of letters and digits.
func Tokens(text string) []string {
	return strings.FieldsFunc(folder.String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// QueryTerms returns the distinct tokens longer than two characters, in order
// of first appearance.
func QueryTerms(query string) []string {
	seen := map[string]bool{}
	var terms []string
	for _, tok := range Tokens(query) {
		if utf8.RuneCountInString(tok) <= 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}

// SignificantTerms is QueryTerms without stopwords.
func SignificantTerms(text string) []string {
	var terms []string
	for _, t := range QueryTerms(text) {
		if !stopwords[t] {
			terms = append(terms, t)
		}
	}
	return terms
}

// Fold case-folds text for substring matching against QueryTerms.
func Fold(text string) string {
	return folder.String(text)
}

// DefaultKeywords is the number of tags derived when the caller supplies none.
const DefaultKeywords = 5

// Keywords picks the n most frequent non-stopword tokens of at least three
// characters. Ties keep first-occurrence order.
func Keywords(text string, n int) []string {
	if n <= 0 {
		n = DefaultKeywords
	}

	type entry struct {
		word  string
		count int
		first int
	}
	entries := map[string]*entry{}
	for i, tok := range Tokens(text) {
		if utf8.RuneCountInString(tok) < 3 || stopwords[tok] || isDigits(tok) {
			continue
		}
		if e, ok := entries[tok]; ok {
			e.count++
			continue
		}
		entries[tok] = &entry{word: tok, count: 1, first: i}
	}

	list := make([]*entry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].first < list[j].first
	})

	if len(list) > n {
		list = list[:n]
	}
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.word
	}
	return out
}

// Truncate cuts text to at most maxRunes runes.
func Truncate(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes])
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var stopwords = func() map[string]bool {
	words := strings.Fields(`
		the and for are but not you all any can had her was one our out has have
		his how its may new now old see two way who did get got let put say she
		too use uses used using this that with from they will would there their
		what when where which while been being were than then them these those
		into onto over under about after before also just like only some such
		very each other more most should could does doing done your yours here
		because between both same through during without within upon
	`)
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}()
