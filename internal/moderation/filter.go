// Package moderation screens user-generated text before it is stored or
// delivered: confession bodies and titles, comments, and chat messages all
// pass through the same Filter. Screening is synchronous and in-process;
// the latency target is well under a millisecond per message.
package moderation

import (
	"strings"
	"unicode"
)

// defaultTerms is the built-in blocklist. Single words match whole tokens;
// entries containing a space match as bounded phrases.
var defaultTerms = []string{
	// slurs
	"nigger", "nigga", "faggot", "kike", "spic", "chink", "wetback",
	// self-harm incitement
	"kill yourself", "go die", "kys",
	// sexual exploitation
	"child porn", "cp trade", "send nudes", "jailbait",
	// extremism and threats
	"heil hitler", "sieg heil", "bomb threat", "shoot up",
	// common scams
	"free bitcoin", "free crypto", "cash app flip", "onlyfans promo",
}

// Filter screens text against a keyword blocklist plus spam patterns.
// Immutable after construction; safe for concurrent use.
type Filter struct {
	words   map[string]struct{} // single-token terms
	phrases []string            // multi-word terms, matched with token bounds
}

// NewFilter creates a filter with the built-in blocklist.
func NewFilter() *Filter {
	return NewFilterWithTerms(defaultTerms)
}

// NewFilterWithTerms creates a filter with a custom blocklist. Empty and
// whitespace-only terms are ignored.
func NewFilterWithTerms(terms []string) *Filter {
	f := &Filter{words: make(map[string]struct{})}
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if strings.ContainsRune(term, ' ') {
			f.phrases = append(f.phrases, term)
		} else {
			f.words[term] = struct{}{}
		}
	}
	return f
}

// Check screens one piece of text. Keyword matches take priority over
// spam patterns so the report reason stays specific.
func (f *Filter) Check(text string) FilterResult {
	lower := strings.ToLower(text)

	// Pass 1: plain tokens against single-word terms.
	plain := tokenizePlain(lower)
	for _, tok := range plain {
		if _, ok := f.words[tok]; ok {
			return FilterResult{Blocked: true, Reason: ReasonKeyword, Term: tok}
		}
	}

	// Pass 2: phrases with token bounds, so "kill yourselves" does not
	// match "kill yourself".
	padded := " " + strings.Join(plain, " ") + " "
	for _, phrase := range f.phrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return FilterResult{Blocked: true, Reason: ReasonKeyword, Term: phrase}
		}
	}

	// Pass 3: leetspeak. Tokens keep their symbols here so "$h!t" stays
	// one token, then each is normalized and rechecked.
	for _, tok := range tokenizeLeet(lower) {
		norm := normalizeLeet(tok)
		if norm == tok {
			continue
		}
		if _, ok := f.words[norm]; ok {
			return FilterResult{Blocked: true, Reason: ReasonKeyword, Term: norm}
		}
	}

	return f.checkSpamPatterns(text)
}

// CheckAll screens several fields as one unit and returns the first block.
// Used where a post has multiple text fields, like a titled confession.
func (f *Filter) CheckAll(fields ...string) FilterResult {
	for _, field := range fields {
		if result := f.Check(field); result.Blocked {
			return result
		}
	}
	return FilterResult{}
}

// leetMap folds common symbol and digit substitutions back to letters.
var leetMap = map[rune]rune{
	'0': 'o', '1': 'i', '3': 'e', '4': 'a', '5': 's', '7': 't',
	'@': 'a', '$': 's', '!': 'i',
}

// normalizeLeet returns the token with leetspeak substitutions undone.
func normalizeLeet(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if mapped, ok := leetMap[r]; ok {
			b.WriteRune(mapped)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tokenizePlain splits on anything that is not a letter or digit.
func tokenizePlain(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenizeLeet splits on whitespace only, preserving symbols inside
// tokens for the leetspeak pass.
func tokenizeLeet(s string) []string {
	return strings.Fields(s)
}
