// Package moderation masks configured words in message bodies.
package moderation

import (
	"sort"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Censor replaces every match of a configured word with a fixed rune.
// Matching ignores case, punctuation, spacing and common character swaps,
// so "B.a-D" matches "bad".
type Censor struct {
	matcher *goahocorasick.Machine
	char    rune
}

// NewCensor builds the automaton. It returns nil when words is empty; a nil
// Censor leaves text untouched.
func NewCensor(words []string, char rune) (*Censor, error) {
	patterns := lo.FilterMap(words, func(w string, _ int) ([]rune, bool) {
		p := normalizeRunes([]rune(w))
		return p, len(p) > 0
	})
	if len(patterns) == 0 {
		return nil, nil
	}
	patterns = lo.UniqBy(patterns, func(p []rune) string { return string(p) })
	sort.Slice(patterns, func(i, j int) bool { return string(patterns[i]) < string(patterns[j]) })

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{matcher: m, char: char}, nil
}

func (c *Censor) Apply(text string) string {
	if c == nil {
		return text
	}
	orig := []rune(text)
	norm, origIdx := normalize(orig)
	if len(norm) == 0 {
		return text
	}

	spans := c.matcher.MultiPatternSearch(norm, false)
	if len(spans) == 0 {
		return text
	}
	for _, span := range spans {
		start, end := span.Pos, span.Pos+len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			orig[i] = c.char
		}
	}
	return string(orig)
}

// normalize returns the searchable runes of in and, for each, its index in in.
func normalize(in []rune) ([]rune, []int) {
	norm := make([]rune, 0, len(in))
	idx := make([]int, 0, len(in))
	for i, r := range in {
		r = fold(r)
		if isNoise(r) {
			continue
		}
		norm = append(norm, unicode.ToLower(r))
		idx = append(idx, i)
	}
	return norm, idx
}

func normalizeRunes(in []rune) []rune {
	norm, _ := normalize(in)
	return norm
}

func fold(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	}
	return r
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
