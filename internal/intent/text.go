package intent

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxInputRunes bounds how much request text is inspected.
const MaxInputRunes = 4000

var ligatures = strings.NewReplacer("œ", "oe", "Œ", "oe", "æ", "ae", "Æ", "ae")

// Normalize repairs invalid UTF-8, truncates, strips diacritics and case-folds
// so FR/ES text matches the ASCII keyword tables.
func Normalize(raw string) string {
	s := strings.ToValidUTF8(raw, " ")
	if utf8.RuneCountInString(s) > MaxInputRunes {
		s = string([]rune(s)[:MaxInputRunes])
	}
	s = ligatures.Replace(s)
	// Transformers carry state, so each call builds its own chain.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(fold, s); err == nil {
		s = out
	}
	return cases.Fold().String(s)
}

func tokenize(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// pattern is one keyword form. Tokens ending in "*" match by prefix. A bag
// pattern matches when every token appears anywhere in the text; otherwise
// tokens must be contiguous.
type pattern struct {
	canonical string
	tokens    []string
	bag       bool
}

type table []pattern

// compile turns canonical -> keywords into patterns sorted longest first, so
// "lunettes de soleil" claims its tokens before "lunettes" can.
func compile(entries map[string][]string) table {
	var out table
	for canonical, keys := range entries {
		for _, key := range keys {
			p := pattern{canonical: canonical}
			if strings.Contains(key, "+") {
				p.bag = true
				p.tokens = strings.Split(key, "+")
			} else {
				p.tokens = strings.Fields(key)
			}
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].tokens) != len(out[j].tokens) {
			return len(out[i].tokens) > len(out[j].tokens)
		}
		if out[i].canonical != out[j].canonical {
			return out[i].canonical < out[j].canonical
		}
		return strings.Join(out[i].tokens, " ") < strings.Join(out[j].tokens, " ")
	})
	return out
}

type hit struct {
	canonical string
	pos       int
}

func tokenMatches(pat, tok string) bool {
	if strings.HasSuffix(pat, "*") {
		return strings.HasPrefix(tok, strings.TrimSuffix(pat, "*"))
	}
	return pat == tok
}

// matchAll returns every canonical found in tokens, ordered by position and
// deduplicated. Matched tokens are consumed within this table only.
func (t table) matchAll(tokens []string) []hit {
	used := make([]bool, len(tokens))
	var hits []hit
	for _, p := range t {
		if p.bag {
			if pos, ok := matchBag(p.tokens, tokens, used); ok {
				hits = append(hits, hit{p.canonical, pos})
			}
			continue
		}
		for start := 0; start+len(p.tokens) <= len(tokens); start++ {
			if !matchAt(p.tokens, tokens, used, start) {
				continue
			}
			for i := range p.tokens {
				used[start+i] = true
			}
			hits = append(hits, hit{p.canonical, start})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	seen := map[string]bool{}
	out := hits[:0]
	for _, h := range hits {
		if seen[h.canonical] {
			continue
		}
		seen[h.canonical] = true
		out = append(out, h)
	}
	return out
}

func (t table) first(tokens []string) string {
	if hits := t.matchAll(tokens); len(hits) > 0 {
		return hits[0].canonical
	}
	return ""
}

func (t table) names(tokens []string) []string {
	hits := t.matchAll(tokens)
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.canonical)
	}
	return out
}

func matchAt(pat, tokens []string, used []bool, start int) bool {
	for i, p := range pat {
		if used[start+i] || !tokenMatches(p, tokens[start+i]) {
			return false
		}
	}
	return true
}

func matchBag(pat, tokens []string, used []bool) (int, bool) {
	first := len(tokens)
	idx := make([]int, 0, len(pat))
	for _, p := range pat {
		found := -1
		for i, tok := range tokens {
			if !used[i] && tokenMatches(p, tok) {
				found = i
				break
			}
		}
		if found < 0 {
			return 0, false
		}
		idx = append(idx, found)
		if found < first {
			first = found
		}
	}
	for _, i := range idx {
		used[i] = true
	}
	return first, true
}
