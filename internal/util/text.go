package util

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	reQuotes     = regexp.MustCompile(`["'` + "`" + `«»]`)
	reNonAllowed = regexp.MustCompile(`[^\p{L}\p{N}\-/\s.]`)
	reSpaces     = regexp.MustCompile(`\s+`)
	reSeparators = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeLabel folds a free-text label to a comparison key: upper case,
// quotes and punctuation removed, whitespace collapsed.
func NormalizeLabel(input string) string {
	s := strings.ToUpper(input)
	s = reQuotes.ReplaceAllString(s, " ")
	s = reNonAllowed.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SnakeCase turns a header such as "Birth Year", "birthYear" or "BP (8)"
// into lower snake case. Already snake-cased input is returned unchanged.
func SnakeCase(input string) string {
	repl := strings.NewReplacer("%", " percent ", "#", " number ")
	s := repl.Replace(input)
	s = splitCamel(s)
	s = strings.ToLower(s)
	s = reSeparators.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "x"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "x" + s
	}
	return s
}

// splitCamel inserts a space at lower-to-upper and acronym-to-word boundaries.
func splitCamel(s string) string {
	r := []rune(s)
	var b strings.Builder
	for i, c := range r {
		if i > 0 && unicode.IsUpper(c) {
			prev := r[i-1]
			nextLower := i+1 < len(r) && unicode.IsLower(r[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune(' ')
			}
		}
		b.WriteRune(c)
	}
	return b.String()
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}
