package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reDecimal        = regexp.MustCompile(`^[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?$`)
	reThousandsComma = regexp.MustCompile(`^[-+]?\d{1,3}(?:,\d{3})+$`)
	reThousandsDots  = regexp.MustCompile(`^[-+]?\d{1,3}(?:\.\d{3}){2,}$`)
)

// ParseNumber parses a numeric cell. It accepts grouped thousands ("1 000",
// "1,000", "1.000.000", "1.000,5", "12,000.25") and a decimal comma ("1,5").
// A single dot is always a decimal point, so "0.125" stays 0.125. Inf, NaN
// and hex forms are rejected.
func ParseNumber(input string) (float64, bool) {
	token := strings.TrimSpace(strings.ReplaceAll(input, "\u00A0", " "))
	if token == "" {
		return 0, false
	}
	normalized := normalizeNumericToken(token)
	if !reDecimal.MatchString(normalized) {
		return 0, false
	}
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	hasDot := strings.Contains(compact, ".")
	hasComma := strings.Contains(compact, ",")
	switch {
	case hasDot && hasComma:
		// the later separator is the decimal mark
		if strings.LastIndex(compact, ",") > strings.LastIndex(compact, ".") {
			return strings.ReplaceAll(strings.ReplaceAll(compact, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(compact, ",", "")
	case hasComma:
		if reThousandsComma.MatchString(compact) {
			return strings.ReplaceAll(compact, ",", "")
		}
		return strings.ReplaceAll(compact, ",", ".")
	case reThousandsDots.MatchString(compact):
		return strings.ReplaceAll(compact, ".", "")
	}
	return compact
}
