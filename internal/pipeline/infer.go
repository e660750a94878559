package pipeline

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"tidysheet/internal/frame"
	"tidysheet/internal/util"
)

var (
	reYear      = regexp.MustCompile(`(^|[^0-9])\d{4}([^0-9]|$)`)
	reMonthName = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\b`)
)

var DefaultNAValues = []string{"", "NA", "N/A", "NULL"}

func naSet(values []string) map[string]struct{} {
	if values == nil {
		values = DefaultNAValues
	}
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[strings.TrimSpace(v)] = struct{}{}
	}
	return out
}

// inferColumn builds a typed column from raw cell text. A column is Number
// when every present cell parses with util.ParseNumber, Date when every
// present cell looks like and parses as a date, and Text otherwise.
func inferColumn(name string, cells []string, na map[string]struct{}) *frame.Column {
	trimmed := make([]string, len(cells))
	present := make([]bool, len(cells))
	count := 0
	for i, c := range cells {
		trimmed[i] = strings.TrimSpace(c)
		if _, isNA := na[trimmed[i]]; !isNA {
			present[i] = true
			count++
		}
	}

	col := &frame.Column{Name: name, Kind: frame.Text, Values: make([]any, len(cells))}
	if count == 0 {
		return col
	}

	if nums, ok := allNumbers(trimmed, present); ok {
		col.Kind = frame.Number
		for i := range nums {
			if present[i] {
				col.Values[i] = nums[i]
			}
		}
		return col
	}

	if dates, ok := allDates(trimmed, present); ok {
		col.Kind = frame.Date
		for i := range dates {
			if present[i] {
				col.Values[i] = dates[i]
			}
		}
		return col
	}

	for i := range trimmed {
		if present[i] {
			col.Values[i] = trimmed[i]
		}
	}
	return col
}

func allNumbers(cells []string, present []bool) ([]float64, bool) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		if !present[i] {
			continue
		}
		v, ok := util.ParseNumber(c)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func allDates(cells []string, present []bool) ([]time.Time, bool) {
	out := make([]time.Time, len(cells))
	for i, c := range cells {
		if !present[i] {
			continue
		}
		if !looksLikeDate(c) {
			return nil, false
		}
		d, err := parseDate(c)
		if err != nil {
			return nil, false
		}
		out[i] = d
	}
	return out, true
}

func looksLikeDate(s string) bool {
	return reYear.MatchString(s) || reMonthName.MatchString(s)
}

// parseDate reads a date in any common layout and returns its wall clock in UTC.
func parseDate(s string) (time.Time, error) {
	res, err := dateparse.ParseAny(s)
	if err != nil {
		// Layouts dateparse does not understand
		res, err = time.Parse("02-Jan-2006 15:04:05", s)
		if err != nil {
			res, err = time.Parse("02-Jan-2006", s)
		}
		if err != nil {
			return time.Time{}, err
		}
	}
	return time.Date(res.Year(), res.Month(), res.Day(), res.Hour(), res.Minute(), res.Second(), res.Nanosecond(), time.UTC), nil
}
