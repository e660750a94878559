// Package inspect holds reporting passes over a finished table: structure
// and missing-value summaries, numeric descriptions, synonym candidates and
// range validation. None of them modify the table.
package inspect

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"tidysheet/internal/frame"
)

const glimpseValues = 5

type ColumnSummary struct {
	Name     string
	Kind     frame.Kind
	Present  int
	Missing  int
	Distinct int
	First    []string
}

// Glimpse summarizes every column in table order.
func Glimpse(t *frame.Table) []ColumnSummary {
	out := make([]ColumnSummary, 0, t.NumCols())
	for _, c := range t.Columns {
		s := ColumnSummary{Name: c.Name, Kind: c.Kind}
		seen := map[string]struct{}{}
		for _, v := range c.Values {
			if v == nil {
				s.Missing++
				if len(s.First) < glimpseValues {
					s.First = append(s.First, "NA")
				}
				continue
			}
			s.Present++
			label := frame.Format(v)
			seen[label] = struct{}{}
			if len(s.First) < glimpseValues {
				s.First = append(s.First, label)
			}
		}
		s.Distinct = len(seen)
		out = append(out, s)
	}
	return out
}

type MissingCount struct {
	Column  string
	Missing int
	Percent float64
}

// MissingSummary counts missing cells per column, most incomplete first.
func MissingSummary(t *frame.Table) []MissingCount {
	out := make([]MissingCount, 0, t.NumCols())
	for _, c := range t.Columns {
		m := MissingCount{Column: c.Name, Missing: c.Missing()}
		if c.Len() > 0 {
			m.Percent = 100 * float64(m.Missing) / float64(c.Len())
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Missing > out[j].Missing
	})
	return out
}

// IncompleteRows lists the 1-based rows holding at least one missing cell.
func IncompleteRows(t *frame.Table) []int {
	var out []int
	for i := 0; i < t.NumRows(); i++ {
		for _, c := range t.Columns {
			if c.Values[i] == nil {
				out = append(out, i+1)
				break
			}
		}
	}
	return out
}

type NumericSummary struct {
	Column string
	N      int
	Mean   float64
	SD     float64
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

// Describe summarizes the present values of each Number column. Columns
// without values are listed with N = 0 and NaN statistics.
func Describe(t *frame.Table) []NumericSummary {
	var out []NumericSummary
	for _, c := range t.Columns {
		if c.Kind != frame.Number {
			continue
		}
		xs := make([]float64, 0, c.Len())
		for _, v := range c.Values {
			if f, ok := v.(float64); ok {
				xs = append(xs, f)
			}
		}
		s := NumericSummary{Column: c.Name, N: len(xs)}
		if len(xs) == 0 {
			nan := math.NaN()
			s.Mean, s.SD, s.Min, s.Q1, s.Median, s.Q3, s.Max = nan, nan, nan, nan, nan, nan, nan
			out = append(out, s)
			continue
		}
		sort.Float64s(xs)
		s.Mean = stat.Mean(xs, nil)
		s.SD = math.NaN()
		if len(xs) > 1 {
			s.SD = stat.StdDev(xs, nil)
		}
		s.Min = floats.Min(xs)
		s.Max = floats.Max(xs)
		s.Q1 = stat.Quantile(0.25, stat.Empirical, xs, nil)
		s.Median = stat.Quantile(0.5, stat.Empirical, xs, nil)
		s.Q3 = stat.Quantile(0.75, stat.Empirical, xs, nil)
		out = append(out, s)
	}
	return out
}
