package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"tidysheet/internal/frame"
)

// Position places derived columns relative to an existing one. The zero
// value appends them at the end.
type Position struct {
	Before string
	After  string
}

// Expr computes a column from the table it is evaluated against.
type Expr interface {
	Eval(t *frame.Table) (*frame.Column, error)
}

type ExprFunc func(t *frame.Table) (*frame.Column, error)

func (f ExprFunc) Eval(t *frame.Table) (*frame.Column, error) {
	return f(t)
}

type Derivation struct {
	Name string
	Expr Expr
}

// Derive evaluates defs in order, each against the table produced by the
// previous ones. A derivation named like an existing column replaces it in
// place; new columns are inserted at the requested position in defs order.
func Derive(t *frame.Table, at Position, defs ...Derivation) (*frame.Table, error) {
	if at.Before != "" && at.After != "" {
		return nil, frame.InvalidArgument("position sets both before %q and after %q", at.Before, at.After)
	}
	insertAt := t.NumCols()
	switch {
	case at.Before != "":
		if insertAt = t.Index(at.Before); insertAt < 0 {
			return nil, frame.UnknownColumn(at.Before)
		}
	case at.After != "":
		idx := t.Index(at.After)
		if idx < 0 {
			return nil, frame.UnknownColumn(at.After)
		}
		insertAt = idx + 1
	}

	cur := t.Clone()
	for _, def := range defs {
		if def.Name == "" || def.Expr == nil {
			return nil, frame.InvalidArgument("derivation needs a name and an expression")
		}
		col, err := def.Expr.Eval(cur)
		if err != nil {
			return nil, err
		}
		col.Name = def.Name
		if cur.NumCols() > 0 && col.Len() != cur.NumRows() {
			return nil, frame.InvalidArgument("derived column %q has %d rows, expected %d", def.Name, col.Len(), cur.NumRows())
		}
		if idx := cur.Index(def.Name); idx >= 0 {
			cur.Columns[idx] = col
			continue
		}
		if cur, err = cur.Insert(insertAt, col); err != nil {
			return nil, err
		}
		insertAt++
	}
	return cur, nil
}

// SeqID numbers rows 1..n in their current order.
func SeqID() Expr {
	return ExprFunc(func(t *frame.Table) (*frame.Column, error) {
		col := &frame.Column{Kind: frame.Number, Values: make([]any, t.NumRows())}
		for i := range col.Values {
			col.Values[i] = float64(i + 1)
		}
		return col, nil
	})
}

// MakeDate composes a Date from numeric year, month and day columns. A
// missing component yields a missing date; an impossible one is an error.
func MakeDate(yearCol, monthCol, dayCol string) Expr {
	return ExprFunc(func(t *frame.Table) (*frame.Column, error) {
		var parts [3]*frame.Column
		for k, name := range []string{yearCol, monthCol, dayCol} {
			c, err := t.Col(name)
			if err != nil {
				return nil, err
			}
			parts[k] = c
		}

		col := &frame.Column{Kind: frame.Date, Values: make([]any, t.NumRows())}
		for i := range col.Values {
			var ymd [3]int
			missing := false
			for k, c := range parts {
				v := c.Values[i]
				if v == nil {
					missing = true
					break
				}
				n, ok := wholeNumber(v)
				if !ok {
					return nil, invalidDate(i, parts, fmt.Sprintf("%s is not a whole number", c.Name))
				}
				ymd[k] = n
			}
			if missing {
				continue
			}
			if ymd[1] < 1 || ymd[1] > 12 {
				return nil, invalidDate(i, parts, fmt.Sprintf("month %d out of range", ymd[1]))
			}
			d := frame.CivilDate(ymd[0], time.Month(ymd[1]), ymd[2])
			if d.Year() != ymd[0] || int(d.Month()) != ymd[1] || d.Day() != ymd[2] {
				return nil, invalidDate(i, parts, fmt.Sprintf("day %d out of range for %04d-%02d", ymd[2], ymd[0], ymd[1]))
			}
			col.Values[i] = d
		}
		return col, nil
	})
}

func invalidDate(row int, parts [3]*frame.Column, msg string) error {
	e := frame.NewError(frame.ErrTypeInvalidDate, fmt.Sprintf("row %d: %s", row+1, msg), nil).WithContext("row", row+1)
	for _, c := range parts {
		e.WithContext(c.Name, frame.Format(c.Values[row]))
	}
	return e
}

func wholeNumber(v any) (int, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return 0, false
	}
	return int(f), true
}

// AgeAt computes whole years elapsed from the dates in col to at.
func AgeAt(col string, at time.Time) Expr {
	return ExprFunc(func(t *frame.Table) (*frame.Column, error) {
		from, err := dateColumn(t, col)
		if err != nil {
			return nil, err
		}
		out := &frame.Column{Kind: frame.Number, Values: make([]any, t.NumRows())}
		for i, v := range from.Values {
			if v == nil {
				continue
			}
			out.Values[i] = float64(WholeYears(v.(time.Time), at))
		}
		return out, nil
	})
}

// YearsBetween computes whole years from fromCol to toCol row by row.
func YearsBetween(fromCol, toCol string) Expr {
	return ExprFunc(func(t *frame.Table) (*frame.Column, error) {
		from, err := dateColumn(t, fromCol)
		if err != nil {
			return nil, err
		}
		to, err := dateColumn(t, toCol)
		if err != nil {
			return nil, err
		}
		out := &frame.Column{Kind: frame.Number, Values: make([]any, t.NumRows())}
		for i := range out.Values {
			a, b := from.Values[i], to.Values[i]
			if a == nil || b == nil {
				continue
			}
			out.Values[i] = float64(WholeYears(a.(time.Time), b.(time.Time)))
		}
		return out, nil
	})
}

func dateColumn(t *frame.Table, name string) (*frame.Column, error) {
	c, err := t.Col(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != frame.Date {
		return nil, frame.InvalidArgument("column %q is %s, expected date", name, c.Kind)
	}
	return c, nil
}

// WholeYears counts complete years between two calendar dates, truncated
// toward zero.
func WholeYears(from, to time.Time) int {
	if to.Before(from) {
		return -WholeYears(to, from)
	}
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	return years
}

// DenseRank ranks the values of col 1, 2, ... within each group of the
// within columns. Values rank numerically when they all parse as numbers.
func DenseRank(col string, within ...string) Expr {
	return ExprFunc(func(t *frame.Table) (*frame.Column, error) {
		src, err := t.Col(col)
		if err != nil {
			return nil, err
		}
		if err := t.Require(within...); err != nil {
			return nil, err
		}

		numeric := true
		for _, v := range src.Values {
			if v == nil {
				continue
			}
			if _, err := strconv.ParseFloat(frame.Format(v), 64); err != nil {
				numeric = false
				break
			}
		}

		groups := map[string][]string{}
		keys := make([]string, t.NumRows())
		for i := range keys {
			keys[i] = rowKey(t, within, i)
			if v := src.Values[i]; v != nil {
				groups[keys[i]] = append(groups[keys[i]], frame.Format(v))
			}
		}

		ranks := map[string]map[string]int{}
		for key, values := range groups {
			distinct := uniqueStrings(values)
			sort.Slice(distinct, func(a, b int) bool {
				if numeric {
					x, _ := strconv.ParseFloat(distinct[a], 64)
					y, _ := strconv.ParseFloat(distinct[b], 64)
					return x < y
				}
				return distinct[a] < distinct[b]
			})
			ranks[key] = make(map[string]int, len(distinct))
			for r, v := range distinct {
				ranks[key][v] = r + 1
			}
		}

		out := &frame.Column{Kind: frame.Number, Values: make([]any, t.NumRows())}
		for i, v := range src.Values {
			if v == nil {
				continue
			}
			out.Values[i] = float64(ranks[keys[i]][frame.Format(v)])
		}
		return out, nil
	})
}

// Row is the view of one row passed to Compute.
type Row struct {
	t *frame.Table
	i int
}

// Index is the 0-based row position.
func (r Row) Index() int {
	return r.i
}

func (r Row) Get(name string) (any, error) {
	return r.t.Value(name, r.i)
}

// Compute derives a column of the given kind row by row.
func Compute(kind frame.Kind, fn func(r Row) (any, error)) Expr {
	return ExprFunc(func(t *frame.Table) (*frame.Column, error) {
		out := &frame.Column{Kind: kind, Values: make([]any, t.NumRows())}
		for i := range out.Values {
			v, err := fn(Row{t: t, i: i})
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			out.Values[i] = v
		}
		if kind == frame.Category {
			out.Levels = uniqueStrings(formatAll(out.Values))
		}
		return out, nil
	})
}

const missingKey = "\x00NA"

// rowKey joins the formatted values of cols at row i into a map key.
func rowKey(t *frame.Table, cols []string, i int) string {
	parts := make([]string, len(cols))
	for k, name := range cols {
		v, _ := t.Value(name, i)
		if v == nil {
			parts[k] = missingKey
			continue
		}
		parts[k] = frame.Format(v)
	}
	return strings.Join(parts, "\x1f")
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func formatAll(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, frame.Format(v))
		}
	}
	return out
}
