package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"tidysheet/internal/frame"
)

type MeltSpec struct {
	// Columns are melted in this order; the rest become id columns.
	Columns []string
	// NamesTo receives the decoded source column name. With more than one
	// entry the name is split by NamesSep or by the capture groups of
	// NamesPattern.
	NamesTo      []string
	NamesSep     string
	NamesPattern *regexp.Regexp
	ValuesTo     string
}

// ColumnsWithPrefix lists the columns whose names start with any prefix, in
// table order.
func ColumnsWithPrefix(t *frame.Table, prefixes ...string) []string {
	var out []string
	for _, name := range t.Names() {
		for _, p := range prefixes {
			if strings.HasPrefix(name, p) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// Melt turns the spec's columns into rows: one output row per input row and
// source column, ordered by input row then source column. All column names
// are decoded before any row is built, so one bad name fails the whole call.
func Melt(t *frame.Table, spec MeltSpec) (*frame.Table, error) {
	if len(spec.Columns) == 0 {
		return nil, frame.InvalidArgument("melt needs at least one column")
	}
	if len(spec.NamesTo) == 0 || spec.ValuesTo == "" {
		return nil, frame.InvalidArgument("melt needs names_to and values_to")
	}
	if err := t.Require(spec.Columns...); err != nil {
		return nil, err
	}

	labels, err := decodeNames(spec)
	if err != nil {
		return nil, err
	}

	melted := make(map[string]struct{}, len(spec.Columns))
	for _, c := range spec.Columns {
		if _, dup := melted[c]; dup {
			return nil, frame.InvalidArgument("column %q selected twice", c)
		}
		melted[c] = struct{}{}
	}
	var ids []*frame.Column
	for _, c := range t.Columns {
		if _, ok := melted[c.Name]; !ok {
			ids = append(ids, c)
		}
	}
	taken := map[string]struct{}{}
	for _, c := range ids {
		taken[c.Name] = struct{}{}
	}
	for _, n := range append(append([]string(nil), spec.NamesTo...), spec.ValuesTo) {
		if _, clash := taken[n]; clash {
			return nil, frame.InvalidArgument("output column %q already exists", n)
		}
		taken[n] = struct{}{}
	}

	sources := make([]*frame.Column, len(spec.Columns))
	for k, name := range spec.Columns {
		sources[k], _ = t.Col(name)
	}
	value := meltValueColumn(spec.ValuesTo, sources)

	n, k := t.NumRows(), len(sources)
	out := &frame.Table{}
	for _, id := range ids {
		c := &frame.Column{Name: id.Name, Kind: id.Kind, Levels: id.Levels, Values: make([]any, 0, n*k)}
		for i := 0; i < n; i++ {
			for range sources {
				c.Values = append(c.Values, id.Values[i])
			}
		}
		out.Columns = append(out.Columns, c)
	}
	for d, name := range spec.NamesTo {
		c := &frame.Column{Name: name, Kind: frame.Text, Values: make([]any, 0, n*k)}
		for i := 0; i < n; i++ {
			for s := range sources {
				c.Values = append(c.Values, labels[s][d])
			}
		}
		out.Columns = append(out.Columns, c)
	}
	for i := 0; i < n; i++ {
		for s, src := range sources {
			v := src.Values[i]
			if v != nil && value.Kind == frame.Text && src.Kind != frame.Text {
				v = frame.Format(v)
			}
			value.Values[i*k+s] = v
		}
	}
	out.Columns = append(out.Columns, value)
	return out, nil
}

func decodeNames(spec MeltSpec) ([][]any, error) {
	want := len(spec.NamesTo)
	if want > 1 && spec.NamesSep == "" && spec.NamesPattern == nil {
		return nil, frame.InvalidArgument("names_to has %d entries but no separator or pattern", want)
	}
	if spec.NamesPattern != nil && spec.NamesPattern.NumSubexp() != want {
		return nil, frame.InvalidArgument("pattern %q has %d groups, names_to has %d",
			spec.NamesPattern.String(), spec.NamesPattern.NumSubexp(), want)
	}

	out := make([][]any, len(spec.Columns))
	for k, name := range spec.Columns {
		var parts []string
		switch {
		case spec.NamesPattern != nil:
			m := spec.NamesPattern.FindStringSubmatch(name)
			if m == nil {
				return nil, unparseable(name, fmt.Sprintf("does not match %q", spec.NamesPattern.String()))
			}
			parts = m[1:]
		case want == 1:
			parts = []string{name}
		default:
			parts = strings.Split(name, spec.NamesSep)
			if len(parts) != want {
				return nil, unparseable(name, fmt.Sprintf("splits into %d parts on %q, expected %d", len(parts), spec.NamesSep, want))
			}
		}
		labels := make([]any, want)
		for d, p := range parts {
			if p == "" {
				return nil, unparseable(name, fmt.Sprintf("part %d is empty", d+1))
			}
			labels[d] = p
		}
		out[k] = labels
	}
	return out, nil
}

func unparseable(name, reason string) error {
	return frame.NewError(frame.ErrTypeUnparseableLabel, fmt.Sprintf("column %q %s", name, reason), nil).WithContext("column", name)
}

// meltValueColumn keeps the sources' shared kind, or falls back to Text.
func meltValueColumn(name string, sources []*frame.Column) *frame.Column {
	n := 0
	if len(sources) > 0 {
		n = sources[0].Len() * len(sources)
	}
	out := &frame.Column{Name: name, Kind: sources[0].Kind, Values: make([]any, n)}
	for _, s := range sources[1:] {
		if s.Kind != out.Kind {
			out.Kind = frame.Text
			return out
		}
	}
	if out.Kind == frame.Category {
		var levels []string
		for _, s := range sources {
			levels = append(levels, s.Levels...)
		}
		out.Levels = uniqueStrings(levels)
	}
	return out
}

// DuplicatePolicy resolves two rows that land in the same pivot cell.
type DuplicatePolicy int

const (
	DuplicateError DuplicatePolicy = iota
	KeepFirst
	KeepLast
)

type PivotSpec struct {
	NamesFrom []string
	// NamesSep joins multiple NamesFrom values; defaults to "_".
	NamesSep   string
	ValuesFrom string
	// IDColumns identify an output row; defaults to every other column.
	IDColumns   []string
	OnDuplicate DuplicatePolicy
}

// Pivot spreads ValuesFrom across one new column per distinct NamesFrom
// value. Output rows follow the first occurrence of each id combination and
// new columns the first occurrence of each name. Absent cells are missing.
func Pivot(t *frame.Table, spec PivotSpec) (*frame.Table, error) {
	if len(spec.NamesFrom) == 0 || spec.ValuesFrom == "" {
		return nil, frame.InvalidArgument("pivot needs names_from and values_from")
	}
	if err := t.Require(spec.NamesFrom...); err != nil {
		return nil, err
	}
	values, err := t.Col(spec.ValuesFrom)
	if err != nil {
		return nil, err
	}
	sep := spec.NamesSep
	if sep == "" {
		sep = "_"
	}

	pivoted := map[string]struct{}{spec.ValuesFrom: {}}
	for _, n := range spec.NamesFrom {
		if n == spec.ValuesFrom {
			return nil, frame.InvalidArgument("column %q is both names_from and values_from", n)
		}
		pivoted[n] = struct{}{}
	}
	idCols := spec.IDColumns
	if idCols == nil {
		for _, n := range t.Names() {
			if _, ok := pivoted[n]; !ok {
				idCols = append(idCols, n)
			}
		}
	} else {
		if err := t.Require(idCols...); err != nil {
			return nil, err
		}
		for _, n := range idCols {
			if _, ok := pivoted[n]; ok {
				return nil, frame.InvalidArgument("column %q cannot be an id and a pivot column", n)
			}
		}
	}

	rowOf := map[string]int{}
	var firstRow []int
	colOf := map[string]int{}
	var newNames []string
	type cell struct{ row, col int }
	cells := map[cell]any{}

	for i := 0; i < t.NumRows(); i++ {
		key := rowKey(t, idCols, i)
		r, ok := rowOf[key]
		if !ok {
			r = len(firstRow)
			rowOf[key] = r
			firstRow = append(firstRow, i)
		}

		name, err := pivotName(t, spec.NamesFrom, sep, i)
		if err != nil {
			return nil, err
		}
		c, ok := colOf[name]
		if !ok {
			c = len(newNames)
			colOf[name] = c
			newNames = append(newNames, name)
		}

		at := cell{r, c}
		if _, dup := cells[at]; dup {
			switch spec.OnDuplicate {
			case KeepFirst:
				continue
			case KeepLast:
			default:
				return nil, frame.NewError(frame.ErrTypeDuplicateKey,
					fmt.Sprintf("row %d repeats column %q for the same id", i+1, name), nil).
					WithContext("row", i+1).WithContext("column", name)
			}
		}
		cells[at] = values.Values[i]
	}

	out := &frame.Table{}
	taken := map[string]struct{}{}
	for _, name := range idCols {
		src, _ := t.Col(name)
		c := &frame.Column{Name: name, Kind: src.Kind, Levels: src.Levels, Values: make([]any, len(firstRow))}
		for r, i := range firstRow {
			c.Values[r] = src.Values[i]
		}
		out.Columns = append(out.Columns, c)
		taken[name] = struct{}{}
	}
	for k, name := range newNames {
		if _, clash := taken[name]; clash {
			return nil, frame.InvalidArgument("pivoted column %q collides with an id column", name)
		}
		c := &frame.Column{Name: name, Kind: values.Kind, Levels: values.Levels, Values: make([]any, len(firstRow))}
		for r := range firstRow {
			c.Values[r] = cells[cell{r, k}]
		}
		out.Columns = append(out.Columns, c)
	}
	return out, nil
}

// pivotName joins the name cells of row i. A missing name cell has no label
// that could not also be a real value, so it is rejected.
func pivotName(t *frame.Table, cols []string, sep string, i int) (string, error) {
	parts := make([]string, len(cols))
	for k, name := range cols {
		v, _ := t.Value(name, i)
		if v == nil {
			return "", frame.InvalidArgument("row %d: name column %q is missing", i+1, name)
		}
		parts[k] = frame.Format(v)
	}
	return strings.Join(parts, sep), nil
}
