package pipeline

import (
	"strings"
	"time"

	"tidysheet/internal/frame"
	"tidysheet/internal/util"
)

type SplitSpec struct {
	Column string
	Into   []string
	// Sep splits on a delimiter. Widths instead cuts the first len(Into)-1
	// pieces at fixed rune widths; the last piece takes the remainder.
	Sep    string
	Widths []int
}

// Split replaces Column with the Text columns named by Into. Missing pieces
// are missing cells; surplus text stays in the last column.
func Split(t *frame.Table, spec SplitSpec) (*frame.Table, error) {
	if len(spec.Into) == 0 {
		return nil, frame.InvalidArgument("split of %q needs target columns", spec.Column)
	}
	if (spec.Sep == "") == (spec.Widths == nil) {
		return nil, frame.InvalidArgument("split of %q needs exactly one of a separator or widths", spec.Column)
	}
	if spec.Widths != nil && len(spec.Widths) != len(spec.Into)-1 {
		return nil, frame.InvalidArgument("split of %q into %d columns needs %d widths, got %d",
			spec.Column, len(spec.Into), len(spec.Into)-1, len(spec.Widths))
	}
	for _, w := range spec.Widths {
		if w <= 0 {
			return nil, frame.InvalidArgument("split width %d must be positive", w)
		}
	}
	pos := t.Index(spec.Column)
	if pos < 0 {
		return nil, frame.UnknownColumn(spec.Column)
	}
	seen := map[string]struct{}{}
	for _, name := range spec.Into {
		if _, dup := seen[name]; dup {
			return nil, frame.InvalidArgument("split target %q listed twice", name)
		}
		seen[name] = struct{}{}
		if idx := t.Index(name); idx >= 0 && idx != pos {
			return nil, frame.InvalidArgument("split target %q already exists", name)
		}
	}

	src := t.Columns[pos]
	targets := make([]*frame.Column, len(spec.Into))
	for k, name := range spec.Into {
		targets[k] = &frame.Column{Name: name, Kind: frame.Text, Values: make([]any, src.Len())}
	}
	for i, v := range src.Values {
		if v == nil {
			continue
		}
		var pieces []string
		if spec.Sep != "" {
			pieces = strings.SplitN(frame.Format(v), spec.Sep, len(spec.Into))
		} else {
			pieces = cutWidths(frame.Format(v), spec.Widths)
		}
		for k, p := range pieces {
			if p = strings.TrimSpace(p); p != "" {
				targets[k].Values[i] = p
			}
		}
	}

	out := &frame.Table{Columns: make([]*frame.Column, 0, t.NumCols()+len(targets)-1)}
	for j, c := range t.Columns {
		if j == pos {
			out.Columns = append(out.Columns, targets...)
			continue
		}
		out.Columns = append(out.Columns, c.Clone())
	}
	return out, nil
}

func cutWidths(s string, widths []int) []string {
	runes := []rune(s)
	out := make([]string, 0, len(widths)+1)
	for _, w := range widths {
		if len(runes) == 0 {
			return out
		}
		if w > len(runes) {
			w = len(runes)
		}
		out = append(out, string(runes[:w]))
		runes = runes[w:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// Typer parses text cells into typed columns. Cells matching NAValues become
// missing without an issue; NAValues defaults to DefaultNAValues.
type Typer struct {
	NAValues []string
}

// CoerceNumeric parses the named columns as numbers. Cells that do not parse
// become missing and are returned as issues; only structural problems abort.
func CoerceNumeric(t *frame.Table, cols ...string) (*frame.Table, []frame.CoercionIssue, error) {
	return Typer{}.Numeric(t, cols...)
}

// CoerceDate parses the named columns as dates, collecting issues like
// CoerceNumeric.
func CoerceDate(t *frame.Table, cols ...string) (*frame.Table, []frame.CoercionIssue, error) {
	return Typer{}.Date(t, cols...)
}

func (ty Typer) Numeric(t *frame.Table, cols ...string) (*frame.Table, []frame.CoercionIssue, error) {
	return ty.coerce(t, cols, frame.Number, func(s string) (any, bool) {
		n, ok := util.ParseNumber(s)
		return n, ok
	})
}

func (ty Typer) Date(t *frame.Table, cols ...string) (*frame.Table, []frame.CoercionIssue, error) {
	return ty.coerce(t, cols, frame.Date, func(s string) (any, bool) {
		d, err := parseDate(s)
		if err != nil {
			return time.Time{}, false
		}
		return d, true
	})
}

func (ty Typer) coerce(t *frame.Table, cols []string, target frame.Kind, parse func(string) (any, bool)) (*frame.Table, []frame.CoercionIssue, error) {
	if err := t.Require(cols...); err != nil {
		return nil, nil, err
	}
	na := naSet(ty.NAValues)
	out := t.Clone()
	var issues []frame.CoercionIssue
	for _, name := range cols {
		c, _ := out.Col(name)
		if c.Kind == target {
			continue
		}
		for i, v := range c.Values {
			if v == nil {
				continue
			}
			raw := frame.Format(v)
			if _, isNA := na[strings.TrimSpace(raw)]; isNA {
				c.Values[i] = nil
				continue
			}
			parsed, ok := parse(strings.TrimSpace(raw))
			if !ok {
				issues = append(issues, frame.CoercionIssue{Row: i + 1, Column: name, Value: raw, Target: target})
				c.Values[i] = nil
				continue
			}
			c.Values[i] = parsed
		}
		c.Kind = target
		c.Levels = nil
	}
	return out, issues, nil
}
