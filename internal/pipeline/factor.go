package pipeline

import (
	"sort"

	"tidysheet/internal/frame"
)

// Categorize converts each named column to a Category whose levels are the
// distinct values in first-occurrence order. Category columns are left as is.
func Categorize(t *frame.Table, cols ...string) (*frame.Table, error) {
	if err := t.Require(cols...); err != nil {
		return nil, err
	}
	out := t.Clone()
	for _, name := range cols {
		c, _ := out.Col(name)
		toCategory(c)
	}
	return out, nil
}

func toCategory(c *frame.Column) {
	if c.Kind == frame.Category {
		return
	}
	for i, v := range c.Values {
		if v != nil {
			c.Values[i] = frame.Format(v)
		}
	}
	c.Kind = frame.Category
	c.Levels = uniqueStrings(formatAll(c.Values))
}

// CategorizeLevels converts col to a Category with the given level order.
// Values outside the level set become missing and are reported.
func CategorizeLevels(t *frame.Table, col string, levels []string) (*frame.Table, []frame.CoercionIssue, error) {
	if len(uniqueStrings(levels)) != len(levels) {
		return nil, nil, frame.InvalidArgument("levels for %q contain duplicates", col)
	}
	if err := t.Require(col); err != nil {
		return nil, nil, err
	}

	allowed := make(map[string]struct{}, len(levels))
	for _, l := range levels {
		allowed[l] = struct{}{}
	}

	out := t.Clone()
	c, _ := out.Col(col)
	var issues []frame.CoercionIssue
	for i, v := range c.Values {
		if v == nil {
			continue
		}
		label := frame.Format(v)
		if _, ok := allowed[label]; !ok {
			issues = append(issues, frame.CoercionIssue{Row: i + 1, Column: col, Value: label, Target: frame.Category})
			c.Values[i] = nil
			continue
		}
		c.Values[i] = label
	}
	c.Kind = frame.Category
	c.Levels = append([]string(nil), levels...)
	return out, issues, nil
}

// Collapse rewrites synonym labels of col to their canonical label. groups
// maps canonical -> synonyms. The canonical label takes the level position
// of the first member of its group in the old level order. Synonyms that do
// not occur are ignored.
func Collapse(t *frame.Table, col string, groups map[string][]string) (*frame.Table, error) {
	mapping, err := synonymMap(groups)
	if err != nil {
		return nil, err
	}
	if err := t.Require(col); err != nil {
		return nil, err
	}

	out := t.Clone()
	c, _ := out.Col(col)
	toCategory(c)

	for i, v := range c.Values {
		if v == nil {
			continue
		}
		if canonical, ok := mapping[v.(string)]; ok {
			c.Values[i] = canonical
		}
	}

	levels := make([]string, 0, len(c.Levels))
	seen := make(map[string]struct{}, len(c.Levels))
	for _, l := range c.Levels {
		if canonical, ok := mapping[l]; ok {
			l = canonical
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		levels = append(levels, l)
	}
	c.Levels = levels
	return out, nil
}

// synonymMap inverts groups into synonym -> canonical, rejecting labels that
// would map to two canonicals or that are both canonical and synonym.
func synonymMap(groups map[string][]string) (map[string]string, error) {
	canonicals := make([]string, 0, len(groups))
	for c := range groups {
		canonicals = append(canonicals, c)
	}
	sort.Strings(canonicals)

	mapping := map[string]string{}
	for _, canonical := range canonicals {
		for _, syn := range groups[canonical] {
			if syn == canonical {
				continue
			}
			if prev, ok := mapping[syn]; ok && prev != canonical {
				return nil, frame.InvalidArgument("label %q is a synonym of both %q and %q", syn, prev, canonical)
			}
			mapping[syn] = canonical
		}
	}
	for _, canonical := range canonicals {
		if other, ok := mapping[canonical]; ok {
			return nil, frame.InvalidArgument("canonical label %q is also a synonym of %q", canonical, other)
		}
	}
	return mapping, nil
}
