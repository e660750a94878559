package pipeline

import (
	"fmt"

	"tidysheet/internal/frame"
	"tidysheet/internal/util"
)

// CleanNames returns a copy of t with snake_case column names. Names that
// collide after cleaning get the first free suffix _2, _3, ... Applying it to
// an already clean table changes nothing.
func CleanNames(t *frame.Table) *frame.Table {
	out := t.Clone()
	names := CleanNameList(t.Names())
	for i, c := range out.Columns {
		c.Name = names[i]
	}
	return out
}

// CleanNameList applies the CleanNames rules to a list of names.
func CleanNameList(names []string) []string {
	out := make([]string, len(names))
	taken := make(map[string]struct{}, len(names))
	for i, raw := range names {
		base := util.SnakeCase(raw)
		name := base
		for k := 2; ; k++ {
			if _, used := taken[name]; !used {
				break
			}
			name = fmt.Sprintf("%s_%d", base, k)
		}
		taken[name] = struct{}{}
		out[i] = name
	}
	return out
}
