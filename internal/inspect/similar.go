package inspect

import (
	"sort"

	"tidysheet/internal/frame"
	"tidysheet/internal/util"
)

// LevelPair is a pair of labels that probably mean the same thing.
type LevelPair struct {
	A, B  string
	Score float64
}

// SimilarLevels compares every pair of distinct labels in col and returns
// those whose normalized forms score at least threshold, best first. Labels
// that normalize identically ("White", "WHITE") score 1.
func SimilarLevels(t *frame.Table, col string, threshold float64) ([]LevelPair, error) {
	c, err := t.Col(col)
	if err != nil {
		return nil, err
	}
	if c.Kind == frame.Number || c.Kind == frame.Date {
		return nil, frame.InvalidArgument("column %q is %s, expected text or category", col, c.Kind)
	}

	labels := c.Levels
	if c.Kind != frame.Category {
		seen := map[string]struct{}{}
		for _, v := range c.Values {
			if v == nil {
				continue
			}
			s := frame.Format(v)
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				labels = append(labels, s)
			}
		}
	}

	keys := make([]string, len(labels))
	for i, l := range labels {
		keys[i] = util.NormalizeLabel(l)
	}

	var out []LevelPair
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			score := util.DiceCoefficient(keys[i], keys[j])
			if score >= threshold {
				out = append(out, LevelPair{A: labels[i], B: labels[j], Score: score})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}
