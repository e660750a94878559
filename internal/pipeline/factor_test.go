package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidysheet/internal/frame"
)

func raceTable() *frame.Table {
	return frame.MustNew(
		frame.NumberColumn("pat_id", 1, 2, 3, 4, 5, 6, 7),
		&frame.Column{Name: "race", Kind: frame.Text, Values: []any{"Caucasian", "Black", "White", nil, "AA", "WHITE", "Asian"}},
	)
}

func TestCategorizeFirstOccurrence(t *testing.T) {
	out, err := Categorize(raceTable(), "race")
	require.NoError(t, err)
	race, _ := out.Col("race")
	assert.Equal(t, frame.Category, race.Kind)
	assert.Equal(t, []string{"Caucasian", "Black", "White", "AA", "WHITE", "Asian"}, race.Levels)

	_, err = Categorize(raceTable(), "ethnicity")
	assert.True(t, errors.Is(err, frame.ErrUnknownColumn))
}

func TestCategorizeNumbersAsLabels(t *testing.T) {
	out, err := Categorize(raceTable(), "pat_id")
	require.NoError(t, err)
	assert.Equal(t, "1", out.Columns[0].Values[0])
	assert.Len(t, out.Columns[0].Levels, 7)
}

func TestCategorizeLevelsReportsOutsiders(t *testing.T) {
	tb := frame.MustNew(frame.TextColumn("sex", "F", "M", "female", "F"))
	out, issues, err := CategorizeLevels(tb, "sex", []string{"M", "F"})
	require.NoError(t, err)
	sex, _ := out.Col("sex")
	assert.Equal(t, []string{"M", "F"}, sex.Levels)
	assert.Equal(t, []any{"F", "M", nil, "F"}, sex.Values)
	require.Len(t, issues, 1)
	assert.Equal(t, 3, issues[0].Row)
	assert.Equal(t, "female", issues[0].Value)
	assert.True(t, errors.Is(issues[0], frame.ErrTypeCoercion))
}

func TestCollapseClosure(t *testing.T) {
	groups := map[string][]string{
		"White":                     {"Caucasian", "WHITE"},
		"Black or African American": {"Black", "African American", "AA"},
		"Asian":                     {"ASIAN"},
	}
	out, err := Collapse(raceTable(), "race", groups)
	require.NoError(t, err)
	race, _ := out.Col("race")

	assert.Equal(t, []string{"White", "Black or African American", "Asian"}, race.Levels)
	assert.Equal(t, []any{"White", "Black or African American", "White", nil, "Black or African American", "White", "Asian"}, race.Values)

	synonyms := map[string]bool{}
	for _, syns := range groups {
		for _, s := range syns {
			synonyms[s] = true
		}
	}
	for _, l := range race.Levels {
		assert.False(t, synonyms[l], "level %q is a synonym", l)
	}
}

func TestCollapseRejectsAmbiguousGroups(t *testing.T) {
	_, err := Collapse(raceTable(), "race", map[string][]string{
		"White": {"Caucasian"},
		"Other": {"Caucasian"},
	})
	assert.True(t, errors.Is(err, frame.ErrInvalidArgument))

	_, err = Collapse(raceTable(), "race", map[string][]string{
		"White":     {"Caucasian"},
		"Caucasian": {"Euro"},
	})
	assert.True(t, errors.Is(err, frame.ErrInvalidArgument))

	_, err = Collapse(raceTable(), "ethnicity", map[string][]string{"White": {"WHITE"}})
	assert.True(t, errors.Is(err, frame.ErrUnknownColumn))
}
