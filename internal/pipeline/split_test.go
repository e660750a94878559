package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidysheet/internal/frame"
)

func TestSplitReplacesSourceInPlace(t *testing.T) {
	tb := frame.MustNew(
		frame.NumberColumn("pat_id", 1, 2, 3, 4),
		&frame.Column{Name: "bp", Kind: frame.Text, Values: []any{"120/80", "118", nil, "130/85/extra"}},
		frame.NumberColumn("hr", 70, 71, 72, 73),
	)
	out, err := Split(tb, SplitSpec{Column: "bp", Into: []string{"sbp", "dbp"}, Sep: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pat_id", "sbp", "dbp", "hr"}, out.Names())
	assert.Equal(t, []any{"120", "118", nil, "130"}, out.Columns[1].Values)
	assert.Equal(t, []any{"80", nil, nil, "85/extra"}, out.Columns[2].Values)
}

func TestSplitWidths(t *testing.T) {
	tb := frame.MustNew(frame.TextColumn("code", "AB1234", "CD5", "E"))
	out, err := Split(tb, SplitSpec{Column: "code", Into: []string{"site", "num"}, Widths: []int{2}})
	require.NoError(t, err)
	assert.Equal(t, []any{"AB", "CD", "E"}, out.Columns[0].Values)
	assert.Equal(t, []any{"1234", "5", nil}, out.Columns[1].Values)
}

func TestSplitErrors(t *testing.T) {
	tb := frame.MustNew(frame.TextColumn("bp", "120/80"), frame.NumberColumn("hr", 70))

	_, err := Split(tb, SplitSpec{Column: "pressure", Into: []string{"sbp", "dbp"}, Sep: "/"})
	assert.True(t, errors.Is(err, frame.ErrUnknownColumn))

	_, err = Split(tb, SplitSpec{Column: "bp", Into: []string{"sbp", "hr"}, Sep: "/"})
	assert.True(t, errors.Is(err, frame.ErrInvalidArgument))

	_, err = Split(tb, SplitSpec{Column: "bp", Into: []string{"sbp", "dbp"}})
	assert.True(t, errors.Is(err, frame.ErrInvalidArgument))
}

func TestCoerceNumericCollectsIssues(t *testing.T) {
	tb := frame.MustNew(frame.TextColumn("n", "12", "x", "7"))
	out, issues, err := CoerceNumeric(tb, "n")
	require.NoError(t, err)

	assert.Equal(t, frame.Number, out.Columns[0].Kind)
	assert.Equal(t, []any{12.0, nil, 7.0}, out.Columns[0].Values)
	require.Len(t, issues, 1)
	assert.Equal(t, frame.CoercionIssue{Row: 2, Column: "n", Value: "x", Target: frame.Number}, issues[0])
	assert.Equal(t, frame.Text, tb.Columns[0].Kind)
}

func TestCoerceNumericFormats(t *testing.T) {
	tb := frame.MustNew(frame.TextColumn("n", "1 000", "1,000", "2,5", "NA", "-3.25"))
	out, issues, err := CoerceNumeric(tb, "n")
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, []any{1000.0, 1000.0, 2.5, nil, -3.25}, out.Columns[0].Values)
}

func TestCoerceNumericKeepsThreeDecimals(t *testing.T) {
	tb := frame.MustNew(frame.TextColumn("n", "0.125", "3.141", "36.625", "1.000,5", "Inf"))
	out, issues, err := CoerceNumeric(tb, "n")
	require.NoError(t, err)
	assert.Equal(t, []any{0.125, 3.141, 36.625, 1000.5, nil}, out.Columns[0].Values)
	require.Len(t, issues, 1)
	assert.Equal(t, frame.CoercionIssue{Row: 5, Column: "n", Value: "Inf", Target: frame.Number}, issues[0])
}

func TestTyperNAValues(t *testing.T) {
	tb := frame.MustNew(frame.TextColumn("n", "12", "-", "missing"))
	out, issues, err := Typer{NAValues: []string{"-", "missing"}}.Numeric(tb, "n")
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, []any{12.0, nil, nil}, out.Columns[0].Values)

	_, issues, err = CoerceNumeric(tb, "n")
	require.NoError(t, err)
	assert.Len(t, issues, 2)
}

func TestCoerceDate(t *testing.T) {
	tb := frame.MustNew(frame.TextColumn("d", "2020-10-20", "soon", "10/21/2020"))
	out, issues, err := CoerceDate(tb, "d")
	require.NoError(t, err)
	assert.Equal(t, frame.Date, out.Columns[0].Kind)
	assert.Equal(t, frame.CivilDate(2020, 10, 20), out.Columns[0].Values[0])
	assert.Nil(t, out.Columns[0].Values[1])
	assert.Equal(t, frame.CivilDate(2020, 10, 21), out.Columns[0].Values[2])
	require.Len(t, issues, 1)
	assert.Equal(t, "soon", issues[0].Value)
}

func TestCoerceUnknownColumn(t *testing.T) {
	tb := frame.MustNew(frame.TextColumn("n", "1"))
	_, _, err := CoerceNumeric(tb, "m")
	assert.True(t, errors.Is(err, frame.ErrUnknownColumn))
}
