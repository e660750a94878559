package pipeline

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidysheet/internal/frame"
)

func birthTable() *frame.Table {
	return frame.MustNew(
		frame.TextColumn("race", "White", "Asian", "AA"),
		frame.NumberColumn("year_birth", 2000, 1985, 1970),
		frame.NumberColumn("month_of_birth", 6, 10, 12),
		frame.NumberColumn("day_birth", 15, 20, 31),
	)
}

func TestDeriveSeqIDFirst(t *testing.T) {
	out, err := Derive(birthTable(), Position{Before: "race"}, Derivation{Name: "pat_id", Expr: SeqID()})
	require.NoError(t, err)
	assert.Equal(t, "pat_id", out.Columns[0].Name)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, out.Columns[0].Values)
	assert.Equal(t, 4, birthTable().NumCols())
}

func TestDeriveDateAndAge(t *testing.T) {
	study := frame.CivilDate(2020, time.October, 20)
	out, err := Derive(birthTable(), Position{After: "day_birth"},
		Derivation{Name: "dob", Expr: MakeDate("year_birth", "month_of_birth", "day_birth")},
		Derivation{Name: "age", Expr: AgeAt("dob", study)},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"race", "year_birth", "month_of_birth", "day_birth", "dob", "age"}, out.Names())

	dob, _ := out.Col("dob")
	assert.Equal(t, frame.CivilDate(2000, time.June, 15), dob.Values[0])
	age, _ := out.Col("age")
	// 2000-06-15 is 20 full years before 2020-10-20; 1985-10-20 is exactly 35;
	// 1970-12-31 has not reached its 50th birthday.
	assert.Equal(t, []any{20.0, 35.0, 49.0}, age.Values)
}

func TestDeriveReplacesInPlace(t *testing.T) {
	out, err := Derive(birthTable(), Position{}, Derivation{Name: "year_birth", Expr: Compute(frame.Number, func(r Row) (any, error) {
		v, err := r.Get("year_birth")
		if err != nil {
			return nil, err
		}
		return v.(float64) + 1, nil
	})})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Index("year_birth"))
	assert.Equal(t, []any{2001.0, 1986.0, 1971.0}, out.Columns[1].Values)
}

func TestMakeDateInvalid(t *testing.T) {
	cases := []struct {
		name       string
		y, m, d    float64
		wantSubstr string
	}{
		{"february 30", 2001, 2, 30, "day 30"},
		{"month 13", 2001, 13, 1, "month 13"},
		{"fractional day", 2001, 1, 1.5, "not a whole number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tb := frame.MustNew(
				frame.NumberColumn("y", 2000, tc.y),
				frame.NumberColumn("m", 1, tc.m),
				frame.NumberColumn("d", 1, tc.d),
			)
			_, err := Derive(tb, Position{}, Derivation{Name: "dob", Expr: MakeDate("y", "m", "d")})
			require.Error(t, err)
			assert.True(t, errors.Is(err, frame.ErrInvalidDate))
			assert.Contains(t, err.Error(), tc.wantSubstr)

			var fe *frame.Error
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, 2, fe.Context["row"])
		})
	}
}

func TestMakeDateMissingComponent(t *testing.T) {
	tb := frame.MustNew(
		&frame.Column{Name: "y", Kind: frame.Number, Values: []any{2000.0, nil}},
		frame.NumberColumn("m", 2, 2),
		frame.NumberColumn("d", 29, 29),
	)
	out, err := Derive(tb, Position{}, Derivation{Name: "dob", Expr: MakeDate("y", "m", "d")})
	require.NoError(t, err)
	assert.Equal(t, []any{frame.CivilDate(2000, time.February, 29), nil}, out.Columns[3].Values)
}

func TestDeriveUnknownColumn(t *testing.T) {
	_, err := Derive(birthTable(), Position{After: "visit"}, Derivation{Name: "pat_id", Expr: SeqID()})
	assert.True(t, errors.Is(err, frame.ErrUnknownColumn))

	_, err = Derive(birthTable(), Position{}, Derivation{Name: "age", Expr: AgeAt("dob", time.Now())})
	assert.True(t, errors.Is(err, frame.ErrUnknownColumn))
}

func TestWholeYearsTruncates(t *testing.T) {
	cases := []struct {
		from, to time.Time
		want     int
	}{
		{frame.CivilDate(2000, 6, 15), frame.CivilDate(2020, 10, 20), 20},
		{frame.CivilDate(2000, 10, 21), frame.CivilDate(2020, 10, 20), 19},
		{frame.CivilDate(2000, 2, 29), frame.CivilDate(2021, 2, 28), 20},
		{frame.CivilDate(2020, 10, 20), frame.CivilDate(2000, 6, 15), -20},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_%s", tc.from.Format(frame.DateLayout), tc.to.Format(frame.DateLayout)), func(t *testing.T) {
			assert.Equal(t, tc.want, WholeYears(tc.from, tc.to))
		})
	}
}

func TestYearsBetween(t *testing.T) {
	tb := frame.MustNew(
		frame.DateColumn("dob", frame.CivilDate(2000, 6, 15)),
		frame.DateColumn("visit_date", frame.CivilDate(2020, 10, 20)),
	)
	out, err := Derive(tb, Position{}, Derivation{Name: "age", Expr: YearsBetween("dob", "visit_date")})
	require.NoError(t, err)
	assert.Equal(t, []any{20.0}, out.Columns[2].Values)
}

func TestDenseRankWithinGroups(t *testing.T) {
	tb := frame.MustNew(
		frame.TextColumn("measure", "bp", "bp", "bp", "hr", "hr", "hr", "bp"),
		frame.TextColumn("visit", "8", "10", "12", "9", "11", "13", "10"),
	)
	out, err := Derive(tb, Position{}, Derivation{Name: "visit", Expr: DenseRank("visit", "measure")})
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0, 1.0, 2.0, 3.0, 2.0}, out.Columns[1].Values)
	assert.Equal(t, frame.Number, out.Columns[1].Kind)
}

func TestDenseRankLexicographic(t *testing.T) {
	tb := frame.MustNew(frame.TextColumn("v", "b", "a", "c", "a"))
	out, err := Derive(tb, Position{}, Derivation{Name: "rank", Expr: DenseRank("v")})
	require.NoError(t, err)
	assert.Equal(t, []any{2.0, 1.0, 3.0, 1.0}, out.Columns[1].Values)
}
