package inspect

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"tidysheet/internal/frame"
)

// Render writes rows under header as a text table.
func Render(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.AppendBulk(rows)
	table.Render()
}

func RenderGlimpse(w io.Writer, t *frame.Table) {
	fmt.Fprintf(w, "Rows: %d  Columns: %d\n", t.NumRows(), t.NumCols())
	var rows [][]string
	for _, s := range Glimpse(t) {
		rows = append(rows, []string{
			s.Name, s.Kind.String(),
			strconv.Itoa(s.Present), strconv.Itoa(s.Missing), strconv.Itoa(s.Distinct),
			strings.Join(s.First, ", "),
		})
	}
	Render(w, []string{"column", "kind", "present", "missing", "distinct", "first values"}, rows)
}

func RenderMissing(w io.Writer, t *frame.Table) {
	var rows [][]string
	for _, m := range MissingSummary(t) {
		rows = append(rows, []string{m.Column, strconv.Itoa(m.Missing), fmt.Sprintf("%.1f%%", m.Percent)})
	}
	Render(w, []string{"column", "missing", "percent"}, rows)
}

func RenderDescribe(w io.Writer, t *frame.Table) {
	var rows [][]string
	for _, s := range Describe(t) {
		rows = append(rows, []string{
			s.Column, strconv.Itoa(s.N),
			num(s.Mean), num(s.SD), num(s.Min), num(s.Q1), num(s.Median), num(s.Q3), num(s.Max),
		})
	}
	Render(w, []string{"column", "n", "mean", "sd", "min", "q1", "median", "q3", "max"}, rows)
}

func RenderViolations(w io.Writer, violations []Violation) {
	var rows [][]string
	for _, v := range violations {
		rows = append(rows, []string{v.Rule, strconv.Itoa(v.Row), v.Column, v.Value, v.Check})
	}
	Render(w, []string{"rule", "row", "column", "value", "check"}, rows)
}

func RenderPairs(w io.Writer, pairs []LevelPair) {
	var rows [][]string
	for _, p := range pairs {
		rows = append(rows, []string{p.A, p.B, fmt.Sprintf("%.2f", p.Score)})
	}
	Render(w, []string{"label", "similar to", "score"}, rows)
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
