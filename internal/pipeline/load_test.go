package pipeline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tidysheet/internal/frame"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func writeFixture(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestLoadCSVInfersKinds(t *testing.T) {
	path := writeFixture(t, "penguins.csv", []byte("\ufeffspecies,bill_length_mm,date_egg,note\n"+
		"Adelie,39.1,2007-11-11,\"a, quoted\"\n"+
		"Gentoo,NA,2007-11-16,\n"+
		"Chinstrap,46.5,2007-11-09,plain\n"))

	tb, err := LoadFile(path, LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"species", "bill_length_mm", "date_egg", "note"}, tb.Names())
	assert.Equal(t, 3, tb.NumRows())
	assert.Equal(t, frame.Text, tb.Columns[0].Kind)
	assert.Equal(t, frame.Number, tb.Columns[1].Kind)
	assert.Equal(t, frame.Date, tb.Columns[2].Kind)
	assert.Equal(t, []any{39.1, nil, 46.5}, tb.Columns[1].Values)
	assert.Equal(t, frame.CivilDate(2007, 11, 16), tb.Columns[2].Values[1])
	assert.Equal(t, []any{"a, quoted", nil, "plain"}, tb.Columns[3].Values)
}

func TestLoadInfersGroupedNumbersAndRejectsInf(t *testing.T) {
	tb, err := ReadDelimited(strings.NewReader("weight,ratio,flag\n\"1,000\",0.125,Inf\n\"2 500\",3.141,NaN\n"), ',', nil)
	require.NoError(t, err)

	assert.Equal(t, frame.Number, tb.Columns[0].Kind)
	assert.Equal(t, []any{1000.0, 2500.0}, tb.Columns[0].Values)
	assert.Equal(t, []any{0.125, 3.141}, tb.Columns[1].Values)
	assert.Equal(t, frame.Text, tb.Columns[2].Kind)
}

func TestLoadTSVAndBlankHeader(t *testing.T) {
	path := writeFixture(t, "bp.tsv", []byte("id\t\tsex\n1\tx\tF\n2\ty\tM\n"))

	tb, err := LoadFile(path, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "...2", "sex"}, tb.Names())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"), LoadOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, frame.ErrFileNotFound))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadXLSXRange(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Blood pressure records"},
		{nil, "Pat", "Birth Year", "BP_8"},
		{nil, "a", 2000, "120/80"},
		{nil, "b", 1985, "130/85"},
		{nil, nil, nil, nil},
		{"footnote"},
	})
	path := writeFixture(t, "bp.xlsx", blob)

	tb, err := LoadFile(path, LoadOptions{Range: "B2:D4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Pat", "Birth Year", "BP_8"}, tb.Names())
	assert.Equal(t, 2, tb.NumRows())
	assert.Equal(t, []any{2000.0, 1985.0}, tb.Columns[1].Values)
	assert.Equal(t, []any{"120/80", "130/85"}, tb.Columns[2].Values)
}

func TestLoadXLSXRangeErrors(t *testing.T) {
	blob := mkXLSX([][]any{
		{"a", "b"},
		{1, 2},
	})

	cases := []struct {
		name string
		opts LoadOptions
	}{
		{"malformed", LoadOptions{Range: "A1-B2"}},
		{"bad cell", LoadOptions{Range: "1A:B2"}},
		{"reversed", LoadOptions{Range: "B2:A1"}},
		{"outside rows", LoadOptions{Range: "A10:B12"}},
		{"outside columns", LoadOptions{Range: "F1:G2"}},
		{"missing sheet", LoadOptions{Sheet: "Visits"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadXLSX(blob, tc.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, frame.ErrRangeOutOfBounds), "got %v", err)
		})
	}
}

func TestLoadXLSXPadsRangeBeyondStoredCells(t *testing.T) {
	blob := mkXLSX([][]any{
		{"a", "b", "c"},
		{1},
	})
	tb, err := ReadXLSX(blob, LoadOptions{Range: "A1:C3"})
	require.NoError(t, err)
	assert.Equal(t, 2, tb.NumRows())
	assert.Equal(t, []any{1.0, nil}, tb.Columns[0].Values)
	assert.Equal(t, []any{nil, nil}, tb.Columns[2].Values)
}

func TestReadHTMLTable(t *testing.T) {
	html := `<html><body>
<table><tr><td>ignored</td></tr></table>
<table>
  <tr><th>Species</th><th>Body Mass (g)</th></tr>
  <tr><td>Adelie</td><td>3750</td></tr>
  <tr><td>Gentoo</td><td> 5 000 </td></tr>
</table></body></html>`

	tb, err := ReadHTMLTable(html, LoadOptions{TableIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Species", "Body Mass (g)"}, tb.Names())
	assert.Equal(t, 2, tb.NumRows())

	_, err = ReadHTMLTable(html, LoadOptions{TableIndex: 2})
	assert.True(t, errors.Is(err, frame.ErrRangeOutOfBounds))
}

const emailWithAttachment = `From: lab@example.com
To: clinic@example.com
Subject: bp export
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="XYZ"

--XYZ
Content-Type: text/plain; charset=utf-8

see attached
--XYZ
Content-Type: text/csv; name="bp.csv"
Content-Disposition: attachment; filename="bp.csv"

id,sbp
1,120
2,118
--XYZ--
`

const emailWithHTMLTable = `From: lab@example.com
To: clinic@example.com
Subject: readings
MIME-Version: 1.0
Content-Type: text/html; charset=utf-8

<p>Readings:</p><table><tr><th>id</th><th>hr</th></tr><tr><td>1</td><td>72</td></tr></table>
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestReadEmailAttachment(t *testing.T) {
	tb, err := LoadFile(writeFixture(t, "msg.eml", crlf(emailWithAttachment)), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "sbp"}, tb.Names())
	assert.Equal(t, []any{120.0, 118.0}, tb.Columns[1].Values)

	_, err = ReadEmail(crlf(emailWithAttachment), LoadOptions{Attachment: "other.xlsx"})
	assert.True(t, errors.Is(err, frame.ErrFileNotFound))
}

func TestReadEmailHTMLBody(t *testing.T) {
	tb, err := ReadEmail(crlf(emailWithHTMLTable), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "hr"}, tb.Names())
	assert.Equal(t, []any{72.0}, tb.Columns[1].Values)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := LoadFile(writeFixture(t, "notes.pdf", []byte("%PDF")), LoadOptions{})
	assert.True(t, errors.Is(err, frame.ErrInvalidArgument))
}
