package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/xuri/excelize/v2"

	"tidysheet/internal"
	"tidysheet/internal/frame"
	"tidysheet/internal/storage"
)

type LoadOptions struct {
	// Sheet and Range address a spreadsheet region, e.g. "A1:G20".
	Sheet string
	Range string
	// TableIndex selects the n-th <table> of an HTML document.
	TableIndex int
	// Attachment names the attachment to read from an email.
	Attachment string
	// Table names the table to read from a workspace store.
	Table    string
	NAValues []string
}

var reSpaces = regexp.MustCompile(`\s+`)

// LoadFile reads the table stored at path, choosing the reader by extension.
func LoadFile(path string, opts LoadOptions) (*frame.Table, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, frame.NewError(frame.ErrTypeFileNotFound, path, err)
		}
		return nil, err
	}

	if internal.FormatOf(path) == internal.FormatSQLite {
		return loadStore(path, opts)
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadBytes(filepath.Base(path), blob, opts)
}

// LoadBytes reads an in-memory file whose format is implied by name.
func LoadBytes(name string, blob []byte, opts LoadOptions) (*frame.Table, error) {
	switch internal.FormatOf(name) {
	case internal.FormatCSV:
		return ReadDelimited(bytes.NewReader(blob), ',', opts.NAValues)
	case internal.FormatTSV:
		return ReadDelimited(bytes.NewReader(blob), '\t', opts.NAValues)
	case internal.FormatXLSX:
		return ReadXLSX(blob, opts)
	case internal.FormatHTML:
		return ReadHTMLTable(string(blob), opts)
	case internal.FormatEML:
		return ReadEmail(blob, opts)
	case internal.FormatGob:
		return ReadGob(bytes.NewReader(blob))
	default:
		return nil, frame.InvalidArgument("unsupported input format %q", filepath.Ext(name))
	}
}

// ReadDelimited reads a header row plus records separated by delim.
func ReadDelimited(r io.Reader, delim rune, naValues []string) (*frame.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read delimited file: %w", err)
	}
	if len(records) == 0 {
		return &frame.Table{}, nil
	}
	if len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return buildTable(records[0], records[1:], naValues), nil
}

// ReadXLSX reads one sheet, or one rectangular range of it. The first row of
// the selection holds the column names.
func ReadXLSX(content []byte, opts LoadOptions) (*frame.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return &frame.Table{}, nil
		}
		sheet = sheets[0]
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, frame.NewError(frame.ErrTypeRangeOutOfBounds, fmt.Sprintf("sheet %q not found", sheet), err).WithContext("sheet", sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	if strings.TrimSpace(opts.Range) == "" {
		if len(rows) == 0 {
			return &frame.Table{}, nil
		}
		return buildTable(normalizeCells(rows[0]), normalizeRows(rows[1:]), opts.NAValues), nil
	}

	region, err := sliceRange(rows, opts.Range)
	if err != nil {
		return nil, err
	}
	return buildTable(region[0], region[1:], opts.NAValues), nil
}

// sliceRange cuts the cells of ref ("B2:F40") out of rows, padding cells that
// lie inside the range but past the end of a stored row.
func sliceRange(rows [][]string, ref string) ([][]string, error) {
	outOfBounds := func(msg string, cause error) error {
		return frame.NewError(frame.ErrTypeRangeOutOfBounds, msg, cause).WithContext("range", ref)
	}

	parts := strings.Split(strings.ToUpper(strings.TrimSpace(ref)), ":")
	if len(parts) != 2 {
		return nil, outOfBounds(fmt.Sprintf("malformed range %q", ref), nil)
	}
	c1, r1, err := excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return nil, outOfBounds(fmt.Sprintf("malformed range %q", ref), err)
	}
	c2, r2, err := excelize.CellNameToCoordinates(parts[1])
	if err != nil {
		return nil, outOfBounds(fmt.Sprintf("malformed range %q", ref), err)
	}
	if c2 < c1 || r2 < r1 {
		return nil, outOfBounds(fmt.Sprintf("range %q ends before it starts", ref), nil)
	}

	maxCols := 0
	for _, row := range rows {
		if len(row) > maxCols {
			maxCols = len(row)
		}
	}
	if r1 > len(rows) || c1 > maxCols {
		return nil, outOfBounds(fmt.Sprintf("range %q starts outside the used area (%d rows x %d columns)", ref, len(rows), maxCols), nil)
	}

	out := make([][]string, 0, r2-r1+1)
	for r := r1; r <= r2; r++ {
		cells := make([]string, c2-c1+1)
		if r-1 < len(rows) {
			row := rows[r-1]
			for c := c1; c <= c2; c++ {
				if c-1 < len(row) {
					cells[c-c1] = normalizeSpaces(row[c-1])
				}
			}
		}
		out = append(out, cells)
	}
	return out, nil
}

// ReadHTMLTable reads the opts.TableIndex-th <table> of a document.
func ReadHTMLTable(html string, opts LoadOptions) (*frame.Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	tables := doc.Find("table")
	if opts.TableIndex < 0 || opts.TableIndex >= tables.Length() {
		return nil, frame.NewError(frame.ErrTypeRangeOutOfBounds,
			fmt.Sprintf("table %d requested, document has %d", opts.TableIndex, tables.Length()), nil)
	}

	var grid [][]string
	tables.Eq(opts.TableIndex).Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := []string{}
		row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, normalizeSpaces(cell.Text()))
		})
		if len(cells) > 0 {
			grid = append(grid, cells)
		}
	})
	if len(grid) == 0 {
		return &frame.Table{}, nil
	}
	return buildTable(grid[0], grid[1:], opts.NAValues), nil
}

// ReadEmail reads the tabular attachment of a MIME message, falling back to
// the first table in its HTML body.
func ReadEmail(raw []byte, opts LoadOptions) (*frame.Table, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email: %w", err)
	}

	inner := opts
	inner.Attachment = ""
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if opts.Attachment != "" {
			if !strings.EqualFold(filename, opts.Attachment) {
				continue
			}
		} else if !internal.FormatOf(filename).IsTabular() {
			continue
		}
		return LoadBytes(filename, att.Content, inner)
	}

	if opts.Attachment != "" {
		return nil, frame.NewError(frame.ErrTypeFileNotFound, fmt.Sprintf("attachment %q not found", opts.Attachment), nil)
	}
	if strings.Contains(strings.ToLower(env.HTML), "<table") {
		return ReadHTMLTable(env.HTML, inner)
	}
	return nil, frame.InvalidArgument("email %q has no tabular attachment or html table", env.GetHeader("Subject"))
}

func loadStore(path string, opts LoadOptions) (*frame.Table, error) {
	db, err := storage.Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	name := opts.Table
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return db.LoadTable(name)
}

// buildTable pads ragged rows, names blank headers "...N" and infers kinds.
func buildTable(header []string, rows [][]string, naValues []string) *frame.Table {
	width := len(header)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	na := naSet(naValues)
	t := &frame.Table{Columns: make([]*frame.Column, 0, width)}
	for j := 0; j < width; j++ {
		name := ""
		if j < len(header) {
			name = strings.TrimSpace(header[j])
		}
		if name == "" {
			name = fmt.Sprintf("...%d", j+1)
		}
		cells := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				cells[i] = row[j]
			}
		}
		t.Columns = append(t.Columns, inferColumn(name, cells, na))
	}
	return t
}

func normalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, normalizeSpaces(c))
	}
	return out
}

func normalizeRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, normalizeCells(r))
	}
	return out
}
