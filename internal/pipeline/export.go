package pipeline

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"tidysheet/internal"
	"tidysheet/internal/frame"
	"tidysheet/internal/storage"
)

type ExportOptions struct {
	// NA is written for missing cells in delimited text; defaults to "NA".
	NA string
	// BOM prefixes delimited text with a UTF-8 byte order mark.
	BOM bool
	// Sheet renames the worksheet of an xlsx export.
	Sheet string
	// Table names the workspace table of a .db export; defaults to the file
	// base name.
	Table string
}

// Export writes t to path in the format implied by its extension. Any I/O
// failure is reported as a write error.
func Export(t *frame.Table, path string, opts ExportOptions) error {
	format := internal.FormatOf(path)
	switch format {
	case internal.FormatCSV, internal.FormatTSV, internal.FormatGob, internal.FormatXLSX, internal.FormatSQLite:
	default:
		return frame.InvalidArgument("unsupported output format %q", filepath.Ext(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return writeError(path, err)
	}

	var err error
	switch format {
	case internal.FormatCSV:
		err = writeFile(path, func(w io.Writer) error { return WriteDelimited(w, t, ',', opts) })
	case internal.FormatTSV:
		err = writeFile(path, func(w io.Writer) error { return WriteDelimited(w, t, '\t', opts) })
	case internal.FormatGob:
		err = writeFile(path, func(w io.Writer) error { return WriteGob(w, t) })
	case internal.FormatXLSX:
		err = exportXLSX(t, path, opts)
	case internal.FormatSQLite:
		err = exportStore(t, path, opts)
	}
	if err != nil {
		return writeError(path, err)
	}
	return nil
}

func writeError(path string, cause error) error {
	return frame.NewError(frame.ErrTypeWrite, path, cause).WithContext("path", path)
}

func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	buf := bufio.NewWriter(f)
	if err := write(buf); err != nil {
		_ = f.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteDelimited writes a header row and one record per row.
func WriteDelimited(w io.Writer, t *frame.Table, delim rune, opts ExportOptions) error {
	na := opts.NA
	if na == "" {
		na = "NA"
	}
	if opts.BOM {
		if _, err := io.WriteString(w, "\ufeff"); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(w)
	cw.Comma = delim
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	record := make([]string, t.NumCols())
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range t.Columns {
			if v := c.Values[i]; v == nil {
				record[j] = na
			} else {
				record[j] = frame.Format(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportXLSX(t *frame.Table, path string, opts ExportOptions) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if opts.Sheet != "" && opts.Sheet != sheet {
		if err := f.SetSheetName(sheet, opts.Sheet); err != nil {
			return err
		}
		sheet = opts.Sheet
	}

	dateFmt := "yyyy-mm-dd"
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return err
	}

	for j, name := range t.Names() {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}

	for i := 0; i < t.NumRows(); i++ {
		r := i + 2
		for j, c := range t.Columns {
			v := c.Values[i]
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+1, r)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("cell %s: %w", cell, err)
			}
			if d, ok := v.(time.Time); ok && frame.Format(d) == d.Format(frame.DateLayout) {
				if err := f.SetCellStyle(sheet, cell, cell, dateStyle); err != nil {
					return err
				}
			}
		}
	}

	return f.SaveAs(path)
}

func exportStore(t *frame.Table, path string, opts ExportOptions) error {
	db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	name := opts.Table
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return db.SaveTable(name, t)
}
