package internal

import (
	"path/filepath"
	"strings"
	"time"
)

type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatTSV     FileFormat = "tsv"
	FormatXLSX    FileFormat = "xlsx"
	FormatHTML    FileFormat = "html"
	FormatEML     FileFormat = "eml"
	FormatGob     FileFormat = "gob"
	FormatSQLite  FileFormat = "sqlite"
	FormatUnknown FileFormat = ""
)

// FormatOf maps a file name to its format by extension.
func FormatOf(path string) FileFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".tsv", ".tab", ".txt":
		return FormatTSV
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".html", ".htm":
		return FormatHTML
	case ".eml":
		return FormatEML
	case ".gob":
		return FormatGob
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	default:
		return FormatUnknown
	}
}

// IsTabular reports whether a format holds a single rectangular table.
func (f FileFormat) IsTabular() bool {
	switch f {
	case FormatCSV, FormatTSV, FormatXLSX, FormatHTML:
		return true
	default:
		return false
	}
}

type RunRecord struct {
	ID        int
	TraceID   string
	Flow      string
	Input     string
	Outputs   []string
	Timings   map[string]float64
	Counts    map[string]int
	CreatedAt time.Time
}
