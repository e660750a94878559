package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tidysheet/internal"
	"tidysheet/internal/frame"
)

const sqliteTimestamp = "2006-01-02 15:04:05"

type DB struct {
	conn *sql.DB
}

// TableInfo describes a table saved in the workspace.
type TableInfo struct {
	Name      string
	Columns   int
	Rows      int
	UpdatedAt string
}

type columnMeta struct {
	Name string `json:"name"`
	// Column is the SQL column holding the data. It differs from Name when
	// Name would clash in SQLite, which compares column names ignoring case.
	Column string   `json:"column"`
	Kind   string   `json:"kind"`
	Levels []string `json:"levels,omitempty"`
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS frames (
  name TEXT PRIMARY KEY,
  columnsJson TEXT NOT NULL,
  rowCount INTEGER NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  flow TEXT NOT NULL,
  input TEXT NOT NULL,
  outputsJson TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_traceId ON runs(traceId);
`

	_, err := d.conn.Exec(schema)
	return err
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func dataTable(name string) string {
	return quoteIdent("frame_" + name)
}

// sqlColumnNames keeps each frame name as its SQL column unless it collides,
// ignoring case, with _row or an earlier column. Those get col_<n> instead.
func sqlColumnNames(t *frame.Table) []string {
	taken := map[string]struct{}{"_row": {}}
	out := make([]string, len(t.Columns))
	for k, c := range t.Columns {
		if _, clash := taken[strings.ToLower(c.Name)]; !clash {
			out[k] = c.Name
			taken[strings.ToLower(c.Name)] = struct{}{}
		}
	}
	for k := range out {
		if out[k] != "" {
			continue
		}
		for n := k + 1; ; n++ {
			candidate := fmt.Sprintf("col_%d", n)
			if _, clash := taken[candidate]; !clash {
				out[k] = candidate
				taken[candidate] = struct{}{}
				break
			}
		}
	}
	return out
}

// SaveTable stores t under name, replacing any table saved before with the
// same name. Kinds and levels are kept next to the data.
func (d *DB) SaveTable(name string, t *frame.Table) error {
	if strings.TrimSpace(name) == "" {
		return frame.InvalidArgument("table name is empty")
	}

	meta := make([]columnMeta, 0, t.NumCols())
	defs := []string{"_row INTEGER NOT NULL"}
	cols := []string{"_row"}
	marks := []string{"?"}
	sqlNames := sqlColumnNames(t)
	for k, c := range t.Columns {
		meta = append(meta, columnMeta{Name: c.Name, Column: sqlNames[k], Kind: c.Kind.String(), Levels: c.Levels})
		sqlType := "TEXT"
		if c.Kind == frame.Number {
			sqlType = "REAL"
		}
		defs = append(defs, quoteIdent(sqlNames[k])+" "+sqlType)
		cols = append(cols, quoteIdent(sqlNames[k]))
		marks = append(marks, "?")
	}
	metaJSON, _ := json.Marshal(meta)

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DROP TABLE IF EXISTS ` + dataTable(name)); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE TABLE ` + dataTable(name) + ` (` + strings.Join(defs, ", ") + `)`); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO ` + dataTable(name) + ` (` + strings.Join(cols, ", ") + `) VALUES (` + strings.Join(marks, ", ") + `)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < t.NumRows(); i++ {
		args := make([]any, 0, t.NumCols()+1)
		args = append(args, i)
		for _, c := range t.Columns {
			v := c.Values[i]
			switch {
			case v == nil:
				args = append(args, nil)
			case c.Kind == frame.Number:
				args = append(args, v)
			default:
				args = append(args, frame.Format(v))
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`
INSERT INTO frames (name, columnsJson, rowCount) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  columnsJson=excluded.columnsJson,
  rowCount=excluded.rowCount,
  updatedAt=CURRENT_TIMESTAMP
`, name, string(metaJSON), t.NumRows()); err != nil {
		return err
	}

	return tx.Commit()
}

// LoadTable restores a table saved with SaveTable.
func (d *DB) LoadTable(name string) (*frame.Table, error) {
	var metaJSON string
	err := d.conn.QueryRow(`SELECT columnsJson FROM frames WHERE name = ?`, name).Scan(&metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, frame.NewError(frame.ErrTypeFileNotFound, fmt.Sprintf("table %q not found in workspace", name), nil).WithContext("table", name)
	}
	if err != nil {
		return nil, err
	}

	var meta []columnMeta
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fmt.Errorf("table %q has corrupt metadata: %w", name, err)
	}

	cols := make([]*frame.Column, len(meta))
	selected := make([]string, len(meta))
	for k, m := range meta {
		kind, err := frame.ParseKind(m.Kind)
		if err != nil {
			return nil, err
		}
		cols[k] = &frame.Column{Name: m.Name, Kind: kind, Levels: m.Levels}
		column := m.Column
		if column == "" {
			column = m.Name
		}
		selected[k] = quoteIdent(column)
	}
	if len(meta) == 0 {
		return &frame.Table{}, nil
	}

	rows, err := d.conn.Query(`SELECT ` + strings.Join(selected, ", ") + ` FROM ` + dataTable(name) + ` ORDER BY _row`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		dest := make([]any, len(cols))
		for k, c := range cols {
			if c.Kind == frame.Number {
				dest[k] = new(sql.NullFloat64)
			} else {
				dest[k] = new(sql.NullString)
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for k, c := range cols {
			v, err := storedValue(c.Kind, dest[k])
			if err != nil {
				return nil, fmt.Errorf("table %q column %q: %w", name, c.Name, err)
			}
			c.Values = append(c.Values, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, c := range cols {
		if c.Values == nil {
			c.Values = []any{}
		}
	}
	return frame.New(cols...)
}

func storedValue(kind frame.Kind, dest any) (any, error) {
	if kind == frame.Number {
		n := dest.(*sql.NullFloat64)
		if !n.Valid {
			return nil, nil
		}
		return n.Float64, nil
	}
	s := dest.(*sql.NullString)
	if !s.Valid {
		return nil, nil
	}
	if kind != frame.Date {
		return s.String, nil
	}
	if d, err := time.Parse(frame.DateLayout, s.String); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return d.UTC(), nil
}

func (d *DB) ListTables() ([]TableInfo, error) {
	rows, err := d.conn.Query(`SELECT name, columnsJson, rowCount, updatedAt FROM frames ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TableInfo
	for rows.Next() {
		var info TableInfo
		var metaJSON string
		if err := rows.Scan(&info.Name, &metaJSON, &info.Rows, &info.UpdatedAt); err != nil {
			return nil, err
		}
		var meta []columnMeta
		_ = json.Unmarshal([]byte(metaJSON), &meta)
		info.Columns = len(meta)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(run internal.RunRecord) (int64, error) {
	outputsJSON, _ := json.Marshal(run.Outputs)
	timingsJSON, _ := json.Marshal(run.Timings)
	countsJSON, _ := json.Marshal(run.Counts)
	result, err := d.conn.Exec(`
INSERT INTO runs (traceId, flow, input, outputsJson, timingsJson, countsJson)
VALUES (?, ?, ?, ?, ?, ?)
`, run.TraceID, run.Flow, run.Input, string(outputsJSON), string(timingsJSON), string(countsJSON))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(limit int) ([]internal.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT id, traceId, flow, input, outputsJson, timingsJson, countsJson, createdAt
FROM runs ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRecord
	for rows.Next() {
		var run internal.RunRecord
		var outputsJSON, timingsJSON, countsJSON, createdAt string
		if err := rows.Scan(&run.ID, &run.TraceID, &run.Flow, &run.Input, &outputsJSON, &timingsJSON, &countsJSON, &createdAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(outputsJSON), &run.Outputs)
		_ = json.Unmarshal([]byte(timingsJSON), &run.Timings)
		_ = json.Unmarshal([]byte(countsJSON), &run.Counts)
		run.CreatedAt, _ = time.Parse(sqliteTimestamp, createdAt)
		out = append(out, run)
	}
	return out, rows.Err()
}
