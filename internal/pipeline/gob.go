package pipeline

import (
	"encoding/gob"
	"fmt"
	"io"
	"time"

	"tidysheet/internal/frame"
)

// gobColumn stores cells in typed slices so the stream carries no interface
// values. Valid marks present cells.
type gobColumn struct {
	Name    string
	Kind    string
	Levels  []string
	Valid   []bool
	Strings []string
	Numbers []float64
	Times   []time.Time
}

type gobTable struct {
	Columns []gobColumn
}

// WriteGob encodes t as a single gob value.
func WriteGob(w io.Writer, t *frame.Table) error {
	payload := gobTable{Columns: make([]gobColumn, 0, t.NumCols())}
	for _, c := range t.Columns {
		gc := gobColumn{Name: c.Name, Kind: c.Kind.String(), Levels: c.Levels, Valid: make([]bool, c.Len())}
		switch c.Kind {
		case frame.Number:
			gc.Numbers = make([]float64, c.Len())
		case frame.Date:
			gc.Times = make([]time.Time, c.Len())
		default:
			gc.Strings = make([]string, c.Len())
		}
		for i, v := range c.Values {
			if v == nil {
				continue
			}
			gc.Valid[i] = true
			ok := false
			switch c.Kind {
			case frame.Number:
				gc.Numbers[i], ok = v.(float64)
			case frame.Date:
				gc.Times[i], ok = v.(time.Time)
			default:
				gc.Strings[i], ok = v.(string)
			}
			if !ok {
				return fmt.Errorf("column %q row %d: %T value in %s column", c.Name, i+1, v, c.Kind)
			}
		}
		payload.Columns = append(payload.Columns, gc)
	}
	return gob.NewEncoder(w).Encode(payload)
}

// ReadGob decodes a table written by WriteGob.
func ReadGob(r io.Reader) (*frame.Table, error) {
	var payload gobTable
	if err := gob.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode gob table: %w", err)
	}

	cols := make([]*frame.Column, 0, len(payload.Columns))
	for _, gc := range payload.Columns {
		kind, err := frame.ParseKind(gc.Kind)
		if err != nil {
			return nil, err
		}
		c := &frame.Column{Name: gc.Name, Kind: kind, Levels: gc.Levels, Values: make([]any, len(gc.Valid))}
		for i, ok := range gc.Valid {
			if !ok {
				continue
			}
			switch kind {
			case frame.Number:
				c.Values[i] = gc.Numbers[i]
			case frame.Date:
				c.Values[i] = gc.Times[i].UTC()
			default:
				c.Values[i] = gc.Strings[i]
			}
		}
		cols = append(cols, c)
	}
	return frame.New(cols...)
}
