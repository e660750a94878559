package frame

import (
	"strconv"
	"time"
)

const DateLayout = "2006-01-02"

// Format renders a cell as text. Missing cells render as "".
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(DateLayout)
		}
		return x.Format(time.RFC3339)
	default:
		return ""
	}
}

// TextColumn builds a Text column; empty strings are kept as values.
func TextColumn(name string, values ...string) *Column {
	c := &Column{Name: name, Kind: Text, Values: make([]any, len(values))}
	for i, v := range values {
		c.Values[i] = v
	}
	return c
}

// NumberColumn builds a Number column.
func NumberColumn(name string, values ...float64) *Column {
	c := &Column{Name: name, Kind: Number, Values: make([]any, len(values))}
	for i, v := range values {
		c.Values[i] = v
	}
	return c
}

// DateColumn builds a Date column.
func DateColumn(name string, values ...time.Time) *Column {
	c := &Column{Name: name, Kind: Date, Values: make([]any, len(values))}
	for i, v := range values {
		c.Values[i] = v
	}
	return c
}

// CivilDate returns midnight UTC of the given calendar day.
func CivilDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
