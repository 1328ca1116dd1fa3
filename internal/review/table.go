// Package review holds the tabular data model shared by the review pipeline:
// columnar tables, datasets and the logging streams used by every stage.
package review

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the uniform value type of a column.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindString
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Column is a named, uniformly typed column. Only the slice matching Kind
// is populated.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Ints    []int64
	Strings []string
	Times   []time.Time
}

// FloatColumn builds a float column.
func FloatColumn(name string, v ...float64) Column {
	return Column{Name: name, Kind: KindFloat, Floats: v}
}

// IntColumn builds an integer column.
func IntColumn(name string, v ...int64) Column {
	return Column{Name: name, Kind: KindInt, Ints: v}
}

// StringColumn builds a string column.
func StringColumn(name string, v ...string) Column {
	return Column{Name: name, Kind: KindString, Strings: v}
}

// TimeColumn builds a timestamp column.
func TimeColumn(name string, v ...time.Time) Column {
	return Column{Name: name, Kind: KindTime, Times: v}
}

// Len returns the number of values in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case KindFloat:
		return len(c.Floats)
	case KindInt:
		return len(c.Ints)
	case KindString:
		return len(c.Strings)
	case KindTime:
		return len(c.Times)
	}
	return 0
}

func (c *Column) take(rows []int) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case KindFloat:
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
	case KindInt:
		out.Ints = make([]int64, len(rows))
		for i, r := range rows {
			out.Ints[i] = c.Ints[r]
		}
	case KindString:
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
	case KindTime:
		out.Times = make([]time.Time, len(rows))
		for i, r := range rows {
			out.Times[i] = c.Times[r]
		}
	}
	return out
}

// Table is an ordered set of rows with named columns. A Table is never
// mutated after construction; Take and Filter return new tables.
type Table struct {
	cols  []Column
	index map[string]int
	rows  int
}

// NewTable builds a table from columns of equal length.
func NewTable(cols ...Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), t.rows)
		}
		t.index[c.Name] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustTable is NewTable for fixtures; it panics on a shape error.
func MustTable(cols ...Column) *Table {
	t, err := NewTable(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// EmptyTable returns a zero-row table carrying the given column names.
// The timestamp column is typed as time, all others as float.
func EmptyTable(names ...string) *Table {
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		if n == "timestamp" {
			cols = append(cols, TimeColumn(n))
			continue
		}
		cols = append(cols, FloatColumn(n))
	}
	return MustTable(cols...)
}

// Len returns the row count. A nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Names returns the column names in table order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	if t == nil {
		return nil, false
	}
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return &t.cols[i], true
}

func (t *Table) column(name string) (*Column, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}
	return c, nil
}

// Float returns a numeric view of one cell. Timestamps are converted to
// unix seconds and strings are parsed.
func (t *Table) Float(name string, row int) (float64, error) {
	c, err := t.column(name)
	if err != nil {
		return math.NaN(), err
	}
	if row < 0 || row >= t.rows {
		return math.NaN(), fmt.Errorf("row %d out of range [0,%d)", row, t.rows)
	}
	switch c.Kind {
	case KindFloat:
		return c.Floats[row], nil
	case KindInt:
		return float64(c.Ints[row]), nil
	case KindTime:
		return TimeToSeconds(c.Times[row]), nil
	default:
		v, err := strconv.ParseFloat(strings.TrimSpace(c.Strings[row]), 64)
		if err != nil {
			return math.NaN(), fmt.Errorf("column %q row %d: %w", name, row, err)
		}
		return v, nil
	}
}

// Floats returns the whole column as float64. Cells that cannot be
// converted are NaN.
func (t *Table) Floats(name string) ([]float64, error) {
	if _, err := t.column(name); err != nil {
		return nil, err
	}
	out := make([]float64, t.rows)
	for i := range out {
		out[i], _ = t.Float(name, i)
	}
	return out, nil
}

// Time returns one cell as a timestamp. Numeric cells are unix seconds.
func (t *Table) Time(name string, row int) (time.Time, error) {
	c, err := t.column(name)
	if err != nil {
		return time.Time{}, err
	}
	if row < 0 || row >= t.rows {
		return time.Time{}, fmt.Errorf("row %d out of range [0,%d)", row, t.rows)
	}
	switch c.Kind {
	case KindTime:
		return c.Times[row], nil
	case KindString:
		return ParseTimestamp(c.Strings[row])
	default:
		v, err := t.Float(name, row)
		if err != nil {
			return time.Time{}, err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, fmt.Errorf("column %q row %d: non-finite timestamp", name, row)
		}
		return SecondsToTime(v), nil
	}
}

// Times returns the whole column as timestamps. It fails on the first
// cell that cannot be converted.
func (t *Table) Times(name string) ([]time.Time, error) {
	if _, err := t.column(name); err != nil {
		return nil, err
	}
	out := make([]time.Time, t.rows)
	for i := range out {
		ts, err := t.Time(name, i)
		if err != nil {
			return nil, err
		}
		out[i] = ts
	}
	return out, nil
}

// Key returns a cell formatted as an identifier, as used for grouping and
// selection. Integral floats format without a fractional part.
func (t *Table) Key(name string, row int) (string, error) {
	c, err := t.column(name)
	if err != nil {
		return "", err
	}
	if row < 0 || row >= t.rows {
		return "", fmt.Errorf("row %d out of range [0,%d)", row, t.rows)
	}
	switch c.Kind {
	case KindString:
		return c.Strings[row], nil
	case KindInt:
		return strconv.FormatInt(c.Ints[row], 10), nil
	case KindFloat:
		return strconv.FormatFloat(c.Floats[row], 'f', -1, 64), nil
	default:
		return c.Times[row].UTC().Format(time.RFC3339Nano), nil
	}
}

// Keys returns the distinct identifiers of a column in first-seen order.
func (t *Table) Keys(name string) ([]string, error) {
	if _, err := t.column(name); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < t.rows; i++ {
		k, _ := t.Key(name, i)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, nil
}

// Take returns a new table holding the given rows in the given order.
func (t *Table) Take(rows []int) *Table {
	if t == nil {
		return EmptyTable()
	}
	out := &Table{index: make(map[string]int, len(t.cols)), rows: len(rows)}
	for i := range t.cols {
		out.cols = append(out.cols, t.cols[i].take(rows))
		out.index[t.cols[i].Name] = i
	}
	return out
}

// Filter returns a new table with the rows for which keep is true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var rows []int
	for i := 0; i < t.Len(); i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	if rows == nil {
		rows = []int{}
	}
	return t.Take(rows)
}

// SecondsToTime converts fractional unix seconds to a UTC time.
func SecondsToTime(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

// TimeToSeconds converts a time to fractional unix seconds.
func TimeToSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// ParseTimestamp accepts RFC3339 (with or without fractional seconds), a
// space-separated date time, or numeric unix seconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, fmt.Errorf("non-finite timestamp %q", s)
		}
		return SecondsToTime(v), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05.999999999"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ParseColumn infers a column type from raw text: int, then float, then
// string. Empty cells in a numeric column become NaN and force float.
func ParseColumn(name string, raw []string) Column {
	ints := make([]int64, len(raw))
	isInt := true
	for i, s := range raw {
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			isInt = false
			break
		}
		ints[i] = v
	}
	if isInt {
		return IntColumn(name, ints...)
	}
	floats := make([]float64, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			floats[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return StringColumn(name, raw...)
		}
		floats[i] = v
	}
	return FloatColumn(name, floats...)
}

// ParseTimeColumn parses raw text as timestamps.
func ParseTimeColumn(name string, raw []string) (Column, error) {
	out := make([]time.Time, len(raw))
	for i, s := range raw {
		ts, err := ParseTimestamp(s)
		if err != nil {
			return Column{}, fmt.Errorf("column %q row %d: %w", name, i, err)
		}
		out[i] = ts
	}
	return TimeColumn(name, out...), nil
}
