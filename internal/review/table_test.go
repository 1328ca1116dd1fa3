package review

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable_LengthMismatch(t *testing.T) {
	_, err := NewTable(FloatColumn("a", 1, 2), FloatColumn("b", 1))
	if err == nil {
		t.Fatal("expected error for unequal columns")
	}
	_, err = NewTable(FloatColumn("a", 1), FloatColumn("a", 2))
	if err == nil {
		t.Fatal("expected error for duplicate column")
	}
}

func TestTable_Accessors(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tbl := MustTable(
		TimeColumn("timestamp", ts, ts.Add(time.Second)),
		IntColumn("track_id", 5, 6),
		FloatColumn("lat", 40.0, 40.5),
		StringColumn("label", "a", "1.5"),
	)

	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"timestamp", "track_id", "lat", "label"}, tbl.Names())

	v, err := tbl.Float("track_id", 1)
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)

	v, err = tbl.Float("label", 1)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	_, err = tbl.Float("label", 0)
	assert.Error(t, err)

	_, err = tbl.Float("alt", 0)
	assert.True(t, errors.Is(err, ErrMissingColumn))

	secs, err := tbl.Float("timestamp", 1)
	require.NoError(t, err)
	assert.InDelta(t, TimeToSeconds(ts)+1, secs, 1e-6)

	k, err := tbl.Key("lat", 0)
	require.NoError(t, err)
	assert.Equal(t, "40", k)
}

func TestTable_NumericTime(t *testing.T) {
	tbl := MustTable(FloatColumn("timestamp", 0.4, 1.5))
	got, err := tbl.Time("timestamp", 1)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1, 500_000_000).UTC(), got)
}

func TestTable_TakeDoesNotShare(t *testing.T) {
	src := MustTable(FloatColumn("x", 1, 2, 3))
	sub := src.Take([]int{2, 0})
	require.Equal(t, 2, sub.Len())

	c, _ := sub.Column("x")
	c.Floats[0] = 99

	orig, _ := src.Column("x")
	assert.Equal(t, []float64{1, 2, 3}, orig.Floats)
}

func TestTable_Filter(t *testing.T) {
	src := MustTable(IntColumn("id", 1, 2, 3, 4))
	even := src.Filter(func(r int) bool { return r%2 == 1 })
	c, _ := even.Column("id")
	assert.Equal(t, []int64{2, 4}, c.Ints)

	none := src.Filter(func(int) bool { return false })
	assert.Equal(t, 0, none.Len())
	assert.True(t, none.Has("id"))
}

func TestNilTable(t *testing.T) {
	var tbl *Table
	assert.Equal(t, 0, tbl.Len())
	assert.False(t, tbl.Has("x"))
	assert.Equal(t, 0, tbl.Take(nil).Len())
}

func TestParseColumn(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want Kind
	}{
		{"ints", []string{"1", "2"}, KindInt},
		{"floats", []string{"1", "2.5"}, KindFloat},
		{"blank forces float", []string{"1", ""}, KindFloat},
		{"strings", []string{"a", "2"}, KindString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ParseColumn("c", tt.raw)
			if c.Kind != tt.want {
				t.Errorf("expected kind %v, got %v", tt.want, c.Kind)
			}
			if c.Len() != len(tt.raw) {
				t.Errorf("expected %d values, got %d", len(tt.raw), c.Len())
			}
		})
	}

	c := ParseColumn("c", []string{"1", ""})
	if !math.IsNaN(c.Floats[1]) {
		t.Errorf("expected NaN for blank cell, got %f", c.Floats[1])
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 0, 0, 250_000_000, time.UTC)
	for _, s := range []string{
		"2026-03-01T12:00:00.25Z",
		"2026-03-01 12:00:00.25",
		"1772366400.25",
	} {
		got, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), "%s: got %v", s, got)
	}
	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestLogStreams(t *testing.T) {
	var ops, diag bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag})
	defer SetLogWriters(LogWriters{})

	Opsf("loaded %d", 3)
	Diagf("skipped row %d", 7)
	Tracef("not written")

	assert.True(t, strings.HasPrefix(ops.String(), "[review] "))
	assert.True(t, strings.HasSuffix(ops.String(), " loaded 3\n"))
	assert.True(t, strings.HasPrefix(diag.String(), "[review] "))
	assert.Contains(t, diag.String(), "skipped row 7")
}

func TestParseTimestampRejectsNonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "inf", "-Inf"} {
		_, err := ParseTimestamp(raw)
		assert.Error(t, err, raw)
	}
	ts, err := ParseTimestamp("1.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), ts.UnixMilli())
}
