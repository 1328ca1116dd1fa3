// Package selection turns a user's id selection into a row filter over a
// review table.
package selection

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/trackreview/internal/review"
)

// Tokens the UI uses in place of explicit id lists.
const (
	TokenAll  = "All"
	TokenNone = "None"
)

// Mode is the kind of a Spec.
type Mode int

const (
	ModeAll Mode = iota
	ModeNone
	ModeIDs
)

// Spec is ALL, NONE or an explicit list of ids. The zero value is ALL.
type Spec struct {
	mode Mode
	ids  []any
}

// All selects every row.
func All() Spec { return Spec{mode: ModeAll} }

// None selects nothing.
func None() Spec { return Spec{mode: ModeNone} }

// IDs selects rows whose id matches one of ids. Ids may be strings or any
// Go integer or float type; they are normalised against the id column when
// resolved. An empty list selects nothing.
func IDs(ids ...any) Spec {
	cp := make([]any, len(ids))
	copy(cp, ids)
	return Spec{mode: ModeIDs, ids: cp}
}

// Mode returns the spec kind.
func (s Spec) Mode() Mode { return s.mode }

// IsAll reports whether the spec selects every row.
func (s Spec) IsAll() bool { return s.mode == ModeAll }

// IsNone reports whether the spec can only select zero rows.
func (s Spec) IsNone() bool {
	return s.mode == ModeNone || (s.mode == ModeIDs && len(s.ids) == 0)
}

// Raw returns the explicit ids as given.
func (s Spec) Raw() []any {
	out := make([]any, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s Spec) String() string {
	switch {
	case s.IsAll():
		return TokenAll
	case s.IsNone():
		return TokenNone
	}
	parts := make([]string, len(s.ids))
	for i, id := range s.ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}

// FromContext converts a selection as reported by a UI collaborator.
// ok=false means no selection context exists; the caller should produce an
// empty result. A list holding the "All" or "None" token maps to that mode.
func FromContext(sel []string, ok bool) (Spec, bool) {
	if !ok {
		return None(), false
	}
	for _, s := range sel {
		switch s {
		case TokenAll:
			return All(), true
		case TokenNone:
			return None(), true
		}
	}
	ids := make([]any, len(sel))
	for i, s := range sel {
		ids[i] = s
	}
	return IDs(ids...), true
}

// Resolve filters t to the rows whose idColumn value is selected by spec.
// A nil table yields an empty table. When idColumn is absent the table is
// returned unfiltered for ALL and with zero rows otherwise.
func Resolve(t *review.Table, idColumn string, spec Spec) *review.Table {
	if t == nil {
		return review.EmptyTable()
	}
	if spec.IsAll() {
		return t
	}
	if spec.IsNone() {
		return t.Take([]int{})
	}
	col, ok := t.Column(idColumn)
	if !ok {
		review.Diagf("selection: id column %q absent, selecting nothing", idColumn)
		return t.Take([]int{})
	}

	keys := Normalize(col.Kind, spec.ids)
	if len(keys) == 0 {
		return t.Take([]int{})
	}
	return t.Filter(func(row int) bool {
		k, err := t.Key(idColumn, row)
		return err == nil && keys[k]
	})
}

// Normalize coerces raw ids to the canonical key form of a column kind.
// Ids that cannot be coerced are dropped and logged.
func Normalize(kind review.Kind, ids []any) map[string]bool {
	keys := make(map[string]bool, len(ids))
	for _, id := range ids {
		k, err := normalizeOne(kind, id)
		if err != nil {
			review.Diagf("selection: dropping id %v: %v", id, err)
			continue
		}
		keys[k] = true
	}
	return keys
}

func normalizeOne(kind review.Kind, id any) (string, error) {
	switch kind {
	case review.KindInt:
		v, err := asInt(id)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(v, 10), nil
	case review.KindFloat:
		v, err := asFloat(id)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case review.KindTime:
		s, ok := id.(string)
		if !ok {
			f, err := asFloat(id)
			if err != nil {
				return "", err
			}
			return review.SecondsToTime(f).UTC().Format(time.RFC3339Nano), nil
		}
		ts, err := review.ParseTimestamp(s)
		if err != nil {
			return "", fmt.Errorf("%w: %v", review.ErrSelectionType, err)
		}
		return ts.UTC().Format(time.RFC3339Nano), nil
	default:
		switch v := id.(type) {
		case string:
			return v, nil
		case float32:
			return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
		n, err := asInt(id)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	}
}

func asInt(id any) (int64, error) {
	switch v := id.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", review.ErrSelectionType, v)
		}
		return int64(v), nil
	case float32:
		return integral(float64(v))
	case float64:
		return integral(v)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return integral(f)
		}
		return 0, fmt.Errorf("%w: %q is not an integer", review.ErrSelectionType, v)
	}
	return 0, fmt.Errorf("%w: unsupported id type %T", review.ErrSelectionType, id)
}

func integral(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v is not an integer", review.ErrSelectionType, f)
	}
	return int64(f), nil
}

func asFloat(id any) (float64, error) {
	switch v := id.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not numeric", review.ErrSelectionType, v)
		}
		return f, nil
	}
	n, err := asInt(id)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}
