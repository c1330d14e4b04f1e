package filter

import (
	"strings"

	"github.com/NSSimpleApps/TestToDoList/internal/schema"
)

// Row exposes record fields for in-memory evaluation. ok is false for an
// absent optional field.
type Row interface {
	Value(f Field) (v any, ok bool)
}

// Match reports whether row satisfies p. A nil predicate matches every row;
// a predicate that fails Validate matches none.
func Match(p Predicate, row Row) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Equals:
		return equalsValue(row, pred.Field, pred.Value)
	case Contains:
		v, ok := row.Value(pred.Field)
		if !ok {
			return false
		}
		s, err := normalize(v)
		str, isString := s.(string)
		if err != nil || !isString {
			return false
		}
		return strings.Contains(schema.SearchKey(str), schema.SearchKey(pred.Substring))
	case In:
		for _, want := range pred.Values {
			if equalsValue(row, pred.Field, want) {
				return true
			}
		}
		return false
	case And:
		for _, sub := range pred.Predicates {
			if !Match(sub, row) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range pred.Predicates {
			if Match(sub, row) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func equalsValue(row Row, f Field, want any) bool {
	w, err := normalize(want)
	if err != nil {
		return false
	}
	v, ok := row.Value(f)
	if !ok {
		return w == nil
	}
	got, err := normalize(v)
	if err != nil {
		return false
	}
	return got == w
}
