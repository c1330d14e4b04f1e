package filter

import (
	"fmt"
	"strings"

	"github.com/NSSimpleApps/TestToDoList/internal/schema"
)

// Columns resolves the folded search column of a field, if the entity has
// one. schema.Model implements it.
type Columns interface {
	SearchColumn(name string) (string, bool)
}

// SQL is a compiled filter. Where is empty when there is no filter.
// All values are carried in Args; nothing is interpolated.
type SQL struct {
	Where   string
	Args    []any
	OrderBy string
}

// Clause renders the WHERE and ORDER BY clauses, each with a leading space.
func (s SQL) Clause() string {
	var b strings.Builder
	if s.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(s.Where)
	}
	if s.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(s.OrderBy)
	}
	return b.String()
}

// Compile converts p and o to parameterized SQLite. cols may be nil, in
// which case Contains falls back to lower-casing the raw column.
func Compile(p Predicate, o Order, cols Columns) (SQL, error) {
	if err := Validate(p); err != nil {
		return SQL{}, err
	}

	var out SQL
	if p != nil {
		where, args, err := compilePredicate(p, cols)
		if err != nil {
			return SQL{}, err
		}
		out.Where = where
		out.Args = args
	}

	orderBy, err := compileOrder(o)
	if err != nil {
		return SQL{}, err
	}
	out.OrderBy = orderBy
	return out, nil
}

// compileOrder always yields a total order; id breaks ties.
func compileOrder(o Order) (string, error) {
	switch o {
	case OrderUnspecified:
		return "id COLLATE BINARY ASC", nil
	case OrderCreatedAtAsc:
		return "created_at ASC, id COLLATE BINARY ASC", nil
	case OrderCreatedAtDesc:
		return "created_at DESC, id COLLATE BINARY DESC", nil
	default:
		return "", fmt.Errorf("unsupported order %v", o)
	}
}

func compilePredicate(p Predicate, cols Columns) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		return compileEquals(pred)
	case Contains:
		sql, arg := compileContains(pred, cols)
		return sql, []any{arg}, nil
	case In:
		return compileIn(pred)
	case And:
		return compileJunction(pred.Predicates, " AND ", "1 = 1", cols)
	case Or:
		return compileJunction(pred.Predicates, " OR ", "0 = 1", cols)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	v, err := normalize(eq.Value)
	if err != nil {
		return "", nil, err
	}
	if v == nil {
		return fmt.Sprintf("%s IS NULL", eq.Field), nil, nil
	}
	return fmt.Sprintf("%s = ?", eq.Field), []any{v}, nil
}

// compileContains matches against the folded search column when the entity
// has one, otherwise against the lower-cased raw column.
func compileContains(c Contains, cols Columns) (string, any) {
	if cols != nil {
		if col, ok := cols.SearchColumn(string(c.Field)); ok {
			return fmt.Sprintf("instr(%s, ?) > 0", col), schema.SearchKey(c.Substring)
		}
	}
	return fmt.Sprintf("instr(lower(%s), ?) > 0", c.Field), strings.ToLower(c.Substring)
}

func compileIn(in In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "0 = 1", nil, nil
	}
	args := make([]any, 0, len(in.Values))
	for _, v := range in.Values {
		n, err := normalize(v)
		if err != nil {
			return "", nil, err
		}
		args = append(args, n)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	return fmt.Sprintf("%s IN (%s)", in.Field, placeholders), args, nil
}

func compileJunction(preds []Predicate, sep, empty string, cols Columns) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	parts := make([]string, 0, len(preds))
	var args []any
	for _, p := range preds {
		sql, sub, err := compilePredicate(p, cols)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, sub...)
	}
	return strings.Join(parts, sep), args, nil
}
