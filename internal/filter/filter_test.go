package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NSSimpleApps/TestToDoList/internal/schema"
)

// searchCols maps title and description to folded columns like the current
// to-do model does.
type searchCols map[string]string

func (c searchCols) SearchColumn(name string) (string, bool) {
	col, ok := c[name]
	return col, ok
}

var todoCols = searchCols{"title": "title_key", "description": "description_key"}

func TestCompile_NoFilter(t *testing.T) {
	got, err := Compile(nil, OrderCreatedAtDesc, todoCols)
	require.NoError(t, err)

	assert.Empty(t, got.Where)
	assert.Empty(t, got.Args)
	assert.Equal(t, " ORDER BY created_at DESC, id COLLATE BINARY DESC", got.Clause())
}

func TestCompile_Equals(t *testing.T) {
	got, err := Compile(ByID("abc"), OrderUnspecified, nil)
	require.NoError(t, err)
	assert.Equal(t, "id = ?", got.Where)
	assert.Equal(t, []any{"abc"}, got.Args)
	assert.Equal(t, "id COLLATE BINARY ASC", got.OrderBy)

	got, err = Compile(Equals{Field: FieldCompleted, Value: true}, OrderUnspecified, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, got.Args)

	at := time.Unix(0, 42)
	got, err = Compile(Equals{Field: FieldCreatedAt, Value: at}, OrderUnspecified, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(42)}, got.Args)

	got, err = Compile(Equals{Field: FieldDescription, Value: nil}, OrderUnspecified, nil)
	require.NoError(t, err)
	assert.Equal(t, "description IS NULL", got.Where)
	assert.Empty(t, got.Args)
}

func TestCompile_Search(t *testing.T) {
	got, err := Compile(Search("Café"), OrderCreatedAtDesc, todoCols)
	require.NoError(t, err)

	assert.Equal(t, "(instr(title_key, ?) > 0) OR (instr(description_key, ?) > 0)", got.Where)
	assert.Equal(t, []any{"cafe", "cafe"}, got.Args)
}

func TestCompile_ContainsWithoutSearchColumns(t *testing.T) {
	got, err := Compile(Contains{Field: FieldTitle, Substring: "MiLk"}, OrderUnspecified, nil)
	require.NoError(t, err)

	assert.Equal(t, "instr(lower(title), ?) > 0", got.Where)
	assert.Equal(t, []any{"milk"}, got.Args)
}

func TestCompile_Junctions(t *testing.T) {
	p := And{Predicates: []Predicate{
		Equals{Field: FieldCompleted, Value: false},
		In{Field: FieldID, Values: []any{"a", "b"}},
	}}
	got, err := Compile(p, OrderCreatedAtAsc, todoCols)
	require.NoError(t, err)

	assert.Equal(t, "(completed = ?) AND (id IN (?, ?))", got.Where)
	assert.Equal(t, []any{int64(0), "a", "b"}, got.Args)
	assert.Equal(t, "created_at ASC, id COLLATE BINARY ASC", got.OrderBy)

	empty, err := Compile(Or{}, OrderUnspecified, nil)
	require.NoError(t, err)
	assert.Equal(t, "0 = 1", empty.Where)

	all, err := Compile(And{}, OrderUnspecified, nil)
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", all.Where)

	none, err := Compile(In{Field: FieldID}, OrderUnspecified, nil)
	require.NoError(t, err)
	assert.Equal(t, "0 = 1", none.Where)
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile(Equals{Field: "owner", Value: "x"}, OrderUnspecified, nil)
	assert.ErrorContains(t, err, "unknown field")

	_, err = Compile(Equals{Field: FieldTitle, Value: 1.5}, OrderUnspecified, nil)
	assert.ErrorContains(t, err, "unsupported value type")

	_, err = Compile(Contains{Field: FieldCompleted, Substring: "1"}, OrderUnspecified, nil)
	assert.ErrorContains(t, err, "text field")

	_, err = Compile(nil, Order(9), nil)
	assert.ErrorContains(t, err, "unsupported order")
}

func TestCompile_UsesModelSearchColumns(t *testing.T) {
	c, err := schema.ToDo()
	require.NoError(t, err)

	got, err := Compile(Search("x"), OrderUnspecified, c.CurrentModel())
	require.NoError(t, err)
	assert.Contains(t, got.Where, "title_key")
}

func TestSearch_Blank(t *testing.T) {
	assert.Nil(t, Search(""))
	assert.Nil(t, Search("   "))
	assert.NotNil(t, Search("milk"))
}

type mapRow map[Field]any

func (r mapRow) Value(f Field) (any, bool) {
	v, ok := r[f]
	return v, ok
}

func TestMatch(t *testing.T) {
	desc := "Oat MILK, not almond"
	row := mapRow{
		FieldID:          "id-1",
		FieldTitle:       "Groceries",
		FieldDescription: &desc,
		FieldCompleted:   false,
		FieldCreatedAt:   time.Unix(100, 0),
	}
	bare := mapRow{
		FieldID:        "id-2",
		FieldTitle:     "Café",
		FieldCompleted: true,
	}

	tests := []struct {
		name string
		p    Predicate
		row  Row
		want bool
	}{
		{"nil matches", nil, row, true},
		{"equals id", ByID("id-1"), row, true},
		{"equals other id", ByID("id-2"), row, false},
		{"equals bool", Equals{Field: FieldCompleted, Value: false}, row, true},
		{"equals time", Equals{Field: FieldCreatedAt, Value: time.Unix(100, 0)}, row, true},
		{"nil equals absent", Equals{Field: FieldDescription, Value: nil}, bare, true},
		{"nil equals present", Equals{Field: FieldDescription, Value: nil}, row, false},
		{"search description", Search("milk"), row, true},
		{"search title diacritics", Search("CAFE"), bare, true},
		{"search absent description", Contains{Field: FieldDescription, Substring: "x"}, bare, false},
		{"search miss", Search("bread"), row, false},
		{"in", In{Field: FieldID, Values: []any{"x", "id-2"}}, bare, true},
		{"and", And{Predicates: []Predicate{ByID("id-1"), Search("groc")}}, row, true},
		{"and miss", And{Predicates: []Predicate{ByID("id-1"), Search("café")}}, row, false},
		{"empty or", Or{}, row, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.p, tt.row))
		})
	}
}

func TestOrder_String(t *testing.T) {
	assert.Equal(t, "created_at desc", OrderCreatedAtDesc.String())
	assert.Equal(t, "order(9)", Order(9).String())
}
