// Package filter is the query language of the to-do store: a small set of
// predicates over record fields plus an ordering on creation time.
//
// Predicate is a sealed interface; only types in this package implement it.
// A predicate compiles to a parameterized SQL WHERE fragment and can also be
// evaluated in memory against any Row.
package filter

import (
	"fmt"
	"strings"
)

// Field names a record attribute. Values match the storage column names.
type Field string

const (
	FieldID          Field = "id"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldCompleted   Field = "completed"
	FieldCreatedAt   Field = "created_at"
)

var knownFields = map[Field]bool{
	FieldID:          true,
	FieldTitle:       true,
	FieldDescription: true,
	FieldCompleted:   true,
	FieldCreatedAt:   true,
}

var textFields = map[Field]bool{
	FieldID:          true,
	FieldTitle:       true,
	FieldDescription: true,
}

// Predicate is a filter condition.
type Predicate interface {
	predicateNode()
}

// Equals matches records whose Field equals Value. A nil Value matches an
// absent optional field. Supported values: string, bool, int, int64,
// time.Time and nil.
type Equals struct {
	Field Field
	Value any
}

// Contains matches records whose string Field contains Substring, ignoring
// case and diacritics. Absent fields never match.
type Contains struct {
	Field     Field
	Substring string
}

// In matches records whose Field equals any of Values. An empty list
// matches nothing.
type In struct {
	Field  Field
	Values []any
}

// And matches when every predicate matches. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

// Or matches when any predicate matches. An empty Or matches nothing.
type Or struct {
	Predicates []Predicate
}

func (Equals) predicateNode()   {}
func (Contains) predicateNode() {}
func (In) predicateNode()       {}
func (And) predicateNode()      {}
func (Or) predicateNode()       {}

// ByID matches the record with the given id.
func ByID(id string) Predicate {
	return Equals{Field: FieldID, Value: id}
}

// Search matches records whose title or description contains term. It
// returns nil, meaning no filter, for a blank term.
func Search(term string) Predicate {
	if strings.TrimSpace(term) == "" {
		return nil
	}
	return Or{Predicates: []Predicate{
		Contains{Field: FieldTitle, Substring: term},
		Contains{Field: FieldDescription, Substring: term},
	}}
}

// Order sorts query results.
type Order int

const (
	// OrderUnspecified returns records in a stable but meaningless order.
	OrderUnspecified Order = iota
	OrderCreatedAtAsc
	OrderCreatedAtDesc
)

func (o Order) String() string {
	switch o {
	case OrderUnspecified:
		return "unspecified"
	case OrderCreatedAtAsc:
		return "created_at asc"
	case OrderCreatedAtDesc:
		return "created_at desc"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// Validate checks that p only references known fields and supported values.
func Validate(p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Equals:
		if err := validateField(pred.Field); err != nil {
			return err
		}
		_, err := normalize(pred.Value)
		return err
	case Contains:
		if err := validateField(pred.Field); err != nil {
			return err
		}
		if !textFields[pred.Field] {
			return fmt.Errorf("contains requires a text field, got %q", pred.Field)
		}
		return nil
	case In:
		if err := validateField(pred.Field); err != nil {
			return err
		}
		for _, v := range pred.Values {
			if _, err := normalize(v); err != nil {
				return err
			}
		}
		return nil
	case And:
		return validateAll(pred.Predicates)
	case Or:
		return validateAll(pred.Predicates)
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func validateAll(preds []Predicate) error {
	for _, p := range preds {
		if err := Validate(p); err != nil {
			return err
		}
	}
	return nil
}

func validateField(f Field) error {
	if !knownFields[f] {
		return fmt.Errorf("unknown field %q", f)
	}
	return nil
}
