package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/NSSimpleApps/TestToDoList/internal/filter"
	"github.com/NSSimpleApps/TestToDoList/internal/schema"
	"github.com/NSSimpleApps/TestToDoList/internal/todoerr"
)

// Record is one to-do item.
type Record struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

// Value implements filter.Row.
func (r Record) Value(f filter.Field) (any, bool) {
	v, present, _ := r.field(string(f))
	return v, present
}

// field returns the value stored under a column name. known is false for
// names that are not record fields.
func (r Record) field(name string) (v any, present, known bool) {
	switch name {
	case string(filter.FieldID):
		return r.ID, true, true
	case string(filter.FieldTitle):
		return r.Title, true, true
	case string(filter.FieldDescription):
		if r.Description == nil {
			return nil, false, true
		}
		return *r.Description, true, true
	case string(filter.FieldCompleted):
		return r.Completed, true, true
	case string(filter.FieldCreatedAt):
		return r.CreatedAt, true, true
	default:
		return nil, false, false
	}
}

// Validate reports records that violate the entity contract.
func (r Record) Validate() error {
	if r.ID == "" {
		return todoerr.New(todoerr.KindInvalid, todoerr.CodeGeneric, "Record id is required.")
	}
	if strings.TrimSpace(r.Title) == "" {
		return todoerr.New(todoerr.KindInvalid, todoerr.CodeGeneric, "Title is required.")
	}
	return nil
}

// normalized strips the monotonic reading and location from CreatedAt so a
// record read back from the store compares equal to the one written.
func (r Record) normalized() Record {
	r.CreatedAt = r.CreatedAt.UTC()
	return r
}

// toRow maps r onto the model's columns in declaration order. Derived
// columns receive the folded search key of their source field.
func toRow(m schema.Model, r Record) (cols []string, args []any, err error) {
	cols = make([]string, 0, len(m.Attributes))
	args = make([]any, 0, len(m.Attributes))

	for _, a := range m.Attributes {
		src := a.Name
		if a.Derived != "" {
			src = a.Derived
		}
		v, present, known := r.field(src)
		if !known {
			return nil, nil, fmt.Errorf("column %q has no record field", a.Name)
		}

		var arg any
		switch {
		case !present && !a.Optional:
			return nil, nil, fmt.Errorf("column %q is required", a.Name)
		case !present:
			arg = nil
		case a.Derived != "":
			s, ok := v.(string)
			if !ok {
				return nil, nil, fmt.Errorf("column %q folds non-text field %q", a.Name, src)
			}
			arg = schema.SearchKey(s)
		default:
			arg = sqlValue(v)
		}

		cols = append(cols, a.Name)
		args = append(args, arg)
	}
	return cols, args, nil
}

func sqlValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.UnixNano()
	default:
		return v
	}
}

// recordColumns is the projection read by scanRecord.
const recordColumns = "id, title, description, completed, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		r         Record
		desc      sql.NullString
		createdAt int64
	)
	if err := s.Scan(&r.ID, &r.Title, &desc, &r.Completed, &createdAt); err != nil {
		return Record{}, err
	}
	if desc.Valid {
		d := desc.String
		r.Description = &d
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return r, nil
}
