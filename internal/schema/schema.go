// Package schema describes the persistent entity layout at every schema
// version and the single-version steps that move a store between them.
//
// The default to-do contract lives in todo.cue and is compiled with the CUE
// Go API. Any other contract with the same shape can be loaded with Load.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNothingToMigrate is returned by MigrationStep when a configuration has
// no step leaving the requested version. Migration cannot proceed.
var ErrNothingToMigrate = errors.New("nothing to migrate")

// Configuration is the entity configuration contract consumed by the store
// manager and the migrator.
type Configuration interface {
	// StorageName is the logical name of the store.
	StorageName() string
	// CurrentModel is the model the code expects to work with.
	CurrentModel() Model
	// Model returns the model for a historical version.
	Model(version int) (Model, bool)
	// MigrationStep returns the step that leaves fromVersion.
	MigrationStep(fromVersion int) (Step, error)
}

// AttributeType is the storage type of an attribute.
type AttributeType string

const (
	TypeString AttributeType = "string"
	TypeBool   AttributeType = "bool"
	TypeInt    AttributeType = "int"
	TypeDate   AttributeType = "date"
)

func (t AttributeType) sqlType() string {
	switch t {
	case TypeString:
		return "TEXT"
	default:
		// bool as 0/1, date as unix nanoseconds
		return "INTEGER"
	}
}

// Attribute is one column of the entity.
type Attribute struct {
	Name     string
	Type     AttributeType
	Optional bool
	Key      bool
	// Derived names the attribute whose folded search key this column holds.
	Derived string
}

// Index is a secondary index on the entity table.
type Index struct {
	Name    string
	Columns []string
}

// Model is the complete entity layout at one schema version.
type Model struct {
	Version    int
	Entity     string
	Attributes []Attribute
	Indexes    []Index
}

// Attribute looks up an attribute by name.
func (m Model) Attribute(name string) (Attribute, bool) {
	for _, a := range m.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// KeyAttribute returns the primary key attribute.
func (m Model) KeyAttribute() (Attribute, bool) {
	for _, a := range m.Attributes {
		if a.Key {
			return a, true
		}
	}
	return Attribute{}, false
}

// DerivedAttributes returns the search-key columns in declaration order.
func (m Model) DerivedAttributes() []Attribute {
	var out []Attribute
	for _, a := range m.Attributes {
		if a.Derived != "" {
			out = append(out, a)
		}
	}
	return out
}

// SearchColumn returns the column holding the folded search key of name.
func (m Model) SearchColumn(name string) (string, bool) {
	for _, a := range m.Attributes {
		if a.Derived == name {
			return a.Name, true
		}
	}
	return "", false
}

// CreateStatements returns the DDL creating the entity table and its
// indexes on an empty store.
func (m Model) CreateStatements() []string {
	cols := make([]string, 0, len(m.Attributes))
	for _, a := range m.Attributes {
		var b strings.Builder
		b.WriteString(a.Name)
		b.WriteByte(' ')
		b.WriteString(a.Type.sqlType())
		if !a.Optional {
			b.WriteString(" NOT NULL")
		}
		if a.Key {
			b.WriteString(" PRIMARY KEY")
		}
		if a.Derived != "" && !a.Optional {
			b.WriteString(" DEFAULT ''")
		}
		cols = append(cols, b.String())
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", m.Entity, strings.Join(cols, ",\n\t")),
	}
	for _, idx := range m.Indexes {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			idx.Name, m.Entity, strings.Join(idx.Columns, ", ")))
	}
	return stmts
}

// Step moves a store from version From to To = From+1.
type Step struct {
	From       int
	To         int
	Statements []string
	// Backfill names a registered data rewrite run after Statements.
	Backfill string
}
