package schema

import (
	_ "embed"
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed todo.cue
var todoContract string

// Contract is a Configuration compiled from CUE.
type Contract struct {
	storage string
	current int
	models  map[int]Model
	steps   map[int]Step
}

// ToDo compiles the embedded to-do contract.
func ToDo() (*Contract, error) {
	return Load("todo.cue", todoContract)
}

// Load compiles CUE source describing a storage contract.
//
// Expected shape:
//
//	storage: "todo_list"
//	entity:  "todo_items"
//	current: 2
//	models: [{version: 1, attributes: [...], indexes: [...]}, ...]
//	migrations: [{from: 1, to: 2, statements: [...], backfill: "search_keys"}]
func Load(filename, src string) (*Contract, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Contract{
		models: make(map[int]Model),
		steps:  make(map[int]Step),
	}

	var err error
	if c.storage, err = requiredString(v, "storage"); err != nil {
		return nil, err
	}
	entity, err := requiredString(v, "entity")
	if err != nil {
		return nil, err
	}
	if c.current, err = requiredInt(v, "current"); err != nil {
		return nil, err
	}

	if err := c.parseModels(v, entity); err != nil {
		return nil, err
	}
	if err := c.parseSteps(v); err != nil {
		return nil, err
	}

	if _, ok := c.models[c.current]; !ok {
		return nil, &ContractError{
			Field:   "current",
			Message: fmt.Sprintf("no model declared for current version %d", c.current),
			Pos:     v.LookupPath(cue.ParsePath("current")).Pos(),
		}
	}
	return c, nil
}

func (c *Contract) parseModels(v cue.Value, entity string) error {
	modelsVal := v.LookupPath(cue.ParsePath("models"))
	if !modelsVal.Exists() {
		return &ContractError{Field: "models", Message: "at least one model is required", Pos: v.Pos()}
	}
	iter, err := modelsVal.List()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		mv := iter.Value()
		m := Model{Entity: entity}
		if m.Version, err = requiredInt(mv, "version"); err != nil {
			return err
		}
		if _, dup := c.models[m.Version]; dup {
			return &ContractError{
				Field:   "models",
				Message: fmt.Sprintf("version %d declared twice", m.Version),
				Pos:     mv.Pos(),
			}
		}
		if m.Attributes, err = parseAttributes(mv); err != nil {
			return err
		}
		if m.Indexes, err = parseIndexes(mv); err != nil {
			return err
		}
		if err := validateModel(m, mv.Pos()); err != nil {
			return err
		}
		c.models[m.Version] = m
	}
	return nil
}

func parseAttributes(mv cue.Value) ([]Attribute, error) {
	attrsVal := mv.LookupPath(cue.ParsePath("attributes"))
	iter, err := attrsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var attrs []Attribute
	for iter.Next() {
		av := iter.Value()
		var a Attribute
		if a.Name, err = requiredString(av, "name"); err != nil {
			return nil, err
		}
		typ, err := requiredString(av, "type")
		if err != nil {
			return nil, err
		}
		a.Type = AttributeType(typ)
		if a.Optional, err = optionalBool(av, "optional"); err != nil {
			return nil, err
		}
		if a.Key, err = optionalBool(av, "key"); err != nil {
			return nil, err
		}
		if a.Derived, err = optionalString(av, "derived"); err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func parseIndexes(mv cue.Value) ([]Index, error) {
	idxVal := mv.LookupPath(cue.ParsePath("indexes"))
	if !idxVal.Exists() {
		return nil, nil
	}
	iter, err := idxVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []Index
	for iter.Next() {
		iv := iter.Value()
		var idx Index
		if idx.Name, err = requiredString(iv, "name"); err != nil {
			return nil, err
		}
		colIter, err := iv.LookupPath(cue.ParsePath("columns")).List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for colIter.Next() {
			col, err := colIter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			idx.Columns = append(idx.Columns, col)
		}
		out = append(out, idx)
	}
	return out, nil
}

func validateModel(m Model, pos token.Pos) error {
	keys := 0
	for _, a := range m.Attributes {
		switch a.Type {
		case TypeString, TypeBool, TypeInt, TypeDate:
		default:
			return &ContractError{
				Field:   fmt.Sprintf("models[%d].%s", m.Version, a.Name),
				Message: fmt.Sprintf("unsupported attribute type %q", a.Type),
				Pos:     pos,
			}
		}
		if a.Key {
			keys++
			if a.Type != TypeString || a.Optional {
				return &ContractError{
					Field:   fmt.Sprintf("models[%d].%s", m.Version, a.Name),
					Message: "key attribute must be a required string",
					Pos:     pos,
				}
			}
		}
		if a.Derived != "" {
			src, ok := m.Attribute(a.Derived)
			if !ok || src.Type != TypeString || a.Type != TypeString {
				return &ContractError{
					Field:   fmt.Sprintf("models[%d].%s", m.Version, a.Name),
					Message: fmt.Sprintf("derived search key must fold a string attribute, got %q", a.Derived),
					Pos:     pos,
				}
			}
		}
	}
	if keys != 1 {
		return &ContractError{
			Field:   fmt.Sprintf("models[%d]", m.Version),
			Message: fmt.Sprintf("exactly one key attribute is required, found %d", keys),
			Pos:     pos,
		}
	}
	return nil
}

func (c *Contract) parseSteps(v cue.Value) error {
	stepsVal := v.LookupPath(cue.ParsePath("migrations"))
	if !stepsVal.Exists() {
		return nil
	}
	iter, err := stepsVal.List()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		sv := iter.Value()
		var s Step
		if s.From, err = requiredInt(sv, "from"); err != nil {
			return err
		}
		if s.To, err = requiredInt(sv, "to"); err != nil {
			return err
		}
		if s.To != s.From+1 {
			return &ContractError{
				Field:   "migrations",
				Message: fmt.Sprintf("step %d->%d must advance exactly one version", s.From, s.To),
				Pos:     sv.Pos(),
			}
		}
		if _, dup := c.steps[s.From]; dup {
			return &ContractError{
				Field:   "migrations",
				Message: fmt.Sprintf("more than one step leaves version %d", s.From),
				Pos:     sv.Pos(),
			}
		}
		stmtIter, err := sv.LookupPath(cue.ParsePath("statements")).List()
		if err != nil {
			return formatCUEError(err)
		}
		for stmtIter.Next() {
			stmt, err := stmtIter.Value().String()
			if err != nil {
				return formatCUEError(err)
			}
			s.Statements = append(s.Statements, stmt)
		}
		if s.Backfill, err = optionalString(sv, "backfill"); err != nil {
			return err
		}
		if s.Backfill != "" {
			if _, err := LookupBackfill(s.Backfill); err != nil {
				return &ContractError{Field: "migrations.backfill", Message: err.Error(), Pos: sv.Pos()}
			}
		}
		c.steps[s.From] = s
	}
	return nil
}

// StorageName implements Configuration.
func (c *Contract) StorageName() string { return c.storage }

// CurrentModel implements Configuration.
func (c *Contract) CurrentModel() Model { return c.models[c.current] }

// Model implements Configuration.
func (c *Contract) Model(version int) (Model, bool) {
	m, ok := c.models[version]
	return m, ok
}

// MigrationStep implements Configuration.
func (c *Contract) MigrationStep(fromVersion int) (Step, error) {
	s, ok := c.steps[fromVersion]
	if !ok {
		return Step{}, fmt.Errorf("%w: no step leaves version %d", ErrNothingToMigrate, fromVersion)
	}
	return s, nil
}

// Versions returns every declared model version in ascending order.
func (c *Contract) Versions() []int {
	out := make([]int, 0, len(c.models))
	for v := range c.models {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func requiredString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", &ContractError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if s == "" {
		return "", &ContractError{Field: field, Message: field + " must not be empty", Pos: f.Pos()}
	}
	return s, nil
}

func requiredInt(v cue.Value, field string) (int, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return 0, &ContractError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	n, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return false, nil
	}
	if d, ok := f.Default(); ok {
		f = d
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	if d, ok := f.Default(); ok {
		f = d
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// ContractError is a contract compilation error with source position.
type ContractError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ContractError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &ContractError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
