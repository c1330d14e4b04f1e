// Package migrate decides how an on-disk store reaches the current schema
// version and carries that decision out.
//
// Planning is pure: Compute looks only at the stored version tag and the
// current version. The Migrator executes a plan against a SQLite file one
// step at a time. Each step runs on a temporary copy and replaces the
// original with an atomic rename, so a failed step leaves the store at the
// last good version.
package migrate

import (
	"fmt"
	"strings"
)

// Action is the kind of work a Plan calls for.
type Action int

const (
	// ActionNone means the store is already at the current version.
	ActionNone Action = iota
	// ActionCreate means no versioned store exists yet.
	ActionCreate
	// ActionRecreate means the store is newer than the code; it is destroyed
	// and created fresh, never migrated downward.
	ActionRecreate
	// ActionMigrate means one or more forward steps are needed.
	ActionMigrate
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionCreate:
		return "create"
	case ActionRecreate:
		return "recreate"
	case ActionMigrate:
		return "migrate"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Transition is a single-version step From -> To.
type Transition struct {
	From int
	To   int
}

func (t Transition) String() string {
	return fmt.Sprintf("%d -> %d", t.From, t.To)
}

// Plan is the outcome of comparing a stored version with the current one.
type Plan struct {
	Action      Action
	Stored      int
	Exists      bool
	Current     int
	Transitions []Transition
}

// Compute plans the path from the stored version to current. exists is false
// for a store that has no version tag.
func Compute(stored int, exists bool, current int) Plan {
	p := Plan{Stored: stored, Exists: exists, Current: current}

	switch {
	case !exists:
		p.Action = ActionCreate
	case stored == current:
		p.Action = ActionNone
	case stored > current:
		p.Action = ActionRecreate
	default:
		p.Action = ActionMigrate
		p.Transitions = make([]Transition, 0, current-stored)
		for v := stored; v < current; v++ {
			p.Transitions = append(p.Transitions, Transition{From: v, To: v + 1})
		}
	}
	return p
}

// String renders a stable, line-oriented summary of the plan.
func (p Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "action: %s\n", p.Action)
	if p.Exists {
		fmt.Fprintf(&b, "stored: %d\n", p.Stored)
	} else {
		b.WriteString("stored: none\n")
	}
	fmt.Fprintf(&b, "current: %d\n", p.Current)
	if len(p.Transitions) > 0 {
		b.WriteString("steps:\n")
		for _, t := range p.Transitions {
			fmt.Fprintf(&b, "  %s\n", t)
		}
	}
	return b.String()
}
