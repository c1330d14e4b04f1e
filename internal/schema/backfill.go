package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// BackfillFunc rewrites existing rows after a step's statements ran. It
// runs inside the step's transaction and receives the target model.
type BackfillFunc func(ctx context.Context, tx *sql.Tx, target Model) error

// BackfillSearchKeys is the registered name of RecomputeSearchKeys.
const BackfillSearchKeys = "search_keys"

var backfills = map[string]BackfillFunc{
	BackfillSearchKeys: RecomputeSearchKeys,
}

// LookupBackfill returns the backfill registered under name.
func LookupBackfill(name string) (BackfillFunc, error) {
	fn, ok := backfills[name]
	if !ok {
		return nil, fmt.Errorf("unknown backfill %q", name)
	}
	return fn, nil
}

// RecomputeSearchKeys fills every derived search column of target from its
// source attribute.
func RecomputeSearchKeys(ctx context.Context, tx *sql.Tx, target Model) error {
	key, ok := target.KeyAttribute()
	if !ok {
		return fmt.Errorf("model %d has no key attribute", target.Version)
	}
	derived := target.DerivedAttributes()
	if len(derived) == 0 {
		return nil
	}

	cols := []string{key.Name}
	sets := make([]string, 0, len(derived))
	for _, d := range derived {
		cols = append(cols, d.Derived)
		sets = append(sets, d.Name+" = ?")
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), target.Entity))
	if err != nil {
		return fmt.Errorf("read rows for search keys: %w", err)
	}

	type pending struct {
		id   string
		keys []any
	}
	var updates []pending
	for rows.Next() {
		var id string
		src := make([]sql.NullString, len(derived))
		dest := make([]any, 0, len(derived)+1)
		dest = append(dest, &id)
		for i := range src {
			dest = append(dest, &src[i])
		}
		if err := rows.Scan(dest...); err != nil {
			rows.Close()
			return fmt.Errorf("scan row for search keys: %w", err)
		}

		keys := make([]any, len(derived))
		for i, s := range src {
			switch {
			case s.Valid:
				keys[i] = SearchKey(s.String)
			case derived[i].Optional:
				keys[i] = nil
			default:
				keys[i] = ""
			}
		}
		updates = append(updates, pending{id: id, keys: keys})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate rows for search keys: %w", err)
	}
	rows.Close()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		target.Entity, strings.Join(sets, ", "), key.Name))
	if err != nil {
		return fmt.Errorf("prepare search key update: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, append(u.keys, u.id)...); err != nil {
			return fmt.Errorf("update search keys for %s: %w", u.id, err)
		}
	}
	return nil
}
