package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/NSSimpleApps/TestToDoList/internal/filter"
	"github.com/NSSimpleApps/TestToDoList/internal/task"
	"github.com/NSSimpleApps/TestToDoList/internal/todoerr"
)

// ReasonNotFound is the reason of the error returned by Update when no
// record matches.
const ReasonNotFound = "Item not found."

// submit wraps fn in a task that runs inside its own transaction once the
// store is loaded.
func submit[T any](m *Manager, name string, completion func(*task.Result[T]), fn func(ctx context.Context, tx *sql.Tx) (T, error)) *task.Task[T] {
	t := task.New(name, func(*task.Task[T]) (task.Outcome[T], error) {
		db, err := m.handle()
		if err != nil {
			return task.Outcome[T]{}, err
		}

		tx, err := db.BeginTx(m.ctx, nil)
		if err != nil {
			return task.Outcome[T]{}, todoerr.StoreIO("begin transaction", err)
		}
		v, err := fn(m.ctx, tx)
		if err != nil {
			_ = tx.Rollback()
			return task.Outcome[T]{}, err
		}
		if err := tx.Commit(); err != nil {
			return task.Outcome[T]{}, todoerr.StoreIO("commit transaction", err)
		}
		return task.Immediate(v), nil
	}, completion)

	m.queue.Submit(t)
	return t
}

// Query returns the records matching pred in the given order. A nil pred
// matches every record.
func (m *Manager) Query(pred filter.Predicate, order filter.Order, completion func(*task.Result[[]Record])) *task.Task[[]Record] {
	return submit(m, "store.query", completion, func(ctx context.Context, tx *sql.Tx) ([]Record, error) {
		return m.query(ctx, tx, pred, order)
	})
}

func (m *Manager) query(ctx context.Context, tx *sql.Tx, pred filter.Predicate, order filter.Order) ([]Record, error) {
	compiled, err := filter.Compile(pred, order, m.model)
	if err != nil {
		return nil, todoerr.Wrap(todoerr.KindInvalid, todoerr.CodeGeneric, "invalid filter", err)
	}

	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s%s", recordColumns, m.model.Entity, compiled.Clause()),
		compiled.Args...)
	if err != nil {
		return nil, todoerr.StoreIO("query records", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, todoerr.StoreIO("scan record", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, todoerr.StoreIO("query records", err)
	}
	return records, nil
}

// Save replaces the entire contents of the store with records. Records
// without an id get a generated one; records without a creation time get
// the current time. The saved records are the task's result.
func (m *Manager) Save(records []Record, completion func(*task.Result[[]Record])) *task.Task[[]Record] {
	input := append([]Record(nil), records...)
	return submit(m, "store.save", completion, func(ctx context.Context, tx *sql.Tx) ([]Record, error) {
		saved := make([]Record, 0, len(input))
		for _, r := range input {
			if r.ID == "" {
				r.ID = m.ids.Generate()
			}
			if r.CreatedAt.IsZero() {
				r.CreatedAt = m.now()
			}
			r = r.normalized()
			if err := r.Validate(); err != nil {
				return nil, err
			}
			saved = append(saved, r)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM "+m.model.Entity); err != nil {
			return nil, todoerr.StoreIO("clear records", err)
		}
		for _, r := range saved {
			if err := m.insert(ctx, tx, r); err != nil {
				return nil, err
			}
		}
		return saved, nil
	})
}

// Delete removes every record matching pred and returns how many were
// removed. Matching nothing is not an error.
func (m *Manager) Delete(pred filter.Predicate, completion func(*task.Result[int])) *task.Task[int] {
	return submit(m, "store.delete", completion, func(ctx context.Context, tx *sql.Tx) (int, error) {
		compiled, err := filter.Compile(pred, filter.OrderUnspecified, m.model)
		if err != nil {
			return 0, todoerr.Wrap(todoerr.KindInvalid, todoerr.CodeGeneric, "invalid filter", err)
		}
		var where string
		if compiled.Where != "" {
			where = " WHERE " + compiled.Where
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM "+m.model.Entity+where, compiled.Args...)
		if err != nil {
			return 0, todoerr.StoreIO("delete records", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, todoerr.StoreIO("delete records", err)
		}
		return int(n), nil
	})
}

// Update applies mutate to the first record matching pred and persists it.
// The id cannot be changed. When nothing matches, the task fails with a
// not-found error and the store is left unmodified.
func (m *Manager) Update(pred filter.Predicate, mutate func(*Record), completion func(*task.Result[Record])) *task.Task[Record] {
	return submit(m, "store.update", completion, func(ctx context.Context, tx *sql.Tx) (Record, error) {
		matches, err := m.query(ctx, tx, pred, filter.OrderUnspecified)
		if err != nil {
			return Record{}, err
		}
		if len(matches) == 0 {
			return Record{}, todoerr.NotFound(ReasonNotFound)
		}

		original := matches[0]
		updated := original
		if mutate != nil {
			mutate(&updated)
		}
		updated.ID = original.ID
		if updated.CreatedAt.IsZero() {
			updated.CreatedAt = original.CreatedAt
		}
		updated = updated.normalized()
		if err := updated.Validate(); err != nil {
			return Record{}, err
		}

		cols, args, err := toRow(m.model, updated)
		if err != nil {
			return Record{}, todoerr.Wrap(todoerr.KindInvalid, todoerr.CodeGeneric, "map record", err)
		}
		sets := make([]string, 0, len(cols))
		for _, c := range cols {
			sets = append(sets, c+" = ?")
		}
		key, _ := m.model.KeyAttribute()
		args = append(args, original.ID)

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", m.model.Entity, strings.Join(sets, ", "), key.Name),
			args...); err != nil {
			return Record{}, todoerr.StoreIO("update record", err)
		}
		return updated, nil
	})
}

// Create inserts a new record. configure receives a record that already
// has a generated id and the current time; it fills in the rest.
func (m *Manager) Create(configure func(*Record), completion func(*task.Result[Record])) *task.Task[Record] {
	return submit(m, "store.create", completion, func(ctx context.Context, tx *sql.Tx) (Record, error) {
		r := Record{ID: m.ids.Generate(), CreatedAt: m.now()}
		if configure != nil {
			configure(&r)
		}
		if r.ID == "" {
			r.ID = m.ids.Generate()
		}
		r = r.normalized()
		if err := r.Validate(); err != nil {
			return Record{}, err
		}
		if err := m.insert(ctx, tx, r); err != nil {
			return Record{}, err
		}
		return r, nil
	})
}

func (m *Manager) insert(ctx context.Context, tx *sql.Tx, r Record) error {
	cols, args, err := toRow(m.model, r)
	if err != nil {
		return todoerr.Wrap(todoerr.KindInvalid, todoerr.CodeGeneric, "map record", err)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", m.model.Entity, strings.Join(cols, ", "), placeholders),
		args...); err != nil {
		return todoerr.StoreIO(fmt.Sprintf("insert record %s", r.ID), err)
	}
	return nil
}
