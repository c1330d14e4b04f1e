package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/NSSimpleApps/TestToDoList/internal/schema"
	"github.com/NSSimpleApps/TestToDoList/internal/todoerr"
)

// Report describes what Run did.
type Report struct {
	Plan      Plan
	Applied   []Transition
	Recreated bool
}

// Migrator brings a store file to the configuration's current version.
// The caller must hold exclusive access to the store while Run executes.
type Migrator struct {
	Config schema.Configuration
	Logger *slog.Logger
}

func (m *Migrator) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Plan inspects the store at path and computes its migration plan without
// changing anything.
func (m *Migrator) Plan(ctx context.Context, path string) (Plan, error) {
	stored, exists, err := StoredVersion(ctx, path)
	if err != nil {
		return Plan{}, todoerr.StoreIO("read store version", err)
	}
	return Compute(stored, exists, m.Config.CurrentModel().Version), nil
}

// Run executes the plan for the store at path.
//
// ActionCreate and ActionNone leave the file untouched; creating the schema
// of a fresh store is the opener's job. ActionRecreate destroys every file of
// the store. A missing step fails with an unrecoverable-schema error before
// any step is applied.
func (m *Migrator) Run(ctx context.Context, path string) (Report, error) {
	plan, err := m.Plan(ctx, path)
	if err != nil {
		return Report{}, err
	}
	report := Report{Plan: plan}
	log := m.logger().With("store", path)

	switch plan.Action {
	case ActionNone, ActionCreate:
		return report, nil

	case ActionRecreate:
		log.Warn("store is newer than this build, recreating",
			"stored", plan.Stored, "current", plan.Current)
		if err := Destroy(path); err != nil {
			return report, todoerr.StoreIO("destroy store", err)
		}
		report.Recreated = true
		return report, nil
	}

	steps := make([]schema.Step, 0, len(plan.Transitions))
	for _, tr := range plan.Transitions {
		step, err := m.Config.MigrationStep(tr.From)
		if err != nil {
			return report, todoerr.Wrap(todoerr.KindUnrecoverableSchema, todoerr.CodeGeneric,
				fmt.Sprintf("cannot migrate store from version %d", tr.From), err)
		}
		if step.To != tr.To {
			return report, todoerr.New(todoerr.KindUnrecoverableSchema, todoerr.CodeGeneric,
				fmt.Sprintf("step from version %d leads to %d, want %d", tr.From, step.To, tr.To))
		}
		steps = append(steps, step)
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return report, todoerr.Wrap(todoerr.KindCancelled, todoerr.CodeCancelled, "migration cancelled", err)
		}
		log.Info("migrating store", "from", step.From, "to", step.To)
		if err := m.applyStep(ctx, path, step); err != nil {
			return report, todoerr.StoreIO(fmt.Sprintf("migrate store %d -> %d", step.From, step.To), err)
		}
		report.Applied = append(report.Applied, Transition{From: step.From, To: step.To})
	}

	log.Info("store migrated", "version", plan.Current, "steps", len(report.Applied))
	return report, nil
}

// applyStep copies the store, migrates the copy in a single transaction and
// swaps it over the original.
func (m *Migrator) applyStep(ctx context.Context, path string, step schema.Step) error {
	var backfill schema.BackfillFunc
	var target schema.Model
	if step.Backfill != "" {
		var err error
		if backfill, err = schema.LookupBackfill(step.Backfill); err != nil {
			return err
		}
		var ok bool
		if target, ok = m.Config.Model(step.To); !ok {
			return fmt.Errorf("no model declared for version %d", step.To)
		}
	}

	tmp := path + ".migrating"
	if err := removeIfExists(tmp); err != nil {
		return fmt.Errorf("clear stale copy: %w", err)
	}

	if err := copyStore(ctx, path, tmp); err != nil {
		_ = removeIfExists(tmp)
		return err
	}

	if err := migrateCopy(ctx, tmp, step, backfill, target); err != nil {
		_ = removeIfExists(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = removeIfExists(tmp)
		return fmt.Errorf("replace store: %w", err)
	}

	// The sidecars belonged to the replaced file.
	for _, p := range sidecars(path) {
		if err := removeIfExists(p); err != nil {
			m.logger().Warn("failed to remove obsolete store file", "path", p, "error", err)
		}
	}
	return nil
}

func copyStore(ctx context.Context, src, dst string) error {
	db, err := sql.Open("sqlite3", src)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "VACUUM INTO "+quoteLiteral(dst)); err != nil {
		return fmt.Errorf("copy store: %w", err)
	}
	return nil
}

func migrateCopy(ctx context.Context, path string, step schema.Step, backfill schema.BackfillFunc, target schema.Model) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open copy: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range step.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	if backfill != nil {
		if err := backfill(ctx, tx, target); err != nil {
			return fmt.Errorf("backfill %s: %w", step.Backfill, err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step.To)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
