package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/NSSimpleApps/TestToDoList/internal/migrate"
	"github.com/NSSimpleApps/TestToDoList/internal/schema"
	"github.com/NSSimpleApps/TestToDoList/internal/store"
)

// PlanOutput is the JSON form of a migration plan.
type PlanOutput struct {
	Store   string   `json:"store"`
	Action  string   `json:"action"`
	Exists  bool     `json:"exists"`
	Stored  int      `json:"stored"`
	Current int      `json:"current"`
	Steps   []string `json:"steps,omitempty"`
}

func newPlanOutput(path string, p migrate.Plan) PlanOutput {
	out := PlanOutput{
		Store:   path,
		Action:  p.Action.String(),
		Exists:  p.Exists,
		Stored:  p.Stored,
		Current: p.Current,
	}
	for _, t := range p.Transitions {
		out.Steps = append(out.Steps, t.String())
	}
	return out
}

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect or upgrade the store schema",
	}
	cmd.AddCommand(newSchemaPlanCommand(rootOpts))
	cmd.AddCommand(newSchemaMigrateCommand(rootOpts))
	return cmd
}

func newSchemaPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what opening the store would do, without changing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd, rootOpts, false)
		},
	}
}

func newSchemaMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the store to the current schema version",
		Long: `Bring the store to the current schema version.

Each step works on a copy that replaces the store only once the step
succeeds. A store written by a newer version is discarded and recreated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd, rootOpts, true)
		},
	}
}

func runSchema(cmd *cobra.Command, opts *RootOptions, apply bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, logger, err := loadConfig(opts, cmd)
	if err != nil {
		return out.FailWithCode(ExitCommandError, err)
	}
	contract, err := schema.ToDo()
	if err != nil {
		return out.FailWithCode(ExitCommandError, err)
	}

	path := cfg.Store.Path
	plan, err := (&migrate.Migrator{Config: contract, Logger: logger}).Plan(ctx, path)
	if err != nil {
		logger.Debug("schema plan failed", "store", path, "error", err)
		return out.Fail(err)
	}

	if apply {
		// Opening the store migrates it under the store lock.
		st := store.Open(path, contract, store.WithLogger(logger))
		err := st.Ready(ctx)
		if cerr := st.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			logger.Debug("schema migrate failed", "store", path, "error", err)
			return out.Fail(err)
		}
	}

	return out.Success(newPlanOutput(path, plan), func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "store: %s\n%s", path, plan)
		return err
	})
}
