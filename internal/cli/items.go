package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/NSSimpleApps/TestToDoList/internal/filter"
	"github.com/NSSimpleApps/TestToDoList/internal/store"
	"github.com/NSSimpleApps/TestToDoList/internal/task"
	"github.com/NSSimpleApps/TestToDoList/internal/todoerr"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Search  string
	Refresh bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, newest first",
		Long: `List to-do items, newest first.

The first run downloads the sample list and saves it. --search matches the
title or the description, ignoring case and accents.

Example:
  todo list --search milk`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, rootOpts, func(ctx context.Context, e *env) error {
				return listItems(ctx, e, opts.Refresh, opts.Search)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "only items whose title or description contains this")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "download the list again, replacing the store")
	return cmd
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Download the list again, replacing every stored item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, rootOpts, func(ctx context.Context, e *env) error {
				return listItems(ctx, e, true, "")
			})
		},
	}
}

func listItems(ctx context.Context, e *env, refresh bool, search string) error {
	records, err := await(ctx, e, e.svc.GetItems(refresh, search, nil))
	if err != nil {
		return err
	}
	return e.out.Success(records, func(w io.Writer) error {
		return writeRecords(w, records)
	})
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Description string
	Completed   bool
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create an item",
		Example: `  todo add "Buy milk"
  todo add "Call Ana" --description "about the trip"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := optionalString(cmd, "description", opts.Description)
			return withEnv(cmd, rootOpts, func(ctx context.Context, e *env) error {
				rec, err := await(ctx, e, e.svc.Create(args[0], desc, opts.Completed, nil))
				if err != nil {
					return err
				}
				return e.out.Success(rec, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Created %s\n", rec.ID)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "item description")
	cmd.Flags().BoolVar(&opts.Completed, "completed", false, "mark the item as done")
	return cmd
}

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Title       string
	Description string
	Completed   bool
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an item",
		Long: `Change an item. Flags that are not given keep their current value;
an empty --description clears it.`,
		Example: `  todo update 0190... --completed
  todo update 0190... --title "Buy oat milk" --completed=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, rootOpts, func(ctx context.Context, e *env) error {
				return updateItem(ctx, e, cmd, opts, args[0])
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "new description (empty clears it)")
	cmd.Flags().BoolVar(&opts.Completed, "completed", false, "mark the item as done or not")
	return cmd
}

func updateItem(ctx context.Context, e *env, cmd *cobra.Command, opts *UpdateOptions, id string) error {
	current, err := await(ctx, e, e.store.Query(filter.ByID(id), filter.OrderUnspecified, nil))
	if err != nil {
		return err
	}
	if len(current) == 0 {
		// Let the service report the canonical not-found error.
		current = []store.Record{{}}
	}

	title := current[0].Title
	if cmd.Flags().Changed("title") {
		title = opts.Title
	}
	desc := current[0].Description
	if cmd.Flags().Changed("description") {
		desc = optionalString(cmd, "description", opts.Description)
	}
	completed := current[0].Completed
	if cmd.Flags().Changed("completed") {
		completed = opts.Completed
	}

	rec, err := await(ctx, e, e.svc.Update(id, title, desc, completed, nil))
	if err != nil {
		return err
	}
	return e.out.Success(rec, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Updated %s\n", rec.ID)
		return err
	})
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an item; deleting a missing item is not an error",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, rootOpts, func(ctx context.Context, e *env) error {
				n, err := await(ctx, e, e.svc.Delete(args[0], nil))
				if err != nil {
					return err
				}
				return e.out.Success(map[string]int{"deleted": n}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Deleted %d item(s)\n", n)
					return err
				})
			})
		},
	}
}

// withEnv opens the environment, runs fn and closes it.
func withEnv(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := openEnv(ctx, opts, cmd)
	if err != nil {
		out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return out.FailWithCode(GetExitCode(err), err)
	}
	defer e.close()
	return fn(ctx, e)
}

// await waits for t and reports its failure through the formatter.
func await[T any](ctx context.Context, e *env, t *task.Task[T]) (T, error) {
	v, err := task.Wait(ctx, t)
	if ctx.Err() != nil {
		t.Cancel()
		return v, ctx.Err()
	}
	if todoerr.IsCancelled(err) {
		// Cancellation is a no-op for the user: nothing is printed.
		e.logger.Debug("operation cancelled", "task", t.Name())
		return v, &ExitError{Code: ExitFailure, Message: "cancelled", Err: err, Reported: true}
	}
	if err != nil {
		e.logger.Debug("operation failed", "task", t.Name(), "error", err)
		return v, e.out.Fail(err)
	}
	return v, nil
}

// optionalString maps an empty flag value to no value.
func optionalString(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) || value == "" {
		return nil
	}
	return &value
}
