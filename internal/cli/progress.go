package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bebetter/internal/app"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show level, xp, coins and sync state",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, f *OutputFormatter) error {
				st, err := a.Status(ctx)
				if err != nil {
					return failApp(f, err)
				}
				return f.Success(st, renderStatus(st))
			})
		},
	}
}

// NewTasksCommand creates the tasks command.
func NewTasksCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List catalog tasks and the current pool",
		Long: `List the task catalog. [ ] marks a pending task in your pool,
[x] a completed one, and - a task not yet added.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, f *OutputFormatter) error {
				st, err := a.Status(ctx)
				if err != nil {
					return failApp(f, err)
				}
				return f.Success(st.Tasks, renderTasks(st.Tasks))
			})
		},
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <task-id>",
		Short: "Add a catalog task to your pool",
		Long: `Add a catalog task to your pool as pending. The pool holds at most
five tasks, and a completed task cannot be added again.

Example:
  bebetter add task-exercise`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, f *OutputFormatter) error {
				if err := a.AddTask(ctx, id); err != nil {
					return failApp(f, err)
				}
				return f.Success(map[string]any{"id": id, "completed": false},
					fmt.Sprintf("Added %s", id))
			})
		},
	}
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <task-id>",
		Short: "Mark a task completed or pending",
		Long: `Flip a task between pending and completed. Completing grants the
task's xp and coins; marking it pending again keeps them.

Example:
  bebetter toggle task-journal`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, f *OutputFormatter) error {
				before, err := a.Status(ctx)
				if err != nil {
					return failApp(f, err)
				}
				completed, err := a.Toggle(ctx, id)
				if err != nil {
					return failApp(f, err)
				}
				after, err := a.Status(ctx)
				if err != nil {
					return failApp(f, err)
				}

				data := map[string]any{
					"id":        id,
					"completed": completed,
					"xp":        after.XP,
					"coins":     after.Coins,
					"level":     after.Level,
				}
				if !completed {
					return f.Success(data, fmt.Sprintf("%s marked pending", id))
				}
				text := goodStyle.Render(fmt.Sprintf("Completed %s", id)) +
					mutedStyle.Render(fmt.Sprintf(" +%dxp +%dc", after.XP-before.XP, after.Coins-before.Coins))
				if after.Level > before.Level {
					text += " " + goldStyle.Render(fmt.Sprintf("LEVEL UP! Level %d", after.Level))
				}
				return f.Success(data, text)
			})
		},
	}
}

// BuyOptions holds flags for the buy command.
type BuyOptions struct {
	*RootOptions
	Price int
}

// NewBuyCommand creates the buy command.
func NewBuyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "buy <item-id>",
		Short: "Spend coins on an item",
		Long: `Buy one item for --price coins. Nothing changes when the balance is
too low.

Example:
  bebetter buy hat --price 20`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			item := args[0]
			return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app.App, f *OutputFormatter) error {
				if opts.Price < 0 {
					return f.Fail(ExitCommandError, ErrCodeInvalidInput, "--price must not be negative", nil)
				}
				owned, err := a.Buy(ctx, item, opts.Price)
				if err != nil {
					return failApp(f, err)
				}
				st, err := a.Status(ctx)
				if err != nil {
					return failApp(f, err)
				}
				return f.Success(map[string]any{"item": item, "owned": owned, "coins": st.Coins},
					fmt.Sprintf("Bought %s (own %d), %s coins left", item, owned, goldStyle.Render(fmt.Sprint(st.Coins))))
			})
		},
	}

	cmd.Flags().IntVar(&opts.Price, "price", 0, "price in coins (required)")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull the server totals and flush pending changes",
		Long: `Fetch xp, coins and level from the server and apply them locally.
Server values win. Exits 1 if any request failed; local state is kept.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, f *OutputFormatter) error {
				if err := a.Sync(ctx); err != nil {
					return failApp(f, err)
				}
				st, err := a.Status(ctx)
				if err != nil {
					return failApp(f, err)
				}
				return f.Success(st, renderStatus(st))
			})
		},
	}
}
