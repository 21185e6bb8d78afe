// Package cli contains the Cobra commands of queuectl.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/joshu-sajeev/jobq/internal/queue"
	"github.com/spf13/cobra"
)

// Env opens the backends lazily so commands that do not need Redis or
// Postgres never connect to them.
type Env struct {
	OpenRegistry func(ctx context.Context) (*queue.Registry, error)
	Migrate      func(ctx context.Context) error
}

// NewRoot constructs the queuectl root command.
func NewRoot(env Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "queuectl",
		Short:         "Inspect and operate jobq queues",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newEnqueueCommand(env),
		newDrainCommand(env),
		newStatsCommand(env),
		newMigrateCommand(env),
	)
	return root
}

func withRegistry(cmd *cobra.Command, env Env, fn func(context.Context, *queue.Registry) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reg, err := env.OpenRegistry(ctx)
	if err != nil {
		return err
	}
	defer reg.Close()

	return fn(ctx, reg)
}

func newEnqueueCommand(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue <queue> <json-payload>",
		Short: "Append a job to a queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxAttempts, _ := cmd.Flags().GetInt("max-attempts")
			delay, _ := cmd.Flags().GetDuration("delay")

			return withRegistry(cmd, env, func(ctx context.Context, reg *queue.Registry) error {
				q, err := reg.Get(args[0])
				if err != nil {
					return err
				}

				var opts []queue.EnqueueOption
				if maxAttempts > 0 {
					opts = append(opts, queue.WithMaxAttempts(maxAttempts))
				}
				if delay != 0 {
					opts = append(opts, queue.WithDelay(delay))
				}

				id, err := q.Enqueue(ctx, json.RawMessage(args[1]), opts...)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().Int("max-attempts", 0, "attempt budget (0 uses JOB_MAX_ATTEMPTS)")
	cmd.Flags().Duration("delay", 0, "schedule the job after this delay")
	return cmd
}

func newDrainCommand(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "drain <queue>",
		Short: "Remove every pending and delayed job of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, env, func(ctx context.Context, reg *queue.Registry) error {
				q, err := reg.Get(args[0])
				if err != nil {
					return err
				}
				n, err := q.Drain(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "drained %d job(s) from %s\n", n, q.Name())
				return nil
			})
		},
	}
}

func newStatsCommand(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [queue...]",
		Short: "Show job counts; every known queue when none is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(cmd, env, func(ctx context.Context, reg *queue.Registry) error {
				names := args
				if len(names) == 0 {
					var err error
					if names, err = reg.Queues(ctx); err != nil {
						return err
					}
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "QUEUE\tPENDING\tDELAYED\tIN-FLIGHT\tDEAD")
				for _, name := range names {
					q, err := reg.Get(name)
					if err != nil {
						return err
					}
					c, err := q.Counts(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", name, c.Pending, c.Delayed, c.InFlight, c.Dead)
				}
				return tw.Flush()
			})
		},
	}
}

func newMigrateCommand(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the failure archive migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			if err := env.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().Duration("timeout", time.Minute, "give up after this long")
	return cmd
}
