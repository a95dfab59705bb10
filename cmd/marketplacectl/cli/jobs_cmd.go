package cli

import (
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/sourcing-hub/marketplace/jobs"
)

func newJobsCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "trigger <job>",
		Short:     "Enqueue a job now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskRefdataRefresh},
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.NewJobs(opts.RedisAddr)
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()
			info, err := q.Trigger(cmd.Context(), args[0])
			if errors.Is(err, asynq.ErrDuplicateTask) {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s already queued\n", args[0])
				return err
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.NewJobs(opts.RedisAddr)
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()
			stats, err := q.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			if opts.JSON {
				return opts.printJSON(cmd.OutOrStdout(), stats)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			return err
		},
	})
	return cmd
}
