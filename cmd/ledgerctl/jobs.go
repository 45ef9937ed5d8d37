package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledgercore/jobs"
)

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// jobQueue is what the jobs commands need from the queue.
type jobQueue interface {
	EnqueueDepreciation(ctx context.Context, payload jobs.DepreciationPayload) (*asynq.TaskInfo, error)
	EnqueueIntegrity(ctx context.Context, payload jobs.IntegrityPayload) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	Close() error
}

// jobsCLI wraps manual management helpers for Asynq jobs.
type jobsCLI struct {
	*jobs.Client
	inspector *asynq.Inspector
}

func newJobsCLI(opts asynq.RedisClientOpt) *jobsCLI {
	return &jobsCLI{Client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *jobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.Client != nil {
		if closeErr := c.Client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// InspectQueue reports the queue metrics for the default queue.
func (c *jobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

func newJobsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}
	cmd.AddCommand(newJobsTriggerCommand(e), newJobsStatsCommand(e))
	return cmd
}

func (e *env) openQueue() (jobQueue, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return e.queue(cfg)
}

func newJobsTriggerCommand(e *env) *cobra.Command {
	var (
		institution string
		asOf        string
	)
	cmd := &cobra.Command{
		Use:       "trigger <depreciation|integrity>",
		Short:     "Enqueue a job immediately",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"depreciation", "integrity"},
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := e.openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			var info *asynq.TaskInfo
			switch args[0] {
			case "depreciation":
				info, err = q.EnqueueDepreciation(cmd.Context(), jobs.DepreciationPayload{InstitutionID: institution, AsOf: asOf})
			case "integrity":
				info, err = q.EnqueueIntegrity(cmd.Context(), jobs.IntegrityPayload{InstitutionID: institution})
			default:
				return fmt.Errorf("unsupported job %s", args[0])
			}
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				return printf(cmd.OutOrStdout(), "%s already queued for this scope\n", args[0])
			}
			if err != nil {
				return err
			}
			return printf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		},
	}
	cmd.Flags().StringVar(&institution, "institution", "", "limit the job to one institution")
	cmd.Flags().StringVar(&asOf, "as-of", "", "depreciation date (YYYY-MM-DD), defaults to last month end")
	return cmd
}

func newJobsStatsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := e.openQueue()
			if err != nil {
				return err
			}
			defer q.Close()
			stats, err := q.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			return printf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
		},
	}
}
