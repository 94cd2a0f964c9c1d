package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/questionbank/questionbank/jobs"
)

// Enqueuer is the part of the Asynq client used by JobsCLI.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for background jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector *asynq.Inspector
	closers   []func() error
	retention time.Duration
}

// NewJobsCLI initialises the helpers against the Redis at redisAddr.
func NewJobsCLI(redisAddr string, retention time.Duration) *JobsCLI {
	opt := asynq.RedisClientOpt{Addr: redisAddr}
	client := asynq.NewClient(opt)
	inspector := asynq.NewInspector(opt)
	return &JobsCLI{
		client:    client,
		inspector: inspector,
		closers:   []func() error{inspector.Close, client.Close},
		retention: retention,
	}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	for _, closeFn := range c.closers {
		if closeErr := closeFn(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name with its default payload.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskAuditPrune:
		task, err = jobs.NewAuditPruneTask(c.retention)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the metrics of the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
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
