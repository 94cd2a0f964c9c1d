package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/questionbank/questionbank/internal/jobs"
	"github.com/questionbank/questionbank/internal/shared"
)

// AuditStore persists and prunes audit rows.
type AuditStore interface {
	Record(ctx context.Context, log shared.AuditLog) error
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// AuthAuditJob writes authentication events into the audit trail.
type AuthAuditJob struct {
	Store   AuditStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuthAuditJob initialises the audit handlers.
func NewAuthAuditJob(store AuditStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuthAuditJob {
	return &AuthAuditJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle persists one AuthAuditPayload.
func (j *AuthAuditJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("auth audit: handler not configured")
	}
	var payload AuthAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("auth audit: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Action == "" || payload.Subject == "" {
		return fmt.Errorf("auth audit: incomplete payload: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskAuthAudit)
	defer func() {
		err = tracker.End(err)
	}()

	actor := payload.Actor
	if actor == "" {
		actor = payload.Subject
	}
	at := payload.At
	if at.IsZero() {
		at = j.clock()
	}
	meta := map[string]any{"success": payload.Success}
	if payload.Reason != "" {
		meta["reason"] = payload.Reason
	}
	if payload.IP != "" {
		meta["ip"] = payload.IP
	}
	if payload.UserAgent != "" {
		meta["user_agent"] = payload.UserAgent
	}
	if payload.RequestID != "" {
		meta["request_id"] = payload.RequestID
	}
	if err := j.Store.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   payload.Action,
		Entity:   "user",
		EntityID: payload.Subject,
		Meta:     meta,
		At:       at,
	}); err != nil {
		return fmt.Errorf("auth audit: record: %w", err)
	}
	return nil
}

// HandlePrune deletes audit rows older than the payload retention.
func (j *AuthAuditJob) HandlePrune(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("audit prune: handler not configured")
	}
	var payload AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("audit prune: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RetentionDays <= 0 {
		return fmt.Errorf("audit prune: retention must be positive: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskAuditPrune)
	defer func() {
		err = tracker.End(err)
	}()

	cutoff := j.clock().AddDate(0, 0, -payload.RetentionDays)
	removed, err := j.Store.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("audit prune: %w", err)
	}
	if j.Logger != nil {
		j.Logger.Info("audit rows pruned", slog.Int64("removed", removed), slog.Time("before", cutoff))
	}
	return nil
}
