package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthAudit records a single authentication event.
	TaskAuthAudit = "auth:audit"
	// TaskAuditPrune removes audit rows older than the retention window.
	TaskAuditPrune = "audit:prune"
)

// AuthAuditPayload describes one login, signup or account administration event.
type AuthAuditPayload struct {
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Subject   string    `json:"subject"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	At        time.Time `json:"at"`
}

// AuditPrunePayload carries the retention window for a prune run.
type AuditPrunePayload struct {
	RetentionDays int `json:"retentionDays"`
}

// NewAuthAuditTask constructs an Asynq task.
func NewAuthAuditTask(payload AuthAuditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthAudit, data, asynq.MaxRetry(3)), nil
}

// NewAuditPruneTask constructs the scheduled prune task.
func NewAuditPruneTask(retention time.Duration) (*asynq.Task, error) {
	days := int(retention.Hours() / 24)
	if days <= 0 {
		days = 90
	}
	data, err := json.Marshal(AuditPrunePayload{RetentionDays: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}
