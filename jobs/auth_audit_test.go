package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/questionbank/questionbank/internal/jobs"
	"github.com/questionbank/questionbank/internal/shared"
)

type memAuditStore struct {
	logs      []shared.AuditLog
	prunedAt  time.Time
	removed   int64
	recordErr error
}

func (m *memAuditStore) Record(ctx context.Context, log shared.AuditLog) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *memAuditStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	m.prunedAt = before
	return m.removed, nil
}

func newTestJob(store AuditStore) *AuthAuditJob {
	job := NewAuthAuditJob(store, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return job
}

func TestAuthAuditRecordsEvent(t *testing.T) {
	store := &memAuditStore{}
	job := newTestJob(store)
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	task, err := NewAuthAuditTask(AuthAuditPayload{
		Action:    "auth.login",
		Subject:   "teacher1",
		Success:   false,
		Reason:    "bad_password",
		IP:        "10.0.0.7",
		RequestID: "req-1",
		At:        at,
	})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, store.logs, 1)
	log := store.logs[0]
	assert.Equal(t, "teacher1", log.Actor)
	assert.Equal(t, "auth.login", log.Action)
	assert.Equal(t, "user", log.Entity)
	assert.Equal(t, "teacher1", log.EntityID)
	assert.True(t, log.At.Equal(at))
	assert.Equal(t, false, log.Meta["success"])
	assert.Equal(t, "bad_password", log.Meta["reason"])
	assert.Equal(t, "10.0.0.7", log.Meta["ip"])
	assert.NotContains(t, log.Meta, "user_agent")
}

func TestAuthAuditKeepsExplicitActor(t *testing.T) {
	store := &memAuditStore{}
	job := newTestJob(store)
	task, err := NewAuthAuditTask(AuthAuditPayload{Action: "auth.signup", Actor: "admin", Subject: "student9", Success: true})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, store.logs, 1)
	assert.Equal(t, "admin", store.logs[0].Actor)
	assert.True(t, store.logs[0].At.Equal(job.clock()))
}

func TestAuthAuditSkipsRetryOnBadPayload(t *testing.T) {
	job := newTestJob(&memAuditStore{})

	err := job.Handle(context.Background(), asynq.NewTask(TaskAuthAudit, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	data, _ := json.Marshal(AuthAuditPayload{Action: "auth.login"})
	err = job.Handle(context.Background(), asynq.NewTask(TaskAuthAudit, data))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAuthAuditPropagatesStoreError(t *testing.T) {
	boom := errors.New("db down")
	job := newTestJob(&memAuditStore{recordErr: boom})
	task, err := NewAuthAuditTask(AuthAuditPayload{Action: "auth.login", Subject: "admin", Success: true})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestAuditPruneUsesRetention(t *testing.T) {
	store := &memAuditStore{removed: 4}
	job := newTestJob(store)
	task, err := NewAuditPruneTask(30 * 24 * time.Hour)
	require.NoError(t, err)

	require.NoError(t, job.HandlePrune(context.Background(), task))
	assert.True(t, store.prunedAt.Equal(time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)))
}

func TestAuditPruneTaskDefaultsRetention(t *testing.T) {
	task, err := NewAuditPruneTask(0)
	require.NoError(t, err)
	var payload AuditPrunePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, 90, payload.RetentionDays)

	job := newTestJob(&memAuditStore{})
	data, _ := json.Marshal(AuditPrunePayload{})
	require.ErrorIs(t, job.HandlePrune(context.Background(), asynq.NewTask(TaskAuditPrune, data)), asynq.SkipRetry)
}
