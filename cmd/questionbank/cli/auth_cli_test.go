package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/questionbank/questionbank/internal/auth"
	"github.com/questionbank/questionbank/jobs"
)

func testSettings() auth.Settings {
	return auth.Settings{
		Secret:     []byte("cli-test-secret-0123456789abcdef!"),
		Issuer:     "questionbank",
		TTL:        time.Hour,
		BcryptCost: bcrypt.MinCost,
	}
}

func TestHashPasswordCommandJSON(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := NewAuthOpsCLI(testSettings()).HashPasswordCommand(HashPasswordOptions{
		Password:   "password123",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, 0, code, stderr.String())

	var summary HashPasswordSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, bcrypt.MinCost, summary.Cost)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(summary.Hash), []byte("password123")))
}

func TestHashPasswordCommandReadsStdin(t *testing.T) {
	stdout := new(bytes.Buffer)
	code := NewAuthOpsCLI(testSettings()).HashPasswordCommand(HashPasswordOptions{
		Stdin:  strings.NewReader("s3cret\nignored\n"),
		Stdout: stdout,
		Stderr: new(bytes.Buffer),
	})
	require.Equal(t, 0, code)
	digest := strings.TrimSpace(stdout.String())
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(digest), []byte("s3cret")))
}

func TestHashPasswordCommandRejectsBadInput(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := NewAuthOpsCLI(testSettings()).HashPasswordCommand(HashPasswordOptions{
		Stdin:  strings.NewReader(""),
		Stdout: new(bytes.Buffer),
		Stderr: stderr,
	})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "required")

	stderr.Reset()
	code = NewAuthOpsCLI(testSettings()).HashPasswordCommand(HashPasswordOptions{
		Password: "x",
		Cost:     99,
		Stdout:   new(bytes.Buffer),
		Stderr:   stderr,
	})
	require.Equal(t, 1, code)
}

func TestIssueTokenCommand(t *testing.T) {
	settings := testSettings()
	ops := NewAuthOpsCLI(settings)
	now := time.Now().Truncate(time.Second)
	ops.clock = func() time.Time { return now }

	stdout := new(bytes.Buffer)
	code := ops.IssueTokenCommand(IssueTokenOptions{
		Name:       "  admin ",
		TTL:        10 * time.Minute,
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     new(bytes.Buffer),
	})
	require.Equal(t, 0, code)

	var summary IssueTokenSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, auth.TokenType, summary.TokenType)
	require.True(t, summary.ExpiresAt.Equal(now.Add(10*time.Minute)))

	codec, err := auth.NewTokenCodec(settings)
	require.NoError(t, err)
	name, err := codec.ParseSubject(summary.Token)
	require.NoError(t, err)
	require.Equal(t, "admin", name)
}

func TestIssueTokenCommandRequiresName(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := NewAuthOpsCLI(testSettings()).IssueTokenCommand(IssueTokenOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "--name")
}

func TestRunDispatch(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	env := Env{Settings: testSettings(), Stdout: stdout, Stderr: stderr}

	require.Equal(t, 0, Run(context.Background(), env, []string{"issue-token", "--name", "teacher1"}))
	require.Len(t, strings.Split(strings.TrimSpace(stdout.String()), "."), 3)

	require.Equal(t, 2, Run(context.Background(), env, []string{"bogus"}))
	require.Contains(t, stderr.String(), "usage")
	require.True(t, IsCommand("hash-password"))
	require.False(t, IsCommand("serve"))
}

func TestRunHashPasswordWithoutSecret(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	env := Env{Settings: auth.Settings{BcryptCost: bcrypt.MinCost}, Stdout: stdout, Stderr: stderr}

	code := Run(context.Background(), env, []string{"hash-password", "--password", "password123"})
	require.Equal(t, 0, code, stderr.String())
	digest := strings.TrimSpace(stdout.String())
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(digest), []byte("password123")))

	stderr.Reset()
	require.Equal(t, 1, Run(context.Background(), env, []string{"issue-token", "--name", "admin"}))
	require.Contains(t, stderr.String(), "signing secret")
}

type enqueueSpy struct {
	tasks []*asynq.Task
}

func (s *enqueueSpy) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func TestJobsTriggerPrune(t *testing.T) {
	spy := &enqueueSpy{}
	jc := &JobsCLI{client: spy, retention: 30 * 24 * time.Hour}

	info, err := jc.Trigger(context.Background(), jobs.TaskAuditPrune)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskAuditPrune, info.Type)
	require.Len(t, spy.tasks, 1)

	var payload jobs.AuditPrunePayload
	require.NoError(t, json.Unmarshal(spy.tasks[0].Payload(), &payload))
	require.Equal(t, 30, payload.RetentionDays)

	_, err = jc.Trigger(context.Background(), "nope")
	require.Error(t, err)
}
