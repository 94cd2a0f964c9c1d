package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/questionbank/questionbank/internal/rbac"
	"github.com/questionbank/questionbank/internal/shared"
	"github.com/questionbank/questionbank/jobs"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	SearchUsers(ctx context.Context, fragment string) ([]User, error)
	FindUserByID(ctx context.Context, id int64) (User, error)
	MissingRoleIDs(ctx context.Context, ids []int64) ([]int64, error)
	SetUserRoles(ctx context.Context, id int64, roleIDs []int64) error
	SetUserActive(ctx context.Context, id int64, active bool) error
}

// AuditSink receives account administration events.
type AuditSink interface {
	EnqueueAuthAudit(ctx context.Context, payload jobs.AuthAuditPayload) error
}

// Service handles user administration.
type Service struct {
	repo   RepositoryPort
	audit  AuditSink
	logger *slog.Logger
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, audit AuditSink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// SearchUsers matches users by name fragment.
func (s *Service) SearchUsers(ctx context.Context, fragment string) ([]User, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return s.repo.ListUsers(ctx)
	}
	return s.repo.SearchUsers(ctx, fragment)
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return User{}, notFound(err, id)
	}
	return u, nil
}

// SetRoles replaces the roles of a user. Unknown role ids fail the whole call.
func (s *Service) SetRoles(ctx context.Context, id int64, roleIDs []int64) (User, error) {
	if _, err := s.repo.FindUserByID(ctx, id); err != nil {
		return User{}, notFound(err, id)
	}
	roleIDs = dedupe(roleIDs)
	missing, err := s.repo.MissingRoleIDs(ctx, roleIDs)
	if err != nil {
		return User{}, err
	}
	if len(missing) > 0 {
		return User{}, fmt.Errorf("role not found with id: %d: %w", missing[0], shared.ErrNotFound)
	}
	if err := s.repo.SetUserRoles(ctx, id, roleIDs); err != nil {
		return User{}, err
	}
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	s.emit(ctx, "user.roles", u.Name, fmt.Sprintf("%d roles", len(roleIDs)))
	return u, nil
}

// SetActive enables or disables an account. Administrators cannot disable themselves.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (User, error) {
	u, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return User{}, notFound(err, id)
	}
	if p := rbac.PrincipalFromContext(ctx); p != nil && !active && p.UserID == id {
		return User{}, fmt.Errorf("%w: cannot deactivate your own account", shared.ErrValidation)
	}
	if err := s.repo.SetUserActive(ctx, id, active); err != nil {
		return User{}, notFound(err, id)
	}
	u.IsActive = active
	reason := "disabled"
	if active {
		reason = "enabled"
	}
	s.emit(ctx, "user.active", u.Name, reason)
	return u, nil
}

func (s *Service) emit(ctx context.Context, action, subject, reason string) {
	if s.audit == nil {
		return
	}
	actor := ""
	if p := rbac.PrincipalFromContext(ctx); p != nil {
		actor = p.Name
	}
	err := s.audit.EnqueueAuthAudit(ctx, jobs.AuthAuditPayload{
		Action:  action,
		Actor:   actor,
		Subject: subject,
		Success: true,
		Reason:  reason,
		At:      time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("enqueue user audit", slog.String("action", action), slog.Any("error", err))
	}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func notFound(err error, id int64) error {
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("user not found with id: %d: %w", id, shared.ErrNotFound)
	}
	return err
}
