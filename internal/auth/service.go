package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/questionbank/questionbank/internal/rbac"
	"github.com/questionbank/questionbank/internal/shared"
	"github.com/questionbank/questionbank/jobs"
)

// AuditSink receives authentication events for the audit trail.
type AuditSink interface {
	EnqueueAuthAudit(ctx context.Context, payload jobs.AuthAuditPayload) error
}

// ServiceConfig bundles the optional collaborators of Service.
type ServiceConfig struct {
	Throttle *Throttle
	Audit    AuditSink
	Logger   *slog.Logger
	Metrics  rbac.Recorder
	Clock    func() time.Time
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	hasher   *Hasher
	codec    *TokenCodec
	throttle *Throttle
	audit    AuditSink
	logger   *slog.Logger
	metrics  rbac.Recorder
	now      func() time.Time

	decoyOnce sync.Once
	decoy     string
}

// NewService constructs a new Service.
func NewService(repo Repository, hasher *Hasher, codec *TokenCodec, cfg ServiceConfig) *Service {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		hasher:   hasher,
		codec:    codec,
		throttle: cfg.Throttle,
		audit:    cfg.Audit,
		logger:   logger,
		metrics:  cfg.Metrics,
		now:      now,
	}
}

// LoginInput carries credentials and request metadata for Login.
type LoginInput struct {
	Name      string
	Password  string
	IP        string
	UserAgent string
	RequestID string
}

// LoginResult is the issued bearer token.
type LoginResult struct {
	Token     string
	TokenType string
	ExpiresIn time.Duration
	ExpiresAt time.Time
}

// Registration describes a new account.
type Registration struct {
	Name     string
	Password string
	Email    string
	FullName string
	IsActive *bool
	RoleIDs  []int64
}

// Login verifies credentials and issues a token for the user.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	name := NormalizeName(in.Name)
	allowed, err := s.throttle.Attempt(ctx, name)
	if err != nil {
		s.logger.Warn("login throttle unavailable", slog.Any("error", err))
	}
	if !allowed {
		s.finishLogin(ctx, in, name, "locked")
		return nil, shared.ErrTooManyAttempts
	}

	user, err := s.repo.FindUserByName(ctx, name)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("auth: login lookup: %w", err)
	}
	if user == nil {
		s.hasher.Verify(in.Password, s.decoyHash())
		return nil, s.failLogin(ctx, in, name, "unknown_user")
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, s.failLogin(ctx, in, name, "bad_password")
	}
	if !user.IsActive {
		return nil, s.failLogin(ctx, in, name, "inactive")
	}

	token, expiresAt, err := s.codec.Issue(user.Name, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.throttle.Reset(ctx, name); err != nil {
		s.logger.Warn("login throttle reset", slog.Any("error", err))
	}
	s.finishLogin(ctx, in, user.Name, "success")
	return &LoginResult{
		Token:     token,
		TokenType: TokenType,
		ExpiresIn: s.codec.TTL(),
		ExpiresAt: expiresAt,
	}, nil
}

// Register creates an account with the given roles.
func (s *Service) Register(ctx context.Context, reg Registration) (*User, error) {
	name := NormalizeName(reg.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("auth: check user name: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("user already exists with name: %s: %w", name, shared.ErrDuplicate)
	}

	roleIDs := make([]int64, 0, len(reg.RoleIDs))
	seen := make(map[int64]struct{}, len(reg.RoleIDs))
	for _, id := range reg.RoleIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.repo.FindRoleByID(ctx, id); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, fmt.Errorf("role not found with id: %d: %w", id, shared.ErrNotFound)
			}
			return nil, fmt.Errorf("auth: load role %d: %w", id, err)
		}
		roleIDs = append(roleIDs, id)
	}

	digest, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, err
	}
	active := true
	if reg.IsActive != nil {
		active = *reg.IsActive
	}
	user, err := s.repo.CreateUser(ctx, NewUser{
		Name:         name,
		PasswordHash: digest,
		Email:        reg.Email,
		FullName:     reg.FullName,
		IsActive:     active,
		RoleIDs:      roleIDs,
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return nil, fmt.Errorf("user already exists with name: %s: %w", name, shared.ErrDuplicate)
		}
		return nil, fmt.Errorf("auth: create user: %w", err)
	}

	actor := ""
	if p := rbac.PrincipalFromContext(ctx); p != nil {
		actor = p.Name
	}
	s.emit(ctx, jobs.AuthAuditPayload{Action: "auth.signup", Actor: actor, Subject: user.Name, Success: true, At: s.now().UTC()})
	s.record("signup", "success")
	return user, nil
}

func (s *Service) failLogin(ctx context.Context, in LoginInput, name, reason string) error {
	s.finishLogin(ctx, in, name, reason)
	return shared.ErrInvalidCredentials
}

func (s *Service) finishLogin(ctx context.Context, in LoginInput, name, reason string) {
	success := reason == "success"
	payload := jobs.AuthAuditPayload{
		Action:    "auth.login",
		Subject:   name,
		Success:   success,
		IP:        in.IP,
		UserAgent: in.UserAgent,
		RequestID: in.RequestID,
		At:        s.now().UTC(),
	}
	if !success {
		payload.Reason = reason
	}
	s.emit(ctx, payload)
	s.record("login", reason)
}

func (s *Service) emit(ctx context.Context, payload jobs.AuthAuditPayload) {
	if s.audit == nil || payload.Subject == "" {
		return
	}
	if err := s.audit.EnqueueAuthAudit(ctx, payload); err != nil {
		s.logger.Warn("enqueue auth audit", slog.String("action", payload.Action), slog.Any("error", err))
	}
}

func (s *Service) record(stage, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAuth(stage, outcome)
	}
}

// decoyHash keeps the cost of rejecting an unknown name close to a wrong password.
func (s *Service) decoyHash() string {
	s.decoyOnce.Do(func() {
		digest, err := s.hasher.Hash("decoy-password")
		if err == nil {
			s.decoy = digest
		}
	})
	return s.decoy
}
