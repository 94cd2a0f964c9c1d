package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/questionbank/questionbank/internal/auth"
	"github.com/questionbank/questionbank/internal/rbac"
	"github.com/questionbank/questionbank/internal/shared"
	"github.com/questionbank/questionbank/jobs"
	_ "github.com/questionbank/questionbank/testing"
)

type stubRepo struct {
	mu     sync.Mutex
	users  map[string]*auth.User
	roles  map[int64]rbac.Role
	nextID int64
	// foldCase makes name lookups case-insensitive while returning the stored name.
	foldCase bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users: map[string]*auth.User{},
		roles: map[int64]rbac.Role{
			1: {ID: 1, Name: "ADMIN", Permissions: []rbac.Permission{{ID: 1, Name: "USER_READ", Active: true}, {ID: 2, Name: "USER_WRITE", Active: true}}},
			2: {ID: 2, Name: "TEACHER", Permissions: []rbac.Permission{{ID: 3, Name: "QUESTION_WRITE", Active: true}, {ID: 4, Name: "QUESTION_DELETE", Active: false}}},
			3: {ID: 3, Name: "STUDENT", Permissions: []rbac.Permission{{ID: 5, Name: "QUESTION_READ", Active: true}}},
		},
		nextID: 100,
	}
}

func (s *stubRepo) key(name string) string {
	if s.foldCase {
		return strings.ToLower(name)
	}
	return name
}

func (s *stubRepo) addUser(t *testing.T, name, password string, active bool, roleIDs ...int64) *auth.User {
	t.Helper()
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u := &auth.User{ID: s.nextID, Name: name, PasswordHash: string(digest), IsActive: active}
	for _, id := range roleIDs {
		u.Roles = append(u.Roles, s.roles[id])
	}
	s.users[s.key(name)] = u
	return u
}

func (s *stubRepo) FindUserByName(ctx context.Context, name string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[s.key(name)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *stubRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[s.key(name)]
	return ok, nil
}

func (s *stubRepo) FindRoleByID(ctx context.Context, id int64) (rbac.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return rbac.Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, nu auth.NewUser) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[s.key(nu.Name)]; ok {
		return nil, shared.ErrDuplicate
	}
	s.nextID++
	u := &auth.User{ID: s.nextID, Name: nu.Name, PasswordHash: nu.PasswordHash, Email: nu.Email, FullName: nu.FullName, IsActive: nu.IsActive}
	for _, id := range nu.RoleIDs {
		u.Roles = append(u.Roles, s.roles[id])
	}
	s.users[s.key(nu.Name)] = u
	return u, nil
}

type auditSpy struct {
	mu     sync.Mutex
	events []jobs.AuthAuditPayload
}

func (a *auditSpy) EnqueueAuthAudit(ctx context.Context, payload jobs.AuthAuditPayload) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, payload)
	return nil
}

func (a *auditSpy) last() jobs.AuthAuditPayload {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return jobs.AuthAuditPayload{}
	}
	return a.events[len(a.events)-1]
}

type recorderSpy struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *recorderSpy) RecordAuth(stage, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[stage+"/"+outcome]++
}

func (r *recorderSpy) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}
