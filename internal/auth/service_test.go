package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/questionbank/questionbank/internal/auth"
	"github.com/questionbank/questionbank/internal/rbac"
	"github.com/questionbank/questionbank/internal/shared"
)

type serviceFixture struct {
	repo    *stubRepo
	codec   *auth.TokenCodec
	hasher  *auth.Hasher
	audit   *auditSpy
	metrics *recorderSpy
	service *auth.Service
}

func newServiceFixture(t *testing.T, throttle *auth.Throttle) *serviceFixture {
	t.Helper()
	clock := &fixedClock{now: issuedAt}
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	f := &serviceFixture{
		repo:    newStubRepo(),
		codec:   newCodec(t, clock),
		hasher:  hasher,
		audit:   &auditSpy{},
		metrics: &recorderSpy{},
	}
	f.service = auth.NewService(f.repo, f.hasher, f.codec, auth.ServiceConfig{
		Throttle: throttle,
		Audit:    f.audit,
		Metrics:  f.metrics,
		Clock:    clock.Now,
	})
	return f
}

func TestLoginIssuesToken(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.repo.addUser(t, "teacher1", "password123", true, 2)

	res, err := f.service.Login(context.Background(), auth.LoginInput{Name: "teacher1", Password: "password123", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, 24*time.Hour, res.ExpiresIn)
	assert.Equal(t, int64(86400000), res.ExpiresIn.Milliseconds())

	name, err := f.codec.ParseSubject(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "teacher1", name)

	ev := f.audit.last()
	assert.Equal(t, "auth.login", ev.Action)
	assert.True(t, ev.Success)
	assert.Equal(t, "10.0.0.1", ev.IP)
	assert.Equal(t, 1, f.metrics.count("login/success"))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.repo.addUser(t, "student1", "password123", true, 3)
	f.repo.addUser(t, "dormant", "password123", false, 3)

	cases := map[string]auth.LoginInput{
		"wrong password": {Name: "student1", Password: "nope"},
		"unknown user":   {Name: "ghost", Password: "password123"},
		"inactive user":  {Name: "dormant", Password: "password123"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := f.service.Login(context.Background(), in)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
			assert.False(t, f.audit.last().Success)
		})
	}
	assert.Equal(t, 1, f.metrics.count("login/bad_password"))
	assert.Equal(t, 1, f.metrics.count("login/unknown_user"))
	assert.Equal(t, 1, f.metrics.count("login/inactive"))
}

func TestLoginThrottleLocksName(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newServiceFixture(t, auth.NewThrottle(client, 3, 15*time.Minute))
	f.repo.addUser(t, "student1", "password123", true, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.service.Login(ctx, auth.LoginInput{Name: "student1", Password: "wrong"})
		require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	}
	_, err := f.service.Login(ctx, auth.LoginInput{Name: "student1", Password: "password123"})
	assert.ErrorIs(t, err, shared.ErrTooManyAttempts)
	assert.Equal(t, "locked", f.audit.last().Reason)

	mr.FastForward(16 * time.Minute)
	res, err := f.service.Login(ctx, auth.LoginInput{Name: "student1", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestRegisterCreatesUser(t *testing.T) {
	f := newServiceFixture(t, nil)
	admin := &rbac.Principal{UserID: 1, Name: "admin", Authorities: []string{"ROLE_ADMIN"}}
	ctx := rbac.ContextWithPrincipal(context.Background(), admin)

	user, err := f.service.Register(ctx, auth.Registration{
		Name:     "  newteacher ",
		Password: "secret99",
		Email:    "t@example.com",
		RoleIDs:  []int64{2, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "newteacher", user.Name)
	assert.True(t, user.IsActive)
	require.Len(t, user.Roles, 1)
	assert.Equal(t, "TEACHER", user.Roles[0].Name)
	assert.True(t, f.hasher.Verify("secret99", user.PasswordHash))
	assert.NotEqual(t, "secret99", user.PasswordHash)

	ev := f.audit.last()
	assert.Equal(t, "auth.signup", ev.Action)
	assert.Equal(t, "admin", ev.Actor)
	assert.Equal(t, "newteacher", ev.Subject)
}

func TestRegisterRejectsDuplicateAndUnknownRole(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.repo.addUser(t, "teacher1", "password123", true, 2)
	ctx := context.Background()

	_, err := f.service.Register(ctx, auth.Registration{Name: "teacher1", Password: "password123"})
	assert.ErrorIs(t, err, shared.ErrDuplicate)
	assert.Contains(t, err.Error(), "user already exists with name: teacher1")

	_, err = f.service.Register(ctx, auth.Registration{Name: "fresh", Password: "password123", RoleIDs: []int64{42}})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	exists, _ := f.repo.ExistsByName(ctx, "fresh")
	assert.False(t, exists)
}

func TestRegisterFoldsCompatibilityForms(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.Register(ctx, auth.Registration{Name: "ｔｅａｃｈｅｒ", Password: "password123"})
	require.NoError(t, err)

	_, err = f.service.Register(ctx, auth.Registration{Name: "teacher", Password: "password123"})
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestRegisterHonoursInactiveFlag(t *testing.T) {
	f := newServiceFixture(t, nil)
	inactive := false
	user, err := f.service.Register(context.Background(), auth.Registration{Name: "parked", Password: "password123", IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, user.IsActive)
}
