package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questionbank/questionbank/internal/auth"
	"github.com/questionbank/questionbank/internal/rbac"
)

func newAuthRouter(t *testing.T) (http.Handler, *serviceFixture) {
	t.Helper()
	f := newServiceFixture(t, nil)
	filter := auth.NewFilter(f.codec, auth.NewResolver(f.repo), nil, nil)
	h := auth.NewHandler(nil, f.service, nil)
	r := chi.NewRouter()
	r.Use(filter.Middleware)
	r.Route("/api", h.MountRoutes)
	return r, f
}

func doJSON(t *testing.T, h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, name string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/login", "", `{"name":"`+name+`","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["jwt"].(string)
}

func TestLoginEndpoint(t *testing.T) {
	h, f := newAuthRouter(t)
	f.repo.addUser(t, "admin", "password123", true, 1)

	rec := doJSON(t, h, http.MethodPost, "/api/login", "", `{"name":"admin","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		JWT       string `json:"jwt"`
		TokenType string `json:"tokenType"`
		ExpiresIn int64  `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.JWT)
	assert.Equal(t, "Bearer", body.TokenType)
	assert.Equal(t, int64(86400000), body.ExpiresIn)

	rec = doJSON(t, h, http.MethodPost, "/api/login", "", `{"name":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Authentication failed", env.Message)
	assert.Equal(t, "Invalid username or password", env.Details)

	rec = doJSON(t, h, http.MethodPost, "/api/login", "", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupRequiresAdmin(t *testing.T) {
	h, f := newAuthRouter(t)
	f.repo.addUser(t, "admin", "password123", true, 1)
	f.repo.addUser(t, "teacher1", "password123", true, 2)
	payload := `{"name":"student9","password":"password123","email":"s9@example.com","roles":[{"id":3}]}`

	rec := doJSON(t, h, http.MethodPost, "/api/signup", "", payload)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/signup", login(t, h, "teacher1"), payload)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	adminToken := login(t, h, "admin")
	rec = doJSON(t, h, http.MethodPost, "/api/signup", adminToken, payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, auth.SignupConfirmation, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/auth/register", adminToken, payload)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "user already exists with name: student9", decodeEnvelope(t, rec).Message)
}

func TestSignupValidation(t *testing.T) {
	h, f := newAuthRouter(t)
	f.repo.addUser(t, "admin", "password123", true, 1)
	token := login(t, h, "admin")

	rec := doJSON(t, h, http.MethodPost, "/api/signup", token, `{"name":"ab","password":"123"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	fields := map[string]string{}
	for _, fe := range env.FieldErrors {
		fields[fe.Field] = fe.Code
	}
	assert.Equal(t, "min", fields["name"])
	assert.Equal(t, "min", fields["password"])

	rec = doJSON(t, h, http.MethodPost, "/api/signup", token, `{"name":"newbie","password":"password123","roles":[{"id":99}]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignupRejectsPasswordOverBcryptLimit(t *testing.T) {
	h, f := newAuthRouter(t)
	f.repo.addUser(t, "admin", "password123", true, 1)
	token := login(t, h, "admin")

	// 60 runes, 120 bytes.
	long := strings.Repeat("é", 60)
	rec := doJSON(t, h, http.MethodPost, "/api/signup", token, `{"name":"newbie","password":"`+long+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Len(t, env.FieldErrors, 1)
	assert.Equal(t, "password", env.FieldErrors[0].Field)
	assert.Equal(t, "maxbytes", env.FieldErrors[0].Code)
	assert.Equal(t, "password must not exceed 72 bytes", env.FieldErrors[0].Message)

	rec = doJSON(t, h, http.MethodPost, "/api/signup", token, `{"name":"newbie","password":"`+strings.Repeat("a", 72)+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMeEndpoint(t *testing.T) {
	h, f := newAuthRouter(t)
	f.repo.addUser(t, "student1", "password123", true, 3)

	rec := doJSON(t, h, http.MethodGet, "/api/me", login(t, h, "student1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Name        string   `json:"name"`
		Roles       []string `json:"roles"`
		Authorities []string `json:"authorities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "student1", body.Name)
	assert.Equal(t, []string{rbac.RoleStudent}, body.Roles)
	assert.Contains(t, body.Authorities, "QUESTION_READ")

	rec = doJSON(t, h, http.MethodGet, "/api/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
