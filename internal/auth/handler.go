package auth

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/questionbank/questionbank/internal/platform/httpx"
	"github.com/questionbank/questionbank/internal/rbac"
)

// SignupConfirmation is the body returned after a successful registration.
const SignupConfirmation = "User registered successfully."

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	loginLimiter func(http.Handler) http.Handler
	validator    *validator.Validate
}

// NewHandler constructs a Handler instance. loginLimiter may be nil.
func NewHandler(logger *slog.Logger, service *Service, loginLimiter func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		loginLimiter: loginLimiter,
		validator:    httpx.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h.loginLimiter != nil {
		r.With(h.loginLimiter).Post("/login", h.handleLogin)
	} else {
		r.Post("/login", h.handleLogin)
	}
	r.Post("/signup", h.handleSignup)
	r.Post("/auth/register", h.handleSignup)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	JWT       string `json:"jwt"`
	TokenType string `json:"tokenType"`
	ExpiresIn int64  `json:"expiresIn"`
}

type roleRef struct {
	ID   int64  `json:"id" validate:"required,gt=0"`
	Name string `json:"name,omitempty"`
}

type signupRequest struct {
	Name     string    `json:"name" validate:"required,min=3,max=50"`
	Password string    `json:"password" validate:"required,min=6,maxbytes=72"`
	Email    string    `json:"email" validate:"omitempty,email,max=100"`
	FullName string    `json:"fullName" validate:"max=100"`
	IsActive *bool     `json:"isActive"`
	Roles    []roleRef `json:"roles" validate:"dive"`
}

type meResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
	Authorities []string `json:"authorities"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, r, err)
		return
	}
	res, err := h.service.Login(r.Context(), LoginInput{
		Name:      req.Name,
		Password:  req.Password,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		RequestID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		JWT:       res.Token,
		TokenType: res.TokenType,
		ExpiresIn: res.ExpiresIn.Milliseconds(),
	})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := rbac.Require(r.Context(), rbac.RoleAdmin); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	var req signupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, r, err)
		return
	}
	roleIDs := make([]int64, 0, len(req.Roles))
	for _, role := range req.Roles {
		roleIDs = append(roleIDs, role.ID)
	}
	user, err := h.service.Register(r.Context(), Registration{
		Name:     req.Name,
		Password: req.Password,
		Email:    req.Email,
		FullName: req.FullName,
		IsActive: req.IsActive,
		RoleIDs:  roleIDs,
	})
	if err != nil {
		h.fail(w, r, "signup", err)
		return
	}
	if h.logger != nil {
		h.logger.Info("user registered", slog.String("user", user.Name), slog.Int("roles", len(user.Roles)))
	}
	httpx.Text(w, http.StatusOK, SignupConfirmation)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, r, rbac.Require(r.Context()))
		return
	}
	roles := principal.Roles()
	if roles == nil {
		roles = []string{}
	}
	authorities := principal.Authorities
	if authorities == nil {
		authorities = []string{}
	}
	httpx.JSON(w, http.StatusOK, meResponse{
		ID:          principal.UserID,
		Name:        principal.Name,
		Roles:       roles,
		Authorities: authorities,
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	env := httpx.EnvelopeFor(err)
	if env.Status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.WriteEnvelope(w, r, env)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
