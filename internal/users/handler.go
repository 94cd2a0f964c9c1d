package users

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/questionbank/questionbank/internal/platform/httpx"
	"github.com/questionbank/questionbank/internal/rbac"
	"github.com/questionbank/questionbank/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validator: httpx.NewValidator()}
}

// MountRoutes registers user routes. Accounts are created through signup
// and are never deleted.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Get("/search", h.searchUsers)
	r.Get("/{id}", h.getUser)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleAdmin))
		r.Put("/{id}/roles", h.setRoles)
		r.Put("/{id}/active", h.setActive)
	})
}

type rolesRequest struct {
	RoleIDs []int64 `json:"roleIds" validate:"dive,gt=0"`
}

type activeRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, "list users", err)
		return
	}
	writeList(w, list)
}

func (h *Handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.SearchUsers(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.fail(w, r, "search users", err)
		return
	}
	writeList(w, list)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) setRoles(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req rolesRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.service.SetRoles(r.Context(), id, req.RoleIDs)
	if err != nil {
		h.fail(w, r, "set user roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.service.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		h.fail(w, r, "set user active", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.ValidationFailed(w, r, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.ValidationFailed(w, r, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	env := httpx.EnvelopeFor(err)
	if env.Status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.WriteEnvelope(w, r, env)
}

func writeList(w http.ResponseWriter, list []User) {
	if list == nil {
		list = []User{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, r, fmt.Errorf("%w: invalid id", shared.ErrValidation))
		return 0, false
	}
	return id, true
}
