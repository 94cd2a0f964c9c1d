package roles

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

// Handler manages role management endpoints.
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

// MountRoutes registers role routes. Reads follow the path policy; every
// mutation additionally requires ADMIN.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Get("/search", h.searchRoles)
	r.Get("/{id}", h.getRole)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleAdmin))
		r.Post("/", h.createRole)
		r.Put("/{id}", h.updateRole)
		r.Delete("/{id}", h.deleteRole)
		r.Put("/{id}/permissions", h.setPermissions)
	})
}

type roleRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"max=255"`
}

type permissionsRequest struct {
	PermissionIDs []int64 `json:"permissionIds" validate:"dive,gt=0"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, r, "list roles", err)
		return
	}
	h.writeList(w, list)
}

func (h *Handler) searchRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.SearchRoles(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.fail(w, r, "search roles", err)
		return
	}
	h.writeList(w, list)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), RoleInput{Name: req.Name, Description: req.Description})
	if err != nil {
		h.fail(w, r, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, RoleInput{Name: req.Name, Description: req.Description})
	if err != nil {
		h.fail(w, r, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.fail(w, r, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req permissionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.SetPermissions(r.Context(), id, req.PermissionIDs)
	if err != nil {
		h.fail(w, r, "set role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
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

func (h *Handler) writeList(w http.ResponseWriter, list []Role) {
	if list == nil {
		list = []Role{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	env := httpx.EnvelopeFor(err)
	if env.Status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.WriteEnvelope(w, r, env)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, r, fmt.Errorf("%w: invalid id", shared.ErrValidation))
		return 0, false
	}
	return id, true
}
