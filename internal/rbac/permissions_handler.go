package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/questionbank/questionbank/internal/platform/httpx"
	"github.com/questionbank/questionbank/internal/shared"
)

// PermissionsHandler manages permission endpoints.
type PermissionsHandler struct {
	logger    *slog.Logger
	service   *Service
	rbac      Middleware
	validator *validator.Validate
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, rbac: rbac, validator: httpx.NewValidator()}
}

// MountRoutes registers permission routes. Mutations are reserved to ADMIN
// on top of the path policy.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(RoleAdmin))
		r.Post("/", h.createPermission)
		r.Put("/{id}", h.updatePermission)
		r.Delete("/{id}", h.deletePermission)
	})
}

type permissionRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Value *bool  `json:"value"`
}

type permissionActiveRequest struct {
	Value *bool `json:"value" validate:"required"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, r, "list permissions", err)
		return
	}
	if perms == nil {
		perms = []Permission{}
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *PermissionsHandler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, r, err)
		return
	}
	active := true
	if req.Value != nil {
		active = *req.Value
	}
	perm, err := h.service.CreatePermission(r.Context(), req.Name, active)
	if err != nil {
		h.fail(w, r, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *PermissionsHandler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req permissionActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ValidationFailed(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationFailed(w, r, err)
		return
	}
	perm, err := h.service.SetPermissionActive(r.Context(), id, *req.Value)
	if err != nil {
		h.fail(w, r, "update permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *PermissionsHandler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePermission(r.Context(), id); err != nil {
		h.fail(w, r, "delete permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PermissionsHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
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
