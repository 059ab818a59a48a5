package httpx

import (
	"net/http"

	"github.com/target/projectdesk/internal/domain/model"
	"github.com/target/projectdesk/internal/service"
)

const (
	defaultProjectPageSize = 50
	maxProjectPageSize     = 1000
)

// ProjectHandlers provides owner-scoped CRUD over projects.
type ProjectHandlers struct {
	Svc    *service.ProjectService
	Errors ErrorWriter
}

// Create handles POST /api/projects.
func (h *ProjectHandlers) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrReject(w, r, h.Errors)
	if !ok {
		return
	}
	var req model.CreateProjectRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	p, err := h.Svc.Create(r.Context(), id, &req)
	if err != nil {
		h.Errors.Write(w, r, err, "create_failed")
		return
	}
	WriteJSON(w, http.StatusCreated, p)
}

// List handles GET /api/projects?limit=&offset=.
func (h *ProjectHandlers) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrReject(w, r, h.Errors)
	if !ok {
		return
	}
	limit, offset := pageBounds{Default: defaultProjectPageSize, Max: maxProjectPageSize}.parse(r)

	projects, err := h.Svc.List(r.Context(), id, limit, offset)
	if err != nil {
		h.Errors.Write(w, r, err, "list_failed")
		return
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"projects": projects, "limit": limit, "offset": offset})
}

// GetByID handles GET /api/projects/{id}.
func (h *ProjectHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrReject(w, r, h.Errors)
	if !ok {
		return
	}
	p, err := h.Svc.Get(r.Context(), id, r.PathValue("id"))
	if err != nil {
		h.Errors.Write(w, r, err, "get_failed")
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// Update handles PUT /api/projects/{id}.
func (h *ProjectHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrReject(w, r, h.Errors)
	if !ok {
		return
	}
	var req model.UpdateProjectRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	p, err := h.Svc.Update(r.Context(), id, service.UpdateProjectInput{ProjectID: r.PathValue("id"), Request: req})
	if err != nil {
		h.Errors.Write(w, r, err, "update_failed")
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /api/projects/{id}.
func (h *ProjectHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := identityOrReject(w, r, h.Errors)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), id, r.PathValue("id")); err != nil {
		h.Errors.Write(w, r, err, "delete_failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
