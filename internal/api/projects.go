package api

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/store"
)

// ProjectsHandler handles project and motor specification endpoints.
type ProjectsHandler struct {
	DB *sqlx.DB
}

type projectResponse struct {
	*model.Project
	Motors []model.Motor `json:"motors"`
}

// List handles GET /api/projects.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projects, err := store.ListProjects(r.Context(), h.DB, model.ProjectFilter{
		Q:      q.Get("q"),
		Status: q.Get("status"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, projects)
}

// Create handles POST /api/projects.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.ProjectInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	project, err := store.CreateProject(r.Context(), h.DB, req, GetClaims(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditProject,
		Action:       "project_created",
		ResourceType: "project",
		ResourceID:   project.ID,
		Details:      map[string]string{"project_number": project.ProjectNumber},
	})
	jsonResponse(w, http.StatusCreated, project)
}

// Get handles GET /api/projects/{id}. The response includes the motors.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, err := store.GetProject(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if project == nil {
		writeError(w, r, model.NotFound("project"))
		return
	}

	motors, err := store.ListMotors(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, projectResponse{Project: project, Motors: motors})
}

// Update handles PUT /api/projects/{id}.
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.ProjectInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	project, err := store.UpdateProject(r.Context(), h.DB, r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditProject,
		Action:       "project_updated",
		ResourceType: "project",
		ResourceID:   project.ID,
		Details:      map[string]string{"project_number": project.ProjectNumber, "status": project.Status},
	})
	jsonResponse(w, http.StatusOK, project)
}

// Delete handles DELETE /api/projects/{id}.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := db.RunInTx(r.Context(), h.DB, func(tx *sqlx.Tx) error {
		return store.DeleteProject(r.Context(), tx, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit(r, h.DB, store.AuditEntry{
		Category:     model.AuditProject,
		Action:       "project_deleted",
		ResourceType: "project",
		ResourceID:   id,
		Level:        model.AuditWarning,
	})
	jsonResponse(w, http.StatusOK, map[string]string{"message": "project deleted"})
}

// ListMotors handles GET /api/projects/{id}/motors.
func (h *ProjectsHandler) ListMotors(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, err := store.GetProject(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if project == nil {
		writeError(w, r, model.NotFound("project"))
		return
	}

	motors, err := store.ListMotors(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, motors)
}

// CreateMotor handles POST /api/projects/{id}/motors.
func (h *ProjectsHandler) CreateMotor(w http.ResponseWriter, r *http.Request) {
	var req model.MotorInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	motor, err := store.CreateMotor(r.Context(), h.DB, r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, motor)
}

// UpdateMotor handles PUT /api/projects/{id}/motors/{motorId}.
func (h *ProjectsHandler) UpdateMotor(w http.ResponseWriter, r *http.Request) {
	var req model.MotorInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	motor, err := store.UpdateMotor(r.Context(), h.DB, r.PathValue("id"), r.PathValue("motorId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, motor)
}

// DeleteMotor handles DELETE /api/projects/{id}/motors/{motorId}.
func (h *ProjectsHandler) DeleteMotor(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteMotor(r.Context(), h.DB, r.PathValue("id"), r.PathValue("motorId")); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "motor deleted"})
}
