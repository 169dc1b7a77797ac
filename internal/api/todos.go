package api

import (
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/store"
)

// TodosHandler handles the caller's personal todo list.
type TodosHandler struct {
	DB *sqlx.DB
}

// List handles GET /api/todos.
func (h *TodosHandler) List(w http.ResponseWriter, r *http.Request) {
	todos, err := store.ListTodos(r.Context(), h.DB, GetClaims(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, todos)
}

// Create handles POST /api/todos.
func (h *TodosHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.TodoInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	todo, err := store.CreateTodo(r.Context(), h.DB, GetClaims(r.Context()).UserID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, todo)
}

// Update handles PUT /api/todos/{id}. Other users' todos are not found.
func (h *TodosHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.TodoUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	todo, err := store.UpdateTodo(r.Context(), h.DB, GetClaims(r.Context()).UserID, r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, todo)
}

// Delete handles DELETE /api/todos/{id}.
func (h *TodosHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteTodo(r.Context(), h.DB, GetClaims(r.Context()).UserID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "todo deleted"})
}
