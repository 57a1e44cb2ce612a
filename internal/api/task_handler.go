package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/task-api/internal/api/shared"
	"github.com/phrazzld/task-api/internal/domain"
	"github.com/phrazzld/task-api/internal/store"
)

// TaskHandler handles the owner-scoped task CRUD endpoints. Every operation
// resolves the owner from the authenticated user in the request context, so
// a task belonging to someone else is indistinguishable from a missing one.
type TaskHandler struct {
	taskStore store.TaskStore
	validator *validator.Validate
}

// NewTaskHandler creates a new TaskHandler with the given dependencies.
func NewTaskHandler(taskStore store.TaskStore) *TaskHandler {
	return &TaskHandler{
		taskStore: taskStore,
		validator: validator.New(),
	}
}

// Create handles POST /tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Please authenticate")
		return
	}

	var req CreateTaskRequest
	if err := DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	task, err := domain.NewTask(user.ID, req.Title, req.Description)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	if err := h.taskStore.Create(r.Context(), task); err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, task)
}

// List handles GET /tasks with optional completed, sortBy, limit and skip
// query parameters. sortBy takes the form "field:asc" or "field:desc".
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Please authenticate")
		return
	}

	opts, err := parseListOptions(r)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	tasks, err := h.taskStore.ListByOwner(r.Context(), user.ID, opts)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasks)
}

// Get handles GET /tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Please authenticate")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		// A malformed ID cannot name any task.
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}

	task, err := h.taskStore.GetByOwner(r.Context(), user.ID, id)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// taskPatchFields is the allow-list for PATCH /tasks/{id}.
var taskPatchFields = []string{"title", "description", "completed"}

// Patch handles PATCH /tasks/{id}. The whole patch is validated against the
// allow-list before the task is touched.
func (h *TaskHandler) Patch(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Please authenticate")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}

	patch, err := DecodePatch(r, taskPatchFields...)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	task, err := h.taskStore.GetByOwner(r.Context(), user.ID, id)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	if raw, ok := patch["title"]; ok {
		var title string
		if err := unmarshalField(raw, "title", &title); err != nil {
			respondWithMappedError(w, r, err)
			return
		}
		if err := task.SetTitle(title); err != nil {
			respondWithMappedError(w, r, err)
			return
		}
	}
	if raw, ok := patch["description"]; ok {
		if err := unmarshalField(raw, "description", &task.Description); err != nil {
			respondWithMappedError(w, r, err)
			return
		}
	}
	if raw, ok := patch["completed"]; ok {
		if err := unmarshalField(raw, "completed", &task.Completed); err != nil {
			respondWithMappedError(w, r, err)
			return
		}
	}

	if err := h.taskStore.Update(r.Context(), task); err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// Delete handles DELETE /tasks/{id} and returns the deleted task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, _, ok := identityFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Please authenticate")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}

	task, err := h.taskStore.GetByOwner(r.Context(), user.ID, id)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	if err := h.taskStore.DeleteByOwner(r.Context(), user.ID, id); err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// parseListOptions translates list query parameters into store options.
func parseListOptions(r *http.Request) (store.ListOptions, error) {
	var opts store.ListOptions
	q := r.URL.Query()

	if raw := q.Get("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, store.ErrInvalidOperation
		}
		opts.Completed = &completed
	}

	if raw := q.Get("sortBy"); raw != "" {
		parts := strings.SplitN(raw, ":", 2)
		opts.SortBy = parts[0]
		if len(parts) == 2 {
			switch parts[1] {
			case store.SortAsc, store.SortDesc:
				opts.SortDir = parts[1]
			default:
				return opts, store.ErrInvalidOperation
			}
		}
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return opts, store.ErrInvalidOperation
		}
		opts.Limit = limit
	}

	if raw := q.Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return opts, store.ErrInvalidOperation
		}
		opts.Skip = skip
	}

	return opts, nil
}
