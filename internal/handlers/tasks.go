package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taskapi/taskapi/internal/services"
	"github.com/taskapi/taskapi/internal/store"
	"github.com/taskapi/taskapi/types"
)

// TaskHandler exposes the authenticated user's tasks.
type TaskHandler struct {
	tasks   *services.TaskService
	exports *services.ExportService
}

// NewTaskHandler constructs a TaskHandler. exports may be nil, in which case
// the export endpoint reports that it is unavailable.
func NewTaskHandler(tasks *services.TaskService, exports *services.ExportService) *TaskHandler {
	return &TaskHandler{tasks: tasks, exports: exports}
}

// TaskRouter registers task routes on the given router. Every route requires
// authentication.
func TaskRouter(
	r chi.Router,
	tasks *services.TaskService,
	exports *services.ExportService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewTaskHandler(tasks, exports)

	r.Use(authMiddleware)
	r.Get("/", handler.ListTasks)
	r.Post("/", handler.CreateTask)
	r.Post("/export", handler.ExportTasks)
	r.Get("/{taskID}", handler.GetTask)
	r.Put("/{taskID}", handler.UpdateTask)
	r.Patch("/{taskID}", handler.UpdateTask)
	r.Delete("/{taskID}", handler.DeleteTask)
}

type CreateTaskRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Description *string             `json:"description" validate:"omitempty,max=1000"`
	Priority    *types.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
}

type UpdateTaskRequest struct {
	Title       *string             `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string             `json:"description" validate:"omitempty,max=1000"`
	Status      *types.TaskStatus   `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority    *types.TaskPriority `json:"priority" validate:"omitempty,oneof=low medium high"`

	// descriptionNull is set when the body carries "description": null.
	descriptionNull bool
}

// UnmarshalJSON decodes the request and records an explicit null description,
// which a plain *string cannot tell apart from a missing key.
func (req *UpdateTaskRequest) UnmarshalJSON(data []byte) error {
	type plain UpdateTaskRequest
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw, ok := fields["description"]
	decoded.descriptionNull = ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))

	*req = UpdateTaskRequest(decoded)
	return nil
}

func (req UpdateTaskRequest) patch() types.TaskPatch {
	return types.TaskPatch{
		Title:            req.Title,
		Description:      req.Description,
		ClearDescription: req.descriptionNull,
		Status:           req.Status,
		Priority:         req.Priority,
	}
}

type DeleteTaskResponse struct {
	Message string     `json:"message"`
	Task    types.Task `json:"task"`
}

// ListTasks returns a page of the caller's tasks ordered by id. The offset is
// read from skip (or offset) and the page size from limit.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, services.ErrUnauthorized.Error())
		return
	}

	offset, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tasks, err := h.tasks.List(r.Context(), user.ID, offset, limit)
	if err != nil {
		h.writeTaskError(w, r, err, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, services.ErrUnauthorized.Error())
		return
	}

	var req CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.tasks.Create(r.Context(), user.ID, req.Title, req.Description, req.Priority)
	if err != nil {
		h.writeTaskError(w, r, err, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, services.ErrUnauthorized.Error())
		return
	}

	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.Get(r.Context(), user.ID, taskID)
	if err != nil {
		h.writeTaskError(w, r, err, "failed to load task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask serves both PUT and PATCH. Only the fields present in the body
// change; an empty body refreshes the update timestamp.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, services.ErrUnauthorized.Error())
		return
	}

	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.tasks.Update(r.Context(), user.ID, taskID, req.patch())
	if err != nil {
		h.writeTaskError(w, r, err, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, services.ErrUnauthorized.Error())
		return
	}

	taskID, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.Delete(r.Context(), user.ID, taskID)
	if err != nil {
		h.writeTaskError(w, r, err, "failed to delete task")
		return
	}
	writeJSON(w, http.StatusOK, DeleteTaskResponse{Message: "Task deleted successfully", Task: task})
}

// ExportTasks writes a snapshot of the caller's tasks to object storage.
func (h *TaskHandler) ExportTasks(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, services.ErrUnauthorized.Error())
		return
	}
	if h.exports == nil {
		writeError(w, http.StatusServiceUnavailable, "task export is not configured")
		return
	}

	export, err := h.exports.Export(r.Context(), user.ID)
	if err != nil {
		writeInternalError(w, r, err, "failed to export tasks")
		return
	}
	writeJSON(w, http.StatusCreated, export)
}

func (h *TaskHandler) writeTaskError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, services.ErrInvalidTask):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeInternalError(w, r, err, message)
	}
}

// parseTaskID treats an id that is not a positive integer like an absent task.
func parseTaskID(w http.ResponseWriter, r *http.Request) (int, bool) {
	taskID, err := strconv.Atoi(chi.URLParam(r, "taskID"))
	if err != nil || taskID < 1 {
		writeError(w, http.StatusNotFound, "task not found")
		return 0, false
	}
	return taskID, true
}

func parsePagination(r *http.Request) (offset, limit int, err error) {
	query := r.URL.Query()

	rawOffset := query.Get("skip")
	if rawOffset == "" {
		rawOffset = query.Get("offset")
	}
	if offset, err = parseOptionalInt(rawOffset, 0); err != nil || offset < 0 {
		return 0, 0, errors.New("skip must be a non-negative integer")
	}

	if limit, err = parseOptionalInt(query.Get("limit"), services.DefaultListLimit); err != nil || limit < 1 {
		return 0, 0, errors.New("limit must be a positive integer")
	}
	return offset, limit, nil
}

func parseOptionalInt(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}
