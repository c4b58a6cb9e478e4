package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/store"
	"github.com/hiroki-koketsu/taskboard/internal/telemetry"
	"github.com/hiroki-koketsu/taskboard/internal/view"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/taskboard/internal/handler")

// TaskHandler exposes the task store coordinator over HTTP.
type TaskHandler struct {
	coord   *store.Coordinator
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
	taskICS func(model.Task, time.Time) (string, error)
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(coord *store.Coordinator, logger *slog.Logger, metrics *telemetry.Metrics) *TaskHandler {
	return &TaskHandler{
		coord:   coord,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		taskICS: view.TaskICS,
	}
}

// Routes returns the chi router with all API routes.
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/state", h.State)
	r.Delete("/error", h.ClearError)
	r.Get("/notifications", h.Notifications)
	r.Delete("/notifications/{id}", h.DismissNotification)

	r.Route("/views", func(r chi.Router) {
		r.Get("/board", h.Board)
		r.Get("/calendar", h.Calendar)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/refresh", h.Refresh)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetByID)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/toggle", h.Toggle)
			r.Put("/status", h.ChangeStatus)
			r.Get("/calendar.ics", h.ExportICS)

			r.Post("/comments", h.AddComment)
			r.Delete("/comments/{commentID}", h.DeleteComment)

			r.Post("/subtasks", h.AddSubtask)
			r.Post("/subtasks/{subtaskID}/toggle", h.ToggleSubtask)
			r.Delete("/subtasks/{subtaskID}", h.DeleteSubtask)
		})
	})

	return r
}

// taskRequest is the body of create and edit. A missing or null dueDate
// means no due date.
type taskRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	DueDate     *model.Date `json:"dueDate"`
}

type statusRequest struct {
	Status model.Status `json:"status"`
}

// taskResponse is a task plus its subtask progress.
type taskResponse struct {
	model.Task
	Progress view.SubtaskProgress `json:"progress"`
}

func newTaskResponse(t model.Task) taskResponse {
	return taskResponse{Task: t, Progress: view.Progress(t)}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// List returns all tasks, newest first.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.List")
	defer span.End()

	tasks := view.List(h.coord.Snapshot().Tasks)
	span.SetAttributes(attribute.Int("task.count", len(tasks)))

	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, newTaskResponse(t))
	}

	h.respondJSON(w, http.StatusOK, out)
	h.recordMetrics(ctx, http.MethodGet, "/api/v1/tasks", http.StatusOK, start)
}

// Refresh reloads the collection from the backend.
func (h *TaskHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/v1/tasks/refresh"

	ctx, span := tracer.Start(ctx, "TaskHandler.Refresh")
	defer span.End()

	if err := h.coord.Load(ctx); err != nil {
		status := h.respondFailure(ctx, w, err)
		h.recordMetrics(ctx, http.MethodPost, route, status, start)
		return
	}

	h.respondJSON(w, http.StatusOK, h.coord.Snapshot())
	h.recordMetrics(ctx, http.MethodPost, route, http.StatusOK, start)
}

// Create adds a new task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/v1/tasks"

	ctx, span := tracer.Start(ctx, "TaskHandler.Create")
	defer span.End()

	var req taskRequest
	if !h.decode(ctx, w, r, &req) {
		h.recordMetrics(ctx, http.MethodPost, route, http.StatusBadRequest, start)
		return
	}

	h.logger.InfoContext(ctx, "creating task", slog.String("title", req.Title))

	task, err := h.coord.Create(ctx, req.Title, req.Description, req.DueDate)
	if err != nil {
		status := h.respondFailure(ctx, w, err)
		h.recordMetrics(ctx, http.MethodPost, route, status, start)
		return
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	h.logger.InfoContext(ctx, "task created", slog.String("id", task.ID))

	h.respondJSON(w, http.StatusCreated, newTaskResponse(*task))
	h.recordMetrics(ctx, http.MethodPost, route, http.StatusCreated, start)
}

// GetByID returns a task from the current collection.
func (h *TaskHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}"

	ctx, span := tracer.Start(ctx, "TaskHandler.GetByID",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	task, ok := h.coord.Snapshot().Task(id)
	if !ok {
		status := h.respondFailure(ctx, w, model.ErrTaskNotFound)
		h.recordMetrics(ctx, http.MethodGet, route, status, start)
		return
	}

	h.respondJSON(w, http.StatusOK, newTaskResponse(task))
	h.recordMetrics(ctx, http.MethodGet, route, http.StatusOK, start)
}

// Update replaces a task's title, description and due date.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}"

	ctx, span := tracer.Start(ctx, "TaskHandler.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var req taskRequest
	if !h.decode(ctx, w, r, &req) {
		h.recordMetrics(ctx, http.MethodPut, route, http.StatusBadRequest, start)
		return
	}

	h.logger.InfoContext(ctx, "updating task", slog.String("id", id))

	task, err := h.coord.Edit(ctx, id, req.Title, req.Description, req.DueDate)
	h.respondTask(ctx, w, http.MethodPut, route, task, err, start)
}

// Delete removes a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}"

	ctx, span := tracer.Start(ctx, "TaskHandler.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	h.logger.InfoContext(ctx, "deleting task", slog.String("id", id))

	if err := h.coord.Delete(ctx, id); err != nil {
		status := h.respondFailure(ctx, w, err)
		h.recordMetrics(ctx, http.MethodDelete, route, status, start)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	h.recordMetrics(ctx, http.MethodDelete, route, http.StatusNoContent, start)
}

// Toggle flips a task's completion flag.
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "TaskHandler.Toggle",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	task, err := h.coord.ToggleComplete(ctx, id)
	h.respondTask(ctx, w, http.MethodPost, "/api/v1/tasks/{id}/toggle", task, err, start)
}

// ChangeStatus moves a task to another board column.
func (h *TaskHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}/status"

	ctx, span := tracer.Start(ctx, "TaskHandler.ChangeStatus",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var req statusRequest
	if !h.decode(ctx, w, r, &req) {
		h.recordMetrics(ctx, http.MethodPut, route, http.StatusBadRequest, start)
		return
	}
	span.SetAttributes(attribute.String("task.status", string(req.Status)))

	task, err := h.coord.ChangeStatus(ctx, id, req.Status)
	h.respondTask(ctx, w, http.MethodPut, route, task, err, start)
}

// Health returns a health check response.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *TaskHandler) decode(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respondTask writes the outcome of an intent that yields a task.
func (h *TaskHandler) respondTask(ctx context.Context, w http.ResponseWriter, method, route string, task *model.Task, err error, start time.Time) {
	if err != nil {
		status := h.respondFailure(ctx, w, err)
		h.recordMetrics(ctx, method, route, status, start)
		return
	}
	h.respondJSON(w, http.StatusOK, newTaskResponse(*task))
	h.recordMetrics(ctx, method, route, http.StatusOK, start)
}

// respondFailure maps an intent error to a response and returns its status.
// Backend category errors map to 502.
func (h *TaskHandler) respondFailure(ctx context.Context, w http.ResponseWriter, err error) int {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		h.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
		return http.StatusBadRequest
	case errors.Is(err, model.ErrTaskNotFound):
		h.logger.WarnContext(ctx, "not found", slog.Any("error", err))
		h.respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: string(model.CodeNotFound)})
		return http.StatusNotFound
	}

	if code := model.CodeOf(err); code != "" {
		h.respondJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Code: string(code)})
		return http.StatusBadGateway
	}

	h.logger.ErrorContext(ctx, "unexpected error", slog.Any("error", err))
	h.respondError(w, http.StatusInternalServerError, "internal error")
	return http.StatusInternalServerError
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *TaskHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, errorResponse{Error: message})
}

func (h *TaskHandler) recordMetrics(ctx context.Context, method, route string, status int, start time.Time) {
	h.metrics.RecordRequest(ctx, method, route, status, start)
}
