package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type commentRequest struct {
	Text string `json:"text"`
}

type subtaskRequest struct {
	Title string `json:"title"`
}

// AddComment appends a comment to a task.
func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}/comments"

	ctx, span := tracer.Start(ctx, "TaskHandler.AddComment",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var req commentRequest
	if !h.decode(ctx, w, r, &req) {
		h.recordMetrics(ctx, http.MethodPost, route, http.StatusBadRequest, start)
		return
	}

	task, err := h.coord.AddComment(ctx, id, req.Text)
	if err == nil {
		h.logger.InfoContext(ctx, "comment added", slog.String("task_id", id), slog.Int("comments", len(task.Comments)))
	}
	h.respondTask(ctx, w, http.MethodPost, route, task, err, start)
}

// DeleteComment removes a comment from a task.
func (h *TaskHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	commentID := chi.URLParam(r, "commentID")

	ctx, span := tracer.Start(ctx, "TaskHandler.DeleteComment",
		trace.WithAttributes(
			attribute.String("task.id", id),
			attribute.String("comment.id", commentID),
		),
	)
	defer span.End()

	task, err := h.coord.DeleteComment(ctx, id, commentID)
	h.respondTask(ctx, w, http.MethodDelete, "/api/v1/tasks/{id}/comments/{commentID}", task, err, start)
}

// AddSubtask appends a subtask to a task.
func (h *TaskHandler) AddSubtask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}/subtasks"

	ctx, span := tracer.Start(ctx, "TaskHandler.AddSubtask",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var req subtaskRequest
	if !h.decode(ctx, w, r, &req) {
		h.recordMetrics(ctx, http.MethodPost, route, http.StatusBadRequest, start)
		return
	}

	task, err := h.coord.AddSubtask(ctx, id, req.Title)
	h.respondTask(ctx, w, http.MethodPost, route, task, err, start)
}

// ToggleSubtask flips a subtask's completion flag.
func (h *TaskHandler) ToggleSubtask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	subtaskID := chi.URLParam(r, "subtaskID")

	ctx, span := tracer.Start(ctx, "TaskHandler.ToggleSubtask",
		trace.WithAttributes(
			attribute.String("task.id", id),
			attribute.String("subtask.id", subtaskID),
		),
	)
	defer span.End()

	task, err := h.coord.ToggleSubtask(ctx, id, subtaskID)
	h.respondTask(ctx, w, http.MethodPost, "/api/v1/tasks/{id}/subtasks/{subtaskID}/toggle", task, err, start)
}

// DeleteSubtask removes a subtask from a task.
func (h *TaskHandler) DeleteSubtask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	subtaskID := chi.URLParam(r, "subtaskID")

	ctx, span := tracer.Start(ctx, "TaskHandler.DeleteSubtask",
		trace.WithAttributes(
			attribute.String("task.id", id),
			attribute.String("subtask.id", subtaskID),
		),
	)
	defer span.End()

	task, err := h.coord.DeleteSubtask(ctx, id, subtaskID)
	h.respondTask(ctx, w, http.MethodDelete, "/api/v1/tasks/{id}/subtasks/{subtaskID}", task, err, start)
}
