package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/view"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type calendarResponse struct {
	view.MonthGrid
	Prev  string       `json:"prev"`
	Next  string       `json:"next"`
	Tasks []model.Task `json:"tasks"`
}

// State returns the full coordinator snapshot.
func (h *TaskHandler) State(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.respondJSON(w, http.StatusOK, h.coord.Snapshot())
	h.recordMetrics(r.Context(), http.MethodGet, "/api/v1/state", http.StatusOK, start)
}

// Board returns the tasks grouped by status.
func (h *TaskHandler) Board(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.Board")
	defer span.End()

	h.respondJSON(w, http.StatusOK, view.Board(h.coord.Snapshot().Tasks))
	h.recordMetrics(ctx, http.MethodGet, "/api/v1/views/board", http.StatusOK, start)
}

// Calendar returns the month grid for ?month=YYYY-MM, the current month by
// default.
func (h *TaskHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/v1/views/calendar"

	ctx, span := tracer.Start(ctx, "TaskHandler.Calendar")
	defer span.End()

	month := view.MonthOf(model.DateOf(h.now()))
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := view.ParseMonth(raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, err.Error())
			h.recordMetrics(ctx, http.MethodGet, route, http.StatusBadRequest, start)
			return
		}
		month = m
	}
	span.SetAttributes(attribute.String("calendar.month", month.String()))

	tasks := h.coord.Snapshot().Tasks
	h.respondJSON(w, http.StatusOK, calendarResponse{
		MonthGrid: view.Calendar(tasks, month),
		Prev:      month.Prev().String(),
		Next:      month.Next().String(),
		Tasks:     view.MonthTasks(tasks, month),
	})
	h.recordMetrics(ctx, http.MethodGet, route, http.StatusOK, start)
}

// ExportICS downloads a task as an iCalendar event.
func (h *TaskHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")
	const route = "/api/v1/tasks/{id}/calendar.ics"

	ctx, span := tracer.Start(ctx, "TaskHandler.ExportICS",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	task, ok := h.coord.Snapshot().Task(id)
	if !ok {
		status := h.respondFailure(ctx, w, model.ErrTaskNotFound)
		h.recordMetrics(ctx, http.MethodGet, route, status, start)
		return
	}

	ics, err := h.taskICS(task, h.now())
	if errors.Is(err, view.ErrNoDueDate) {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		h.recordMetrics(ctx, http.MethodGet, route, http.StatusUnprocessableEntity, start)
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.ErrorContext(ctx, "failed to export calendar", slog.String("task.id", id), slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "failed to export calendar")
		h.recordMetrics(ctx, http.MethodGet, route, http.StatusInternalServerError, start)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "task-"+id+".ics"))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ics))
	h.recordMetrics(ctx, http.MethodGet, route, http.StatusOK, start)
}

// Notifications lists live notifications.
func (h *TaskHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.respondJSON(w, http.StatusOK, h.coord.Notifications())
	h.recordMetrics(r.Context(), http.MethodGet, "/api/v1/notifications", http.StatusOK, start)
}

// DismissNotification removes a notification before it expires.
func (h *TaskHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const route = "/api/v1/notifications/{id}"

	if !h.coord.DismissNotification(chi.URLParam(r, "id")) {
		h.respondError(w, http.StatusNotFound, "notification not found")
		h.recordMetrics(r.Context(), http.MethodDelete, route, http.StatusNotFound, start)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.recordMetrics(r.Context(), http.MethodDelete, route, http.StatusNoContent, start)
}

// ClearError dismisses the last error.
func (h *TaskHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.coord.ClearError()
	w.WriteHeader(http.StatusNoContent)
	h.recordMetrics(r.Context(), http.MethodDelete, "/api/v1/error", http.StatusNoContent, start)
}
