package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/taskboard/internal/kvstore"
	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/repository"
	"github.com/hiroki-koketsu/taskboard/internal/store"
	"github.com/hiroki-koketsu/taskboard/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 16, 10, 30, 0, 0, time.UTC)

type testServer struct {
	router  http.Handler
	coord   *store.Coordinator
	handler *TaskHandler
}

func newTestServer(t *testing.T, sim repository.Simulation) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo, err := repository.NewTaskRepository(context.Background(), kvstore.NewMemoryStore(), repository.Options{
		Simulation: sim,
		Logger:     logger,
	})
	require.NoError(t, err)

	coord := store.New(repo, store.Options{Logger: logger, Now: func() time.Time { return testNow }})

	h := NewTaskHandler(coord, logger, nil)
	h.now = func() time.Time { return testNow }

	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Mount("/api/v1", h.Routes())
	return &testServer{router: r, coord: coord, handler: h}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func (s *testServer) create(t *testing.T, body string) taskResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/tasks", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[taskResponse](t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, repository.NoSimulation{})

	rec := s.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateAndList(t *testing.T) {
	s := newTestServer(t, repository.NoSimulation{})

	first := s.create(t, `{"title":"Buy milk"}`)
	assert.Equal(t, "Buy milk", first.Title)
	assert.Equal(t, model.StatusTodo, first.Status)
	assert.False(t, first.Completed)
	assert.Empty(t, first.Comments)
	assert.Equal(t, view.SubtaskProgress{}, first.Progress)

	second := s.create(t, `{"title":"Pay rent","description":"before Friday","dueDate":"2026-10-20"}`)
	require.NotNil(t, second.DueDate)
	assert.Equal(t, "2026-10-20", second.DueDate.String())

	rec := s.do(t, http.MethodGet, "/api/v1/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	list := decode[[]taskResponse](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks/"+first.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.ID, decode[taskResponse](t, rec).ID)
}

func TestCreate_ValidationError(t *testing.T) {
	s := newTestServer(t, repository.NoSimulation{})

	rec := s.do(t, http.MethodPost, "/api/v1/tasks", `{"title":"ab","dueDate":"2026-10-15"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "validation failed", body.Error)
	assert.Equal(t, "Title must be at least 3 characters", body.Fields["title"])
	assert.Equal(t, "Due date cannot be in the past", body.Fields["dueDate"])
	assert.Empty(t, s.coord.Snapshot().LastError)
}

func TestCreate_InvalidBody(t *testing.T) {
	s := newTestServer(t, repository.NoSimulation{})

	for _, body := range []string{`{`, `{"title":"Valid","dueDate":"16/10/2026"}`} {
		rec := s.do(t, http.MethodPost, "/api/v1/tasks", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "invalid request body", decode[errorResponse](t, rec).Error)
	}
}

func TestUpdateToggleStatusDelete(t *testing.T) {
	s := newTestServer(t, repository.NoSimulation{})
	task := s.create(t, `{"title":"Write report","dueDate":"2026-11-01"}`)
	path := "/api/v1/tasks/" + task.ID

	rec := s.do(t, http.MethodPut, path, `{"title":"Write final report","description":"with charts"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[taskResponse](t, rec)
	assert.Equal(t, "Write final report", updated.Title)
	assert.Equal(t, "with charts", updated.Description)
	assert.Nil(t, updated.DueDate)

	rec = s.do(t, http.MethodPost, path+"/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[taskResponse](t, rec).Completed)

	rec = s.do(t, http.MethodPut, path+"/status", `{"status":"in-progress"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusInProgress, decode[taskResponse](t, rec).Status)

	rec = s.do(t, http.MethodPut, path+"/status", `{"status":"blocked"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Fields, "status")

	rec = s.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "To-Do not found", body.Error)

	rec = s.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommentsAndSubtasks(t *testing.T) {
	s := newTestServer(t, repository.NoSimulation{})
	task := s.create(t, `{"title":"Plan trip"}`)
	path := "/api/v1/tasks/" + task.ID

	rec := s.do(t, http.MethodPost, path+"/comments", `{"text":"looks good"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	withComment := decode[taskResponse](t, rec)
	require.Len(t, withComment.Comments, 1)
	assert.Equal(t, "looks good", withComment.Comments[0].Text)

	rec = s.do(t, http.MethodPost, path+"/comments", `{"text":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, path+"/comments/"+withComment.Comments[0].ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[taskResponse](t, rec).Comments)

	for _, title := range []string{"Book flights", "Book hotel"} {
		rec = s.do(t, http.MethodPost, path+"/subtasks", `{"title":"`+title+`"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	withSubtasks := decode[taskResponse](t, rec)
	require.Len(t, withSubtasks.Subtasks, 2)

	rec = s.do(t, http.MethodPost, path+"/subtasks/"+withSubtasks.Subtasks[0].ID+"/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	toggled := decode[taskResponse](t, rec)
	assert.Equal(t, view.SubtaskProgress{Completed: 1, Total: 2, Percent: 50}, toggled.Progress)

	rec = s.do(t, http.MethodPost, path+"/subtasks/missing/toggle", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Subtask not found", decode[errorResponse](t, rec).Error)

	rec = s.do(t, http.MethodDelete, path+"/subtasks/"+withSubtasks.Subtasks[1].ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[taskResponse](t, rec).Subtasks, 1)
}

func TestBackendFailure(t *testing.T) {
	failing := newTestServer(t, &repository.RandomSimulation{ErrorRate: 1})

	rec := failing.do(t, http.MethodPost, "/api/v1/tasks", `{"title":"Doomed"}`)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "CREATE_ERROR", body.Code)
	assert.Equal(t, "Failed to create To-Do. Please try again.", body.Error)

	rec = failing.do(t, http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[store.Snapshot](t, rec)
	assert.Equal(t, "Failed to create To-Do. Please try again.", state.LastError)
	assert.Empty(t, state.Tasks)

	rec = failing.do(t, http.MethodDelete, "/api/v1/error", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, failing.coord.Snapshot().LastError)

	rec = failing.do(t, http.MethodPost, "/api/v1/tasks/refresh", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "FETCH_ERROR", decode[errorResponse](t, rec).Code)
}

func TestRefresh(t *testing.T) {
	s := newTestServer(t, repository.NoSimulation{})
	s.create(t, `{"title":"Persisted"}`)

	rec := s.do(t, http.MethodPost, "/api/v1/tasks/refresh", "")

	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[store.Snapshot](t, rec)
	require.Len(t, state.Tasks, 1)
	assert.Equal(t, "Persisted", state.Tasks[0].Title)
	assert.False(t, state.Loading)
}

func TestBoardView(t *testing.T) {
	s := newTestServer(t, repository.NoSimulation{})
	a := s.create(t, `{"title":"Task A"}`)
	b := s.create(t, `{"title":"Task B"}`)
	rec := s.do(t, http.MethodPut, "/api/v1/tasks/"+b.ID+"/status", `{"status":"done"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/views/board", "")

	require.Equal(t, http.StatusOK, rec.Code)
	cols := decode[[]view.Column](t, rec)
	require.Len(t, cols, 3)
	require.Len(t, cols[0].Tasks, 1)
	assert.Equal(t, a.ID, cols[0].Tasks[0].ID)
	assert.Empty(t, cols[1].Tasks)
	require.Len(t, cols[2].Tasks, 1)
	assert.Equal(t, b.ID, cols[2].Tasks[0].ID)
}

func TestCalendarView(t *testing.T) {
	s := newTestServer(t, repository.NoSimulation{})
	due := s.create(t, `{"title":"Halloween","dueDate":"2026-10-31"}`)
	s.create(t, `{"title":"Someday"}`)

	rec := s.do(t, http.MethodGet, "/api/v1/views/calendar", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Month string       `json:"month"`
		Prev  string       `json:"prev"`
		Next  string       `json:"next"`
		Days  []view.Day   `json:"days"`
		Tasks []model.Task `json:"tasks"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "2026-10", body.Month)
	assert.Equal(t, "2026-09", body.Prev)
	assert.Equal(t, "2026-11", body.Next)
	assert.Len(t, body.Days, 35)
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, due.ID, body.Tasks[0].ID)

	rec = s.do(t, http.MethodGet, "/api/v1/views/calendar?month=2027-01", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/views/calendar?month=January", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportICS(t *testing.T) {
	s := newTestServer(t, repository.NoSimulation{})
	due := s.create(t, `{"title":"Dentist","dueDate":"2026-10-21"}`)
	undated := s.create(t, `{"title":"Someday"}`)

	rec := s.do(t, http.MethodGet, "/api/v1/tasks/"+due.ID+"/calendar.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "task-"+due.ID+".ics")
	assert.Contains(t, rec.Body.String(), "SUMMARY:Dentist\r\n")
	assert.Contains(t, rec.Body.String(), "DTSTART;VALUE=DATE:20261021\r\n")

	rec = s.do(t, http.MethodGet, "/api/v1/tasks/"+undated.ID+"/calendar.ics", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/tasks/nope/calendar.ics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportICS_RenderFailure(t *testing.T) {
	s := newTestServer(t, repository.NoSimulation{})
	due := s.create(t, `{"title":"Dentist","dueDate":"2026-10-21"}`)
	s.handler.taskICS = func(model.Task, time.Time) (string, error) {
		return "", errors.New("encoder broke")
	}

	rec := s.do(t, http.MethodGet, "/api/v1/tasks/"+due.ID+"/calendar.ics", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEqual(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "failed to export calendar", decode[errorResponse](t, rec).Error)
}

func TestNotifications(t *testing.T) {
	s := newTestServer(t, repository.NoSimulation{})
	s.create(t, `{"title":"Noisy"}`)

	rec := s.do(t, http.MethodGet, "/api/v1/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decode[[]store.Notification](t, rec)
	require.Len(t, notes, 1)
	assert.Equal(t, store.LevelSuccess, notes[0].Level)
	assert.Equal(t, "To-Do created successfully!", notes[0].Message)

	rec = s.do(t, http.MethodDelete, "/api/v1/notifications/"+notes[0].ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/notifications/"+notes[0].ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Empty(t, s.coord.Snapshot().Notifications)
}
