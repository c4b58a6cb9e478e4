package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/taskboard/internal/kvstore"
	"github.com/hiroki-koketsu/taskboard/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/taskboard/internal/repository")

// DefaultStorageKey is the key the whole collection is stored under.
const DefaultStorageKey = "taskboard-todos"

// Options configures a TaskRepository. Zero values fall back to defaults.
type Options struct {
	StorageKey string
	Simulation Simulation
	// Seed installs the demo tasks when storage has never been written.
	Seed   bool
	Now    func() time.Time
	Logger *slog.Logger
}

// TaskRepository is the simulated backend. It keeps the authoritative
// collection in insertion order and persists it to a key-value store after
// every successful mutation.
type TaskRepository struct {
	mu     sync.RWMutex
	tasks  []*model.Task
	store  kvstore.Store
	key    string
	sim    Simulation
	seed   []*model.Task
	now    func() time.Time
	logger *slog.Logger
}

// NewTaskRepository creates a TaskRepository and loads the stored collection.
func NewTaskRepository(ctx context.Context, store kvstore.Store, opts Options) (*TaskRepository, error) {
	r := &TaskRepository{
		store:  store,
		key:    opts.StorageKey,
		sim:    opts.Simulation,
		now:    opts.Now,
		logger: opts.Logger,
	}
	if r.key == "" {
		r.key = DefaultStorageKey
	}
	if r.sim == nil {
		r.sim = NewRandomSimulation(DefaultDelay, DefaultErrorRate)
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	// Built once so reloads before the first write return the same tasks.
	if opts.Seed {
		r.seed = defaultTasks(r.now())
	}

	tasks, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	r.tasks = tasks
	return r, nil
}

func (r *TaskRepository) load(ctx context.Context) ([]*model.Task, error) {
	raw, err := r.store.Get(ctx, r.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		tasks := make([]*model.Task, 0, len(r.seed))
		for _, t := range r.seed {
			tasks = append(tasks, t.Clone())
		}
		return tasks, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	var tasks []*model.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode stored tasks: %w", err)
	}
	for i, t := range tasks {
		tasks[i] = t.Clone()
	}
	return tasks, nil
}

// persist writes next to storage and, on success, makes it the current
// collection. Callers hold r.mu.
func (r *TaskRepository) persist(ctx context.Context, next []*model.Task) error {
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	if err := r.store.Put(ctx, r.key, raw); err != nil {
		return err
	}
	r.tasks = next
	return nil
}

// simulate runs the artificial latency and the failure coin flip.
func (r *TaskRepository) simulate(ctx context.Context, span trace.Span, fail model.TaskError) error {
	if err := r.sim.Wait(ctx); err != nil {
		return err
	}
	if r.sim.Fail() {
		span.SetAttributes(attribute.Bool("simulated.failure", true))
		span.SetStatus(codes.Error, fail.Message)
		return fail
	}
	return nil
}

// storageFailure logs a storage error and hides it behind the category error.
func (r *TaskRepository) storageFailure(ctx context.Context, span trace.Span, fail model.TaskError, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	r.logger.ErrorContext(ctx, "storage failure", slog.String("code", string(fail.Code)), slog.Any("error", err))
	return fail
}

func (r *TaskRepository) indexOf(id string) int {
	for i, t := range r.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// replaceAt returns a copy of the collection with position i swapped for t.
func (r *TaskRepository) replaceAt(i int, t *model.Task) []*model.Task {
	next := append([]*model.Task(nil), r.tasks...)
	next[i] = t
	return next
}

// List reloads the collection from storage and returns it in insertion order.
func (r *TaskRepository) List(ctx context.Context) ([]*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.List")
	defer span.End()

	if err := r.simulate(ctx, span, model.ErrFetch); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.load(ctx)
	if err != nil {
		return nil, r.storageFailure(ctx, span, model.ErrFetch, err)
	}
	r.tasks = tasks

	out := make([]*model.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Clone())
	}

	span.SetAttributes(attribute.Int("task.count", len(out)))
	return out, nil
}

// Create appends a new incomplete task with status todo.
func (r *TaskRepository) Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.Create",
		trace.WithAttributes(attribute.String("task.title", req.Title)),
	)
	defer span.End()

	if err := r.simulate(ctx, span, model.ErrCreate); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	task := &model.Task{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Completed:   false,
		Status:      model.StatusTodo,
		Comments:    []model.Comment{},
		Subtasks:    []model.Subtask{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.DueDate != nil {
		d := *req.DueDate
		task.DueDate = &d
	}

	next := append(append([]*model.Task(nil), r.tasks...), task)
	if err := r.persist(ctx, next); err != nil {
		return nil, r.storageFailure(ctx, span, model.ErrCreate, err)
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	return task.Clone(), nil
}

// Update merges req into the task and refreshes its last-modified time.
func (r *TaskRepository) Update(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	if err := r.simulate(ctx, span, model.ErrUpdate); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, model.ErrTaskNotFound
	}

	task := r.tasks[i].Clone()
	req.Apply(task)
	task.UpdatedAt = r.now()

	if err := r.persist(ctx, r.replaceAt(i, task)); err != nil {
		return nil, r.storageFailure(ctx, span, model.ErrUpdate, err)
	}

	span.SetAttributes(attribute.Bool("task.found", true))
	return task.Clone(), nil
}

// Delete removes a task from the collection.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "TaskRepository.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	if err := r.simulate(ctx, span, model.ErrDelete); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		span.SetAttributes(attribute.Bool("task.found", false))
		return model.ErrTaskNotFound
	}

	next := make([]*model.Task, 0, len(r.tasks)-1)
	next = append(next, r.tasks[:i]...)
	next = append(next, r.tasks[i+1:]...)
	if err := r.persist(ctx, next); err != nil {
		return r.storageFailure(ctx, span, model.ErrDelete, err)
	}

	span.SetAttributes(attribute.Bool("task.found", true))
	return nil
}

// mutateTask runs the shared simulate/lookup/persist sequence for operations
// on a task's children. fn edits a private copy of the task.
func (r *TaskRepository) mutateTask(ctx context.Context, span trace.Span, taskID string, fail model.TaskError, fn func(t *model.Task, now time.Time) error) (*model.Task, error) {
	if err := r.simulate(ctx, span, fail); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(taskID)
	if i < 0 {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, model.ErrTaskNotFound
	}
	span.SetAttributes(attribute.Bool("task.found", true))

	now := r.now()
	task := r.tasks[i].Clone()
	if err := fn(task, now); err != nil {
		return nil, err
	}
	task.UpdatedAt = now

	if err := r.persist(ctx, r.replaceAt(i, task)); err != nil {
		return nil, r.storageFailure(ctx, span, fail, err)
	}
	return task.Clone(), nil
}

// AddComment appends a comment to the task.
func (r *TaskRepository) AddComment(ctx context.Context, taskID, text string) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.AddComment",
		trace.WithAttributes(attribute.String("task.id", taskID)),
	)
	defer span.End()

	return r.mutateTask(ctx, span, taskID, model.ErrAddComment, func(t *model.Task, now time.Time) error {
		c := model.Comment{ID: uuid.NewString(), Text: text, CreatedAt: now, UpdatedAt: now}
		t.Comments = append(t.Comments, c)
		span.SetAttributes(attribute.String("comment.id", c.ID))
		return nil
	})
}

// DeleteComment removes a comment from the task.
func (r *TaskRepository) DeleteComment(ctx context.Context, taskID, commentID string) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.DeleteComment",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("comment.id", commentID),
		),
	)
	defer span.End()

	return r.mutateTask(ctx, span, taskID, model.ErrDeleteComment, func(t *model.Task, _ time.Time) error {
		i := t.CommentIndex(commentID)
		if i < 0 {
			return model.ErrCommentNotFound
		}
		t.Comments = append(t.Comments[:i], t.Comments[i+1:]...)
		return nil
	})
}

// AddSubtask appends an incomplete subtask to the task.
func (r *TaskRepository) AddSubtask(ctx context.Context, taskID, title string) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.AddSubtask",
		trace.WithAttributes(attribute.String("task.id", taskID)),
	)
	defer span.End()

	return r.mutateTask(ctx, span, taskID, model.ErrAddSubtask, func(t *model.Task, now time.Time) error {
		s := model.Subtask{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}
		t.Subtasks = append(t.Subtasks, s)
		span.SetAttributes(attribute.String("subtask.id", s.ID))
		return nil
	})
}

// ToggleSubtask flips a subtask's completion flag.
func (r *TaskRepository) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.ToggleSubtask",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("subtask.id", subtaskID),
		),
	)
	defer span.End()

	return r.mutateTask(ctx, span, taskID, model.ErrToggleSubtask, func(t *model.Task, now time.Time) error {
		i := t.SubtaskIndex(subtaskID)
		if i < 0 {
			return model.ErrSubtaskNotFound
		}
		t.Subtasks[i].Completed = !t.Subtasks[i].Completed
		t.Subtasks[i].UpdatedAt = now
		return nil
	})
}

// DeleteSubtask removes a subtask from the task.
func (r *TaskRepository) DeleteSubtask(ctx context.Context, taskID, subtaskID string) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.DeleteSubtask",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("subtask.id", subtaskID),
		),
	)
	defer span.End()

	return r.mutateTask(ctx, span, taskID, model.ErrDeleteSubtask, func(t *model.Task, _ time.Time) error {
		i := t.SubtaskIndex(subtaskID)
		if i < 0 {
			return model.ErrSubtaskNotFound
		}
		t.Subtasks = append(t.Subtasks[:i], t.Subtasks[i+1:]...)
		return nil
	})
}

// Count returns the current number of tasks.
func (r *TaskRepository) Count() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.tasks))
}
