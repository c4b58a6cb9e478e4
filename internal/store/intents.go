package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Load replaces the collection with the backend's. On failure the previous
// collection is kept. A successful load clears the last error.
func (c *Coordinator) Load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Coordinator.Load")
	defer span.End()
	start := time.Now()

	c.mu.Lock()
	c.loading++
	c.commitLocked()
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.loading--
		c.commitLocked()
		c.mu.Unlock()
	}()

	tasks, err := c.backend.List(context.WithoutCancel(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.fail(ctx, "Load", err)
		c.metrics.RecordIntent(ctx, "Load", telemetry.OutcomeError, start)
		return err
	}

	next := make([]*model.Task, 0, len(tasks))
	for _, t := range tasks {
		next = append(next, t.Clone())
	}

	c.mu.Lock()
	c.tasks = next
	c.lastError = ""
	c.commitLocked()
	c.mu.Unlock()

	span.SetAttributes(attribute.Int("task.count", len(next)))
	c.logger.InfoContext(ctx, "tasks loaded", slog.Int("count", len(next)))
	c.metrics.RecordIntent(ctx, "Load", telemetry.OutcomeOK, start)
	return nil
}

// Create validates the input and asks the backend for a new task, which is
// put at the front of the collection.
func (c *Coordinator) Create(ctx context.Context, title, description string, due *model.Date) (*model.Task, error) {
	start := time.Now()
	title, description = strings.TrimSpace(title), strings.TrimSpace(description)
	if verr := model.ValidateTask(title, description, due, model.DateOf(c.now())); verr != nil {
		return nil, c.reject(ctx, "Create", verr, start)
	}

	req := &model.CreateTaskRequest{Title: title, Description: description, DueDate: due}
	return c.dispatch(ctx,
		intent{name: "Create", category: CategoryCreate, key: uuid.NewString(), empty: model.ErrCreate},
		func(ctx context.Context) (*model.Task, error) { return c.backend.Create(ctx, req) },
		c.prependLocked,
		fixed("To-Do created successfully!"),
	)
}

// ToggleComplete flips the completion flag of a task in the collection. An id
// missing from the collection fails with NOT_FOUND without a backend call.
func (c *Coordinator) ToggleComplete(ctx context.Context, id string) (*model.Task, error) {
	start := time.Now()

	c.mu.Lock()
	i := c.indexLocked(id)
	var completed bool
	if i >= 0 {
		completed = !c.tasks[i].Completed
	}
	c.mu.Unlock()

	if i < 0 {
		ctx, span := tracer.Start(ctx, "Coordinator.ToggleComplete",
			trace.WithAttributes(
				attribute.String("intent.category", string(CategoryUpdate)),
				attribute.String("intent.key", id),
			),
		)
		defer span.End()

		err := model.ErrTaskNotFound
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.fail(ctx, "ToggleComplete", err)
		c.metrics.RecordIntent(ctx, "ToggleComplete", telemetry.OutcomeError, start)
		return nil, err
	}

	req := &model.UpdateTaskRequest{Completed: &completed}
	return c.dispatch(ctx,
		intent{name: "ToggleComplete", category: CategoryUpdate, key: id, empty: model.ErrUpdate},
		func(ctx context.Context) (*model.Task, error) { return c.backend.Update(ctx, id, req) },
		c.replaceLocked,
		func(t *model.Task) string {
			if t.Completed {
				return "To-Do marked as complete!"
			}
			return "To-Do marked as incomplete!"
		},
	)
}

// Edit replaces a task's title, description and due date. A nil due date
// clears it.
func (c *Coordinator) Edit(ctx context.Context, id, title, description string, due *model.Date) (*model.Task, error) {
	start := time.Now()
	title, description = strings.TrimSpace(title), strings.TrimSpace(description)
	if verr := model.ValidateTask(title, description, due, model.DateOf(c.now())); verr != nil {
		return nil, c.reject(ctx, "Edit", verr, start)
	}

	req := &model.UpdateTaskRequest{
		Title:        &title,
		Description:  &description,
		DueDate:      due,
		ClearDueDate: due == nil,
	}
	return c.dispatch(ctx,
		intent{name: "Edit", category: CategoryUpdate, key: id, empty: model.ErrUpdate},
		func(ctx context.Context) (*model.Task, error) { return c.backend.Update(ctx, id, req) },
		c.replaceLocked,
		fixed("To-Do updated successfully!"),
	)
}

// Delete removes a task.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	_, err := c.dispatch(ctx,
		intent{name: "Delete", category: CategoryDelete, key: id},
		func(ctx context.Context) (*model.Task, error) { return nil, c.backend.Delete(ctx, id) },
		func(*model.Task) { c.removeLocked(id) },
		fixed("To-Do deleted successfully!"),
	)
	return err
}

// ChangeStatus moves a task to another board column.
func (c *Coordinator) ChangeStatus(ctx context.Context, id string, status model.Status) (*model.Task, error) {
	start := time.Now()
	if verr := model.ValidateStatus(status); verr != nil {
		return nil, c.reject(ctx, "ChangeStatus", verr, start)
	}

	req := &model.UpdateTaskRequest{Status: &status}
	return c.dispatch(ctx,
		intent{name: "ChangeStatus", category: CategoryUpdate, key: id, empty: model.ErrUpdate},
		func(ctx context.Context) (*model.Task, error) { return c.backend.Update(ctx, id, req) },
		c.replaceLocked,
		fixed(fmt.Sprintf("Status changed to %s!", status.Label())),
	)
}

// AddComment appends a comment to a task. The pending marker is the task id
// since the comment has no id yet.
func (c *Coordinator) AddComment(ctx context.Context, taskID, text string) (*model.Task, error) {
	start := time.Now()
	text = strings.TrimSpace(text)
	if verr := model.ValidateComment(text); verr != nil {
		return nil, c.reject(ctx, "AddComment", verr, start)
	}

	return c.dispatch(ctx,
		intent{name: "AddComment", category: CategoryAddComment, key: taskID, empty: model.ErrAddComment},
		func(ctx context.Context) (*model.Task, error) { return c.backend.AddComment(ctx, taskID, text) },
		c.replaceLocked,
		fixed("Comment added successfully!"),
	)
}

// DeleteComment removes a comment; pending is keyed by the comment id.
func (c *Coordinator) DeleteComment(ctx context.Context, taskID, commentID string) (*model.Task, error) {
	return c.dispatch(ctx,
		intent{name: "DeleteComment", category: CategoryDeleteComment, key: commentID, empty: model.ErrDeleteComment},
		func(ctx context.Context) (*model.Task, error) {
			return c.backend.DeleteComment(ctx, taskID, commentID)
		},
		c.replaceLocked,
		fixed("Comment deleted successfully!"),
	)
}

// AddSubtask appends a subtask to a task. Pending is keyed by the task id.
func (c *Coordinator) AddSubtask(ctx context.Context, taskID, title string) (*model.Task, error) {
	start := time.Now()
	title = strings.TrimSpace(title)
	if verr := model.ValidateSubtask(title); verr != nil {
		return nil, c.reject(ctx, "AddSubtask", verr, start)
	}

	return c.dispatch(ctx,
		intent{name: "AddSubtask", category: CategoryAddSubtask, key: taskID, empty: model.ErrAddSubtask},
		func(ctx context.Context) (*model.Task, error) { return c.backend.AddSubtask(ctx, taskID, title) },
		c.replaceLocked,
		fixed("Subtask added successfully!"),
	)
}

// ToggleSubtask flips a subtask's completion flag.
func (c *Coordinator) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (*model.Task, error) {
	return c.dispatch(ctx,
		intent{name: "ToggleSubtask", category: CategoryToggleSubtask, key: subtaskID, empty: model.ErrToggleSubtask},
		func(ctx context.Context) (*model.Task, error) {
			return c.backend.ToggleSubtask(ctx, taskID, subtaskID)
		},
		c.replaceLocked,
		fixed("Subtask updated successfully!"),
	)
}

// DeleteSubtask removes a subtask.
func (c *Coordinator) DeleteSubtask(ctx context.Context, taskID, subtaskID string) (*model.Task, error) {
	return c.dispatch(ctx,
		intent{name: "DeleteSubtask", category: CategoryDeleteSubtask, key: subtaskID, empty: model.ErrDeleteSubtask},
		func(ctx context.Context) (*model.Task, error) {
			return c.backend.DeleteSubtask(ctx, taskID, subtaskID)
		},
		c.replaceLocked,
		fixed("Subtask deleted successfully!"),
	)
}
