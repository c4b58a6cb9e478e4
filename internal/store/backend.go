package store

import (
	"context"

	"github.com/hiroki-koketsu/taskboard/internal/model"
)

// Backend is the asynchronous service the coordinator reconciles against.
// Every call may fail independently of its input; returned tasks are owned by
// the caller.
type Backend interface {
	List(ctx context.Context) ([]*model.Task, error)
	Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error)
	Update(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error)
	Delete(ctx context.Context, id string) error
	AddComment(ctx context.Context, taskID, text string) (*model.Task, error)
	DeleteComment(ctx context.Context, taskID, commentID string) (*model.Task, error)
	AddSubtask(ctx context.Context, taskID, title string) (*model.Task, error)
	ToggleSubtask(ctx context.Context, taskID, subtaskID string) (*model.Task, error)
	DeleteSubtask(ctx context.Context, taskID, subtaskID string) (*model.Task, error)
}
