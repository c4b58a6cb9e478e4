package store

import (
	"context"
	"errors"

	"github.com/hiroki-koketsu/taskboard/internal/model"
)

var errUnexpectedCall = errors.New("unexpected backend call")

// fakeBackend implements Backend with overridable funcs. Unset funcs fail.
type fakeBackend struct {
	ListFunc          func(ctx context.Context) ([]*model.Task, error)
	CreateFunc        func(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error)
	UpdateFunc        func(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error)
	DeleteFunc        func(ctx context.Context, id string) error
	AddCommentFunc    func(ctx context.Context, taskID, text string) (*model.Task, error)
	DeleteCommentFunc func(ctx context.Context, taskID, commentID string) (*model.Task, error)
	AddSubtaskFunc    func(ctx context.Context, taskID, title string) (*model.Task, error)
	ToggleSubtaskFunc func(ctx context.Context, taskID, subtaskID string) (*model.Task, error)
	DeleteSubtaskFunc func(ctx context.Context, taskID, subtaskID string) (*model.Task, error)
}

func (f *fakeBackend) List(ctx context.Context) ([]*model.Task, error) {
	if f.ListFunc != nil {
		return f.ListFunc(ctx)
	}
	return nil, errUnexpectedCall
}

func (f *fakeBackend) Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, req)
	}
	return nil, errUnexpectedCall
}

func (f *fakeBackend) Update(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error) {
	if f.UpdateFunc != nil {
		return f.UpdateFunc(ctx, id, req)
	}
	return nil, errUnexpectedCall
}

func (f *fakeBackend) Delete(ctx context.Context, id string) error {
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, id)
	}
	return errUnexpectedCall
}

func (f *fakeBackend) AddComment(ctx context.Context, taskID, text string) (*model.Task, error) {
	if f.AddCommentFunc != nil {
		return f.AddCommentFunc(ctx, taskID, text)
	}
	return nil, errUnexpectedCall
}

func (f *fakeBackend) DeleteComment(ctx context.Context, taskID, commentID string) (*model.Task, error) {
	if f.DeleteCommentFunc != nil {
		return f.DeleteCommentFunc(ctx, taskID, commentID)
	}
	return nil, errUnexpectedCall
}

func (f *fakeBackend) AddSubtask(ctx context.Context, taskID, title string) (*model.Task, error) {
	if f.AddSubtaskFunc != nil {
		return f.AddSubtaskFunc(ctx, taskID, title)
	}
	return nil, errUnexpectedCall
}

func (f *fakeBackend) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (*model.Task, error) {
	if f.ToggleSubtaskFunc != nil {
		return f.ToggleSubtaskFunc(ctx, taskID, subtaskID)
	}
	return nil, errUnexpectedCall
}

func (f *fakeBackend) DeleteSubtask(ctx context.Context, taskID, subtaskID string) (*model.Task, error) {
	if f.DeleteSubtaskFunc != nil {
		return f.DeleteSubtaskFunc(ctx, taskID, subtaskID)
	}
	return nil, errUnexpectedCall
}
