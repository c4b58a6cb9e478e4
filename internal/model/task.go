package model

import (
	"time"
)

// Status is the board column a task sits in. It is independent of Completed.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Label returns the human readable column name.
func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

// Task represents a todo item in the system.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	Status      Status    `json:"status"`
	DueDate     *Date     `json:"dueDate,omitempty"`
	Comments    []Comment `json:"comments"`
	Subtasks    []Subtask `json:"subtasks"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Comment is a note attached to a task.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Subtask is a checklist entry attached to a task.
type Subtask struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the task. Comments and Subtasks are never nil
// on the copy.
func (t *Task) Clone() *Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	c.Comments = append(make([]Comment, 0, len(t.Comments)), t.Comments...)
	c.Subtasks = append(make([]Subtask, 0, len(t.Subtasks)), t.Subtasks...)
	return &c
}

// CommentIndex returns the position of the comment with the given id, or -1.
func (t *Task) CommentIndex(id string) int {
	for i := range t.Comments {
		if t.Comments[i].ID == id {
			return i
		}
	}
	return -1
}

// SubtaskIndex returns the position of the subtask with the given id, or -1.
func (t *Task) SubtaskIndex(id string) int {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			return i
		}
	}
	return -1
}

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     *Date  `json:"dueDate,omitempty"`
}

// UpdateTaskRequest is a partial update. Nil fields are left untouched;
// ClearDueDate removes the due date.
type UpdateTaskRequest struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Completed    *bool   `json:"completed,omitempty"`
	Status       *Status `json:"status,omitempty"`
	DueDate      *Date   `json:"dueDate,omitempty"`
	ClearDueDate bool    `json:"clearDueDate,omitempty"`
}

// Apply merges the request into t. It does not touch UpdatedAt.
func (r *UpdateTaskRequest) Apply(t *Task) {
	if r.Title != nil {
		t.Title = *r.Title
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Completed != nil {
		t.Completed = *r.Completed
	}
	if r.Status != nil {
		t.Status = *r.Status
	}
	switch {
	case r.ClearDueDate:
		t.DueDate = nil
	case r.DueDate != nil:
		d := *r.DueDate
		t.DueDate = &d
	}
}
