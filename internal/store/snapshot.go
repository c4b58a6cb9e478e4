package store

import (
	"slices"
	"time"

	"github.com/hiroki-koketsu/taskboard/internal/model"
)

// Category groups in-flight intents for busy-state lookups.
type Category string

const (
	CategoryCreate        Category = "create"
	CategoryUpdate        Category = "update"
	CategoryDelete        Category = "delete"
	CategoryAddComment    Category = "comment-add"
	CategoryDeleteComment Category = "comment-delete"
	CategoryAddSubtask    Category = "subtask-add"
	CategoryToggleSubtask Category = "subtask-toggle"
	CategoryDeleteSubtask Category = "subtask-delete"
)

// Categories lists every pending category.
var Categories = []Category{
	CategoryCreate,
	CategoryUpdate,
	CategoryDelete,
	CategoryAddComment,
	CategoryDeleteComment,
	CategoryAddSubtask,
	CategoryToggleSubtask,
	CategoryDeleteSubtask,
}

// Snapshot is an immutable copy of the coordinator's state. Nothing in it is
// shared with the coordinator.
type Snapshot struct {
	Tasks         []model.Task          `json:"tasks"`
	Pending       map[Category][]string `json:"pending"`
	Loading       bool                  `json:"loading"`
	LastError     string                `json:"lastError,omitempty"`
	Notifications []Notification        `json:"notifications"`
	Version       uint64                `json:"version"`
	TakenAt       time.Time             `json:"takenAt"`
}

// IsPending reports whether id awaits a backend response for category c.
func (s Snapshot) IsPending(c Category, id string) bool {
	return slices.Contains(s.Pending[c], id)
}

// Creating reports whether any create intent is in flight.
func (s Snapshot) Creating() bool {
	return len(s.Pending[CategoryCreate]) > 0
}

// Task returns the task with the given id.
func (s Snapshot) Task(id string) (model.Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}
