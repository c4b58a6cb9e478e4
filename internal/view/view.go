// Package view holds read-only projections of the task collection: the list,
// the status board, the calendar grid and per-task subtask progress.
//
// All functions are pure. They never modify their input.
package view

import (
	"slices"

	"github.com/hiroki-koketsu/taskboard/internal/model"
)

// List returns the tasks newest first. Tasks created at the same instant keep
// their input order.
func List(tasks []model.Task) []model.Task {
	out := slices.Clone(tasks)
	slices.SortStableFunc(out, func(a, b model.Task) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// Column is one status lane of the board.
type Column struct {
	Status model.Status `json:"status"`
	Label  string       `json:"label"`
	Tasks  []model.Task `json:"tasks"`
}

// Board groups tasks by status. Columns always come in the order todo,
// in-progress, done, and keep the input order of their tasks.
func Board(tasks []model.Task) []Column {
	cols := make([]Column, len(model.Statuses))
	lane := make(map[model.Status]int, len(model.Statuses))
	for i, s := range model.Statuses {
		cols[i] = Column{Status: s, Label: s.Label(), Tasks: []model.Task{}}
		lane[s] = i
	}
	for _, t := range tasks {
		i, ok := lane[t.Status]
		if !ok {
			continue
		}
		cols[i].Tasks = append(cols[i].Tasks, t)
	}
	return cols
}

// SubtaskProgress summarizes how many subtasks of a task are done.
type SubtaskProgress struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// Progress reports subtask completion. A task without subtasks is at 0%.
func Progress(t model.Task) SubtaskProgress {
	p := SubtaskProgress{Total: len(t.Subtasks)}
	for _, st := range t.Subtasks {
		if st.Completed {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percent = float64(p.Completed) / float64(p.Total) * 100
	}
	return p
}
