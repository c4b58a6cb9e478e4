package repository

import (
	"time"

	"github.com/hiroki-koketsu/taskboard/internal/model"
)

// defaultTasks is the demo collection installed when storage has never been
// written.
func defaultTasks(now time.Time) []*model.Task {
	day := 24 * time.Hour
	due := func(days int) *model.Date {
		d := model.DateOf(now).AddDays(days)
		return &d
	}

	return []*model.Task{
		{
			ID:          "1",
			Title:       "Complete React project",
			Description: "Build a To-Do application with TypeScript and modern React patterns",
			Status:      model.StatusInProgress,
			DueDate:     due(7),
			Comments: []model.Comment{
				{ID: "c1", Text: "Great progress so far!", CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour)},
			},
			Subtasks: []model.Subtask{
				{ID: "s1", Title: "Set up project structure", Completed: true, CreatedAt: now.Add(-day), UpdatedAt: now.Add(-day)},
				{ID: "s2", Title: "Implement components", CreatedAt: now.Add(-day / 2), UpdatedAt: now.Add(-day / 2)},
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          "2",
			Title:       "Learn TypeScript",
			Description: "Master TypeScript fundamentals and advanced patterns",
			Completed:   true,
			Status:      model.StatusDone,
			DueDate:     due(-2),
			Comments:    []model.Comment{},
			Subtasks:    []model.Subtask{},
			CreatedAt:   now.Add(-day),
			UpdatedAt:   now.Add(-day),
		},
		{
			ID:          "3",
			Title:       "Setup Tailwind CSS",
			Description: "Configure Tailwind CSS with shadcn/ui components",
			Status:      model.StatusTodo,
			DueDate:     due(3),
			Comments:    []model.Comment{},
			Subtasks:    []model.Subtask{},
			CreatedAt:   now.Add(-2 * day),
			UpdatedAt:   now.Add(-2 * day),
		},
	}
}
