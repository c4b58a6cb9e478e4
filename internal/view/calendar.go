package view

import (
	"fmt"
	"slices"
	"time"

	"github.com/hiroki-koketsu/taskboard/internal/model"
)

const monthLayout = "2006-01"

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing d.
func MonthOf(d model.Date) Month {
	return Month{Year: d.Year, Month: d.Month}
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: must be YYYY-MM", s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// First returns the first day of m.
func (m Month) First() model.Date {
	return model.Date{Year: m.Year, Month: m.Month, Day: 1}
}

// Last returns the last day of m.
func (m Month) Last() model.Date {
	return m.Next().First().AddDays(-1)
}

// Next returns the month after m.
func (m Month) Next() Month {
	return m.add(1)
}

// Prev returns the month before m.
func (m Month) Prev() Month {
	return m.add(-1)
}

func (m Month) add(n int) Month {
	return MonthOf(model.DateOf(m.First().In(time.UTC).AddDate(0, n, 0)))
}

func (m Month) Contains(d model.Date) bool {
	return d.Year == m.Year && d.Month == m.Month
}

func (m Month) String() string {
	return m.First().In(time.UTC).Format(monthLayout)
}

// Day is one cell of the calendar grid.
type Day struct {
	Date    model.Date   `json:"date"`
	InMonth bool         `json:"inMonth"`
	Tasks   []model.Task `json:"tasks"`
}

// MonthGrid is a calendar month laid out in whole weeks, Sunday first.
type MonthGrid struct {
	Month string `json:"month"`
	Days  []Day  `json:"days"`
}

// Weeks splits the grid into rows of seven days.
func (g MonthGrid) Weeks() [][]Day {
	weeks := make([][]Day, 0, len(g.Days)/7)
	for i := 0; i+7 <= len(g.Days); i += 7 {
		weeks = append(weeks, g.Days[i:i+7])
	}
	return weeks
}

// Calendar lays out m from the Sunday on or before its first day to the
// Saturday on or after its last day. Each cell lists the tasks due that day in
// input order. Tasks without a due date are left out.
func Calendar(tasks []model.Task, m Month) MonthGrid {
	start := m.First()
	start = start.AddDays(-int(weekday(start)))
	end := m.Last()
	end = end.AddDays(int(time.Saturday - weekday(end)))

	due := make(map[model.Date][]model.Task)
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		due[*t.DueDate] = append(due[*t.DueDate], t)
	}

	grid := MonthGrid{Month: m.String()}
	for d := start; !end.Before(d); d = d.AddDays(1) {
		day := Day{Date: d, InMonth: m.Contains(d), Tasks: due[d]}
		if day.Tasks == nil {
			day.Tasks = []model.Task{}
		}
		grid.Days = append(grid.Days, day)
	}
	return grid
}

// MonthTasks returns the tasks due within m, earliest due date first.
func MonthTasks(tasks []model.Task, m Month) []model.Task {
	out := []model.Task{}
	for _, t := range tasks {
		if t.DueDate != nil && m.Contains(*t.DueDate) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Task) int {
		return a.DueDate.In(time.UTC).Compare(b.DueDate.In(time.UTC))
	})
	return out
}

func weekday(d model.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}
