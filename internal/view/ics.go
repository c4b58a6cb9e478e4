package view

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hiroki-koketsu/taskboard/internal/model"
)

const icsDateLayout = "20060102"

// ErrNoDueDate is returned when exporting a task that has no due date.
var ErrNoDueDate = errors.New("task due date required for calendar export")

// TaskICS builds an all-day iCalendar event on the task's due date.
func TaskICS(t model.Task, now time.Time) (string, error) {
	if t.DueDate == nil {
		return "", ErrNoDueDate
	}
	due := t.DueDate.In(time.UTC)

	uid := fmt.Sprintf("task-%s@taskboard", t.ID)
	if t.ID == "" {
		uid = fmt.Sprintf("task-export-%d@taskboard", now.UnixNano())
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Taskboard//Task Export//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:" + escapeICSText(uid),
		"DTSTAMP:" + now.UTC().Format("20060102T150405Z"),
		"SUMMARY:" + escapeICSText(t.Title),
		"DTSTART;VALUE=DATE:" + due.Format(icsDateLayout),
		"DTEND;VALUE=DATE:" + due.AddDate(0, 0, 1).Format(icsDateLayout),
		"CATEGORIES:" + escapeICSText(t.Status.Label()),
	}
	if desc := strings.TrimSpace(t.Description); desc != "" {
		lines = append(lines, "DESCRIPTION:"+escapeICSText(desc))
	}
	if !t.UpdatedAt.IsZero() {
		lines = append(lines, "LAST-MODIFIED:"+t.UpdatedAt.UTC().Format("20060102T150405Z"))
	}
	lines = append(lines, "END:VEVENT", "END:VCALENDAR", "")

	return strings.Join(lines, "\r\n"), nil
}

var icsEscaper = strings.NewReplacer(
	"\\", "\\\\",
	";", "\\;",
	",", "\\,",
	"\r\n", "\\n",
	"\n", "\\n",
	"\r", "\\n",
)

func escapeICSText(s string) string {
	return icsEscaper.Replace(s)
}
