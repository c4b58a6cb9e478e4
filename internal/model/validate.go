package model

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Field length limits, counted in characters after trimming.
const (
	TitleMin        = 3
	TitleMax        = 100
	DescriptionMin  = 4
	DescriptionMax  = 500
	CommentMin      = 2
	CommentMax      = 500
	SubtaskTitleMin = 2
	SubtaskTitleMax = 100
)

// ValidationError reports per-field input problems caught before a request
// is dispatched.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() *ValidationError {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ValidateTask checks the fields shared by create and edit. The due date may
// not be before today.
func ValidateTask(title, description string, due *Date, today Date) *ValidationError {
	var verr ValidationError

	title = strings.TrimSpace(title)
	switch n := utf8.RuneCountInString(title); {
	case n == 0:
		verr.add("title", "Title is required")
	case n < TitleMin:
		verr.add("title", "Title must be at least 3 characters")
	case n > TitleMax:
		verr.add("title", "Title must be less than 100 characters")
	}

	description = strings.TrimSpace(description)
	switch n := utf8.RuneCountInString(description); {
	case n > 0 && n < DescriptionMin:
		verr.add("description", "Description must be at least 4 characters")
	case n > DescriptionMax:
		verr.add("description", "Description must be less than 500 characters")
	}

	if due != nil && due.Before(today) {
		verr.add("dueDate", "Due date cannot be in the past")
	}

	return verr.orNil()
}

// ValidateComment checks the text of a new comment.
func ValidateComment(text string) *ValidationError {
	var verr ValidationError
	switch n := utf8.RuneCountInString(strings.TrimSpace(text)); {
	case n == 0:
		verr.add("text", "Comment cannot be empty")
	case n < CommentMin:
		verr.add("text", "Comment must be at least 2 characters")
	case n > CommentMax:
		verr.add("text", "Comment must be less than 500 characters")
	}
	return verr.orNil()
}

// ValidateSubtask checks the title of a new subtask.
func ValidateSubtask(title string) *ValidationError {
	var verr ValidationError
	switch n := utf8.RuneCountInString(strings.TrimSpace(title)); {
	case n == 0:
		verr.add("title", "Subtask title cannot be empty")
	case n < SubtaskTitleMin:
		verr.add("title", "Subtask title must be at least 2 characters")
	case n > SubtaskTitleMax:
		verr.add("title", "Subtask title must be less than 100 characters")
	}
	return verr.orNil()
}

// ValidateStatus checks a board status.
func ValidateStatus(s Status) *ValidationError {
	var verr ValidationError
	if !s.Valid() {
		verr.add("status", "Status must be one of todo, in-progress, done")
	}
	return verr.orNil()
}
