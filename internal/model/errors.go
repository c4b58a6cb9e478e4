package model

import (
	"errors"
)

// ErrorCode is the stable, machine readable identifier of a TaskError.
type ErrorCode string

const (
	CodeFetch         ErrorCode = "FETCH_ERROR"
	CodeCreate        ErrorCode = "CREATE_ERROR"
	CodeUpdate        ErrorCode = "UPDATE_ERROR"
	CodeDelete        ErrorCode = "DELETE_ERROR"
	CodeAddComment    ErrorCode = "ADD_COMMENT_ERROR"
	CodeDeleteComment ErrorCode = "DELETE_COMMENT_ERROR"
	CodeAddSubtask    ErrorCode = "ADD_SUBTASK_ERROR"
	CodeToggleSubtask ErrorCode = "TOGGLE_SUBTASK_ERROR"
	CodeDeleteSubtask ErrorCode = "DELETE_SUBTASK_ERROR"
	CodeNotFound      ErrorCode = "NOT_FOUND"
)

// TaskError represents a domain error for tasks. Two TaskErrors match under
// errors.Is when their codes are equal.
type TaskError struct {
	Code    ErrorCode
	Message string
}

func (e TaskError) Error() string {
	return e.Message
}

func (e TaskError) Is(target error) bool {
	var t TaskError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrFetch         = TaskError{Code: CodeFetch, Message: "Failed to fetch To-Dos. Please try again."}
	ErrCreate        = TaskError{Code: CodeCreate, Message: "Failed to create To-Do. Please try again."}
	ErrUpdate        = TaskError{Code: CodeUpdate, Message: "Failed to update To-Do. Please try again."}
	ErrDelete        = TaskError{Code: CodeDelete, Message: "Failed to delete To-Do. Please try again."}
	ErrAddComment    = TaskError{Code: CodeAddComment, Message: "Failed to add comment. Please try again."}
	ErrDeleteComment = TaskError{Code: CodeDeleteComment, Message: "Failed to delete comment. Please try again."}
	ErrAddSubtask    = TaskError{Code: CodeAddSubtask, Message: "Failed to add subtask. Please try again."}
	ErrToggleSubtask = TaskError{Code: CodeToggleSubtask, Message: "Failed to toggle subtask. Please try again."}
	ErrDeleteSubtask = TaskError{Code: CodeDeleteSubtask, Message: "Failed to delete subtask. Please try again."}

	ErrTaskNotFound    = TaskError{Code: CodeNotFound, Message: "To-Do not found"}
	ErrCommentNotFound = TaskError{Code: CodeNotFound, Message: "Comment not found"}
	ErrSubtaskNotFound = TaskError{Code: CodeNotFound, Message: "Subtask not found"}
)

// CodeOf returns the code of the first TaskError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var te TaskError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
