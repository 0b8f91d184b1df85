package tasks

import (
	"github.com/example/task-tracker/domain/apperr"
	"github.com/example/task-tracker/domain/session"
	domain "github.com/example/task-tracker/domain/task"
)

// Service names registered by the tasks module.
const (
	ServiceCreateTask = "create-task"
	ServiceListTasks  = "list-tasks"
	ServiceGetTask    = "get-task"
	ServiceUpdateTask = "update-task"
	ServiceDeleteTask = "delete-task"
	ServiceToggleTask = "toggle-task"
)

// Every request carries the caller's credentials; the owner is derived
// from them on the provider side of the call.

// CreateTaskRequest represents a create task request.
type CreateTaskRequest struct {
	Credentials session.Credentials `json:"credentials"`
	Input       CreateInput         `json:"input"`
}

// ListTasksRequest represents a list tasks request.
type ListTasksRequest struct {
	Credentials session.Credentials `json:"credentials"`
	Query       Query               `json:"query"`
}

// TaskIDRequest addresses a single task.
type TaskIDRequest struct {
	Credentials session.Credentials `json:"credentials"`
	ID          string              `json:"id"`
}

// UpdateTaskRequest represents a partial update request.
type UpdateTaskRequest struct {
	Credentials session.Credentials `json:"credentials"`
	ID          string              `json:"id"`
	Input       UpdateInput         `json:"input"`
}

// TaskResponse carries a single task; Task is nil when not found.
type TaskResponse struct {
	Task    *domain.Task    `json:"task,omitempty"`
	Failure *apperr.Payload `json:"failure,omitempty"`
}

// ListTasksResponse carries a task listing.
type ListTasksResponse struct {
	Tasks   []domain.Task   `json:"tasks"`
	Failure *apperr.Payload `json:"failure,omitempty"`
}

// DeleteTaskResponse reports whether a task was removed.
type DeleteTaskResponse struct {
	Deleted bool            `json:"deleted"`
	Failure *apperr.Payload `json:"failure,omitempty"`
}
