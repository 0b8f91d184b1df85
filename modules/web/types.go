package web

import (
	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/domain/user"
)

// ActionResult is the uniform response of every form action and single
// task call.
type ActionResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	User    *user.Identity `json:"user,omitempty"`
	Task    *TaskView      `json:"task,omitempty"`
}

// TaskListResult is the response of a task listing. Tasks is always
// present, empty when nothing matches.
type TaskListResult struct {
	Success bool       `json:"success"`
	Tasks   []TaskView `json:"tasks"`
}

// TaskView is a task as presented to the browser.
type TaskView struct {
	domain.Task
	Overdue bool `json:"is_overdue"`
}

// PageResponse describes a page that has no data of its own.
type PageResponse struct {
	Page          string         `json:"page"`
	User          *user.Identity `json:"user,omitempty"`
	Error         string         `json:"error,omitempty"`
	Token         string         `json:"token,omitempty"`
	GoogleEnabled bool           `json:"google_enabled,omitempty"`
}

// DashboardResponse describes the dashboard.
type DashboardResponse struct {
	Page      string         `json:"page"`
	User      *user.Identity `json:"user"`
	Filter    string         `json:"filter"`
	Search    string         `json:"search"`
	Sort      string         `json:"sort"`
	Direction string         `json:"direction"`
	Tasks     []TaskView     `json:"tasks"`
	Counts    TaskCounts     `json:"counts"`
	LoadError string         `json:"load_error,omitempty"`
	RetryURL  string         `json:"retry_url,omitempty"`
}

// TaskCounts summarises a task listing.
type TaskCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}

// HealthResponse represents the health endpoint body.
type HealthResponse struct {
	Status  string                  `json:"status"`
	Modules map[string]ModuleHealth `json:"modules"`
}

// ModuleHealth is the health of a single module.
type ModuleHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message"`
}

// SignInForm represents a sign-in form post.
type SignInForm struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// SignUpForm represents a registration form post.
type SignUpForm struct {
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// ResetPasswordForm represents a password reset request.
type ResetPasswordForm struct {
	Email string `json:"email" form:"email"`
}

// UpdatePasswordForm represents a new password submitted from a reset link.
type UpdatePasswordForm struct {
	Token           string `json:"token" form:"token"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// CreateTaskForm represents a new task.
type CreateTaskForm struct {
	Title       string  `json:"title" form:"title"`
	Description *string `json:"description" form:"description"`
	DueDate     *string `json:"due_date" form:"due_date"`
}

// UpdateTaskForm represents a partial task update. Absent fields are left
// unchanged.
type UpdateTaskForm struct {
	Title       *string `json:"title" form:"title"`
	Description *string `json:"description" form:"description"`
	DueDate     *string `json:"due_date" form:"due_date"`
	IsCompleted *bool   `json:"is_completed" form:"is_completed"`
}
