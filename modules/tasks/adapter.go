package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	"github.com/example/task-tracker/domain/session"
	domain "github.com/example/task-tracker/domain/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// TaskPort is the task access layer as seen by other modules. Credentials
// are taken from the context (session.WithCredentials).
type TaskPort interface {
	Create(ctx context.Context, in CreateInput) (*domain.Task, error)
	List(ctx context.Context, q Query) ([]domain.Task, error)
	Get(ctx context.Context, id string) (*domain.Task, error)
	Update(ctx context.Context, id string, in UpdateInput) (*domain.Task, error)
	Delete(ctx context.Context, id string) (bool, error)
	ToggleCompletion(ctx context.Context, id string) (*domain.Task, error)
}

var _ TaskPort = (*Service)(nil)
var _ TaskPort = (*TaskAdapter)(nil)

// TaskAdapter implements TaskPort over the service container.
type TaskAdapter struct {
	container mono.ServiceContainer
	timeout   time.Duration
}

// NewTaskAdapter creates a new adapter for task services.
func NewTaskAdapter(container mono.ServiceContainer, timeout time.Duration) *TaskAdapter {
	return &TaskAdapter{
		container: container,
		timeout:   timeout,
	}
}

// Create creates a task via the create-task service.
func (a *TaskAdapter) Create(ctx context.Context, in CreateInput) (*domain.Task, error) {
	req := CreateTaskRequest{Credentials: credentials(ctx), Input: in}
	var resp TaskResponse
	if err := call(ctx, a, ServiceCreateTask, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Task, resp.Failure.Err()
}

// List lists tasks via the list-tasks service.
func (a *TaskAdapter) List(ctx context.Context, q Query) ([]domain.Task, error) {
	req := ListTasksRequest{Credentials: credentials(ctx), Query: q}
	var resp ListTasksResponse
	if err := call(ctx, a, ServiceListTasks, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Failure.Err(); err != nil {
		return nil, err
	}
	if resp.Tasks == nil {
		resp.Tasks = []domain.Task{}
	}
	return resp.Tasks, nil
}

// Get retrieves a task via the get-task service.
func (a *TaskAdapter) Get(ctx context.Context, id string) (*domain.Task, error) {
	return a.single(ctx, ServiceGetTask, id)
}

// Update updates a task via the update-task service.
func (a *TaskAdapter) Update(ctx context.Context, id string, in UpdateInput) (*domain.Task, error) {
	req := UpdateTaskRequest{Credentials: credentials(ctx), ID: id, Input: in}
	var resp TaskResponse
	if err := call(ctx, a, ServiceUpdateTask, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Task, resp.Failure.Err()
}

// Delete deletes a task via the delete-task service.
func (a *TaskAdapter) Delete(ctx context.Context, id string) (bool, error) {
	req := TaskIDRequest{Credentials: credentials(ctx), ID: id}
	var resp DeleteTaskResponse
	if err := call(ctx, a, ServiceDeleteTask, &req, &resp); err != nil {
		return false, err
	}
	return resp.Deleted, resp.Failure.Err()
}

// ToggleCompletion flips completion via the toggle-task service.
func (a *TaskAdapter) ToggleCompletion(ctx context.Context, id string) (*domain.Task, error) {
	return a.single(ctx, ServiceToggleTask, id)
}

func (a *TaskAdapter) single(ctx context.Context, service, id string) (*domain.Task, error) {
	req := TaskIDRequest{Credentials: credentials(ctx), ID: id}
	var resp TaskResponse
	if err := call(ctx, a, service, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Task, resp.Failure.Err()
}

func credentials(ctx context.Context) session.Credentials {
	creds, _ := session.FromContext(ctx)
	return creds
}

func call[Req, Resp any](ctx context.Context, a *TaskAdapter, service string, req *Req, resp *Resp) error {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return apperr.Storage("task service unavailable", err)
	}
	return nil
}
