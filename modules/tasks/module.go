package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	"github.com/example/task-tracker/domain/session"
	"github.com/example/task-tracker/modules/auth"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Config holds the settings of the tasks module.
type Config struct {
	DBPath          string
	DatabaseURL     string
	DBDebug         bool
	StoreTimeout    time.Duration
	ProviderTimeout time.Duration
}

// TasksModule owns the task data store and exposes the task access layer.
type TasksModule struct {
	config   Config
	logger   types.Logger
	identity IdentityResolver
	store    Store
	service  *Service
}

// Compile-time interface checks.
var _ mono.Module = (*TasksModule)(nil)
var _ mono.ServiceProviderModule = (*TasksModule)(nil)
var _ mono.DependentModule = (*TasksModule)(nil)
var _ mono.HealthCheckableModule = (*TasksModule)(nil)

// NewModule creates a new TasksModule.
func NewModule(config Config, logger types.Logger) *TasksModule {
	return &TasksModule{
		config: config,
		logger: logger,
	}
}

// Name returns the module name.
func (m *TasksModule) Name() string {
	return "tasks"
}

// Dependencies returns the list of module dependencies.
func (m *TasksModule) Dependencies() []string {
	return []string{"auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *TasksModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "auth" {
		m.identity = NewSessionIdentity(auth.NewAuthAdapter(container, m.config.ProviderTimeout))
	}
}

// Start opens the data store and builds the service.
func (m *TasksModule) Start(ctx context.Context) error {
	if m.identity == nil {
		return fmt.Errorf("identity dependency not set")
	}

	backend := "sqlite"
	if m.config.DatabaseURL != "" {
		backend = "postgres"
		store, err := OpenPostgres(ctx, m.config.DatabaseURL)
		if err != nil {
			return err
		}
		m.store = store
	} else {
		store, err := OpenSQLite(m.config.DBPath, m.config.DBDebug)
		if err != nil {
			return err
		}
		m.store = store
	}

	m.service = NewService(m.store, m.identity, m.config.StoreTimeout)
	m.logger.Info("Tasks module started", "backend", backend)
	return nil
}

// Stop closes the data store.
func (m *TasksModule) Stop(_ context.Context) error {
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			m.logger.Warn("Failed to close task store", "error", err)
		}
	}
	m.logger.Info("Tasks module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *TasksModule) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "data store not initialized",
		}
	}
	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("data store ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *TasksModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateTask, json.Unmarshal, json.Marshal, m.handleCreate,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListTasks, json.Unmarshal, json.Marshal, m.handleList,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListTasks, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetTask, json.Unmarshal, json.Marshal, m.handleGet,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceUpdateTask, json.Unmarshal, json.Marshal, m.handleUpdate,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceUpdateTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDeleteTask, json.Unmarshal, json.Marshal, m.handleDelete,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDeleteTask, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceToggleTask, json.Unmarshal, json.Marshal, m.handleToggle,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceToggleTask, err)
	}

	m.logger.Info("Registered task services",
		"services", []string{
			ServiceCreateTask, ServiceListTasks, ServiceGetTask,
			ServiceUpdateTask, ServiceDeleteTask, ServiceToggleTask,
		})
	return nil
}

func (m *TasksModule) handleCreate(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.service.Create(session.WithCredentials(ctx, req.Credentials), req.Input)
	if err != nil {
		return TaskResponse{Failure: m.failure(ServiceCreateTask, err)}, nil
	}
	return TaskResponse{Task: t}, nil
}

func (m *TasksModule) handleList(ctx context.Context, req ListTasksRequest, _ *mono.Msg) (ListTasksResponse, error) {
	tasks, err := m.service.List(session.WithCredentials(ctx, req.Credentials), req.Query)
	if err != nil {
		return ListTasksResponse{Failure: m.failure(ServiceListTasks, err)}, nil
	}
	return ListTasksResponse{Tasks: tasks}, nil
}

func (m *TasksModule) handleGet(ctx context.Context, req TaskIDRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.service.Get(session.WithCredentials(ctx, req.Credentials), req.ID)
	if err != nil {
		return TaskResponse{Failure: m.failure(ServiceGetTask, err)}, nil
	}
	return TaskResponse{Task: t}, nil
}

func (m *TasksModule) handleUpdate(ctx context.Context, req UpdateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.service.Update(session.WithCredentials(ctx, req.Credentials), req.ID, req.Input)
	if err != nil {
		return TaskResponse{Failure: m.failure(ServiceUpdateTask, err)}, nil
	}
	return TaskResponse{Task: t}, nil
}

func (m *TasksModule) handleDelete(ctx context.Context, req TaskIDRequest, _ *mono.Msg) (DeleteTaskResponse, error) {
	deleted, err := m.service.Delete(session.WithCredentials(ctx, req.Credentials), req.ID)
	if err != nil {
		return DeleteTaskResponse{Failure: m.failure(ServiceDeleteTask, err)}, nil
	}
	return DeleteTaskResponse{Deleted: deleted}, nil
}

func (m *TasksModule) handleToggle(ctx context.Context, req TaskIDRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.service.ToggleCompletion(session.WithCredentials(ctx, req.Credentials), req.ID)
	if err != nil {
		return TaskResponse{Failure: m.failure(ServiceToggleTask, err)}, nil
	}
	return TaskResponse{Task: t}, nil
}

func (m *TasksModule) failure(op string, err error) *apperr.Payload {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotAuthenticated:
	default:
		m.logger.Warn("Task operation failed", "operation", op, "error", err)
	}
	return apperr.ToPayload(err, apperr.KindStorage)
}
