package tasks

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/example/task-tracker/domain/apperr"
	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/domain/user"
)

// IdentityResolver returns the user the current request acts for, or nil
// when nobody is signed in.
type IdentityResolver interface {
	CurrentUser(ctx context.Context) (*user.Identity, error)
}

// CreateInput holds the fields of a new task.
type CreateInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

// UpdateInput is a partial update. Nil fields are left unchanged; an empty
// description or due date clears the value.
type UpdateInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

// Service is the owner-scoped task access layer. It resolves the current
// user on every call and never accepts an owner id from its caller.
type Service struct {
	store    Store
	identity IdentityResolver
	timeout  time.Duration
	now      func() time.Time
}

// NewService creates a new task service. Store calls are bounded by timeout.
func NewService(store Store, identity IdentityResolver, timeout time.Duration) *Service {
	return &Service{
		store:    store,
		identity: identity,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Create adds a task owned by the current user.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Task, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	dueDate, err := normalizeDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &domain.Task{
		UserID:      userID,
		Title:       title,
		Description: domain.NormalizeOptional(in.Description),
		DueDate:     dueDate,
		IsCompleted: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.store.Create(ctx, t); err != nil {
		return nil, storageError("failed to create task", err)
	}
	return t, nil
}

// List returns the current user's tasks matching q. Failures are returned
// as errors, never as an empty result.
func (s *Service) List(ctx context.Context, q Query) ([]domain.Task, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	q, err = q.Normalize()
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	tasks, err := s.store.List(ctx, userID, q)
	if err != nil {
		return nil, storageError("failed to load tasks", err)
	}
	return tasks, nil
}

// Get returns one of the current user's tasks, or nil when it does not
// exist or belongs to someone else.
func (s *Service) Get(ctx context.Context, id string) (*domain.Task, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	t, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, storageError("failed to load task", err)
	}
	return t, nil
}

// Update applies a partial update to one of the current user's tasks. It
// returns nil when the task does not exist or belongs to someone else.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*domain.Task, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}

	patch, err := s.patchFrom(in)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	t, err := s.store.Update(ctx, userID, id, patch)
	if err != nil {
		return nil, storageError("failed to update task", err)
	}
	return t, nil
}

// Delete removes one of the current user's tasks and reports whether a row
// was removed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(id) == "" {
		return false, nil
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	deleted, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return false, storageError("failed to delete task", err)
	}
	return deleted, nil
}

// ToggleCompletion flips the completion flag of one of the current user's
// tasks.
func (s *Service) ToggleCompletion(ctx context.Context, id string) (*domain.Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil || t == nil {
		return nil, err
	}
	completed := !t.IsCompleted
	return s.Update(ctx, id, UpdateInput{IsCompleted: &completed})
}

func (s *Service) currentUserID(ctx context.Context) (string, error) {
	u, err := s.identity.CurrentUser(ctx)
	if err != nil {
		if apperr.KindOf(err) == "" {
			return "", apperr.Provider("failed to resolve current user", err)
		}
		return "", err
	}
	if u == nil || u.ID == "" {
		return "", apperr.NotAuthenticated()
	}
	return u.ID, nil
}

func (s *Service) patchFrom(in UpdateInput) (Patch, error) {
	p := Patch{
		IsCompleted: in.IsCompleted,
		UpdatedAt:   s.now().UTC(),
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return Patch{}, apperr.Validation("title is required")
		}
		p.Title = &title
	}
	if in.Description != nil {
		p.SetDescription = true
		p.Description = domain.NormalizeOptional(in.Description)
	}
	if in.DueDate != nil {
		dueDate, err := normalizeDueDate(in.DueDate)
		if err != nil {
			return Patch{}, err
		}
		p.SetDueDate = true
		p.DueDate = dueDate
	}
	return p, nil
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func normalizeDueDate(in *string) (*string, error) {
	v := domain.NormalizeOptional(in)
	if v == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*v)
	if !domain.ValidDueDate(trimmed) {
		return nil, apperr.Validation("due date must be a calendar date in YYYY-MM-DD form")
	}
	return &trimmed, nil
}

func storageError(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Storage("data store timed out", err)
	}
	return apperr.Storage(msg, err)
}
