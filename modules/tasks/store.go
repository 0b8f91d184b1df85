package tasks

import (
	"context"
	"time"

	domain "github.com/example/task-tracker/domain/task"
)

// Store persists tasks. Every read and write is scoped to the owner passed
// in; a row owned by someone else behaves exactly like a missing row.
type Store interface {
	Create(ctx context.Context, t *domain.Task) error
	List(ctx context.Context, userID string, q Query) ([]domain.Task, error)
	// Get returns nil, nil when the task does not exist for userID.
	Get(ctx context.Context, userID, id string) (*domain.Task, error)
	// Update returns nil, nil when the task does not exist for userID.
	Update(ctx context.Context, userID, id string, p Patch) (*domain.Task, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, userID, id string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Patch is a normalised partial update. A nil field is left unchanged;
// the Set flags distinguish "clear to NULL" from "leave alone" for the
// nullable columns.
type Patch struct {
	Title          *string
	Description    *string
	SetDescription bool
	DueDate        *string
	SetDueDate     bool
	IsCompleted    *bool
	UpdatedAt      time.Time
}

// columns returns the column assignments of the patch.
func (p Patch) columns() map[string]any {
	cols := map[string]any{"updated_at": p.UpdatedAt}
	if p.Title != nil {
		cols["title"] = *p.Title
	}
	if p.SetDescription {
		cols["description"] = nullable(p.Description)
	}
	if p.SetDueDate {
		cols["due_date"] = nullable(p.DueDate)
	}
	if p.IsCompleted != nil {
		cols["is_completed"] = *p.IsCompleted
	}
	return cols
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
