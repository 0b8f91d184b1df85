package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = "id, user_id, title, description, due_date, is_completed, created_at, updated_at"

const pgSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id      TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT,
	due_date     TEXT,
	is_completed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks (user_id);
`

// PgStore is the PostgreSQL-backed Store.
type PgStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PgStore)(nil)

// NewPgStore wraps an existing pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// OpenPostgres connects to databaseURL and ensures the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPgStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tasks table when missing.
func (s *PgStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Create inserts t and fills in the store-assigned id and timestamps.
func (s *PgStore) Create(ctx context.Context, t *domain.Task) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (user_id, title, description, due_date, is_completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		t.UserID, t.Title, t.Description, t.DueDate, t.IsCompleted, t.CreatedAt, t.UpdatedAt,
	)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// List returns the owner's tasks matching q.
func (s *PgStore) List(ctx context.Context, userID string, q Query) ([]domain.Task, error) {
	query, args := q.SQL(userID)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Task])
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

// Get retrieves one of the owner's tasks.
func (s *PgStore) Get(ctx context.Context, userID, id string) (*domain.Task, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return collectOne(rows, "failed to find task")
}

// Update applies p to one of the owner's tasks and returns the stored row.
func (s *PgStore) Update(ctx context.Context, userID, id string, p Patch) (*domain.Task, error) {
	query, args := updateSQL(userID, id, p)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return collectOne(rows, "failed to update task")
}

// Delete removes one of the owner's tasks.
func (s *PgStore) Delete(ctx context.Context, userID, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Ping checks the database connection.
func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

func collectOne(rows pgx.Rows, msg string) (*domain.Task, error) {
	t, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[domain.Task])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	return &t, nil
}

// updateSQL renders p as an owner-scoped UPDATE ... RETURNING statement.
// Columns are emitted in a fixed order.
func updateSQL(userID, id string, p Patch) (string, []any) {
	cols := p.columns()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)

	args := []any{id, userID}
	sets := make([]string, 0, len(names))
	for _, name := range names {
		args = append(args, cols[name])
		sets = append(sets, fmt.Sprintf("%s = $%d", name, len(args)))
	}

	query := "UPDATE tasks SET " + strings.Join(sets, ", ") +
		" WHERE id = $1 AND user_id = $2 RETURNING " + taskColumns
	return query, args
}
