package tasks

import (
	"fmt"
	"strings"

	"github.com/example/task-tracker/domain/apperr"
	"gorm.io/gorm"
)

// Filter restricts a listing by completion state.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = "pending"
	FilterCompleted Filter = "completed"
)

// SortField selects the listing order.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortDueDate   SortField = "due_date"
	SortTitle     SortField = "title"
	SortCompleted SortField = "is_completed"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Query describes a task listing. The zero value lists everything, newest
// first.
type Query struct {
	Filter        Filter        `json:"filter,omitempty"`
	Search        string        `json:"search,omitempty"`
	SortField     SortField     `json:"sort,omitempty"`
	SortDirection SortDirection `json:"direction,omitempty"`
}

// ParseQuery builds a Query from loosely typed input such as URL
// parameters. Empty values take defaults; unknown values are rejected.
func ParseQuery(filter, search, sort, direction string) (Query, error) {
	q := Query{
		Filter:        Filter(strings.ToLower(strings.TrimSpace(filter))),
		Search:        search,
		SortField:     SortField(strings.ToLower(strings.TrimSpace(sort))),
		SortDirection: SortDirection(strings.ToLower(strings.TrimSpace(direction))),
	}
	return q.Normalize()
}

// Normalize fills defaults, trims the search term and validates enums.
func (q Query) Normalize() (Query, error) {
	switch q.Filter {
	case "":
		q.Filter = FilterAll
	case FilterAll, FilterPending, FilterCompleted:
	default:
		return Query{}, apperr.Validation(fmt.Sprintf("unknown filter %q", q.Filter))
	}

	switch q.SortField {
	case "":
		q.SortField = SortCreatedAt
	case SortCreatedAt, SortDueDate, SortTitle, SortCompleted:
	default:
		return Query{}, apperr.Validation(fmt.Sprintf("unknown sort field %q", q.SortField))
	}

	switch q.SortDirection {
	case "":
		q.SortDirection = SortDesc
	case SortAsc, SortDesc:
	default:
		return Query{}, apperr.Validation(fmt.Sprintf("unknown sort direction %q", q.SortDirection))
	}

	q.Search = strings.TrimSpace(q.Search)
	return q, nil
}

// completed returns the required completion flag, if the filter sets one.
func (q Query) completed() (bool, bool) {
	switch q.Filter {
	case FilterPending:
		return false, true
	case FilterCompleted:
		return true, true
	default:
		return false, false
	}
}

// searchPattern returns the LIKE pattern for the search term with wildcard
// characters escaped, or "" when no search applies.
func (q Query) searchPattern() string {
	if q.Search == "" {
		return ""
	}
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(q.Search))
	return "%" + escaped + "%"
}

// Case folding functions per backend. sqliteLower is registered by the
// SQLite repository.
const (
	pgLower     = "LOWER"
	sqliteLower = "ulower"
)

// orderBy returns the ORDER BY terms, folding case with lower. Tasks without
// a due date always sort last and id breaks ties so listings are stable.
func (q Query) orderBy(lower string) []string {
	dir := "DESC"
	if q.SortDirection == SortAsc {
		dir = "ASC"
	}

	switch q.SortField {
	case SortDueDate:
		return []string{"due_date IS NULL", "due_date " + dir, "id " + dir}
	case SortTitle:
		return []string{lower + "(title) " + dir, "id " + dir}
	case SortCompleted:
		return []string{"is_completed " + dir, "created_at DESC", "id DESC"}
	default:
		return []string{"created_at " + dir, "id " + dir}
	}
}

// searchClause matches the search pattern bound at placeholder against title
// or description. Arguments to lower are never NULL.
func searchClause(lower, placeholder string) string {
	return fmt.Sprintf(`(%[1]s(title) LIKE %[2]s ESCAPE '\' OR %[1]s(COALESCE(description, '')) LIKE %[2]s ESCAPE '\')`,
		lower, placeholder)
}

// Scope returns a GORM scope for the SQLite repository applying the owner
// restriction, filter, search and ordering.
func (q Query) Scope(userID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", userID)
		if completed, ok := q.completed(); ok {
			db = db.Where("is_completed = ?", completed)
		}
		if pattern := q.searchPattern(); pattern != "" {
			db = db.Where(searchClause(sqliteLower, "@pattern"), map[string]any{"pattern": pattern})
		}
		for _, term := range q.orderBy(sqliteLower) {
			db = db.Order(term)
		}
		return db
	}
}

// SQL renders the listing as a PostgreSQL statement with positional
// arguments.
func (q Query) SQL(userID string) (string, []any) {
	var sb strings.Builder
	args := []any{userID}

	sb.WriteString("SELECT " + taskColumns + " FROM tasks WHERE user_id = $1")
	if completed, ok := q.completed(); ok {
		args = append(args, completed)
		fmt.Fprintf(&sb, " AND is_completed = $%d", len(args))
	}
	if pattern := q.searchPattern(); pattern != "" {
		args = append(args, pattern)
		sb.WriteString(" AND " + searchClause(pgLower, fmt.Sprintf("$%d", len(args))))
	}
	sb.WriteString(" ORDER BY " + strings.Join(q.orderBy(pgLower), ", "))

	return sb.String(), args
}
