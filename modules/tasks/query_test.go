package tasks

import (
	"testing"

	"github.com/example/task-tracker/domain/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery_Defaults(t *testing.T) {
	q, err := ParseQuery("", "  ", "", "")
	require.NoError(t, err)
	assert.Equal(t, Query{
		Filter:        FilterAll,
		Search:        "",
		SortField:     SortCreatedAt,
		SortDirection: SortDesc,
	}, q)
}

func TestParseQuery_CaseInsensitive(t *testing.T) {
	q, err := ParseQuery(" Pending ", " milk ", "DUE_DATE", "Asc")
	require.NoError(t, err)
	assert.Equal(t, FilterPending, q.Filter)
	assert.Equal(t, "milk", q.Search)
	assert.Equal(t, SortDueDate, q.SortField)
	assert.Equal(t, SortAsc, q.SortDirection)
}

func TestParseQuery_RejectsUnknownValues(t *testing.T) {
	tests := []struct {
		name      string
		filter    string
		sort      string
		direction string
	}{
		{name: "filter", filter: "archived"},
		{name: "sort field", sort: "priority"},
		{name: "direction", direction: "sideways"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuery(tt.filter, "", tt.sort, tt.direction)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestQuery_SearchPatternEscapesWildcards(t *testing.T) {
	q := Query{Search: `50%_Off\`}
	assert.Equal(t, `%50\%\_off\\%`, q.searchPattern())
	assert.Empty(t, Query{}.searchPattern())
}

func TestQuery_OrderBy(t *testing.T) {
	tests := []struct {
		query Query
		want  []string
	}{
		{
			query: Query{SortField: SortCreatedAt, SortDirection: SortDesc},
			want:  []string{"created_at DESC", "id DESC"},
		},
		{
			query: Query{SortField: SortDueDate, SortDirection: SortAsc},
			want:  []string{"due_date IS NULL", "due_date ASC", "id ASC"},
		},
		{
			query: Query{SortField: SortDueDate, SortDirection: SortDesc},
			want:  []string{"due_date IS NULL", "due_date DESC", "id DESC"},
		},
		{
			query: Query{SortField: SortTitle, SortDirection: SortAsc},
			want:  []string{"LOWER(title) ASC", "id ASC"},
		},
		{
			query: Query{SortField: SortCompleted, SortDirection: SortAsc},
			want:  []string{"is_completed ASC", "created_at DESC", "id DESC"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.query.SortField)+"_"+string(tt.query.SortDirection), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.orderBy(pgLower))
		})
	}
}

func TestQuery_OrderByFoldsTitleWithBackendLower(t *testing.T) {
	q := Query{SortField: SortTitle, SortDirection: SortDesc}
	assert.Equal(t, []string{"ulower(title) DESC", "id DESC"}, q.orderBy(sqliteLower))
	assert.Equal(t, []string{"LOWER(title) DESC", "id DESC"}, q.orderBy(pgLower))
}

func TestQuery_SQL(t *testing.T) {
	q, err := ParseQuery("completed", "Report", "title", "asc")
	require.NoError(t, err)

	sql, args := q.SQL("user-1")
	assert.Equal(t,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = $1"+
			" AND is_completed = $2"+
			` AND (LOWER(title) LIKE $3 ESCAPE '\' OR LOWER(COALESCE(description, '')) LIKE $3 ESCAPE '\')`+
			" ORDER BY LOWER(title) ASC, id ASC",
		sql)
	assert.Equal(t, []any{"user-1", true, "%report%"}, args)
}

func TestQuery_SQLWithoutFilters(t *testing.T) {
	q, err := Query{}.Normalize()
	require.NoError(t, err)

	sql, args := q.SQL("user-1")
	assert.Equal(t,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
		sql)
	assert.Equal(t, []any{"user-1"}, args)
}
