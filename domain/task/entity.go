package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DateLayout is the plain calendar-date form used for due dates.
const DateLayout = "2006-01-02"

// Task is a personal to-do item owned by exactly one user.
type Task struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id" db:"id"`
	UserID      string    `gorm:"index;not null;type:text" json:"user_id" db:"user_id"`
	Title       string    `gorm:"not null;type:text" json:"title" db:"title"`
	Description *string   `gorm:"type:text" json:"description" db:"description"`
	DueDate     *string   `gorm:"type:text" json:"due_date" db:"due_date"`
	IsCompleted bool      `gorm:"not null;default:false" json:"is_completed" db:"is_completed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for Task model.
func (Task) TableName() string {
	return "tasks"
}

// BeforeCreate assigns the identifier when the caller did not.
func (t *Task) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// IsOverdue reports whether an open task's due date lies before today.
// Both dates are plain YYYY-MM-DD strings so no time zone shifting applies.
func (t *Task) IsOverdue(today string) bool {
	if t.IsCompleted || t.DueDate == nil || *t.DueDate == "" {
		return false
	}
	return *t.DueDate < today
}

// Today returns the current calendar date in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(DateLayout)
}

// ValidDueDate reports whether s is a real YYYY-MM-DD calendar date.
func ValidDueDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// NormalizeOptional turns an empty or blank value into NULL.
func NormalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	if strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}
