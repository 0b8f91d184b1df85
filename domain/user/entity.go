package user

import (
	"time"
)

// User represents an account stored by the identity provider.
type User struct {
	ID            string  `gorm:"primaryKey;type:text"`
	Email         string  `gorm:"uniqueIndex;not null;type:text"`
	PasswordHash  string  `gorm:"not null;default:'';type:text"`
	GoogleSubject *string `gorm:"uniqueIndex;type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Identity converts the stored account into its public shape.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// Identity is the authenticated user as seen by the rest of the application.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
