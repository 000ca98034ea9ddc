package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role values are shared with the account service that owns the users table.
const (
	RoleRequester = "user"
	RoleProvider  = "astrologer"
	RoleOperator  = "admin"
)

// User is the resolved identity behind a bearer credential.
// The account service owns the record; this backend reads it and only toggles
// IsAvailable for providers.
type User struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	Name        string    `gorm:"type:text;not null" json:"name"`
	Email       string    `gorm:"type:text;uniqueIndex" json:"email"`
	Role        string    `gorm:"type:text;not null;default:user;index" json:"role"`
	IsAvailable bool      `gorm:"not null;default:true" json:"isAvailable"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BeforeCreate генерує UUID, якщо ID ще не встановлено.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

func (u *User) IsProvider() bool { return u.Role == RoleProvider }
func (u *User) IsOperator() bool { return u.Role == RoleOperator }

// Summary is the public projection of a user carried inside realtime events.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type UserSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}
