package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID       uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Username string    `json:"username" gorm:"unique"`
	Email    string    `json:"email" gorm:"unique;not null"`
	Password string    `json:"-" gorm:"not null"`

	DisplayName string     `json:"display_name"`
	StudentCode string     `json:"student_code"`
	IsAdmin     bool       `json:"is_admin" gorm:"default:false"`
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Memberships []GroupMembership `json:"memberships,omitempty" gorm:"foreignKey:UserID"`
	Assignments []TaskAssignment  `json:"assignments,omitempty" gorm:"foreignKey:UserID"`
}

// Name returns the display name, falling back to the username. Activity log
// rows denormalize this value at write time.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

type Token struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserId       uuid.UUID `json:"user_id" gorm:"type:uuid;not null"`
	RefreshToken uuid.UUID `json:"refresh_token" gorm:"type:uuid;not null"`
	ExpiresAt    time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
