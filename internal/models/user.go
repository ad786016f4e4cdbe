package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole decides which side of the workflow a user acts on.
type UserRole string

const (
	RoleCitizen  UserRole = "citizen"
	RoleEmployee UserRole = "employee"
	RoleAdmin    UserRole = "admin"
)

// User is a citizen, an employee of an entity, or an admin.
// Authentication itself lives outside this service; only the fields the
// complaint workflow and notifications need are kept.
type User struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`
	FullName       string         `json:"full_name"`
	Role           UserRole       `gorm:"type:varchar(16);not null;index" json:"role"`
	EntityID       *string        `gorm:"type:uuid;index" json:"entity_id,omitempty"`
	TelegramChatID int64          `gorm:"index" json:"-"`
	Language       string         `gorm:"type:varchar(8);not null;default:'en'" json:"language"`
	IsActive       bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate є хуком GORM, який викликається перед створенням запису.
// Він генерує новий UUID для користувача, якщо ID ще не встановлено.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

func (u *User) IsCitizen() bool  { return u.Role == RoleCitizen }
func (u *User) IsEmployee() bool { return u.Role == RoleEmployee }
func (u *User) IsAdmin() bool    { return u.Role == RoleAdmin }

// BelongsToEntity reports whether the user works for the given entity.
func (u *User) BelongsToEntity(entityID string) bool {
	return u.EntityID != nil && *u.EntityID == entityID
}
