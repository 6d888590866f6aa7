package database

import (
	"time"

	"github.com/google/uuid"
)

// User is an account. PasswordHash is never serialized, which makes the JSON
// form of a User the public user summary.
type User struct {
	ID                 uuid.UUID           `json:"id" gorm:"type:uuid;primaryKey"`
	Email              string              `json:"email" gorm:"uniqueIndex"`
	PasswordHash       string              `json:"-"`
	Name               string              `json:"name"`
	IsAdmin            bool                `json:"is_admin"`
	IsActive           bool                `json:"is_active"`
	ExpiryDate         *time.Time          `json:"expiry_date"`
	LoginCount         int                 `json:"login_count"`
	LastLogin          *time.Time          `json:"last_login"`
	PhoneNumber        *string             `json:"phone_number"`
	CreatedAt          time.Time           `json:"created_at"`
	LoginHistory       []LoginHistory      `json:"login_history,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	WebsitePermissions []WebsitePermission `json:"website_permissions" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CookieInsertions   []CookieInsertion   `json:"cookie_insertions,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (u *User) TableName() string {
	return "application.user"
}

// IsExpired reports whether the account expiry date has passed at now.
func (u *User) IsExpired(now time.Time) bool {
	return u.ExpiryDate != nil && !now.Before(*u.ExpiryDate)
}

// WebsitePermission is unique per (user, website).
type WebsitePermission struct {
	UserID       uuid.UUID  `json:"-" gorm:"type:uuid;primaryKey"`
	Website      string     `json:"website" gorm:"primaryKey"`
	HasAccess    bool       `json:"has_access"`
	LastAccessed *time.Time `json:"last_accessed"`
	ApprovedBy   *uuid.UUID `json:"approved_by" gorm:"type:uuid"`
}

func (wp *WebsitePermission) TableName() string {
	return "application.website_permission"
}

type LoginHistory struct {
	ID              int64     `json:"-" gorm:"primaryKey"`
	UserID          uuid.UUID `json:"-" gorm:"type:uuid;index"`
	Timestamp       time.Time `json:"timestamp"`
	IPAddress       string    `json:"ip_address"`
	ClientSignature string    `json:"client_signature"`
}

func (lh *LoginHistory) TableName() string {
	return "application.login_history"
}

type CookieInsertion struct {
	ID        int64     `json:"-" gorm:"primaryKey"`
	UserID    uuid.UUID `json:"-" gorm:"type:uuid;index"`
	Website   string    `json:"website"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
}

func (ci *CookieInsertion) TableName() string {
	return "application.cookie_insertion"
}
