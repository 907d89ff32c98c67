package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the authorization level of a user
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// SocialLinks holds the profile links of a user
type SocialLinks struct {
	Twitter  string `gorm:"type:varchar(255);not null;default:'';column:twitter"`
	LinkedIn string `gorm:"type:varchar(255);not null;default:'';column:linkedin"`
	GitHub   string `gorm:"type:varchar(255);not null;default:'';column:github"`
	Website  string `gorm:"type:varchar(255);not null;default:'';column:website"`
}

// Preferences holds per-user UI and notification settings
type Preferences struct {
	Theme              string `gorm:"type:varchar(8);not null;column:theme"`
	EmailNotifications bool   `gorm:"not null;column:email_notifications"`
	PushNotifications  bool   `gorm:"not null;column:push_notifications"`
}

// DefaultPreferences returns the preferences of a newly registered user
func DefaultPreferences() Preferences {
	return Preferences{Theme: "light", EmailNotifications: true, PushNotifications: true}
}

// User represents a registered account
type User struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey;column:id"`
	Username        string      `gorm:"type:varchar(30);not null;uniqueIndex:users_username_ux;column:username"`
	Email           string      `gorm:"type:varchar(255);not null;uniqueIndex:users_email_ux;column:email"`
	Password        string      `gorm:"type:varchar(72);not null;column:password" json:"-"`
	FirstName       string      `gorm:"type:varchar(50);not null;column:first_name"`
	LastName        string      `gorm:"type:varchar(50);not null;column:last_name"`
	Avatar          string      `gorm:"type:varchar(1024);not null;default:'';column:avatar"`
	Bio             string      `gorm:"type:varchar(500);not null;default:'';column:bio"`
	Role            Role        `gorm:"type:varchar(16);not null;default:'user';index;column:role"`
	IsEmailVerified bool        `gorm:"not null;column:is_email_verified"`
	SocialLinks     SocialLinks `gorm:"embedded;embeddedPrefix:social_"`
	Preferences     Preferences `gorm:"embedded;embeddedPrefix:pref_"`

	// Token columns hold SHA-256 hashes of the values mailed to the user.
	EmailVerificationToken   *string    `gorm:"type:char(64);index;column:email_verification_token" json:"-"`
	EmailVerificationExpires *time.Time `gorm:"column:email_verification_expires" json:"-"`
	PasswordResetToken       *string    `gorm:"type:char(64);index;column:password_reset_token" json:"-"`
	PasswordResetExpires     *time.Time `gorm:"column:password_reset_expires" json:"-"`

	LastLogin *time.Time `gorm:"column:last_login"`
	CreatedAt time.Time  `gorm:"not null;column:created_at"`
	UpdatedAt time.Time  `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns the primary key
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// FullName joins first and last name
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
