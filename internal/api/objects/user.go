package objects

import (
	"time"

	"github.com/google/uuid"

	"github.com/blogsphere/blogapi/internal/models"
)

// Author is the public summary of a user embedded in posts and comments
type Author struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Avatar    string    `json:"avatar"`
}

// NewAuthor returns nil when the author was not loaded
func NewAuthor(u *models.User) *Author {
	if u == nil {
		return nil
	}
	return &Author{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName, Avatar: u.Avatar}
}

type SocialLinks struct {
	Twitter  string `json:"twitter"`
	LinkedIn string `json:"linkedin"`
	GitHub   string `json:"github"`
	Website  string `json:"website"`
}

type Preferences struct {
	Theme              string `json:"theme"`
	EmailNotifications bool   `json:"emailNotifications"`
	PushNotifications  bool   `json:"pushNotifications"`
}

// User is a full account. Private fields are only filled for the account
// owner.
type User struct {
	ID              uuid.UUID    `json:"id"`
	Username        string       `json:"username"`
	Email           string       `json:"email,omitempty"`
	FirstName       string       `json:"firstName"`
	LastName        string       `json:"lastName"`
	FullName        string       `json:"fullName"`
	Avatar          string       `json:"avatar"`
	Bio             string       `json:"bio"`
	Role            string       `json:"role"`
	IsEmailVerified bool         `json:"isEmailVerified"`
	SocialLinks     SocialLinks  `json:"socialLinks"`
	Preferences     *Preferences `json:"preferences,omitempty"`
	LastLogin       *time.Time   `json:"lastLogin,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// NewUser builds the account object. Email, preferences and last login are
// included only when private is set.
func NewUser(u *models.User, private bool) User {
	out := User{
		ID:              u.ID,
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		FullName:        u.FullName(),
		Avatar:          u.Avatar,
		Bio:             u.Bio,
		Role:            string(u.Role),
		IsEmailVerified: u.IsEmailVerified,
		SocialLinks: SocialLinks{
			Twitter:  u.SocialLinks.Twitter,
			LinkedIn: u.SocialLinks.LinkedIn,
			GitHub:   u.SocialLinks.GitHub,
			Website:  u.SocialLinks.Website,
		},
		CreatedAt: u.CreatedAt,
	}
	if private {
		out.Email = u.Email
		out.Preferences = &Preferences{
			Theme:              u.Preferences.Theme,
			EmailNotifications: u.Preferences.EmailNotifications,
			PushNotifications:  u.Preferences.PushNotifications,
		}
		out.LastLogin = u.LastLogin
	}
	return out
}
