package service

import (
	"github.com/google/uuid"

	"github.com/blogsphere/blogapi/internal/models"
)

// Actor is the caller of a service operation. The zero value is an
// anonymous caller.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

// Anonymous is the unauthenticated caller
var Anonymous = Actor{}

// Authenticated reports whether the caller presented a valid token
func (a Actor) Authenticated() bool {
	return a.ID != uuid.Nil
}

// IsAdmin reports whether the caller is an admin
func (a Actor) IsAdmin() bool {
	return a.Authenticated() && a.Role == models.RoleAdmin
}

// CanModerate reports whether the caller may remove other users' comments
func (a Actor) CanModerate() bool {
	return a.Authenticated() && (a.Role == models.RoleAdmin || a.Role == models.RoleModerator)
}

// canEdit reports whether the caller may change a post by authorID
func (a Actor) canEdit(authorID uuid.UUID) bool {
	return a.IsAdmin() || (a.Authenticated() && a.ID == authorID)
}
