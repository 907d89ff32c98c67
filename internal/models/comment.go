package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment represents a comment on a post, optionally replying to another
// comment of the same post
type Comment struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;column:id"`
	Content    string     `gorm:"type:varchar(1000);not null;column:content"`
	AuthorID   uuid.UUID  `gorm:"type:uuid;not null;index;column:author_id"`
	PostID     uuid.UUID  `gorm:"type:uuid;not null;index;column:post_id"`
	ParentID   *uuid.UUID `gorm:"type:uuid;index;column:parent_id"`
	IsApproved bool       `gorm:"not null;index;column:is_approved"`
	LikeCount  int64      `gorm:"not null;default:0;column:like_count"`
	CreatedAt  time.Time  `gorm:"not null;index;column:created_at"`
	UpdatedAt  time.Time  `gorm:"not null;column:updated_at"`

	// Relationships
	Author *User    `gorm:"foreignKey:AuthorID;references:ID;constraint:OnDelete:CASCADE"`
	Post   *Post    `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE"`
	Parent *Comment `gorm:"foreignKey:ParentID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}

// BeforeCreate assigns the primary key
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
