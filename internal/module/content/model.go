// Package content implements the post CRUD surface. Creation and export
// are metered through the quota gate.
package content

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Module errors.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrNotOwner     = errors.New("post belongs to another user")
)

// PostStatus represents the publication state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

// Post is one user-authored document.
type Post struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	Title     string         `json:"title" gorm:"not null"`
	Body      string         `json:"body" gorm:"type:text"`
	Tags      pq.StringArray `json:"tags" gorm:"type:text[]"`
	Status    PostStatus     `json:"status" gorm:"not null;default:draft;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt *time.Time     `json:"-" gorm:"index"`
}

// TableName returns the database table name.
func (Post) TableName() string {
	return "posts"
}

// Export is a portable bundle of a user's posts.
type Export struct {
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Posts      []*Post   `json:"posts"`
}
