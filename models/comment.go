package models

import "time"

// Reserved comment author names. SystemAuthor signs the audit trail written
// by the status transition engine; AgentAuthor signs comments mirrored from
// Frits updates.
const (
	SystemAuthor = "System"
	AgentAuthor  = "Frits"
)

// Comment is a reply on a post. Comments are append-only: they are never
// edited and disappear only when their post is deleted.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	Author    string    `gorm:"size:50;not null" json:"author"`
	Body      string    `gorm:"size:2000;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
