package models

import "time"

// FritsUpdate is a progress message the automation agent posted about a bug.
// Each update is also mirrored into the post's comment stream under the
// reserved agent author name.
type FritsUpdate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
