package models

import "time"

// Post is a bug report or feature request tracked on the board.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Type        PostType  `gorm:"size:16;not null;index" json:"type"`
	Status      Status    `gorm:"size:16;not null;default:'open';index" json:"status"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"size:2000;not null" json:"description"`
	Author      string    `gorm:"size:50;not null" json:"author"`
	Screenshot  *string   `gorm:"size:255" json:"screenshot"`
	Contact     string    `gorm:"size:255" json:"contact,omitempty"`
	Notified    bool      `gorm:"not null;default:false" json:"notified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`

	Comments     []Comment     `gorm:"constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	FritsUpdates []FritsUpdate `gorm:"constraint:OnDelete:CASCADE" json:"frits_updates,omitempty"`

	// Filled by the list query, not a column.
	CommentCount int64 `gorm:"->;-:migration" json:"comment_count"`
}

// Now returns the timestamp used for all post mutations. Always UTC so
// sqlite and MySQL store comparable values.
func Now() time.Time {
	return time.Now().UTC()
}
