package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Post is kept in the schema for user notes; nothing in the UI writes it yet.
type Post struct {
	ID      int       `gorm:"primary_key" json:"id"`
	Title   string    `gorm:"size:120;not null" json:"title"`
	Time    time.Time `gorm:"not null" json:"time"`
	Content string    `gorm:"type:text;not null" json:"content"`
	UserId  int       `gorm:"index;not null" json:"user_id"`
}

func CountPostsByUser(ctx context.Context, db *gorm.DB, userId int) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&Post{}).Where("user_id = ?", userId).Count(&count).Error
	return count, err
}
