package models

import (
	"time"
)

// SavedPlace 用户收藏的地点
type SavedPlace struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index;uniqueIndex:idx_user_place" json:"user_id"`
	PlaceID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_place" json:"place_id"`
	Place     Place     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"place"`
	CreatedAt time.Time `json:"created_at"`
}
