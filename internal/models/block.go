package models

import (
	"time"
)

// BlockedUser 拉黑关系是单向记录，读取时双向生效
type BlockedUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlockerID string    `gorm:"type:uuid;not null;index;uniqueIndex:idx_block_pair" json:"blocker_id"`
	BlockedID string    `gorm:"type:uuid;not null;index;uniqueIndex:idx_block_pair" json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}
