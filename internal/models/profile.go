package models

import (
	"time"
)

// Profile 社区作者的公开资料，账号体系在别处
type Profile struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	FirstName string    `gorm:"size:80" json:"first_name"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
