package models

import (
	"time"
)

type Trip struct {
	ID        string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID    string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Title     string     `json:"title"`
	Status    string     `gorm:"size:16;not null;default:'planning'" json:"status"` // planning, active, completed
	Arriving  *time.Time `json:"arriving"`
	Leaving   *time.Time `json:"leaving"`
	Stops     []TripStop `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"stops"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type TripStop struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	TripID      string  `gorm:"type:uuid;not null;index" json:"trip_id"`
	CityID      *string `gorm:"type:uuid" json:"city_id"`
	CountryIso2 string  `gorm:"size:2" json:"country_iso2"`
	StopOrder   int     `gorm:"default:0" json:"stop_order"`
}
