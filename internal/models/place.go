package models

import (
	"time"
)

type Country struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	Iso2      string    `gorm:"uniqueIndex;size:2;not null" json:"iso2"`
	CreatedAt time.Time `json:"created_at"`
}

type City struct {
	ID           string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CountryID    string    `gorm:"type:uuid;not null;index" json:"country_id"`
	Country      Country   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"country"`
	Name         string    `gorm:"not null" json:"name"`
	Slug         string    `gorm:"uniqueIndex;not null" json:"slug"`
	HeroImageURL string    `json:"hero_image_url"`
	ShortBlurb   string    `gorm:"type:text" json:"short_blurb"`
	IsActive     bool      `gorm:"default:true;index" json:"is_active"`
	OrderIndex   int       `gorm:"default:0;index" json:"order_index"` // 热门程度，越小越靠前
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DestinationTag 城市/国家上的描述标签，个性化推荐按标签找相似目的地
type DestinationTag struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	EntityType string `gorm:"size:16;not null;uniqueIndex:idx_entity_tag" json:"entity_type"` // city, country
	EntityID   string `gorm:"type:uuid;not null;uniqueIndex:idx_entity_tag;index" json:"entity_id"`
	TagSlug    string `gorm:"size:64;not null;uniqueIndex:idx_entity_tag;index" json:"tag_slug"`
}

type Place struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CityID    *string   `gorm:"type:uuid;index" json:"city_id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
