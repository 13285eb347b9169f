package models

import (
	"time"
)

type CommunityThread struct {
	ID           string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AuthorID     string          `gorm:"type:uuid;not null;index" json:"author_id"`
	Author       Profile         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	CountryID    *string         `gorm:"type:uuid;index" json:"country_id"`
	Country      *Country        `gorm:"constraint:OnDelete:SET NULL;" json:"country,omitempty"`
	CityID       *string         `gorm:"type:uuid;index" json:"city_id"`
	City         *City           `gorm:"constraint:OnDelete:SET NULL;" json:"city,omitempty"`
	TopicID      *string         `gorm:"type:uuid;index" json:"topic_id"`
	Topic        *CommunityTopic `gorm:"constraint:OnDelete:SET NULL;" json:"topic,omitempty"`
	Title        string          `gorm:"not null" json:"title"`
	Body         string          `gorm:"type:text" json:"body"`
	Status       string          `gorm:"size:16;not null;default:'active';index:idx_thread_feed" json:"status"`     // active, locked, removed
	Visibility   string          `gorm:"size:16;not null;default:'public';index:idx_thread_feed" json:"visibility"` // public, private
	Pinned       bool            `gorm:"default:false" json:"pinned"`
	ReplyCount   int             `gorm:"default:0" json:"reply_count"`
	VoteScore    int             `gorm:"default:0" json:"vote_score"`
	HelpfulCount int             `gorm:"default:0" json:"helpful_count"`
	AuthorType   string          `gorm:"size:16;not null;default:'human'" json:"author_type"` // human, system, seed
	CreatedAt    time.Time       `gorm:"index:idx_thread_feed" json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// 全文检索列，由数据库生成
	SearchVector string `gorm:"->;type:tsvector GENERATED ALWAYS AS (to_tsvector('simple', coalesce(title, '') || ' ' || coalesce(body, ''))) STORED;index:idx_thread_search,type:gin" json:"-"`
}

type CommunityReply struct {
	ID            string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ThreadID      string          `gorm:"type:uuid;not null;index" json:"thread_id"`
	Thread        CommunityThread `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ParentReplyID *string         `gorm:"type:uuid;index" json:"parent_reply_id"` // 顶层回复为空，最多一层嵌套
	Parent        *CommunityReply `gorm:"foreignKey:ParentReplyID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AuthorID      string          `gorm:"type:uuid;not null;index" json:"author_id"`
	Author        Profile         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Body          string          `gorm:"type:text;not null" json:"body"`
	Status        string          `gorm:"size:16;not null;default:'active'" json:"status"`
	VoteScore     int             `gorm:"default:0" json:"vote_score"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CommunityReaction 每个用户对每个目标最多一条 (唯一索引保证投票幂等)
type CommunityReaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_target" json:"user_id"`
	TargetType   string    `gorm:"size:16;not null;uniqueIndex:idx_user_target;index:idx_target" json:"target_type"` // thread, reply
	TargetID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_target;index:idx_target" json:"target_id"`
	ReactionType string    `gorm:"size:16;not null;default:'helpful'" json:"reaction_type"`
	CreatedAt    time.Time `json:"created_at"`
}
