// Package feed 社区讨论流的排序、个性化、分页与投票核心。
//
// 所有 I/O 都通过 store.go 中的窄接口完成，本包不关心底层是 Postgres 还是内存假实现。
package feed

import (
	"errors"
	"time"
)

var (
	ErrFetchFailed    = errors.New("feed: fetch failed")
	ErrVoteFailed     = errors.New("feed: vote mutation failed")
	ErrTargetNotFound = errors.New("feed: vote target not in list")
	ErrInvalidFilter  = errors.New("feed: invalid filter")
)

type ThreadStatus string

const (
	StatusActive  ThreadStatus = "active"
	StatusLocked  ThreadStatus = "locked"
	StatusRemoved ThreadStatus = "removed"
)

type AuthorType string

const (
	AuthorHuman  AuthorType = "human"
	AuthorSystem AuthorType = "system"
	AuthorSeed   AuthorType = "seed"
)

type TargetType string

const (
	TargetThread TargetType = "thread"
	TargetReply  TargetType = "reply"
)

// Target 投票目标 (类型 + ID)
type Target struct {
	Type TargetType
	ID   string
}

type Author struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ThreadView 是 feed 中的一条帖子，附带作者、地点和当前用户的投票状态
type ThreadView struct {
	ID           string       `json:"id"`
	Author       Author       `json:"author"`
	Title        string       `json:"title"`
	Body         string       `json:"body"`
	CountryID    string       `json:"country_id,omitempty"`
	CityID       string       `json:"city_id,omitempty"`
	TopicID      string       `json:"topic_id,omitempty"`
	CountryName  string       `json:"country_name,omitempty"`
	CityName     string       `json:"city_name,omitempty"`
	CityImageURL string       `json:"city_image_url,omitempty"`
	TopicLabel   string       `json:"topic_label,omitempty"`
	Status       ThreadStatus `json:"status"`
	Pinned       bool         `json:"pinned"`
	ReplyCount   int          `json:"reply_count"`
	VoteScore    int          `json:"vote_score"`
	HelpfulCount int          `json:"helpful_count"`
	AuthorType   AuthorType   `json:"author_type"`
	UserVoted    bool         `json:"user_voted"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (t ThreadView) VoteTarget() Target { return Target{Type: TargetThread, ID: t.ID} }

func (t ThreadView) VoteState() (bool, int) { return t.UserVoted, t.VoteScore }

func (t ThreadView) WithVoteState(cast bool, score int) ThreadView {
	t.UserVoted = cast
	t.VoteScore = score
	return t
}

// ReplyView 回复，最多一层嵌套 (ParentReplyID)
type ReplyView struct {
	ID            string       `json:"id"`
	ThreadID      string       `json:"thread_id"`
	ParentReplyID string       `json:"parent_reply_id,omitempty"`
	Author        Author       `json:"author"`
	Body          string       `json:"body"`
	Status        ThreadStatus `json:"status"`
	VoteScore     int          `json:"vote_score"`
	UserVoted     bool         `json:"user_voted"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (r ReplyView) VoteTarget() Target { return Target{Type: TargetReply, ID: r.ID} }

func (r ReplyView) VoteState() (bool, int) { return r.UserVoted, r.VoteScore }

func (r ReplyView) WithVoteState(cast bool, score int) ReplyView {
	r.UserVoted = cast
	r.VoteScore = score
	return r
}

type Topic struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Slug      string `json:"slug"`
	SortOrder int    `json:"sort_order"`
}

// TripContext 由当前/最近行程推导出的城市和国家集合，只在一次会话内有效
type TripContext struct {
	CityIDs    map[string]struct{}
	CountryIDs map[string]struct{}
}

func (tc *TripContext) HasCity(id string) bool {
	if tc == nil || id == "" {
		return false
	}
	_, ok := tc.CityIDs[id]
	return ok
}

func (tc *TripContext) HasCountry(id string) bool {
	if tc == nil || id == "" {
		return false
	}
	_, ok := tc.CountryIDs[id]
	return ok
}

type TripStatus string

const (
	TripPlanning  TripStatus = "planning"
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
)

type Trip struct {
	ID       string
	Status   TripStatus
	Arriving time.Time
	Leaving  time.Time
	Stops    []Stop
}

type Stop struct {
	CityID      string
	CountryIso2 string
	Order       int
}

// Destination 个性化推荐的目的地卡片
type Destination struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	CountryName  string `json:"country_name,omitempty"`
	HeroImageURL string `json:"hero_image_url,omitempty"`
	Blurb        string `json:"blurb,omitempty"`
	Label        string `json:"label"`
}

type Reason string

const (
	ReasonPersonalized Reason = "personalized"
	ReasonPopular      Reason = "popular"
)

type Inspiration struct {
	Items  []Destination `json:"items"`
	Reason Reason        `json:"reason"`
}

// Highlight 首页精选帖子
type Highlight struct {
	Thread  ThreadView `json:"thread"`
	Score   float64    `json:"score"`
	Excerpt string     `json:"excerpt"`
}

func setOf(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			m[id] = struct{}{}
		}
	}
	return m
}
