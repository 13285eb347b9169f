package feed

import "context"

// 以下接口是核心对外部存储的全部假设。db.Store 是 Postgres 实现，测试中使用内存假实现。

type ContentSource interface {
	// QueryContent 按 QueryDescription 返回一页帖子，排序必须稳定
	QueryContent(ctx context.Context, q QueryDescription) ([]ThreadView, error)
}

type ReplySource interface {
	ListReplies(ctx context.Context, viewerID, threadID string, excludedAuthors []string) ([]ReplyView, error)
}

type VoteMutator interface {
	// MutateVote 把 viewer 对 target 的投票设置为 cast，重复相同调用不会重复计分
	MutateVote(ctx context.Context, viewerID string, target Target, cast bool) error
}

type BlockLookup interface {
	LookupBlocked(ctx context.Context, viewerID string) ([]string, error)
}

type TripLookup interface {
	LookupTrips(ctx context.Context, viewerID string) ([]Trip, error)
	// LookupCountries 把 ISO2 国家代码批量映射为国家 ID
	LookupCountries(ctx context.Context, iso2 []string) (map[string]string, error)
}

type TagLookup interface {
	// SavedCityIDs 返回用户收藏地点所在的城市
	SavedCityIDs(ctx context.Context, viewerID string) ([]string, error)
	LookupTags(ctx context.Context, cityIDs []string) ([]string, error)
	LookupByTags(ctx context.Context, tags []string, excludeIDs []string) ([]string, error)
}

type CityLookup interface {
	// FetchCities 返回活跃城市，按 order_index 升序，最多 limit 条
	FetchCities(ctx context.Context, ids []string, limit int) ([]Destination, error)
	PopularCities(ctx context.Context, limit int) ([]Destination, error)
}

type TopicLookup interface {
	ListTopics(ctx context.Context) ([]Topic, error)
}

// Store 汇总全部协作接口，db.Store 和 db.BreakerStore 都实现它
type Store interface {
	ContentSource
	ReplySource
	VoteMutator
	BlockLookup
	TripLookup
	TagLookup
	CityLookup
	TopicLookup
}
