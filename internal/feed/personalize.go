package feed

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"solafeed/internal/metrics"
	"solafeed/internal/utils"
)

const (
	InspirationSize = 3
	PopularPoolSize = 6

	LabelSimilar = "Similar to places you saved"
	LabelPopular = "Popular with travelers"

	popularCacheKey = "popular_cities"
)

// PersonalizationEngine 首页“为你推荐”的目的地卡片。
// 收藏 -> 标签 -> 相似城市 -> 城市详情，任何一步为空或出错都退回热门城市。
type PersonalizationEngine struct {
	tags       *TagSimilarityResolver
	cities     CityLookup
	cache      *utils.Cache[[]Destination]
	popularTTL time.Duration
	logger     zerolog.Logger
}

// NewPersonalizationEngine cache 可为 nil，此时每次都查询热门城市
func NewPersonalizationEngine(tags TagLookup, cities CityLookup, cache *utils.Cache[[]Destination], popularTTL time.Duration, logger zerolog.Logger) *PersonalizationEngine {
	return &PersonalizationEngine{
		tags:       NewTagSimilarityResolver(tags),
		cities:     cities,
		cache:      cache,
		popularTTL: popularTTL,
		logger:     logger.With().Str("component", "feed.personalization").Logger(),
	}
}

// Personalize 从不返回错误
func (e *PersonalizationEngine) Personalize(ctx context.Context, viewerID string, excludeIDs []string) Inspiration {
	if viewerID == "" {
		return e.popular(ctx)
	}

	saved, err := e.tags.SavedCities(ctx, viewerID)
	if err != nil {
		return e.fallback(ctx, viewerID, "saved places lookup failed", err)
	}
	if len(saved) == 0 {
		return e.popular(ctx)
	}

	tags, err := e.tags.Tags(ctx, saved)
	if err != nil {
		return e.fallback(ctx, viewerID, "tag lookup failed", err)
	}
	if len(tags) == 0 {
		return e.popular(ctx)
	}

	candidates, err := e.tags.Candidates(ctx, tags, saved, excludeIDs)
	if err != nil {
		return e.fallback(ctx, viewerID, "similar city lookup failed", err)
	}
	if len(candidates) == 0 {
		return e.popular(ctx)
	}

	dests, err := e.cities.FetchCities(ctx, candidates, InspirationSize)
	if err != nil {
		return e.fallback(ctx, viewerID, "city fetch failed", err)
	}
	if len(dests) == 0 {
		return e.popular(ctx)
	}
	if len(dests) > InspirationSize {
		dests = dests[:InspirationSize]
	}

	metrics.Personalization.WithLabelValues(string(ReasonPersonalized)).Inc()
	return Inspiration{Items: labelled(dests, LabelSimilar), Reason: ReasonPersonalized}
}

func (e *PersonalizationEngine) fallback(ctx context.Context, viewerID, msg string, err error) Inspiration {
	metrics.ResolverFailOpen.WithLabelValues("tags").Inc()
	e.logger.Warn().Err(err).Str("viewer", viewerID).Msg(msg + ", falling back to popular")
	return e.popular(ctx)
}

// popular 热门城市池取前 3 个。池本身查询失败时返回空列表。
func (e *PersonalizationEngine) popular(ctx context.Context) Inspiration {
	metrics.Personalization.WithLabelValues(string(ReasonPopular)).Inc()

	pool, ok := e.cachedPopular()
	if !ok {
		var err error
		pool, err = e.cities.PopularCities(ctx, PopularPoolSize)
		if err != nil {
			metrics.ResolverFailOpen.WithLabelValues("popular").Inc()
			e.logger.Warn().Err(err).Msg("popular cities lookup failed")
			return Inspiration{Items: []Destination{}, Reason: ReasonPopular}
		}
		if e.cache != nil && len(pool) > 0 {
			e.cache.Set(popularCacheKey, pool, e.popularTTL)
		}
	}

	if len(pool) > InspirationSize {
		pool = pool[:InspirationSize]
	}
	return Inspiration{Items: labelled(pool, LabelPopular), Reason: ReasonPopular}
}

func (e *PersonalizationEngine) cachedPopular() ([]Destination, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(popularCacheKey)
}

// labelled 返回带标签的拷贝，缓存里的切片不被修改
func labelled(dests []Destination, label string) []Destination {
	out := make([]Destination, len(dests))
	for i, d := range dests {
		d.Label = label
		out[i] = d
	}
	return out
}
