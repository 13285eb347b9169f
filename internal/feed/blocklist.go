package feed

import (
	"context"

	"github.com/rs/zerolog"

	"solafeed/internal/metrics"
)

// BlockListResolver 解析需要从 feed 中排除的用户 (双向拉黑)。
// 失败时返回空集合：排除只是体验优化，不是安全边界。
type BlockListResolver struct {
	lookup BlockLookup
	logger zerolog.Logger
}

func NewBlockListResolver(lookup BlockLookup, logger zerolog.Logger) *BlockListResolver {
	return &BlockListResolver{
		lookup: lookup,
		logger: logger.With().Str("component", "feed.blocklist").Logger(),
	}
}

func (r *BlockListResolver) Resolve(ctx context.Context, viewerID string) map[string]struct{} {
	ids, err := r.lookup.LookupBlocked(ctx, viewerID)
	if err != nil {
		metrics.ResolverFailOpen.WithLabelValues("blocklist").Inc()
		r.logger.Warn().Err(err).Str("viewer", viewerID).Msg("block list lookup failed, continuing without exclusions")
		return map[string]struct{}{}
	}
	set := setOf(ids)
	delete(set, viewerID)
	return set
}
