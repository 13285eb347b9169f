package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"solafeed/internal/utils"
)

const (
	DefaultHighlightPool   = 6
	DefaultHighlightOutput = 2
	ExcerptLength          = 140
)

// HighlightSelector 首页精选：取一小批高互动帖子，按行程相关度打分后取前几条
type HighlightSelector struct {
	source     ContentSource
	scorer     RelevanceScorer
	policy     RetryPolicy
	poolSize   int
	outputSize int
	now        func() time.Time
}

func NewHighlightSelector(source ContentSource, scorer RelevanceScorer, policy RetryPolicy, poolSize, outputSize int) *HighlightSelector {
	if poolSize <= 0 {
		poolSize = DefaultHighlightPool
	}
	if outputSize <= 0 {
		outputSize = DefaultHighlightOutput
	}
	return &HighlightSelector{
		source:     source,
		scorer:     scorer,
		policy:     policy,
		poolSize:   poolSize,
		outputSize: outputSize,
		now:        time.Now,
	}
}

// Select 候选池使用 relevant 排序的第一页。打分只读取条目，不修改计数。
func (s *HighlightSelector) Select(ctx context.Context, viewerID string, trip *TripContext, excludedAuthors map[string]struct{}) ([]Highlight, error) {
	q := FeedQueryBuilder{ViewerID: viewerID}.Build(FeedFilter{
		Sort:     SortRelevant,
		PageSize: s.poolSize,
	}, excludedAuthors)

	var pool []ThreadView
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		pool, err = s.source.QueryContent(ctx, q)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: highlight pool: %w", ErrFetchFailed, err)
	}

	return s.rank(pool, trip), nil
}

func (s *HighlightSelector) rank(pool []ThreadView, trip *TripContext) []Highlight {
	now := s.now()
	scored := make([]Highlight, 0, len(pool))
	for _, t := range pool {
		scored = append(scored, Highlight{
			Thread: t,
			Score:  s.scorer.Score(t, trip, now),
		})
	}

	// 同分时按池内原顺序 (服务端 relevant 排序)
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > s.outputSize {
		scored = scored[:s.outputSize]
	}
	for i := range scored {
		scored[i].Excerpt = utils.Excerpt(scored[i].Thread.Body, ExcerptLength)
	}
	return scored
}
