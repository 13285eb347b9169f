package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solafeed/internal/utils"
)

type ServiceConfig struct {
	PageSize         int
	Retry            RetryPolicy
	HighlightPool    int
	HighlightOutput  int
	PopularCacheTTL  time.Duration
	PopularCacheSize int
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		PageSize:         DefaultPageSize,
		Retry:            DefaultRetryPolicy(),
		HighlightPool:    DefaultHighlightPool,
		HighlightOutput:  DefaultHighlightOutput,
		PopularCacheTTL:  10 * time.Minute,
		PopularCacheSize: 16,
	}
}

// Service 组装全部组件，是 HTTP 层唯一依赖的入口
type Service struct {
	store      Store
	cfg        ServiceConfig
	blocklist  *BlockListResolver
	trips      *TripContextResolver
	highlights *HighlightSelector
	inspire    *PersonalizationEngine
	logger     zerolog.Logger
}

func NewService(store Store, cfg ServiceConfig, logger zerolog.Logger) (*Service, error) {
	cacheSize := cfg.PopularCacheSize
	if cacheSize <= 0 {
		cacheSize = 16
	}
	popular, err := utils.NewCache[[]Destination](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create popular cache: %w", err)
	}
	return &Service{
		store:      store,
		cfg:        cfg,
		blocklist:  NewBlockListResolver(store, logger),
		trips:      NewTripContextResolver(store, logger),
		highlights: NewHighlightSelector(store, NewRelevanceScorer(), cfg.Retry, cfg.HighlightPool, cfg.HighlightOutput),
		inspire:    NewPersonalizationEngine(store, store, popular, cfg.PopularCacheTTL, logger),
		logger:     logger,
	}, nil
}

// viewerContext 一次会话内不变的拉黑集合和行程上下文，两个解析器并发执行
func (s *Service) viewerContext(ctx context.Context, viewerID string) (map[string]struct{}, *TripContext) {
	var (
		excluded map[string]struct{}
		trip     *TripContext
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		excluded = s.blocklist.Resolve(gctx, viewerID)
		return nil
	})
	g.Go(func() error {
		trip = s.trips.Resolve(gctx, viewerID)
		return nil
	})
	// 解析器都是 fail-open，不会返回错误
	_ = g.Wait()
	return excluded, trip
}

// NewSession 为 viewer 打开一个 feed 会话并加载第一页 (filter 为空时使用默认排序)
func (s *Service) NewSession(ctx context.Context, viewerID string, filter FeedFilter) (*Session, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if filter.PageSize <= 0 {
		filter.PageSize = s.cfg.PageSize
	}

	excluded, trip := s.viewerContext(ctx, viewerID)

	id := uuid.NewString()
	logger := s.logger.With().Str("session_id", id).Str("viewer", viewerID).Logger()
	list := NewList[ThreadView]()

	sess := &Session{
		ID:        id,
		ViewerID:  viewerID,
		CreatedAt: time.Now(),
		Excluded:  excluded,
		Trip:      trip,
		store:     s.store,
		policy:    s.cfg.Retry,
		logger:    logger,
		replies:   make(map[string]*replyThread),
	}
	sess.Feed = NewPaginationController(s.store, PaginationOptions{
		ViewerID:        viewerID,
		ExcludedAuthors: excluded,
		Policy:          s.cfg.Retry,
		List:            list,
	}, logger)
	sess.Votes = NewVoteCoordinator(list, s.store, s.cfg.Retry.Timeout, logger)

	logger.Info().Int("excluded", len(excluded)).Bool("trip", trip != nil).Msg("feed session opened")

	// 第一页失败不影响会话本身，错误状态保存在快照里
	if err := sess.Feed.SetFilter(ctx, filter); err != nil {
		logger.Warn().Err(err).Msg("first page failed")
	}
	return sess, nil
}

func (s *Service) Highlights(ctx context.Context, viewerID string) ([]Highlight, error) {
	// 匿名用户没有精选
	if viewerID == "" {
		return []Highlight{}, nil
	}
	excluded, trip := s.viewerContext(ctx, viewerID)
	return s.highlights.Select(ctx, viewerID, trip, excluded)
}

func (s *Service) Inspiration(ctx context.Context, viewerID string, excludeCityIDs []string) Inspiration {
	return s.inspire.Personalize(ctx, viewerID, excludeCityIDs)
}

// Replies 无会话的回复列表，拉黑用户的回复被过滤
func (s *Service) Replies(ctx context.Context, viewerID, threadID string) ([]ReplyView, error) {
	excluded := s.blocklist.Resolve(ctx, viewerID)
	return fetchReplies(ctx, s.store, s.cfg.Retry, viewerID, threadID, excluded)
}

func (s *Service) Topics(ctx context.Context) ([]Topic, error) {
	var topics []Topic
	err := s.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		topics, err = s.store.ListTopics(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: topics: %w", ErrFetchFailed, err)
	}
	return topics, nil
}

func fetchReplies(ctx context.Context, src ReplySource, policy RetryPolicy, viewerID, threadID string, excluded map[string]struct{}) ([]ReplyView, error) {
	authors := make([]string, 0, len(excluded))
	for id := range excluded {
		authors = append(authors, id)
	}
	authors = Distinct(authors)

	var replies []ReplyView
	err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		replies, err = src.ListReplies(ctx, viewerID, threadID, authors)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: replies of %s: %w", ErrFetchFailed, threadID, err)
	}
	return replies, nil
}

type replyThread struct {
	list  *List[ReplyView]
	votes *VoteCoordinator[ReplyView]
}

// Session 一个 viewer 的一次 feed 浏览。拉黑集合和行程上下文在创建时解析一次，之后不变。
type Session struct {
	ID        string
	ViewerID  string
	CreatedAt time.Time
	Excluded  map[string]struct{}
	Trip      *TripContext

	Feed  *PaginationController
	Votes *VoteCoordinator[ThreadView]

	store  Store
	policy RetryPolicy
	logger zerolog.Logger

	mu      sync.Mutex
	replies map[string]*replyThread
}

// ToggleThreadVote 等待服务端结果；失败时列表已回滚，返回 ErrVoteFailed
func (s *Session) ToggleThreadVote(ctx context.Context, threadID string) ([]ThreadView, error) {
	return s.Votes.ToggleSync(ctx, s.ViewerID, threadID)
}

// Replies 加载帖子的回复并在会话中保存，之后可以对其投票
func (s *Session) Replies(ctx context.Context, threadID string) ([]ReplyView, error) {
	replies, err := fetchReplies(ctx, s.store, s.policy, s.ViewerID, threadID, s.Excluded)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	rt, ok := s.replies[threadID]
	if !ok {
		list := NewList[ReplyView]()
		rt = &replyThread{
			list:  list,
			votes: NewVoteCoordinator(list, s.store, s.policy.Timeout, s.logger),
		}
		s.replies[threadID] = rt
	}
	s.mu.Unlock()

	rt.list.Replace(replies)
	return rt.list.Items(), nil
}

// ToggleReplyVote 回复必须先通过 Replies 加载过
func (s *Session) ToggleReplyVote(ctx context.Context, threadID, replyID string) ([]ReplyView, error) {
	s.mu.Lock()
	rt, ok := s.replies[threadID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: replies of %s not loaded", ErrTargetNotFound, threadID)
	}
	return rt.votes.ToggleSync(ctx, s.ViewerID, replyID)
}

func (s *Session) Close() {
	s.Feed.Close()
	s.logger.Info().Msg("feed session closed")
}
