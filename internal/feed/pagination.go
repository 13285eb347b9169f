package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solafeed/internal/metrics"
)

type State string

const (
	StateIdle             State = "idle"
	StateLoadingFirstPage State = "loading_first_page"
	StateReady            State = "ready"
	StateLoadingNextPage  State = "loading_next_page"
	StateRefreshing       State = "refreshing"
)

// Snapshot 控制器对外可见的状态
type Snapshot struct {
	State      State        `json:"state"`
	Filter     FeedFilter   `json:"filter"`
	Items      []ThreadView `json:"items"`
	Page       int          `json:"page"`
	HasMore    bool         `json:"has_more"`
	Err        error        `json:"-"`
	Generation uint64       `json:"generation"`
}

// PaginationController 驱动 feed 的分页加载。
//
//	idle -> loading_first_page -> ready <-> loading_next_page
//	ready -> refreshing -> ready
//
// 每次换 filter、刷新或关闭都会递增 generation，迟到的旧响应直接丢弃。
type PaginationController struct {
	source   ContentSource
	builder  FeedQueryBuilder
	excluded map[string]struct{}
	policy   RetryPolicy
	list     *List[ThreadView]
	logger   zerolog.Logger

	mu      sync.Mutex
	state   State
	filter  FeedFilter
	page    int
	hasMore bool
	err     error
	gen     uint64
	subs    map[int]func(Snapshot)
	nextSub int
}

type PaginationOptions struct {
	ViewerID        string
	ExcludedAuthors map[string]struct{}
	Policy          RetryPolicy
	List            *List[ThreadView]
}

func NewPaginationController(source ContentSource, opts PaginationOptions, logger zerolog.Logger) *PaginationController {
	list := opts.List
	if list == nil {
		list = NewList[ThreadView]()
	}
	c := &PaginationController{
		source:   source,
		builder:  FeedQueryBuilder{ViewerID: opts.ViewerID},
		excluded: opts.ExcludedAuthors,
		policy:   opts.Policy,
		list:     list,
		logger:   logger.With().Str("component", "feed.pagination").Logger(),
		state:    StateIdle,
		hasMore:  true,
		subs:     make(map[int]func(Snapshot)),
	}
	// 投票改写列表时也要通知订阅者
	list.setOnChange(c.emit)
	return c
}

func (c *PaginationController) List() *List[ThreadView] { return c.list }

// Subscribe 注册状态变化回调，返回取消函数
func (c *PaginationController) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *PaginationController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *PaginationController) snapshotLocked() Snapshot {
	return Snapshot{
		State:      c.state,
		Filter:     c.filter,
		Items:      c.list.Items(),
		Page:       c.page,
		HasMore:    c.hasMore,
		Err:        c.err,
		Generation: c.gen,
	}
}

func (c *PaginationController) emit() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// SetFilter 换 filter：回到第 0 页，丢弃所有进行中的请求结果
func (c *PaginationController) SetFilter(ctx context.Context, f FeedFilter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.Sort == "" {
		f.Sort = SortRelevant
	}
	f = f.WithPage(0)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.filter = f
	c.state = StateLoadingFirstPage
	c.page = 0
	c.hasMore = true
	c.err = nil
	c.list.Replace(nil)
	c.mu.Unlock()
	c.emit()

	return c.fetch(ctx, gen, f, 0)
}

// Refresh 重新加载第 0 页，只在 ready 状态下生效
func (c *PaginationController) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	f := c.filter
	c.state = StateRefreshing
	c.mu.Unlock()
	c.emit()

	return c.fetch(ctx, gen, f, 0)
}

// LoadMore 只有在 ready 且 hasMore 时才会发请求
func (c *PaginationController) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateReady || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	f := c.filter
	next := c.page + 1
	c.state = StateLoadingNextPage
	c.mu.Unlock()
	c.emit()

	return c.fetch(ctx, gen, f, next)
}

// Close 会话结束，之后到达的响应全部丢弃
func (c *PaginationController) Close() {
	c.mu.Lock()
	c.gen++
	c.state = StateIdle
	c.mu.Unlock()
	c.emit()
}

func (c *PaginationController) fetch(ctx context.Context, gen uint64, f FeedFilter, page int) error {
	q := c.builder.Build(f.WithPage(page), c.excluded)

	policy := c.policy
	policy.OnRetry = func(err error, wait time.Duration) {
		metrics.FetchRetries.Inc()
		c.logger.Debug().Err(err).Int("page", page).Dur("wait", wait).Msg("retrying page fetch")
	}

	var items []ThreadView
	err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		items, err = c.source.QueryContent(ctx, q)
		return err
	})

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		metrics.PageFetches.WithLabelValues("stale").Inc()
		c.logger.Debug().Int("page", page).Msg("discarding stale page response")
		return nil
	}

	if err != nil {
		c.err = fmt.Errorf("%w: page %d: %w", ErrFetchFailed, page, err)
		if c.state == StateLoadingFirstPage {
			c.hasMore = false
		}
		c.state = StateReady
		ferr := c.err
		c.mu.Unlock()
		metrics.PageFetches.WithLabelValues("failure").Inc()
		c.logger.Error().Err(err).Int("page", page).Msg("page fetch failed after retries")
		c.emit()
		return ferr
	}

	if page == 0 {
		c.list.Replace(items)
	} else {
		c.list.Append(items)
	}
	c.page = page
	// 满页就认为还有更多，直到下一次拿到空页才知道结束
	c.hasMore = len(items) >= f.PageSize
	c.err = nil
	c.state = StateReady
	c.mu.Unlock()

	metrics.PageFetches.WithLabelValues("success").Inc()
	c.emit()
	return nil
}
