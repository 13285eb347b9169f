package db

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"gorm.io/gorm"

	"solafeed/internal/feed"
	"solafeed/internal/metrics"
)

type BreakerSettings struct {
	Name         string
	MaxRequests  uint32        // 半开状态允许的并发探测数
	Interval     time.Duration // 关闭状态下清零计数的周期
	Timeout      time.Duration // 打开多久后转为半开
	MinRequests  uint32
	FailureRatio float64
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "postgres",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// BreakerStore 给每个存储调用加熔断。熔断打开时返回 gobreaker.ErrOpenState，
// 对分页来说它和超时一样属于可重试的瞬时错误。
type BreakerStore struct {
	next   feed.Store
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	logger zerolog.Logger
}

var _ feed.Store = (*BreakerStore)(nil)

func NewBreakerStore(next feed.Store, st BreakerSettings, logger zerolog.Logger) *BreakerStore {
	log := logger.With().Str("component", "db.breaker").Str("breaker", st.Name).Logger()
	metrics.CircuitBreakerState.WithLabelValues(st.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.MaxRequests,
		Interval:    st.Interval,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < st.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= st.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
		// 调用方取消和“查无此行”不算数据库故障
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, gorm.ErrRecordNotFound) ||
				errors.Is(err, ErrUnknownTarget)
		},
	})

	return &BreakerStore{next: next, cb: cb, name: st.Name, logger: log}
}

func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

// call 在熔断器中执行 fn 并还原结果类型
func call[T any](b *BreakerStore, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		outcome := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, outcome).Inc()
		var zero T
		return zero, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	typed, _ := res.(T)
	return typed, nil
}

func (b *BreakerStore) QueryContent(ctx context.Context, q feed.QueryDescription) ([]feed.ThreadView, error) {
	return call(b, func() ([]feed.ThreadView, error) { return b.next.QueryContent(ctx, q) })
}

func (b *BreakerStore) ListReplies(ctx context.Context, viewerID, threadID string, excludedAuthors []string) ([]feed.ReplyView, error) {
	return call(b, func() ([]feed.ReplyView, error) {
		return b.next.ListReplies(ctx, viewerID, threadID, excludedAuthors)
	})
}

func (b *BreakerStore) MutateVote(ctx context.Context, viewerID string, target feed.Target, cast bool) error {
	_, err := call(b, func() (struct{}, error) {
		return struct{}{}, b.next.MutateVote(ctx, viewerID, target, cast)
	})
	return err
}

func (b *BreakerStore) LookupBlocked(ctx context.Context, viewerID string) ([]string, error) {
	return call(b, func() ([]string, error) { return b.next.LookupBlocked(ctx, viewerID) })
}

func (b *BreakerStore) LookupTrips(ctx context.Context, viewerID string) ([]feed.Trip, error) {
	return call(b, func() ([]feed.Trip, error) { return b.next.LookupTrips(ctx, viewerID) })
}

func (b *BreakerStore) LookupCountries(ctx context.Context, iso2 []string) (map[string]string, error) {
	return call(b, func() (map[string]string, error) { return b.next.LookupCountries(ctx, iso2) })
}

func (b *BreakerStore) SavedCityIDs(ctx context.Context, viewerID string) ([]string, error) {
	return call(b, func() ([]string, error) { return b.next.SavedCityIDs(ctx, viewerID) })
}

func (b *BreakerStore) LookupTags(ctx context.Context, cityIDs []string) ([]string, error) {
	return call(b, func() ([]string, error) { return b.next.LookupTags(ctx, cityIDs) })
}

func (b *BreakerStore) LookupByTags(ctx context.Context, tags []string, excludeIDs []string) ([]string, error) {
	return call(b, func() ([]string, error) { return b.next.LookupByTags(ctx, tags, excludeIDs) })
}

func (b *BreakerStore) FetchCities(ctx context.Context, ids []string, limit int) ([]feed.Destination, error) {
	return call(b, func() ([]feed.Destination, error) { return b.next.FetchCities(ctx, ids, limit) })
}

func (b *BreakerStore) PopularCities(ctx context.Context, limit int) ([]feed.Destination, error) {
	return call(b, func() ([]feed.Destination, error) { return b.next.PopularCities(ctx, limit) })
}

func (b *BreakerStore) ListTopics(ctx context.Context) ([]feed.Topic, error) {
	return call(b, func() ([]feed.Topic, error) { return b.next.ListTopics(ctx) })
}
