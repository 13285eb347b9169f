package feed

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func fiveThreads() []ThreadView {
	return []ThreadView{thread("A", 1), thread("B", 2), thread("C", 3), thread("D", 4), thread("E", 5)}
}

func newController(store *memStore) *PaginationController {
	return NewPaginationController(store, PaginationOptions{ViewerID: "v1", Policy: fastPolicy()}, testLogger)
}

func TestPaginationNewestFirstPages(t *testing.T) {
	store := newMemStore()
	store.threads = fiveThreads()
	c := newController(store)
	ctx := context.Background()

	if err := c.SetFilter(ctx, FeedFilter{Sort: SortNew, PageSize: 2}); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	if got := ids(snap.Items); !reflect.DeepEqual(got, []string{"E", "D"}) {
		t.Fatalf("page 0 = %v, want [E D]", got)
	}
	if !snap.HasMore || snap.State != StateReady {
		t.Fatalf("after page 0: state=%s hasMore=%v", snap.State, snap.HasMore)
	}

	if err := c.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}
	snap = c.Snapshot()
	if got := ids(snap.Items); !reflect.DeepEqual(got, []string{"E", "D", "C", "B"}) {
		t.Fatalf("after page 1 = %v", got)
	}
	if !snap.HasMore {
		t.Fatal("hasMore should still be true after a full page 1")
	}

	if err := c.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}
	snap = c.Snapshot()
	if got := ids(snap.Items); !reflect.DeepEqual(got, []string{"E", "D", "C", "B", "A"}) {
		t.Fatalf("after page 2 = %v", got)
	}
	if snap.HasMore {
		t.Fatal("hasMore should be false after the short page 2")
	}
	if snap.Page != 2 {
		t.Errorf("page = %d, want 2", snap.Page)
	}

	// 没有更多时 LoadMore 不再发请求
	calls := store.queryCalls
	_ = c.LoadMore(ctx)
	if store.queryCalls != calls {
		t.Error("LoadMore issued a query with hasMore=false")
	}
}

func TestPaginationCompleteness(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 23; i++ {
		th := thread(string(rune('a'+i)), i%4) // 大量同一时间，依赖 id 兜底
		th.VoteScore = i % 3
		store.threads = append(store.threads, th)
	}
	for _, mode := range []SortMode{SortRelevant, SortNew, SortTop} {
		c := newController(store)
		ctx := context.Background()
		if err := c.SetFilter(ctx, FeedFilter{Sort: mode, PageSize: 4}); err != nil {
			t.Fatal(err)
		}
		for c.Snapshot().HasMore {
			if err := c.LoadMore(ctx); err != nil {
				t.Fatal(err)
			}
		}
		seen := make(map[string]bool)
		for _, th := range c.Snapshot().Items {
			if seen[th.ID] {
				t.Fatalf("sort %s: duplicate %s", mode, th.ID)
			}
			seen[th.ID] = true
		}
		if len(seen) != 23 {
			t.Errorf("sort %s: got %d items, want 23", mode, len(seen))
		}
	}
}

func TestPaginationExcludesBlockedAuthors(t *testing.T) {
	store := newMemStore()
	store.threads = fiveThreads()
	c := NewPaginationController(store, PaginationOptions{
		ViewerID:        "v1",
		ExcludedAuthors: map[string]struct{}{"author-C": {}},
		Policy:          fastPolicy(),
	}, testLogger)
	if err := c.SetFilter(context.Background(), FeedFilter{Sort: SortNew}); err != nil {
		t.Fatal(err)
	}
	if got := ids(c.Snapshot().Items); !reflect.DeepEqual(got, []string{"E", "D", "B", "A"}) {
		t.Errorf("items = %v", got)
	}
}

func TestPaginationRetriesTransientFailure(t *testing.T) {
	store := newMemStore()
	store.threads = fiveThreads()
	store.failQueries = 2
	c := newController(store)

	if err := c.SetFilter(context.Background(), FeedFilter{Sort: SortNew, PageSize: 2}); err != nil {
		t.Fatalf("err = %v", err)
	}
	if store.queryCalls != 3 {
		t.Errorf("query calls = %d, want 3", store.queryCalls)
	}
	if len(c.Snapshot().Items) != 2 {
		t.Error("page should have loaded after retries")
	}
}

func TestPaginationFirstPageFailure(t *testing.T) {
	store := newMemStore()
	store.threads = fiveThreads()
	store.failQueries = 100
	c := newController(store)

	err := c.SetFilter(context.Background(), FeedFilter{Sort: SortNew})
	if !errors.Is(err, ErrFetchFailed) || !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want ErrFetchFailed wrapping cause", err)
	}
	snap := c.Snapshot()
	if snap.State != StateReady || snap.HasMore || snap.Err == nil {
		t.Errorf("snapshot = %+v, want ready, no more, error set", snap)
	}
	if store.queryCalls != 3 {
		t.Errorf("query calls = %d, want 3", store.queryCalls)
	}
}

func TestPaginationNextPageFailureKeepsItems(t *testing.T) {
	store := newMemStore()
	store.threads = fiveThreads()
	c := newController(store)
	ctx := context.Background()
	if err := c.SetFilter(ctx, FeedFilter{Sort: SortNew, PageSize: 2}); err != nil {
		t.Fatal(err)
	}

	store.mu.Lock()
	store.failQueries = store.queryCalls + 3
	store.mu.Unlock()

	if err := c.LoadMore(ctx); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v", err)
	}
	snap := c.Snapshot()
	if got := ids(snap.Items); !reflect.DeepEqual(got, []string{"E", "D"}) {
		t.Errorf("items = %v, want page 0 kept", got)
	}
	if !snap.HasMore || snap.Page != 0 {
		t.Errorf("hasMore=%v page=%d, want true/0 so LoadMore can retry", snap.HasMore, snap.Page)
	}
	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("retry load more: %v", err)
	}
	if got := ids(c.Snapshot().Items); !reflect.DeepEqual(got, []string{"E", "D", "C", "B"}) {
		t.Errorf("items = %v", got)
	}
}

func TestPaginationRefresh(t *testing.T) {
	store := newMemStore()
	store.threads = fiveThreads()
	c := newController(store)
	ctx := context.Background()
	if err := c.SetFilter(ctx, FeedFilter{Sort: SortNew, PageSize: 2}); err != nil {
		t.Fatal(err)
	}
	_ = c.LoadMore(ctx)

	store.mu.Lock()
	store.threads = append(store.threads, thread("F", 6))
	store.mu.Unlock()

	if err := c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	if got := ids(snap.Items); !reflect.DeepEqual(got, []string{"F", "E"}) {
		t.Errorf("after refresh = %v, want [F E]", got)
	}
	if snap.Page != 0 {
		t.Errorf("page = %d, want 0", snap.Page)
	}

	// 刷新失败保留旧数据
	store.mu.Lock()
	store.failQueries = store.queryCalls + 3
	store.mu.Unlock()
	if err := c.Refresh(ctx); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v", err)
	}
	if got := ids(c.Snapshot().Items); !reflect.DeepEqual(got, []string{"F", "E"}) {
		t.Errorf("items after failed refresh = %v", got)
	}
}

func TestPaginationIgnoresCallsOutsideReady(t *testing.T) {
	store := newMemStore()
	c := newController(store)
	ctx := context.Background()
	if err := c.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if store.queryCalls != 0 {
		t.Errorf("idle controller issued %d queries", store.queryCalls)
	}
}

func TestPaginationDiscardsStaleResponse(t *testing.T) {
	store := newMemStore()
	store.threads = fiveThreads()
	store.threads[0].TopicID = "slow"
	store.threads[1].TopicID = "fast"
	store.gate["slow"] = make(chan struct{})
	store.entered = make(chan QueryDescription, 4)
	c := newController(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.SetFilter(ctx, FeedFilter{TopicID: "slow"})
	}()
	<-store.entered // 慢请求已发出

	if err := c.SetFilter(ctx, FeedFilter{TopicID: "fast"}); err != nil {
		t.Fatal(err)
	}
	<-store.entered
	close(store.gate["slow"])
	wg.Wait()

	snap := c.Snapshot()
	if got := ids(snap.Items); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("items = %v, stale response should be discarded", got)
	}
	if snap.Filter.TopicID != "fast" {
		t.Errorf("filter = %+v", snap.Filter)
	}
}

func TestPaginationCloseDiscardsInFlight(t *testing.T) {
	store := newMemStore()
	store.threads = fiveThreads()
	store.threads[0].TopicID = "slow"
	store.gate["slow"] = make(chan struct{})
	store.entered = make(chan QueryDescription, 1)
	c := newController(store)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.SetFilter(context.Background(), FeedFilter{TopicID: "slow"})
	}()
	<-store.entered
	c.Close()
	close(store.gate["slow"])
	<-done

	snap := c.Snapshot()
	if snap.State != StateIdle || len(snap.Items) != 0 {
		t.Errorf("snapshot after close = %+v", snap)
	}
}

func TestPaginationSubscribe(t *testing.T) {
	store := newMemStore()
	store.threads = fiveThreads()
	c := newController(store)

	var mu sync.Mutex
	var states []State
	unsubscribe := c.Subscribe(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})
	if err := c.SetFilter(context.Background(), FeedFilter{}); err != nil {
		t.Fatal(err)
	}
	unsubscribe()
	_ = c.Refresh(context.Background())

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateLoadingFirstPage, StateReady}
	if !reflect.DeepEqual(states, want) {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestPaginationRejectsInvalidFilter(t *testing.T) {
	c := newController(newMemStore())
	if err := c.SetFilter(context.Background(), FeedFilter{Sort: "hot"}); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("err = %v", err)
	}
	if c.Snapshot().State != StateIdle {
		t.Error("invalid filter should not change state")
	}
}

func TestPaginationTimeoutIsTransient(t *testing.T) {
	store := newMemStore()
	store.threads = fiveThreads()
	store.threads[0].TopicID = "stuck"
	store.gate["stuck"] = make(chan struct{}) // 永不放行
	c := NewPaginationController(store, PaginationOptions{
		Policy: RetryPolicy{MaxRetries: 1, Base: time.Millisecond, Timeout: 5 * time.Millisecond},
	}, testLogger)

	err := c.SetFilter(context.Background(), FeedFilter{TopicID: "stuck"})
	if !errors.Is(err, ErrFetchFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
	if store.queryCalls != 2 {
		t.Errorf("query calls = %d, want 2", store.queryCalls)
	}
}
