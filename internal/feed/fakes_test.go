package feed

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var errBoom = errors.New("boom")

var testLogger = zerolog.Nop()

// memStore 内存版 Store，按 QueryDescription 过滤、排序、分页
type memStore struct {
	mu      sync.Mutex
	threads []ThreadView
	replies map[string][]ReplyView

	blocked    []string
	blockedErr error
	trips      []Trip
	tripsErr   error
	countries  map[string]string

	saved      []string
	savedErr   error
	tags       map[string][]string // city -> tags
	tagsErr    error
	byTagErr   error
	cities     []Destination // order_index 顺序
	citiesErr  error
	popularErr error
	topics     []Topic

	// 前 failQueries 次 QueryContent 返回 errBoom
	failQueries int
	queryCalls  int
	queries     []QueryDescription
	// gate 非空时，QueryContent 在返回前等待该 channel
	gate map[string]chan struct{}
	// entered 每次 QueryContent 进入时通知
	entered chan QueryDescription

	mutateErr    error
	mutateCalls  int
	votes        map[string]bool
	popularCalls int
}

func newMemStore() *memStore {
	return &memStore{
		replies:   make(map[string][]ReplyView),
		countries: make(map[string]string),
		tags:      make(map[string][]string),
		votes:     make(map[string]bool),
		gate:      make(map[string]chan struct{}),
	}
}

func (m *memStore) QueryContent(ctx context.Context, q QueryDescription) ([]ThreadView, error) {
	m.mu.Lock()
	m.queryCalls++
	m.queries = append(m.queries, q)
	fail := m.queryCalls <= m.failQueries
	var gate chan struct{}
	for _, c := range q.Equals {
		if g, ok := m.gate[c.Value]; ok {
			gate = g
		}
	}
	entered := m.entered
	threads := cloneItems(m.threads)
	m.mu.Unlock()

	if entered != nil {
		entered <- q
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errBoom
	}

	excluded := setOf(q.ExcludedAuthors)
	var out []ThreadView
	for _, t := range threads {
		if !matches(t, q) {
			continue
		}
		if _, skip := excluded[t.Author.ID]; skip {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return q.Less(out[i], out[j]) })

	if q.Offset >= len(out) {
		return []ThreadView{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[q.Offset:end], nil
}

func matches(t ThreadView, q QueryDescription) bool {
	for _, c := range q.Equals {
		switch c.Field {
		case FieldStatus:
			if string(t.Status) != c.Value {
				return false
			}
		case FieldCountryID:
			if t.CountryID != c.Value {
				return false
			}
		case FieldCityID:
			if t.CityID != c.Value {
				return false
			}
		case FieldTopicID:
			if t.TopicID != c.Value {
				return false
			}
		}
	}
	text := strings.ToLower(t.Title + " " + t.Body)
	for _, term := range q.SearchTerms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

func (m *memStore) ListReplies(ctx context.Context, viewerID, threadID string, excludedAuthors []string) ([]ReplyView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex := setOf(excludedAuthors)
	var out []ReplyView
	for _, r := range m.replies[threadID] {
		if _, skip := ex[r.Author.ID]; skip {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) MutateVote(ctx context.Context, viewerID string, target Target, cast bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutateCalls++
	if m.mutateErr != nil {
		return m.mutateErr
	}
	m.votes[viewerID+"/"+string(target.Type)+"/"+target.ID] = cast
	return nil
}

func (m *memStore) LookupBlocked(ctx context.Context, viewerID string) ([]string, error) {
	return m.blocked, m.blockedErr
}

func (m *memStore) LookupTrips(ctx context.Context, viewerID string) ([]Trip, error) {
	return m.trips, m.tripsErr
}

func (m *memStore) LookupCountries(ctx context.Context, iso2 []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, code := range iso2 {
		if id, ok := m.countries[code]; ok {
			out[code] = id
		}
	}
	return out, nil
}

func (m *memStore) SavedCityIDs(ctx context.Context, viewerID string) ([]string, error) {
	return m.saved, m.savedErr
}

func (m *memStore) LookupTags(ctx context.Context, cityIDs []string) ([]string, error) {
	if m.tagsErr != nil {
		return nil, m.tagsErr
	}
	var out []string
	for _, id := range cityIDs {
		out = append(out, m.tags[id]...)
	}
	return out, nil
}

func (m *memStore) LookupByTags(ctx context.Context, tags []string, excludeIDs []string) ([]string, error) {
	if m.byTagErr != nil {
		return nil, m.byTagErr
	}
	want := setOf(tags)
	var out []string
	for city, ct := range m.tags {
		for _, t := range ct {
			if _, ok := want[t]; ok {
				out = append(out, city)
				break
			}
		}
	}
	// 故意不执行 excludeIDs，由调用方兜底
	return out, nil
}

func (m *memStore) FetchCities(ctx context.Context, ids []string, limit int) ([]Destination, error) {
	if m.citiesErr != nil {
		return nil, m.citiesErr
	}
	want := setOf(ids)
	var out []Destination
	for _, c := range m.cities {
		if _, ok := want[c.ID]; ok {
			out = append(out, c)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) PopularCities(ctx context.Context, limit int) ([]Destination, error) {
	m.mu.Lock()
	m.popularCalls++
	m.mu.Unlock()
	if m.popularErr != nil {
		return nil, m.popularErr
	}
	if len(m.cities) < limit {
		return cloneItems(m.cities), nil
	}
	return cloneItems(m.cities[:limit]), nil
}

func (m *memStore) ListTopics(ctx context.Context) ([]Topic, error) {
	return m.topics, nil
}

// thread 测试用帖子，created 越大越新
func thread(id string, created int) ThreadView {
	return ThreadView{
		ID:        id,
		Author:    Author{ID: "author-" + id},
		Title:     "Thread " + id,
		Status:    StatusActive,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(created) * time.Hour),
	}
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Base: time.Millisecond, Timeout: time.Second}
}

func ids(items []ThreadView) []string {
	out := make([]string, len(items))
	for i, t := range items {
		out[i] = t.ID
	}
	return out
}
