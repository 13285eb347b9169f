package feed

import (
	"context"
	"sort"
)

// TagSimilarityResolver 由收藏推导标签，再由标签找相似城市。
// 每一步都是一次查询加一次纯集合运算，集合运算可以脱离存储单独测试。
type TagSimilarityResolver struct {
	lookup TagLookup
}

func NewTagSimilarityResolver(lookup TagLookup) *TagSimilarityResolver {
	return &TagSimilarityResolver{lookup: lookup}
}

// SavedCities 第 1 步：收藏地点所在的城市 (去重)
func (r *TagSimilarityResolver) SavedCities(ctx context.Context, viewerID string) ([]string, error) {
	ids, err := r.lookup.SavedCityIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return Distinct(ids), nil
}

// Tags 第 2 步：这些城市上的描述标签 (去重)
func (r *TagSimilarityResolver) Tags(ctx context.Context, cityIDs []string) ([]string, error) {
	if len(cityIDs) == 0 {
		return nil, nil
	}
	tags, err := r.lookup.LookupTags(ctx, cityIDs)
	if err != nil {
		return nil, err
	}
	return Distinct(tags), nil
}

// Candidates 第 3 步：共享任一标签的其它城市，排除已收藏和调用方指定的城市。
// 存储层不保证一定执行排除，这里再做一次。
func (r *TagSimilarityResolver) Candidates(ctx context.Context, tags, savedCityIDs, excludeIDs []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	exclude := Union(savedCityIDs, excludeIDs)
	ids, err := r.lookup.LookupByTags(ctx, tags, exclude)
	if err != nil {
		return nil, err
	}
	return Subtract(Distinct(ids), exclude), nil
}

// Distinct 去重、去空并排序，保证结果确定
func Distinct(ids []string) []string {
	set := setOf(ids)
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func Union(sets ...[]string) []string {
	var all []string
	for _, s := range sets {
		all = append(all, s...)
	}
	return Distinct(all)
}

// Subtract 返回 ids 中不在 exclude 里的元素，保持原顺序
func Subtract(ids, exclude []string) []string {
	ex := setOf(exclude)
	var out []string
	for _, id := range ids {
		if _, skip := ex[id]; skip {
			continue
		}
		out = append(out, id)
	}
	return out
}
