package feed

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type SortMode string

const (
	SortRelevant SortMode = "relevant"
	SortNew      SortMode = "new"
	SortTop      SortMode = "top"
)

const DefaultPageSize = 15

// FeedFilter 一次请求的过滤条件，值不可变；换一个 filter 就从第 0 页重新开始
type FeedFilter struct {
	CountryID   string   `json:"country_id,omitempty"`
	CityID      string   `json:"city_id,omitempty"`
	TopicID     string   `json:"topic_id,omitempty"`
	SearchQuery string   `json:"search_query,omitempty"`
	Sort        SortMode `json:"sort,omitempty"`
	PageIndex   int      `json:"page_index"`
	PageSize    int      `json:"page_size"`
}

// WithPage 返回同一过滤条件下的另一页
func (f FeedFilter) WithPage(page int) FeedFilter {
	f.PageIndex = page
	return f
}

// SameScope 忽略分页，比较两个过滤条件是否相同
func (f FeedFilter) SameScope(o FeedFilter) bool {
	return f.WithPage(0) == o.WithPage(0)
}

func (f FeedFilter) Validate() error {
	switch f.Sort {
	case "", SortRelevant, SortNew, SortTop:
	default:
		return fmt.Errorf("%w: unknown sort %q", ErrInvalidFilter, f.Sort)
	}
	if f.PageIndex < 0 {
		return fmt.Errorf("%w: negative page index", ErrInvalidFilter)
	}
	if f.PageSize < 0 {
		return fmt.Errorf("%w: negative page size", ErrInvalidFilter)
	}
	return nil
}

// 字段名是逻辑名，由存储实现映射为具体列
const (
	FieldStatus     = "status"
	FieldVisibility = "visibility"
	FieldCountryID  = "country_id"
	FieldCityID     = "city_id"
	FieldTopicID    = "topic_id"
	FieldAuthorID   = "author_id"
	FieldPinned     = "pinned"
	FieldVoteScore  = "vote_score"
	FieldCreatedAt  = "created_at"
	FieldID         = "id"
)

type Condition struct {
	Field string
	Value string
}

type OrderTerm struct {
	Field string
	Desc  bool
}

// QueryDescription 是 FeedQueryBuilder 的输出，纯数据
type QueryDescription struct {
	ViewerID        string
	Equals          []Condition
	SearchTerms     []string
	ExcludedAuthors []string
	Order           []OrderTerm
	Offset          int
	Limit           int
}

// String 规范化编码；相同输入一定得到相同字符串
func (q QueryDescription) String() string {
	var b strings.Builder
	b.WriteString("viewer=")
	b.WriteString(q.ViewerID)
	for _, c := range q.Equals {
		b.WriteString(";eq:")
		b.WriteString(c.Field)
		b.WriteString("=")
		b.WriteString(strconv.Quote(c.Value))
	}
	if len(q.SearchTerms) > 0 {
		b.WriteString(";search:")
		b.WriteString(strings.Join(q.SearchTerms, "&"))
	}
	if len(q.ExcludedAuthors) > 0 {
		b.WriteString(";not_in:author_id=")
		b.WriteString(strings.Join(q.ExcludedAuthors, ","))
	}
	b.WriteString(";order:")
	for i, o := range q.Order {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(o.Field)
		if o.Desc {
			b.WriteString(" desc")
		} else {
			b.WriteString(" asc")
		}
	}
	fmt.Fprintf(&b, ";range:%d+%d", q.Offset, q.Limit)
	return b.String()
}

// FeedQueryBuilder 纯函数式构建查询描述
type FeedQueryBuilder struct {
	ViewerID string
}

func (qb FeedQueryBuilder) Build(f FeedFilter, excludedAuthors map[string]struct{}) QueryDescription {
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page := f.PageIndex
	if page < 0 {
		page = 0
	}

	q := QueryDescription{
		ViewerID: qb.ViewerID,
		Equals: []Condition{
			{Field: FieldStatus, Value: string(StatusActive)},
			{Field: FieldVisibility, Value: "public"},
		},
		Order:  orderFor(f.Sort),
		Offset: page * pageSize,
		Limit:  pageSize,
	}

	if f.CountryID != "" {
		q.Equals = append(q.Equals, Condition{Field: FieldCountryID, Value: f.CountryID})
	}
	if f.CityID != "" {
		q.Equals = append(q.Equals, Condition{Field: FieldCityID, Value: f.CityID})
	}
	if f.TopicID != "" {
		q.Equals = append(q.Equals, Condition{Field: FieldTopicID, Value: f.TopicID})
	}

	q.SearchTerms = SearchTerms(f.SearchQuery)

	// 空的排除列表必须省略，否则 NOT IN () 会排除全部
	if len(excludedAuthors) > 0 {
		ids := make([]string, 0, len(excludedAuthors))
		for id := range excludedAuthors {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		q.ExcludedAuthors = ids
	}
	return q
}

// 三种排序最后都用 id 兜底，保证全序，分页才不会重复或遗漏
func orderFor(mode SortMode) []OrderTerm {
	switch mode {
	case SortNew:
		return []OrderTerm{
			{Field: FieldCreatedAt, Desc: true},
			{Field: FieldID, Desc: true},
		}
	case SortTop:
		return []OrderTerm{
			{Field: FieldVoteScore, Desc: true},
			{Field: FieldCreatedAt, Desc: true},
			{Field: FieldID, Desc: true},
		}
	default:
		return []OrderTerm{
			{Field: FieldPinned, Desc: true},
			{Field: FieldVoteScore, Desc: true},
			{Field: FieldCreatedAt, Desc: true},
			{Field: FieldID, Desc: true},
		}
	}
}

// SearchTerms 小写、按空白切分，并去掉 tsquery 运算符
func SearchTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	if len(fields) == 0 {
		return nil
	}
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.Map(func(r rune) rune {
			switch r {
			case '&', '|', '!', '(', ')', ':', '*', '\'', '\\', '<', '>':
				return -1
			}
			return r
		}, f)
		if t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return nil
	}
	return terms
}

// Less 按 QueryDescription 的排序比较两条帖子，内存实现和测试共用
func (q QueryDescription) Less(a, b ThreadView) bool {
	for _, o := range q.Order {
		c := compareField(o.Field, a, b)
		if c == 0 {
			continue
		}
		if o.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

func compareField(field string, a, b ThreadView) int {
	switch field {
	case FieldPinned:
		return compareBool(a.Pinned, b.Pinned)
	case FieldVoteScore:
		return compareInt(a.VoteScore, b.VoteScore)
	case FieldCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case FieldID:
		return strings.Compare(a.ID, b.ID)
	}
	return 0
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
