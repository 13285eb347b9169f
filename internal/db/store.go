package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"solafeed/internal/feed"
	"solafeed/internal/models"
)

var ErrUnknownTarget = errors.New("db: unknown vote target")

// 逻辑字段 -> 列名
var threadColumns = map[string]string{
	feed.FieldStatus:     "status",
	feed.FieldVisibility: "visibility",
	feed.FieldCountryID:  "country_id",
	feed.FieldCityID:     "city_id",
	feed.FieldTopicID:    "topic_id",
	feed.FieldAuthorID:   "author_id",
	feed.FieldPinned:     "pinned",
	feed.FieldVoteScore:  "vote_score",
	feed.FieldCreatedAt:  "created_at",
	feed.FieldID:         "id",
}

// Store 基于 gorm 的 feed.Store 实现
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ feed.Store = (*Store)(nil)

// contentQuery 把 QueryDescription 翻译成 gorm 查询，不执行
func contentQuery(tx *gorm.DB, q feed.QueryDescription) (*gorm.DB, error) {
	for _, c := range q.Equals {
		col, ok := threadColumns[c.Field]
		if !ok {
			return nil, fmt.Errorf("unknown filter field %q", c.Field)
		}
		tx = tx.Where(clause.Eq{Column: clause.Column{Name: col}, Value: c.Value})
	}

	if len(q.SearchTerms) > 0 {
		// 整词匹配，全部命中
		tx = tx.Where("search_vector @@ to_tsquery('simple', ?)", strings.Join(q.SearchTerms, " & "))
	}

	if len(q.ExcludedAuthors) > 0 {
		tx = tx.Where("author_id NOT IN ?", q.ExcludedAuthors)
	}

	for _, o := range q.Order {
		col, ok := threadColumns[o.Field]
		if !ok {
			return nil, fmt.Errorf("unknown order field %q", o.Field)
		}
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: o.Desc})
	}

	return tx.Offset(q.Offset).Limit(q.Limit), nil
}

func (s *Store) QueryContent(ctx context.Context, q feed.QueryDescription) ([]feed.ThreadView, error) {
	tx, err := contentQuery(s.db.WithContext(ctx).Model(&models.CommunityThread{}), q)
	if err != nil {
		return nil, err
	}

	var rows []models.CommunityThread
	if err := tx.Preload("Author").Preload("City").Preload("Country").Preload("Topic").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	voted, err := s.votedTargets(ctx, q.ViewerID, feed.TargetThread, ids)
	if err != nil {
		return nil, err
	}

	out := make([]feed.ThreadView, len(rows))
	for i, r := range rows {
		out[i] = toThreadView(r, voted[r.ID])
	}
	return out, nil
}

// votedTargets 当前用户在这批目标上的投票
func (s *Store) votedTargets(ctx context.Context, viewerID string, tt feed.TargetType, ids []string) (map[string]bool, error) {
	voted := make(map[string]bool)
	if viewerID == "" || len(ids) == 0 {
		return voted, nil
	}
	var targetIDs []string
	err := s.db.WithContext(ctx).Model(&models.CommunityReaction{}).
		Where("user_id = ? AND target_type = ? AND target_id IN ?", viewerID, string(tt), ids).
		Pluck("target_id", &targetIDs).Error
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	for _, id := range targetIDs {
		voted[id] = true
	}
	return voted, nil
}

func toThreadView(r models.CommunityThread, voted bool) feed.ThreadView {
	v := feed.ThreadView{
		ID: r.ID,
		Author: feed.Author{
			ID:        r.AuthorID,
			FirstName: r.Author.FirstName,
			AvatarURL: r.Author.AvatarURL,
		},
		Title:        r.Title,
		Body:         r.Body,
		CountryID:    deref(r.CountryID),
		CityID:       deref(r.CityID),
		TopicID:      deref(r.TopicID),
		Status:       feed.ThreadStatus(r.Status),
		Pinned:       r.Pinned,
		ReplyCount:   r.ReplyCount,
		VoteScore:    r.VoteScore,
		HelpfulCount: r.HelpfulCount,
		AuthorType:   feed.AuthorType(r.AuthorType),
		UserVoted:    voted,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Country != nil {
		v.CountryName = r.Country.Name
	}
	if r.City != nil {
		v.CityName = r.City.Name
		v.CityImageURL = r.City.HeroImageURL
	}
	if r.Topic != nil {
		v.TopicLabel = r.Topic.Label
	}
	return v
}

func (s *Store) ListReplies(ctx context.Context, viewerID, threadID string, excludedAuthors []string) ([]feed.ReplyView, error) {
	tx := s.db.WithContext(ctx).
		Preload("Author").
		Where("thread_id = ? AND status = ?", threadID, string(feed.StatusActive))
	if len(excludedAuthors) > 0 {
		tx = tx.Where("author_id NOT IN ?", excludedAuthors)
	}

	var rows []models.CommunityReply
	if err := tx.Order("vote_score DESC").Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	voted, err := s.votedTargets(ctx, viewerID, feed.TargetReply, ids)
	if err != nil {
		return nil, err
	}

	out := make([]feed.ReplyView, len(rows))
	for i, r := range rows {
		out[i] = feed.ReplyView{
			ID:            r.ID,
			ThreadID:      r.ThreadID,
			ParentReplyID: deref(r.ParentReplyID),
			Author: feed.Author{
				ID:        r.AuthorID,
				FirstName: r.Author.FirstName,
				AvatarURL: r.Author.AvatarURL,
			},
			Body:      r.Body,
			Status:    feed.ThreadStatus(r.Status),
			VoteScore: r.VoteScore,
			UserVoted: voted[r.ID],
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return out, nil
}

// MutateVote 把投票设置为 cast。唯一索引 (user, target) 保证重复调用不会重复计分。
func (s *Store) MutateVote(ctx context.Context, viewerID string, target feed.Target, cast bool) error {
	model, err := voteModel(target)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var delta int
		if cast {
			res := castReaction(tx, viewerID, target)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				delta = 1
			}
		} else {
			res := withdrawReaction(tx, viewerID, target)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				delta = -1
			}
		}

		// 状态没变，不动计数
		if delta == 0 {
			return nil
		}

		res := bumpScore(tx, model, target.ID, delta)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s %s", ErrUnknownTarget, target.Type, target.ID)
		}
		return nil
	})
}

func voteModel(target feed.Target) (any, error) {
	switch target.Type {
	case feed.TargetThread:
		return &models.CommunityThread{}, nil
	case feed.TargetReply:
		return &models.CommunityReply{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target.Type)
}

// castReaction 已经投过时冲突，RowsAffected 为 0
func castReaction(tx *gorm.DB, viewerID string, target feed.Target) *gorm.DB {
	reaction := models.CommunityReaction{
		UserID:       viewerID,
		TargetType:   string(target.Type),
		TargetID:     target.ID,
		ReactionType: "helpful",
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&reaction)
}

func withdrawReaction(tx *gorm.DB, viewerID string, target feed.Target) *gorm.DB {
	return tx.Where("user_id = ? AND target_type = ? AND target_id = ?", viewerID, string(target.Type), target.ID).
		Delete(&models.CommunityReaction{})
}

func bumpScore(tx *gorm.DB, model any, id string, delta int) *gorm.DB {
	return tx.Model(model).Where("id = ?", id).
		UpdateColumn("vote_score", gorm.Expr("vote_score + ?", delta))
}

// LookupBlocked 双向：我拉黑的人和拉黑我的人
func (s *Store) LookupBlocked(ctx context.Context, viewerID string) ([]string, error) {
	if viewerID == "" {
		return nil, nil
	}
	var blocked, blockers []string
	tx := s.db.WithContext(ctx).Model(&models.BlockedUser{})
	if err := tx.Where("blocker_id = ?", viewerID).Pluck("blocked_id", &blocked).Error; err != nil {
		return nil, fmt.Errorf("query blocked users: %w", err)
	}
	tx = s.db.WithContext(ctx).Model(&models.BlockedUser{})
	if err := tx.Where("blocked_id = ?", viewerID).Pluck("blocker_id", &blockers).Error; err != nil {
		return nil, fmt.Errorf("query blockers: %w", err)
	}
	return append(blocked, blockers...), nil
}

func (s *Store) LookupTrips(ctx context.Context, viewerID string) ([]feed.Trip, error) {
	if viewerID == "" {
		return nil, nil
	}
	var rows []models.Trip
	err := s.db.WithContext(ctx).
		Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("stop_order ASC") }).
		Where("user_id = ? AND status <> ?", viewerID, string(feed.TripCompleted)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query trips: %w", err)
	}

	trips := make([]feed.Trip, len(rows))
	for i, r := range rows {
		t := feed.Trip{ID: r.ID, Status: feed.TripStatus(r.Status)}
		if r.Arriving != nil {
			t.Arriving = *r.Arriving
		}
		if r.Leaving != nil {
			t.Leaving = *r.Leaving
		}
		for _, st := range r.Stops {
			t.Stops = append(t.Stops, feed.Stop{
				CityID:      deref(st.CityID),
				CountryIso2: st.CountryIso2,
				Order:       st.StopOrder,
			})
		}
		trips[i] = t
	}
	return trips, nil
}

func (s *Store) LookupCountries(ctx context.Context, iso2 []string) (map[string]string, error) {
	out := make(map[string]string)
	if len(iso2) == 0 {
		return out, nil
	}
	var rows []models.Country
	if err := s.db.WithContext(ctx).Where("iso2 IN ?", iso2).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query countries: %w", err)
	}
	for _, c := range rows {
		out[c.Iso2] = c.ID
	}
	return out, nil
}

func (s *Store) SavedCityIDs(ctx context.Context, viewerID string) ([]string, error) {
	if viewerID == "" {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Table("saved_places").
		Joins("JOIN places ON places.id = saved_places.place_id").
		Where("saved_places.user_id = ? AND places.city_id IS NOT NULL", viewerID).
		Distinct().
		Pluck("places.city_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("query saved places: %w", err)
	}
	return ids, nil
}

func (s *Store) LookupTags(ctx context.Context, cityIDs []string) ([]string, error) {
	if len(cityIDs) == 0 {
		return nil, nil
	}
	var tags []string
	err := s.db.WithContext(ctx).Model(&models.DestinationTag{}).
		Where("entity_type = ? AND entity_id IN ?", "city", cityIDs).
		Distinct().
		Pluck("tag_slug", &tags).Error
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	return tags, nil
}

func (s *Store) LookupByTags(ctx context.Context, tags []string, excludeIDs []string) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	tx := s.db.WithContext(ctx).Model(&models.DestinationTag{}).
		Where("entity_type = ? AND tag_slug IN ?", "city", tags)
	if len(excludeIDs) > 0 {
		tx = tx.Where("entity_id NOT IN ?", excludeIDs)
	}
	var ids []string
	if err := tx.Distinct().Pluck("entity_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("query cities by tag: %w", err)
	}
	return ids, nil
}

func (s *Store) FetchCities(ctx context.Context, ids []string, limit int) ([]feed.Destination, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.cities(ctx, s.db.WithContext(ctx).Where("id IN ?", ids), limit)
}

func (s *Store) PopularCities(ctx context.Context, limit int) ([]feed.Destination, error) {
	return s.cities(ctx, s.db.WithContext(ctx), limit)
}

func (s *Store) cities(ctx context.Context, tx *gorm.DB, limit int) ([]feed.Destination, error) {
	var rows []models.City
	err := tx.Preload("Country").
		Where("is_active = ?", true).
		Order("order_index ASC").Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query cities: %w", err)
	}
	out := make([]feed.Destination, len(rows))
	for i, c := range rows {
		out[i] = feed.Destination{
			ID:           c.ID,
			Name:         c.Name,
			Slug:         c.Slug,
			CountryName:  c.Country.Name,
			HeroImageURL: c.HeroImageURL,
			Blurb:        c.ShortBlurb,
		}
	}
	return out, nil
}

func (s *Store) ListTopics(ctx context.Context) ([]feed.Topic, error) {
	var rows []models.CommunityTopic
	err := s.db.WithContext(ctx).Where("is_active = ?", true).
		Order("sort_order ASC").Order("label ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	out := make([]feed.Topic, len(rows))
	for i, t := range rows {
		out[i] = feed.Topic{ID: t.ID, Label: t.Label, Slug: t.Slug, SortOrder: t.SortOrder}
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
