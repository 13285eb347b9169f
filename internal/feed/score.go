package feed

import (
	"math"
	"time"
)

type RankConfig struct {
	CityMatch     float64 // 行程城市命中 (1000)
	CountryMatch  float64 // 行程国家命中 (500)
	Pinned        float64 // 100
	WeightVote    float64 // 2.0
	WeightReply   float64 // 3.0，回复比点赞更能代表参与度
	RecencyBonus  float64 // 50
	RecencyWindow float64 // 30 天
}

var DefaultRankConfig = RankConfig{
	CityMatch:     1000,
	CountryMatch:  500,
	Pinned:        100,
	WeightVote:    2.0,
	WeightReply:   3.0,
	RecencyBonus:  50,
	RecencyWindow: 30,
}

// RelevanceScorer 只用于首页精选，不参与主 feed 的服务端排序
type RelevanceScorer struct {
	Config RankConfig
}

func NewRelevanceScorer() RelevanceScorer {
	return RelevanceScorer{Config: DefaultRankConfig}
}

// Score 加法模型，越高越好。now 由调用方传入，函数本身无 I/O、无随机性。
func (s RelevanceScorer) Score(t ThreadView, trip *TripContext, now time.Time) float64 {
	cfg := s.Config
	score := 0.0

	// 1. 行程目的地
	if trip.HasCity(t.CityID) {
		score += cfg.CityMatch
	} else if trip.HasCountry(t.CountryID) {
		score += cfg.CountryMatch
	}

	// 2. 互动信号
	if t.Pinned {
		score += cfg.Pinned
	}
	score += float64(t.VoteScore) * cfg.WeightVote
	score += float64(t.ReplyCount) * cfg.WeightReply

	// 3. 新鲜度，30 天后奖励归零，不再额外惩罚
	ageDays := now.Sub(t.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0 // 时钟偏差导致的未来时间按刚发布处理
	}
	if ageDays < cfg.RecencyWindow {
		score += math.Max(0, cfg.RecencyBonus-ageDays)
	}

	return score
}
