package handlers

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solafeed/internal/feed"
	"solafeed/internal/metrics"
	"solafeed/internal/utils"
)

// SessionRegistry 保存进行中的 feed 会话。LRU 满或闲置超过 ttl 的会话被关闭。
type SessionRegistry struct {
	sessions *utils.Cache[*feed.Session]
	ttl      time.Duration
	logger   zerolog.Logger
}

func NewSessionRegistry(size int, ttl time.Duration, logger zerolog.Logger) (*SessionRegistry, error) {
	r := &SessionRegistry{
		ttl:    ttl,
		logger: logger.With().Str("component", "http.sessions").Logger(),
	}
	cache, err := utils.NewCacheWithEvict(size, r.evicted)
	if err != nil {
		return nil, fmt.Errorf("create session registry: %w", err)
	}
	r.sessions = cache
	return r, nil
}

func (r *SessionRegistry) evicted(id string, sess *feed.Session) {
	sess.Close()
	metrics.ActiveSessions.Dec()
	r.logger.Debug().Str("session_id", id).Msg("session evicted")
}

func (r *SessionRegistry) Add(sess *feed.Session) {
	r.sessions.Set(sess.ID, sess, r.ttl)
	metrics.ActiveSessions.Inc()
}

// Get 只返回属于 viewerID 的会话，命中时顺延过期时间
func (r *SessionRegistry) Get(id, viewerID string) (*feed.Session, bool) {
	sess, ok := r.sessions.Get(id)
	if !ok || sess.ViewerID != viewerID {
		return nil, false
	}
	r.sessions.Touch(id, r.ttl)
	return sess, true
}

func (r *SessionRegistry) Remove(id string) {
	r.sessions.Delete(id)
}

func (r *SessionRegistry) Len() int {
	return r.sessions.Len()
}
