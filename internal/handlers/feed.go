package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"solafeed/internal/feed"
	"solafeed/internal/middleware"
	"solafeed/internal/utils"
)

// FeedService HTTP 层需要的 feed 能力，*feed.Service 实现
type FeedService interface {
	NewSession(ctx context.Context, viewerID string, filter feed.FeedFilter) (*feed.Session, error)
	Highlights(ctx context.Context, viewerID string) ([]feed.Highlight, error)
	Inspiration(ctx context.Context, viewerID string, excludeCityIDs []string) feed.Inspiration
	Replies(ctx context.Context, viewerID, threadID string) ([]feed.ReplyView, error)
	Topics(ctx context.Context) ([]feed.Topic, error)
}

type FeedHandler struct {
	svc      FeedService
	sessions *SessionRegistry
}

func NewFeedHandler(svc FeedService, sessions *SessionRegistry) *FeedHandler {
	return &FeedHandler{svc: svc, sessions: sessions}
}

type sessionResponse struct {
	ID string `json:"id"`
	feed.Snapshot
	Error string `json:"error,omitempty"`
}

func sessionView(sess *feed.Session, snap feed.Snapshot) sessionResponse {
	return sessionResponse{ID: sess.ID, Snapshot: snap, Error: msg(snap.Err)}
}

// bindFilter JSON 请求体优先，否则读查询参数
func bindFilter(c *gin.Context) (feed.FeedFilter, error) {
	var f feed.FeedFilter
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&f); err != nil {
			return f, err
		}
		return f, nil
	}
	f.CountryID = c.Query("country_id")
	f.CityID = c.Query("city_id")
	f.TopicID = c.Query("topic_id")
	f.SearchQuery = c.Query("q")
	f.Sort = feed.SortMode(c.Query("sort"))
	f.PageSize = utils.StringToInt(c.Query("page_size"), 0)
	return f, nil
}

// session 取出当前 viewer 的会话，不存在时已写好 404
func (h *FeedHandler) session(c *gin.Context) (*feed.Session, bool) {
	sess, ok := h.sessions.Get(c.Param("id"), middleware.ViewerID(c))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return sess, true
}

// snapshotOrError 分页出错时列表保留在快照中，一起返回给客户端
func (h *FeedHandler) snapshotOrError(c *gin.Context, sess *feed.Session, err error) {
	view := sessionView(sess, sess.Feed.Snapshot())
	if err != nil {
		_ = c.Error(err)
		view.Error = msg(err)
		c.JSON(statusFor(err), view)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Create 打开会话并加载第一页；第一页失败时仍然返回 201，错误在快照里
func (h *FeedHandler) Create(c *gin.Context) {
	f, err := bindFilter(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := h.svc.NewSession(c.Request.Context(), middleware.ViewerID(c), f)
	if err != nil {
		RespondError(c, err)
		return
	}
	h.sessions.Add(sess)
	c.JSON(http.StatusCreated, sessionView(sess, sess.Feed.Snapshot()))
}

func (h *FeedHandler) Get(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionView(sess, sess.Feed.Snapshot()))
}

// SetFilter 换过滤条件，从第 0 页重新加载
func (h *FeedHandler) SetFilter(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	f, err := bindFilter(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.snapshotOrError(c, sess, sess.Feed.SetFilter(c.Request.Context(), f))
}

func (h *FeedHandler) LoadMore(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	h.snapshotOrError(c, sess, sess.Feed.LoadMore(c.Request.Context()))
}

func (h *FeedHandler) Refresh(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	h.snapshotOrError(c, sess, sess.Feed.Refresh(c.Request.Context()))
}

func (h *FeedHandler) Close(c *gin.Context) {
	if _, ok := h.session(c); !ok {
		return
	}
	h.sessions.Remove(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// Events 以 SSE 推送快照变化，先推一次当前状态
func (h *FeedHandler) Events(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	updates := make(chan feed.Snapshot, 16)
	unsubscribe := sess.Feed.Subscribe(func(s feed.Snapshot) {
		select {
		case updates <- s:
		default: // 客户端太慢，丢掉中间状态
		}
	})
	defer unsubscribe()

	c.SSEvent("snapshot", sessionView(sess, sess.Feed.Snapshot()))
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-updates:
			c.SSEvent("snapshot", sessionView(sess, s))
			c.Writer.Flush()
		}
	}
}

// Vote 乐观切换帖子投票，等待服务端确认；失败时返回回滚后的列表
func (h *FeedHandler) Vote(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	items, err := sess.ToggleThreadVote(c.Request.Context(), c.Param("threadId"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(statusFor(err), gin.H{"error": msg(err), "items": items})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Replies 加载回复到会话中，之后才能对回复投票
func (h *FeedHandler) Replies(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	replies, err := sess.Replies(c.Request.Context(), c.Param("threadId"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": replies})
}

type replyVoteRequest struct {
	ThreadID string `json:"thread_id" binding:"required"`
}

func (h *FeedHandler) VoteReply(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req replyVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, err := sess.ToggleReplyVote(c.Request.Context(), req.ThreadID, c.Param("replyId"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(statusFor(err), gin.H{"error": msg(err), "items": items})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
