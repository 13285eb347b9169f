package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"solafeed/internal/middleware"
	"solafeed/internal/utils"
)

// HomeHandler 首页模块和不需要会话的只读接口
type HomeHandler struct {
	svc FeedService
}

func NewHomeHandler(svc FeedService) *HomeHandler {
	return &HomeHandler{svc: svc}
}

func (h *HomeHandler) Highlights(c *gin.Context) {
	items, err := h.svc.Highlights(c.Request.Context(), middleware.ViewerID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Inspiration ?exclude=a,b 排除客户端已经展示过的城市；永远 200
func (h *HomeHandler) Inspiration(c *gin.Context) {
	exclude := utils.SplitList(c.Query("exclude"))
	c.JSON(http.StatusOK, h.svc.Inspiration(c.Request.Context(), middleware.ViewerID(c), exclude))
}

func (h *HomeHandler) Topics(c *gin.Context) {
	topics, err := h.svc.Topics(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": topics})
}

// Replies 无会话的回复列表，不能投票
func (h *HomeHandler) Replies(c *gin.Context) {
	replies, err := h.svc.Replies(c.Request.Context(), middleware.ViewerID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": replies})
}
