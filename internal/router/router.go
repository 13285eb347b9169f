package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solafeed/internal/handlers"
	"solafeed/internal/middleware"
)

func RegisterRoutes(r *gin.Engine, feedHandler *handlers.FeedHandler, homeHandler *handlers.HomeHandler) {
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") }) // 存活检查
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))                          // Prometheus 指标

	api := r.Group("/api")
	api.Use(middleware.LoadViewer())

	// 公共路由 (匿名可用)
	api.GET("/home/highlights", homeHandler.Highlights)   // 首页精选帖子
	api.GET("/home/inspiration", homeHandler.Inspiration) // 个性化目的地推荐
	api.GET("/topics", homeHandler.Topics)                // 话题列表
	api.GET("/threads/:id/replies", homeHandler.Replies)  // 帖子回复 (只读)

	// feed 会话，只能访问自己创建的会话
	sessions := api.Group("/feed/sessions")
	{
		sessions.POST("", feedHandler.Create)               // 打开会话并加载第一页
		sessions.GET("/:id", feedHandler.Get)               // 当前快照
		sessions.GET("/:id/events", feedHandler.Events)     // 快照变化 (SSE)
		sessions.POST("/:id/filter", feedHandler.SetFilter) // 切换过滤条件
		sessions.POST("/:id/more", feedHandler.LoadMore)    // 加载下一页
		sessions.POST("/:id/refresh", feedHandler.Refresh)  // 下拉刷新
		sessions.DELETE("/:id", feedHandler.Close)          // 关闭会话
	}

	// 受保护路由 (需要 viewer)
	voting := sessions.Group("/:id")
	voting.Use(middleware.ViewerRequired())
	{
		voting.POST("/votes/:threadId", feedHandler.Vote)             // 帖子投票
		voting.GET("/threads/:threadId/replies", feedHandler.Replies) // 加载回复到会话
		voting.POST("/replies/:replyId/vote", feedHandler.VoteReply)  // 回复投票
	}
}
