package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ViewerKey = "viewer_id"

// ViewerHeader 由上游网关在鉴权后注入
const ViewerHeader = "X-Viewer-ID"

// LoadViewer 从请求头读取 viewer，格式错误直接 400；没有头的请求按匿名处理
func LoadViewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ViewerHeader)
		if raw == "" {
			c.Next()
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + ViewerHeader})
			return
		}
		c.Set(ViewerKey, id.String())
		c.Next()
	}
}

// ViewerRequired 必须在 LoadViewer 之后使用
func ViewerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ViewerID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "viewer required"})
			return
		}
		c.Next()
	}
}

// ViewerID 匿名请求返回空串
func ViewerID(c *gin.Context) string {
	return c.GetString(ViewerKey)
}
