package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"solafeed/internal/feed"
)

// statusFor 把 feed 的哨兵错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, feed.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, feed.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, feed.ErrVoteFailed):
		return http.StatusBadGateway
	case errors.Is(err, feed.ErrFetchFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError 写 JSON 错误体，并把原始错误挂到 gin 上供请求日志输出
func RespondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": msg(err)})
}

// msg 校验错误原样返回，其余只给出哨兵错误的文字，不暴露存储层细节
func msg(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, feed.ErrInvalidFilter):
		return err.Error()
	case errors.Is(err, feed.ErrTargetNotFound):
		return feed.ErrTargetNotFound.Error()
	case errors.Is(err, feed.ErrVoteFailed):
		return feed.ErrVoteFailed.Error()
	case errors.Is(err, feed.ErrFetchFailed):
		return feed.ErrFetchFailed.Error()
	default:
		return "internal error"
	}
}
