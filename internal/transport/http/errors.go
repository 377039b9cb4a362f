package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sotags/backend/internal/domain"
)

// 通用错误消息
const (
	MsgInvalidRequest     = "请求参数格式错误"
	MsgInvalidSortField   = "排序字段无效，可选值: name, percent"
	MsgInvalidSortOrder   = "排序方向无效，可选值: asc, desc"
	MsgInvalidTagID       = "标签ID格式无效"
	MsgTagNotFound        = "标签不存在"
	MsgSourceUnavailable  = "标签源暂时不可用，请稍后重试"
	MsgStorageUnavailable = "存储服务暂时不可用，请稍后重试"
	MsgInternalError      = "服务器内部错误，请稍后重试"
	MsgRefreshSucceeded   = "标签刷新成功"
)

// errorStatus 业务错误 -> HTTP 状态码与中文消息
var errorStatus = []struct {
	err    error
	status int
	msg    string
}{
	{domain.ErrInvalidSortField, http.StatusBadRequest, MsgInvalidSortField},
	{domain.ErrInvalidSortOrder, http.StatusBadRequest, MsgInvalidSortOrder},
	{domain.ErrTagNotFound, http.StatusNotFound, MsgTagNotFound},
	{domain.ErrSourceUnavailable, http.StatusBadGateway, MsgSourceUnavailable},
	{domain.ErrStorageUnavailable, http.StatusServiceUnavailable, MsgStorageUnavailable},
}

// ClassifyError 获取错误对应的状态码与中文消息
func ClassifyError(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, e.msg
		}
	}
	return http.StatusInternalServerError, MsgInternalError
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	_, msg := ClassifyError(err)
	return msg
}

// respondError 按错误类型返回统一错误响应，原始错误记录到 gin 上下文供日志中间件输出
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, msg := ClassifyError(err)
	Error(c, status, msg)
}
