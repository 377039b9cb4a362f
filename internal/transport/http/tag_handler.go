package httptransport

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sotags/backend/internal/domain"
)

// ========== Tag Handlers ==========

// refreshResult 刷新结果
type refreshResult struct {
	Count int `json:"count"`
}

// listTags godoc
// @Summary 列出标签
// @Description 返回全部标签及其在快照中的占比，首次访问且存储为空时会先从标签源刷新
// @Tags Tags
// @Produce json
// @Param sort query string false "排序字段" Enums(name, percent)
// @Param order query string false "排序方向" Enums(asc, desc)
// @Success 200 {array} domain.TagView
// @Failure 400 {object} Response
// @Failure 502 {object} Response
// @Failure 503 {object} Response
// @Router /v1/tags [get]
func (h *Handler) listTags(c *gin.Context) {
	params, err := domain.ParseListParams(c.Query("sort"), c.Query("order"))
	if err != nil {
		respondError(c, err)
		return
	}

	views, err := h.tags.List(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, views)
}

// fetchTags godoc
// @Summary 刷新标签
// @Description 从标签源重新拉取并整体替换存储中的快照
// @Tags Tags
// @Produce json
// @Success 200 {object} Response{data=refreshResult}
// @Failure 502 {object} Response
// @Failure 503 {object} Response
// @Router /v1/tags/fetch [get]
func (h *Handler) fetchTags(c *gin.Context) {
	count, err := h.tags.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	SuccessWithMsg(c, MsgRefreshSucceeded, refreshResult{Count: count})
}

// getTag godoc
// @Summary 获取标签
// @Description 按存储ID获取单个标签
// @Tags Tags
// @Produce json
// @Param id path int true "标签ID"
// @Success 200 {object} Response{data=domain.Tag}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 503 {object} Response
// @Router /v1/tags/{id} [get]
func (h *Handler) getTag(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		BadRequest(c, MsgInvalidTagID)
		return
	}

	tag, err := h.tags.GetTag(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	Success(c, tag)
}
