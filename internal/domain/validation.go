package domain

import (
	"errors"
	"sort"
	"strings"
)

// 业务错误定义
var (
	// ErrSourceUnavailable 外部标签源请求失败或响应无法解析
	ErrSourceUnavailable = errors.New("tag source unavailable")
	// ErrStorageUnavailable 持久化存储读写失败
	ErrStorageUnavailable = errors.New("tag storage unavailable")
	ErrTagNotFound        = errors.New("tag not found")

	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidSortOrder = errors.New("invalid sort order")
)

// SortField 排序字段
type SortField string

// SortOrder 排序方向
type SortOrder string

const (
	SortByName    SortField = "name"
	SortByPercent SortField = "percent"

	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ListParams 列表查询参数
type ListParams struct {
	Sort  SortField `json:"sort"`
	Order SortOrder `json:"order"`
}

// DefaultListParams 默认按名称升序
func DefaultListParams() ListParams {
	return ListParams{Sort: SortByName, Order: OrderAsc}
}

// ParseListParams 解析并校验查询参数，空值取默认值（不区分大小写）
func ParseListParams(sortField, order string) (ListParams, error) {
	params := DefaultListParams()

	switch SortField(strings.ToLower(strings.TrimSpace(sortField))) {
	case "":
	case SortByName:
		params.Sort = SortByName
	case SortByPercent:
		params.Sort = SortByPercent
	default:
		return params, ErrInvalidSortField
	}

	switch SortOrder(strings.ToLower(strings.TrimSpace(order))) {
	case "":
	case OrderAsc:
		params.Order = OrderAsc
	case OrderDesc:
		params.Order = OrderDesc
	default:
		return params, ErrInvalidSortOrder
	}

	return params, nil
}

// SortTagViews 返回按参数排序后的新切片，不修改输入
//
// 稳定排序：相等元素保持输入顺序，降序只反转比较方向。
func SortTagViews(views []TagView, params ListParams) []TagView {
	out := make([]TagView, len(views))
	copy(out, views)

	desc := params.Order == OrderDesc

	var less func(i, j int) bool
	switch params.Sort {
	case SortByPercent:
		less = func(i, j int) bool {
			if desc {
				return out[i].Percent > out[j].Percent
			}
			return out[i].Percent < out[j].Percent
		}
	default:
		less = func(i, j int) bool {
			if desc {
				return out[i].Name > out[j].Name
			}
			return out[i].Name < out[j].Name
		}
	}

	sort.SliceStable(out, less)
	return out
}
