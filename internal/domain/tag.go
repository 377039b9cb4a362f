package domain

import "math"

// PercentPrecision 百分比保留的小数位数
const PercentPrecision = 3

// Tag Stack Overflow 标签快照中的一行记录
type Tag struct {
	ID              uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	Name            string `json:"name" gorm:"type:varchar(255);not null"`
	Count           int64  `json:"count" gorm:"not null;default:0"`
	HasSynonyms     bool   `json:"hasSynonyms" gorm:"not null;default:false"`
	IsModeratorOnly bool   `json:"isModeratorOnly" gorm:"not null;default:false"`
	IsRequired      bool   `json:"isRequired" gorm:"not null;default:false"`
}

// TableName 固定表名，避免 gorm 复数化规则变化
func (Tag) TableName() string {
	return "tags"
}

// TagView 标签的派生视图（含占比），不落库
type TagView struct {
	Name            string  `json:"name"`
	HasSynonyms     bool    `json:"hasSynonyms"`
	IsModeratorOnly bool    `json:"isModeratorOnly"`
	IsRequired      bool    `json:"isRequired"`
	Count           int64   `json:"count"`
	Percent         float64 `json:"percent"` // 占快照总数的百分比
}

// BuildTagViews 根据快照计算每个标签的占比
//
// 合计使用 int64 累加；合计为 0 时所有占比为 0。
// 返回的切片顺序与输入一致。
func BuildTagViews(tags []Tag) []TagView {
	var total int64
	for _, t := range tags {
		total += t.Count
	}

	views := make([]TagView, 0, len(tags))
	for _, t := range tags {
		var percent float64
		if total > 0 {
			percent = RoundPercent(float64(t.Count) / float64(total) * 100)
		}
		views = append(views, TagView{
			Name:            t.Name,
			HasSynonyms:     t.HasSynonyms,
			IsModeratorOnly: t.IsModeratorOnly,
			IsRequired:      t.IsRequired,
			Count:           t.Count,
			Percent:         percent,
		})
	}
	return views
}

// RoundPercent 按 PercentPrecision 四舍五入
func RoundPercent(v float64) float64 {
	scale := math.Pow10(PercentPrecision)
	return math.Round(v*scale) / scale
}
