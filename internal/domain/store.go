package domain

import "context"

// TagRepository 标签快照的存取接口
type TagRepository interface {
	// CountTags 返回当前快照的行数
	CountTags(ctx context.Context) (int64, error)

	// ListTags 按插入顺序返回当前快照的全部标签
	ListTags(ctx context.Context) ([]Tag, error)

	// GetTag 按主键查找单个标签，不存在时返回 ErrTagNotFound
	GetTag(ctx context.Context, id uint) (*Tag, error)

	// ReplaceTags 在一个事务内删除全部旧标签并批量写入新快照
	//
	// 失败时旧快照保持不变。
	ReplaceTags(ctx context.Context, tags []Tag) error
}
