package storage

import (
	"sotags/backend/internal/domain"
)

// Store 定义完整的存储接口。
type Store interface {
	domain.TagRepository

	// 工具方法
	Close() error
	Health() error
}
