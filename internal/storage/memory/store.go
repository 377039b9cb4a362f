package memory

import (
	"context"
	"sync"

	"sotags/backend/internal/domain"
)

// Store 使用内存保存标签快照，主要用于开发验证和测试。
type Store struct {
	mu     sync.RWMutex
	tags   []domain.Tag
	nextID uint
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{nextID: 1}
}

// CountTags 返回当前快照的行数
func (s *Store) CountTags(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.tags)), nil
}

// ListTags 返回快照副本，顺序与写入顺序一致
func (s *Store) ListTags(ctx context.Context) ([]domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Tag, len(s.tags))
	copy(out, s.tags)
	return out, nil
}

// GetTag 按 ID 查找标签
func (s *Store) GetTag(ctx context.Context, id uint) (*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tags {
		if t.ID == id {
			found := t
			return &found, nil
		}
	}
	return nil, domain.ErrTagNotFound
}

// ReplaceTags 整体替换快照
//
// 在写锁内一次性替换，读者不会看到半写状态。
func (s *Store) ReplaceTags(ctx context.Context, tags []domain.Tag) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.Tag, len(tags))
	id := s.nextID
	for i, t := range tags {
		t.ID = id
		id++
		next[i] = t
	}

	s.tags = next
	s.nextID = id
	return nil
}

// Close 内存存储无需释放资源
func (s *Store) Close() error {
	return nil
}

// Health 内存存储始终可用
func (s *Store) Health() error {
	return nil
}
