package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sotags/backend/internal/config"
	"sotags/backend/internal/domain"
	"sotags/backend/internal/logger"
)

const defaultBatchSize = 100

// Store 基于 GORM 的标签存储（PostgreSQL / MySQL）
type Store struct {
	db        *gorm.DB
	client    *Client // 仅 PostgreSQL 持有
	batchSize int
	log       *zap.Logger
}

// Option 配置存储实例
type Option func(*Store)

// WithBatchSize 设置批量插入每批的行数
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		s.log = logger.OrNop(log)
	}
}

// Open 按配置打开数据库并自动迁移
func Open(ctx context.Context, cfg *config.DatabaseConfig, log *zap.Logger) (*Store, error) {
	opts := []Option{WithBatchSize(cfg.BatchSize), WithLogger(log)}

	var store *Store
	switch cfg.Type {
	case "postgres":
		client, err := NewClient(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		store, err = NewStoreWithDialector(postgres.New(postgres.Config{Conn: client.SQLDB()}), opts...)
		if err != nil {
			client.Close()
			return nil, err
		}
		store.client = client

	case "mysql":
		var err error
		store, err = NewStoreWithDialector(mysql.Open(cfg.DSN), opts...)
		if err != nil {
			return nil, err
		}
		if err := store.configurePool(cfg); err != nil {
			store.Close()
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: mysql, postgres)", cfg.Type)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例（不执行迁移）
func NewStoreWithDialector(dialector gorm.Dialector, opts ...Option) (*Store, error) {
	// 写操作都显式包在事务里，关闭 GORM 的默认单语句事务
	gormConfig := &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{
		db:        db,
		batchSize: defaultBatchSize,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// configurePool 配置连接池
func (s *Store) configurePool(cfg *config.DatabaseConfig) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return nil
}

// Migrate 自动迁移数据库表结构
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&domain.Tag{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// CountTags 返回当前快照的行数
func (s *Store) CountTags(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.Tag{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("%w: count tags: %v", domain.ErrStorageUnavailable, err)
	}
	return count, nil
}

// ListTags 按主键顺序返回全部标签
func (s *Store) ListTags(ctx context.Context) ([]domain.Tag, error) {
	var tags []domain.Tag
	if err := s.db.WithContext(ctx).Order("id").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("%w: list tags: %v", domain.ErrStorageUnavailable, err)
	}
	return tags, nil
}

// GetTag 按主键查找标签
func (s *Store) GetTag(ctx context.Context, id uint) (*domain.Tag, error) {
	var tag domain.Tag
	if err := s.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTagNotFound
		}
		return nil, fmt.Errorf("%w: get tag %d: %v", domain.ErrStorageUnavailable, id, err)
	}
	return &tag, nil
}

// ReplaceTags 在同一事务内清空旧快照并批量写入新快照
func (s *Store) ReplaceTags(ctx context.Context, tags []domain.Tag) error {
	rows := make([]domain.Tag, len(tags))
	for i, t := range tags {
		t.ID = 0 // 由数据库分配
		rows[i] = t
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.Tag{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, s.batchSize).Error
	})
	if err != nil {
		s.log.Error("failed to replace tag snapshot", zap.Int("rows", len(rows)), zap.Error(err))
		return fmt.Errorf("%w: replace tags: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
