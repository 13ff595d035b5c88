// Package store 提供房源记录和应用设置的持久化。
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/artcityconsulting/propwatch/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// ErrNotFound 记录不存在。
var ErrNotFound = errors.New("listing not found")

// Store 封装数据库访问。单用户工具，底层是本地 sqlite 文件。
type Store struct {
	db *gorm.DB
}

// Open 打开（必要时创建）数据库并执行迁移。
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&model.Listing{}, &model.Setting{}, &model.StatusChange{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{db: db}
	if err := s.seedDefaultSettings(); err != nil {
		return nil, err
	}
	return s, nil
}

// DB 返回底层 gorm 连接，仅供健康检查使用。
func (s *Store) DB() *gorm.DB { return s.db }

// Close 关闭底层连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateListing 新增一条房源记录。
func (s *Store) CreateListing(ctx context.Context, l *model.Listing) error {
	return s.db.WithContext(ctx).Create(l).Error
}

// GetListing 按 ID 取房源。
func (s *Store) GetListing(ctx context.Context, id uint) (*model.Listing, error) {
	var l model.Listing
	if err := s.db.WithContext(ctx).First(&l, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// ListListings 返回全部房源，按添加时间倒序。
func (s *Store) ListListings(ctx context.Context) ([]model.Listing, error) {
	listings := []model.Listing{}
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// SaveListing 整体覆盖一条房源记录。
func (s *Store) SaveListing(ctx context.Context, l *model.Listing) error {
	return s.db.WithContext(ctx).Save(l).Error
}

// DeleteListing 删除单条房源及其变更历史。
func (s *Store) DeleteListing(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ?", id).Delete(&model.StatusChange{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Listing{}, id).Error
	})
}

// DeleteListings 批量删除。
func (s *Store) DeleteListings(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id IN ?", ids).Delete(&model.StatusChange{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&model.Listing{}).Error
	})
}

// DeleteAllListings 清空全部房源。
func (s *Store) DeleteAllListings(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.StatusChange{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&model.Listing{}).Error
	})
}

// CountListings 统计房源总数。
func (s *Store) CountListings(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Listing{}).Count(&n).Error
	return n, err
}

// CountByStatus 按状态统计房源数。
func (s *Store) CountByStatus(ctx context.Context, statusValue string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Listing{}).
		Where("status = ?", statusValue).Count(&n).Error
	return n, err
}

// HasInput 判断某个原始输入是否已被跟踪。
func (s *Store) HasInput(ctx context.Context, inputText string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Listing{}).
		Where("input_text = ?", inputText).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// AppendStatusChange 追加一条状态变更历史。
func (s *Store) AppendStatusChange(ctx context.Context, c *model.StatusChange) error {
	return s.db.WithContext(ctx).Create(c).Error
}

// ListStatusChanges 返回某条房源的状态变更历史，按时间倒序。
func (s *Store) ListStatusChanges(ctx context.Context, listingID uint) ([]model.StatusChange, error) {
	changes := []model.StatusChange{}
	err := s.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at DESC").
		Find(&changes).Error
	return changes, err
}
