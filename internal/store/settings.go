package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/artcityconsulting/propwatch/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 设置键。
const (
	SettingAutoRefreshEnabled  = "auto_refresh_enabled"
	SettingRefreshIntervalDays = "refresh_interval_days"
	SettingLastRefresh         = "last_refresh"
	SettingViewMode            = "view_mode"
)

func (s *Store) seedDefaultSettings() error {
	defaults := []model.Setting{
		{Key: SettingAutoRefreshEnabled, Value: "true"},
		{Key: SettingRefreshIntervalDays, Value: "1"},
		{Key: SettingLastRefresh, Value: ""},
		{Key: SettingViewMode, Value: "cards"},
	}
	// 已有的键不动，只补缺失的默认值。
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error
}

// GetSetting 读取设置，键不存在时返回 def。
func (s *Store) GetSetting(ctx context.Context, key, def string) (string, error) {
	var setting model.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return def, nil
		}
		return def, err
	}
	return setting.Value, nil
}

// SetSetting 写入设置，存在则覆盖。
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&model.Setting{Key: key, Value: value}).Error
}

// AutoRefreshEnabled 自动刷新是否开启。
func (s *Store) AutoRefreshEnabled(ctx context.Context) bool {
	v, err := s.GetSetting(ctx, SettingAutoRefreshEnabled, "true")
	if err != nil {
		return true
	}
	return v == "true"
}

// RefreshIntervalDays 自动刷新间隔天数，非法值落回 1。
func (s *Store) RefreshIntervalDays(ctx context.Context) int {
	v, err := s.GetSetting(ctx, SettingRefreshIntervalDays, "1")
	if err != nil {
		return 1
	}
	days, err := strconv.Atoi(v)
	if err != nil || days <= 0 {
		return 1
	}
	return days
}

// LastRefresh 上一次整批刷新的时间，从未刷新时返回零值。
func (s *Store) LastRefresh(ctx context.Context) time.Time {
	v, err := s.GetSetting(ctx, SettingLastRefresh, "")
	if err != nil || v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SetLastRefresh 记录整批刷新完成时间。
func (s *Store) SetLastRefresh(ctx context.Context, t time.Time) error {
	return s.SetSetting(ctx, SettingLastRefresh, t.Format(time.RFC3339))
}
