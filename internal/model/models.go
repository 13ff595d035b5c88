package model

import (
	"time"
)

// Listing 表示一条被跟踪的房源记录。
//
// InputText 保存用户的原始输入（MLS 编号或 URL），刷新时总是
// 从它重新解析，来源页面字段全部以字符串形态保存，和页面
// 展示一致，不做数值转换。
type Listing struct {
	ID        uint      `gorm:"primaryKey"` // 房源唯一标识
	CreatedAt time.Time // 添加时间
	UpdatedAt time.Time // 更新时间

	InputText   string `gorm:"not null"` // 用户原始输入（MLS 编号或 URL）
	Source      string // 来源站点 (UtahRealEstate.com / Zillow.com)
	ResolvedURL string // 解析出的抓取 URL

	Status         string     // 当前状态（统一词表或透传原文）
	PreviousStatus string     // 上一次变更前的状态
	LastCheckedAt  *time.Time // 最近一次成功刷新的时间
	LastChangedAt  *time.Time // 最近一次状态变更的时间

	Price        string // 价格（带 $ 的展示字符串）
	Beds         string // 卧室数
	Baths        string // 卫浴数
	Sqft         string // 面积
	Address      string // 地址
	MLS          string `gorm:"column:mls"` // MLS 编号
	DaysOnMarket string // 在售天数
	YearBuilt    string // 建造年份
	PropertyType string // 房型
	AgentName    string // 经纪人姓名
	AgentPhoto   string // 经纪人头像 URL
	AgentPhone   string // 经纪人电话
	AgentEmail   string // 经纪人邮箱
	Brokerage    string // 经纪公司
	Features     string // 其他特征

	Notes          string // 最近一次刷新的备注（成功/失败信息）
	ExternalSyncID string // CRM 同步返回的外部 ID
}

// Setting 是 key/value 形式的应用设置。
//
// 已使用的键：auto_refresh_enabled / refresh_interval_days /
// last_refresh / view_mode。
type Setting struct {
	Key   string `gorm:"primaryKey"` // 设置键
	Value string // 设置值（统一存字符串）
}

// StatusChange 记录一次检测到的状态变更，构成房源的状态时间线。
// 房源上的 previous_status/last_changed_at 仍然是权威字段，
// 这张表只做追加。
type StatusChange struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time // 检测到变更的时间

	ListingID  uint    `gorm:"index;not null"`       // 所属房源 ID
	Listing    Listing `gorm:"foreignKey:ListingID"` // 所属房源
	FromStatus string  // 变更前状态
	ToStatus   string  // 变更后状态
}
