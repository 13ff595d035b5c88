// Package status 负责把各来源的房源状态文本归一化为统一词表。
package status

import "strings"

// 统一状态词表。所有来源的状态最终都落在这几个值上，
// 无法识别的原文保持原样透传。
const (
	ForSale    = "For Sale"
	OffMarket  = "Off Market"
	Pending    = "Pending"
	Contingent = "Contingent"
	Sold       = "Sold"
	ComingSoon = "Coming Soon"
	ForRent    = "For Rent"
)

// NotFound 表示页面抓取成功但没有找到状态字段。
// 它是普通的状态值，参与持久化和变更比较。
const NotFound = "Status Not Found"

// aliases 将大写后的原始状态文本映射到统一词表。
var aliases = map[string]string{
	"FOR_SALE":       ForSale,
	"FOR SALE":       ForSale,
	"ACTIVE":         ForSale,
	"OFF_MARKET":     OffMarket,
	"OFF MARKET":     OffMarket,
	"PENDING":        Pending,
	"UNDER CONTRACT": Pending,
	"CONTINGENT":     Contingent,
	"SOLD":           Sold,
	"CLOSED":         Sold,
	"COMING_SOON":    ComingSoon,
	"COMING SOON":    ComingSoon,
	"FOR_RENT":       ForRent,
	"FOR RENT":       ForRent,
}

// Normalize 归一化状态文本。
//
// 匹配时大小写不敏感并忽略首尾空白；词表之外的文本原样返回
// （保留原始大小写），空字符串返回空。
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	key := strings.ToUpper(strings.TrimSpace(raw))
	if key == "" {
		return ""
	}
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	return raw
}

// IsCanonical 判断一个值是否属于统一词表。
func IsCanonical(s string) bool {
	switch s {
	case ForSale, OffMarket, Pending, Contingent, Sold, ComingSoon, ForRent:
		return true
	}
	return false
}
