// Package extract 从房源详情页的原始 HTML 中抽取字段。
//
// 抽取是尽力而为的：每个字段独立匹配，单个字段缺失不算失败。
// 各来源站点的页面结构差异很大，这里刻意用正则直接扫原文，
// 不做 DOM 解析，页面里混着 JSON 数据和模板残片也能照常取值。
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/artcityconsulting/propwatch/internal/status"
)

// Fields 是一次抽取得到的全部字段，未命中的字段为空串。
// 价格、面积等保持来源页面的显示形态，不转成数值。
type Fields struct {
	Status       string
	Price        string
	Beds         string
	Baths        string
	Sqft         string
	Address      string
	MLS          string
	DaysOnMarket string
	YearBuilt    string
	PropertyType string
	AgentName    string
	AgentPhoto   string
	AgentPhone   string
	AgentEmail   string
	Brokerage    string
	Features     string
}

// Extractor 定义单个来源站点的抽取器。
type Extractor interface {
	// Source 返回抽取器对应的来源站点标识。
	Source() string
	// Extract 从 HTML 中抽取字段。失败只发生在整体异常时，
	// 个别字段缺失不构成错误。
	Extract(html string) (Fields, error)
	// SupportedFields 返回该来源会尝试抽取的字段名，
	// 用于区分"没取到"和"该来源不支持"。
	SupportedFields() []string
}

var registry = map[string]Extractor{}

func register(e Extractor) {
	registry[e.Source()] = e
}

// ForSource 按来源站点标识查找抽取器。
func ForSource(source string) (Extractor, bool) {
	e, ok := registry[source]
	return e, ok
}

// Sources 返回所有已注册的来源站点标识。
func Sources() []string {
	out := make([]string, 0, len(registry))
	for s := range registry {
		out = append(out, s)
	}
	return out
}

// firstMatch 按顺序尝试候选正则，返回第一个命中的捕获组。
// 候选顺序即优先级，命中即停。
func firstMatch(html string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(html); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// safeExtract 包装具体抽取逻辑，把正则匹配过程中的 panic
// 收敛为普通错误，坏页面不能拖垮整批刷新。
func safeExtract(source string, fn func() Fields) (f Fields, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s extraction failed: %v", source, r)
		}
	}()
	f = fn()
	return f, nil
}

// normalizeStatus 归一化抽到的状态，没抽到时落到哨兵值。
func normalizeStatus(raw string) string {
	s := status.Normalize(raw)
	if s == "" {
		return status.NotFound
	}
	return s
}
