// Package resolver 负责把用户输入（MLS 编号或房源 URL）解析为
// 可抓取的规范 URL 及其来源站点。
package resolver

import (
	"errors"
	"regexp"
	"strings"
)

// 支持的来源站点标识。
const (
	SourceUtahRealEstate = "UtahRealEstate.com"
	SourceZillow         = "Zillow.com"
)

// 来源 URL 模板。
const (
	utahReportURL     = "https://www.utahrealestate.com/report/"
	zillowHomedetails = "https://www.zillow.com/homedetails/"
)

var (
	// ErrUnsupportedSource URL 指向不支持的站点。
	ErrUnsupportedSource = errors.New("unsupported website, use UtahRealEstate.com or Zillow.com")
	// ErrAddressInput 输入看起来是街道地址，无法直接解析。
	ErrAddressInput = errors.New("address detected, find the property URL manually")
	// ErrInvalidInput 输入既不是 URL 也不是 MLS 编号。
	ErrInvalidInput = errors.New("invalid input, enter a URL or MLS#")
)

var (
	mlsPattern     = regexp.MustCompile(`(?i)^(MLS)?(\d{6,10})$`)
	addressPattern = regexp.MustCompile(`\d+.*[a-zA-Z].*,`)
)

// Resolution 是一次成功解析的结果。
type Resolution struct {
	URL    string // 规范抓取 URL
	Source string // 来源站点标识
}

// Resolve 解析用户输入。
//
// 解析顺序：绝对 URL 按域名归属判定来源；MLS 编号（可带 MLS 前缀的
// 6~10 位数字）拼到 UtahRealEstate 报表 URL；形如街道地址的输入
// 明确拒绝；其余一律视为无效输入。纯函数，不做网络请求。
func Resolve(input string) (Resolution, error) {
	input = strings.TrimSpace(input)

	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		source := DetectSource(input)
		if source == "" {
			return Resolution{}, ErrUnsupportedSource
		}
		return Resolution{URL: input, Source: source}, nil
	}

	if m := mlsPattern.FindStringSubmatch(input); m != nil {
		return Resolution{
			URL:    utahReportURL + m[2],
			Source: SourceUtahRealEstate,
		}, nil
	}

	if addressPattern.MatchString(input) {
		return Resolution{}, ErrAddressInput
	}

	return Resolution{}, ErrInvalidInput
}

// DetectSource 根据 URL 判断来源站点，未识别返回空串。
func DetectSource(url string) string {
	switch {
	case strings.Contains(url, "utahrealestate.com"):
		return SourceUtahRealEstate
	case strings.Contains(url, "zillow.com"):
		return SourceZillow
	}
	return ""
}
