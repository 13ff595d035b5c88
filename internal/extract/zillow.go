package extract

import (
	"regexp"
	"strings"

	"github.com/artcityconsulting/propwatch/internal/resolver"
)

// zillow 抽取 Zillow.com 详情页。
//
// Zillow 把大部分数据以内嵌 JSON 的形式埋在页面里，字段优先从
// JSON 键取值，再退回可见标签。状态和价格各有多个候选位置，
// 按顺序第一个命中生效。
type zillow struct{}

func init() { register(zillow{}) }

var (
	zStatusPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"homeStatus"\s*:\s*"([^"]+)"`),
		regexp.MustCompile(`(?i)<span[^>]*data-test(?:id)?=["']?(?:listing-)?status["']?[^>]*>([^<]+)</span>`),
		regexp.MustCompile(`(?i)"availability"\s*:\s*"([^"]+)"`),
	}
	zPricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<span[^>]*data-testid=["']price["'][^>]*>\$?([0-9,]+)`),
		regexp.MustCompile(`(?i)"price"\s*:\s*([0-9]+)`),
	}
	zAddressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<h1[^>]*>([^<]+)</h1>`),
		regexp.MustCompile(`(?i)"address"\s*:\s*"([^"]+)"`),
	}

	zBeds       = regexp.MustCompile(`(?i)"bedrooms"\s*:\s*(\d+)`)
	zBaths      = regexp.MustCompile(`(?i)"bathrooms"\s*:\s*([\d.]+)`)
	zSqft       = regexp.MustCompile(`(?i)"livingArea"\s*:\s*([0-9,]+)`)
	zYearBuilt  = regexp.MustCompile(`(?i)"yearBuilt"\s*:\s*(\d{4})`)
	zMLS        = regexp.MustCompile(`(?i)MLS[#\s]*:?\s*([A-Z0-9\-]+)`)
	zHomeType   = regexp.MustCompile(`(?i)"homeType"\s*:\s*"([^"]+)"`)
	zAgentName  = regexp.MustCompile(`(?i)"attributionInfo"[^}]*"agentName"\s*:\s*"([^"]+)"`)
	zAgentPhone = regexp.MustCompile(`(?i)"attributionInfo"[^}]*"agentPhoneNumber"\s*:\s*"([^"]+)"`)
	zBrokerage  = regexp.MustCompile(`(?i)"attributionInfo"[^}]*"brokerageName"\s*:\s*"([^"]+)"`)
)

func (zillow) Source() string { return resolver.SourceZillow }

func (zillow) SupportedFields() []string {
	return []string{
		"status", "price", "beds", "baths", "sqft", "address", "mls",
		"year_built", "property_type",
		"agent_name", "agent_phone", "brokerage",
	}
}

func (z zillow) Extract(html string) (Fields, error) {
	return safeExtract(z.Source(), func() Fields {
		var f Fields

		f.Status = normalizeStatus(firstMatch(html, zStatusPatterns))
		if p := firstMatch(html, zPricePatterns); p != "" {
			f.Price = "$" + p
		}
		f.Address = firstMatch(html, zAddressPatterns)

		if m := zBeds.FindStringSubmatch(html); m != nil {
			f.Beds = m[1]
		}
		if m := zBaths.FindStringSubmatch(html); m != nil {
			f.Baths = m[1]
		}
		if m := zSqft.FindStringSubmatch(html); m != nil {
			f.Sqft = m[1]
		}
		if m := zYearBuilt.FindStringSubmatch(html); m != nil {
			f.YearBuilt = m[1]
		}
		if m := zMLS.FindStringSubmatch(html); m != nil {
			f.MLS = m[1]
		}
		if m := zHomeType.FindStringSubmatch(html); m != nil {
			f.PropertyType = m[1]
		}
		if m := zAgentName.FindStringSubmatch(html); m != nil {
			f.AgentName = strings.TrimSpace(m[1])
		}
		if m := zAgentPhone.FindStringSubmatch(html); m != nil {
			f.AgentPhone = strings.TrimSpace(m[1])
		}
		if m := zBrokerage.FindStringSubmatch(html); m != nil {
			f.Brokerage = strings.TrimSpace(m[1])
		}

		return f
	})
}
