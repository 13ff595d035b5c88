package extract

import (
	"regexp"
	"strings"

	"github.com/artcityconsulting/propwatch/internal/resolver"
)

// utahRealEstate 抽取 UtahRealEstate.com 报表页。
//
// 该站点的状态等核心字段在 facts 表里以 label/value 成对出现，
// 其余字段散落在页面各处，逐个独立匹配。
type utahRealEstate struct{}

func init() { register(utahRealEstate{}) }

var (
	urePrice    = regexp.MustCompile(`\$?([1-9]\d{2}(?:,?\d{3}){1,2}(?:,\d{3})?)`)
	ureStreet   = regexp.MustCompile(`(?i)<h2[^>]*>([^<]+)</h2>`)
	ureLocation = regexp.MustCompile(`(?i)<div[^>]*id=["']location-data["'][^>]*>([^<]+)</div>`)

	ureAgentName = regexp.MustCompile(`(?i)<a[^>]*href=["']/roster/agent\.listings\.report\.public/agentid/\d+[^>]*>([^<]+)</a>`)
	ureAgentPhoto = regexp.MustCompile(`(?i)<img[^>]*src=["'](https://webdrive\.utahrealestate\.com/[^\s"']+?\.jpg)["'][^>]*alt=["'](?:[^"']+?)["']`)
	ureContactSection = regexp.MustCompile(`(?i)<h2>Contact Agent</h2>([\s\S]*?)<div[^>]*class=["'][^"']*broker-overview-table`)
	urePhone          = regexp.MustCompile(`(\d{3}[-\s]?\d{3}[-\s]?\d{4})`)
	ureEmail          = regexp.MustCompile(`(?i)<a[^>]*href=["']mailto:([^"']+)["'][^>]*>`)
	ureBrokerSection  = regexp.MustCompile(`(?i)<div[^>]*class=["'][^"']*broker-overview-content[^"']*["'][^>]*>([\s\S]*?)</div>`)
	ureStrong         = regexp.MustCompile(`(?i)<strong>([^<]+)</strong>`)

	ureFact = regexp.MustCompile(`(?i)<span[^>]*class=["'][^"']*facts-header[^"']*["'][^>]*>(.*?)</span>\s*["']?([^"'<]+)["']?`)

	ureBeds  = regexp.MustCompile(`(?i)(\d+)\s*(?:bed|bd|bedroom)`)
	ureBaths = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:bath|ba|bathroom)`)
	ureSqft  = regexp.MustCompile(`(?i)([0-9,]+)\s*(?:sq\.?\s*ft|sqft|square feet)`)
)

func (utahRealEstate) Source() string { return resolver.SourceUtahRealEstate }

func (utahRealEstate) SupportedFields() []string {
	return []string{
		"status", "price", "beds", "baths", "sqft", "address", "mls",
		"days_on_market", "year_built", "property_type",
		"agent_name", "agent_photo", "agent_phone", "agent_email", "brokerage",
	}
}

func (u utahRealEstate) Extract(html string) (Fields, error) {
	return safeExtract(u.Source(), func() Fields {
		var f Fields

		if m := urePrice.FindStringSubmatch(html); m != nil {
			f.Price = "$" + strings.TrimSpace(m[1])
		}

		// 地址由街道行和城市行拼接，缺一部分时用剩下的那部分。
		street := ""
		if m := ureStreet.FindStringSubmatch(html); m != nil {
			street = strings.TrimSpace(m[1])
		}
		location := ""
		if m := ureLocation.FindStringSubmatch(html); m != nil {
			location = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(m[1]), ","))
		}
		switch {
		case street != "" && location != "":
			f.Address = street + ", " + location
		case street != "":
			f.Address = street
		case location != "":
			f.Address = location
		}

		if m := ureAgentName.FindStringSubmatch(html); m != nil {
			f.AgentName = strings.TrimSpace(m[1])
		}
		if m := ureAgentPhoto.FindStringSubmatch(html); m != nil {
			f.AgentPhoto = strings.TrimSpace(m[1])
		}
		// 电话只在 Contact Agent 区块里找，页面别处的号码不可信。
		if m := ureContactSection.FindStringSubmatch(html); m != nil {
			if p := urePhone.FindStringSubmatch(m[1]); p != nil {
				f.AgentPhone = strings.TrimSpace(p[1])
			}
		}
		if m := ureEmail.FindStringSubmatch(html); m != nil {
			f.AgentEmail = strings.TrimSpace(m[1])
		}
		if m := ureBrokerSection.FindStringSubmatch(html); m != nil {
			if s := ureStrong.FindStringSubmatch(m[1]); s != nil {
				f.Brokerage = strings.TrimSpace(s[1])
			}
		}

		facts := map[string]string{}
		for _, m := range ureFact.FindAllStringSubmatch(html, -1) {
			label := strings.TrimSpace(m[1])
			value := strings.TrimSpace(m[2])
			if label != "" && value != "" {
				facts[label] = value
			}
		}

		f.Status = normalizeStatus(facts["Status"])
		f.MLS = facts["MLS#"]
		f.PropertyType = facts["Type"]
		f.YearBuilt = facts["Year Built"]
		f.DaysOnMarket = facts["Days on URE"]
		if f.DaysOnMarket == "" {
			f.DaysOnMarket = facts["Days on Market"]
		}

		if m := ureBeds.FindStringSubmatch(html); m != nil {
			f.Beds = m[1]
		}
		if m := ureBaths.FindStringSubmatch(html); m != nil {
			f.Baths = m[1]
		}
		if m := ureSqft.FindStringSubmatch(html); m != nil {
			f.Sqft = m[1]
		}

		return f
	})
}
