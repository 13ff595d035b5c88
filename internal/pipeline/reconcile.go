package pipeline

import (
	"time"

	"github.com/artcityconsulting/propwatch/internal/extract"
	"github.com/artcityconsulting/propwatch/internal/model"
	"github.com/artcityconsulting/propwatch/internal/resolver"
)

// Outcome 是一次对账的结果。
type Outcome struct {
	Changed bool   // 状态是否发生变更
	From    string // 变更前状态（未变更时为空）
	To      string // 变更后状态（未变更时为空）
}

// reconcile 把抓到的字段合入已有记录。纯内存操作，不落库。
//
// 状态按字符串精确比较；发生变更时 previous_status 和
// last_changed_at 一起更新，未变更时两者都保持原值，确保
// 它们永远描述同一次变更。其余字段和 last_checked_at 总是覆盖。
// "Status Not Found" 哨兵值参与比较，不做特殊处理。
func reconcile(l *model.Listing, res resolver.Resolution, f extract.Fields, now time.Time) Outcome {
	oldStatus := l.Status

	l.Source = res.Source
	l.ResolvedURL = res.URL
	l.Status = f.Status
	l.Price = f.Price
	l.Beds = f.Beds
	l.Baths = f.Baths
	l.Sqft = f.Sqft
	l.Address = f.Address
	l.MLS = f.MLS
	l.DaysOnMarket = f.DaysOnMarket
	l.YearBuilt = f.YearBuilt
	l.PropertyType = f.PropertyType
	l.AgentName = f.AgentName
	l.AgentPhoto = f.AgentPhoto
	l.AgentPhone = f.AgentPhone
	l.AgentEmail = f.AgentEmail
	l.Brokerage = f.Brokerage
	l.Features = f.Features
	l.LastCheckedAt = &now
	l.Notes = "Success"

	if oldStatus != f.Status {
		l.PreviousStatus = oldStatus
		l.LastChangedAt = &now
		return Outcome{Changed: true, From: oldStatus, To: f.Status}
	}
	return Outcome{}
}
