// Package bulk 处理批量导入（粘贴多行或上传 CSV）和 CSV 导出。
package bulk

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/artcityconsulting/propwatch/internal/model"
)

// 识别为输入列的表头名（大小写不敏感）。
var inputHeaders = map[string]bool{
	"mls":           true,
	"mls#":          true,
	"mls_number":    true,
	"url":           true,
	"link":          true,
	"property_url":  true,
	"property_link": true,
}

// ParseLines 把粘贴的多行文本拆成输入列表，空行忽略。
func ParseLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ParseCSV 从 CSV 中提取输入列表。
//
// 首行表头里找已知的输入列名，找到就取该列；一个都没找到时
// 视为无表头文件，所有行都是数据，取第一列。
func ParseCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // 行宽不齐的文件也接受
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := -1
	for i, header := range records[0] {
		if inputHeaders[strings.ToLower(strings.TrimSpace(header))] {
			col = i
			break
		}
	}

	rows := records
	if col >= 0 {
		rows = records[1:]
	} else {
		col = 0
	}

	var out []string
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// csvHeader 是导出列，顺序和页面表格一致。
var csvHeader = []string{
	"input_text", "source", "status", "previous_status", "price",
	"beds", "baths", "sqft", "address", "mls", "days_on_market",
	"year_built", "property_type", "agent_name", "agent_phone",
	"agent_email", "brokerage", "resolved_url", "last_checked_at",
	"last_changed_at",
}

// WriteCSV 把跟踪列表导出为 CSV。
func WriteCSV(w io.Writer, listings []model.Listing) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i := range listings {
		l := &listings[i]
		lastChecked := ""
		if l.LastCheckedAt != nil {
			lastChecked = l.LastCheckedAt.Format("2006-01-02 15:04:05")
		}
		lastChanged := ""
		if l.LastChangedAt != nil {
			lastChanged = l.LastChangedAt.Format("2006-01-02 15:04:05")
		}
		record := []string{
			l.InputText, l.Source, l.Status, l.PreviousStatus, l.Price,
			l.Beds, l.Baths, l.Sqft, l.Address, l.MLS, l.DaysOnMarket,
			l.YearBuilt, l.PropertyType, l.AgentName, l.AgentPhone,
			l.AgentEmail, l.Brokerage, l.ResolvedURL, lastChecked,
			lastChanged,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
