// Package crm 实现到外部 CRM 的单向字段映射同步。
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/artcityconsulting/propwatch/internal/config"
	"github.com/artcityconsulting/propwatch/internal/model"
	"github.com/artcityconsulting/propwatch/internal/pkg/metrics"
)

// FieldNames 返回可参与映射的内部字段名，顺序固定。
// 配置里的 field_map 以这些名字为键。
func FieldNames() []string {
	return []string{
		"input_text", "source", "status", "previous_status", "price",
		"beds", "baths", "sqft", "address", "mls", "days_on_market",
		"year_built", "property_type", "agent_name", "agent_phone",
		"agent_email", "brokerage", "resolved_url",
	}
}

func fieldValues(l *model.Listing) map[string]string {
	return map[string]string{
		"input_text":      l.InputText,
		"source":          l.Source,
		"status":          l.Status,
		"previous_status": l.PreviousStatus,
		"price":           l.Price,
		"beds":            l.Beds,
		"baths":           l.Baths,
		"sqft":            l.Sqft,
		"address":         l.Address,
		"mls":             l.MLS,
		"days_on_market":  l.DaysOnMarket,
		"year_built":      l.YearBuilt,
		"property_type":   l.PropertyType,
		"agent_name":      l.AgentName,
		"agent_phone":     l.AgentPhone,
		"agent_email":     l.AgentEmail,
		"brokerage":       l.Brokerage,
		"resolved_url":    l.ResolvedURL,
	}
}

// Client 是 CRM HTTP 客户端。Endpoint 未配置时所有操作都是空操作。
type Client struct {
	cfg        *config.CRMConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient 创建 CRM 客户端。
func NewClient(cfg *config.CRMConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Enabled 判断同步是否已配置。
func (c *Client) Enabled() bool {
	return c != nil && c.cfg != nil && c.cfg.Endpoint != ""
}

type syncResponse struct {
	ID string `json:"id"`
}

// Sync 把一条房源推送到 CRM，返回对端记录 ID。
//
// 载荷按 field_map 重命名字段，映射为空时用内部字段名原样输出。
// 已有 external_sync_id 的记录带上它，让对端做更新而不是新建。
func (c *Client) Sync(ctx context.Context, l *model.Listing) (string, error) {
	if !c.Enabled() {
		return "", nil
	}

	payload := map[string]string{}
	values := fieldValues(l)
	for _, name := range FieldNames() {
		target := name
		if c.cfg.FieldMap != nil {
			if mapped, ok := c.cfg.FieldMap[name]; ok {
				if mapped == "" {
					continue // 映射成空串表示不同步该字段
				}
				target = mapped
			}
		}
		payload[target] = values[name]
	}
	if l.ExternalSyncID != "" {
		payload["external_id"] = l.ExternalSyncID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal crm payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build crm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.CRMSyncTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("crm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.CRMSyncTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("crm responded HTTP %d", resp.StatusCode)
	}

	var parsed syncResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		metrics.CRMSyncTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("decode crm response: %w", err)
	}

	metrics.CRMSyncTotal.WithLabelValues("success").Inc()
	c.logger.Info("listing synced to crm",
		slog.Uint64("listing_id", uint64(l.ID)),
		slog.String("external_id", parsed.ID),
	)
	return parsed.ID, nil
}
