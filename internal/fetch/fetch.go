// Package fetch 负责抓取房源页面原文。
//
// 单次 GET，不重试。监控对时效不敏感，失败就等下一轮刷新，
// 重试只会加重对目标站点的压力。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout 单次请求的默认超时。
const DefaultTimeout = 10 * time.Second

// ErrTimeout 请求超时。
var ErrTimeout = errors.New("request timed out")

// HTTPError 表示目标站点返回了非 2xx 状态码。
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Fetcher 抓取单个页面。
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// New 创建抓取器。timeout 为 0 时使用 DefaultTimeout。
func New(userAgent string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch 抓取 url 并返回页面原文。
//
// 非 2xx 返回 *HTTPError，超时返回 ErrTimeout（包装后），
// 其余网络错误原样包装返回。
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("fetch %s: %w", url, ErrTimeout)
		}
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("read %s: %w", url, ErrTimeout)
		}
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
