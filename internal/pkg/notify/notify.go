package notify

import (
	"context"

	"github.com/artcityconsulting/propwatch/internal/model"
)

// Notifier 定义状态变更通知接口。
type Notifier interface {
	// SendStatusChange 发送状态变更通知。
	//
	// 参数:
	//   ctx: 上下文
	//   listing: 刷新后的房源
	//   fromStatus: 变更前的状态
	//   toEmail: 接收邮箱
	SendStatusChange(ctx context.Context, listing *model.Listing, fromStatus string, toEmail string) error
}

// Noop 丢弃所有通知，用在未配置邮件的场合。
type Noop struct{}

func (Noop) SendStatusChange(context.Context, *model.Listing, string, string) error { return nil }
