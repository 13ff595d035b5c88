package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/artcityconsulting/propwatch/internal/config"
	"github.com/artcityconsulting/propwatch/internal/model"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 实现邮件通知。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建一个新的邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendStatusChange 发送状态变更邮件。
// 邮件配置缺失时静默跳过，不算错误。
func (n *EmailNotifier) SendStatusChange(ctx context.Context, listing *model.Listing, fromStatus string, toEmail string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Warn("email config missing, skip notification")
		return nil
	}
	if strings.TrimSpace(toEmail) == "" {
		n.logger.Warn("email recipient empty, skip notification")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("[PropWatch] 状态变更: %s", listingTitle(listing)))

	m.SetBody("text/html", n.buildHTMLBody(listing, fromStatus))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("status change notification sent",
		slog.String("to", toEmail),
		slog.Uint64("listing_id", uint64(listing.ID)),
		slog.String("from", fromStatus),
		slog.String("to_status", listing.Status),
	)
	return nil
}

func (n *EmailNotifier) buildHTMLBody(listing *model.Listing, fromStatus string) string {
	template := `
<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8" />
<style>
  body { font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937; }
  .card { max-width: 600px; margin: 24px auto; background: #ffffff; border-radius: 12px; overflow: hidden; border: 1px solid #e5e7eb; }
  .header { background: #0f172a; color: #ffffff; padding: 16px 20px; font-size: 16px; font-weight: bold; }
  .content { padding: 20px; }
  .transition { font-size: 22px; font-weight: bold; margin: 8px 0 12px; }
  .from { color: #6b7280; text-decoration: line-through; }
  .to { color: #ef4444; }
  .title { font-size: 16px; margin-bottom: 8px; }
  .meta { font-size: 14px; color: #374151; margin-bottom: 16px; }
  .cta { display: inline-block; padding: 12px 20px; background: #22c55e; color: #fff; text-decoration: none; border-radius: 8px; font-weight: bold; }
  .footer { margin-top: 20px; font-size: 12px; color: #6b7280; }
</style>
</head>
<body>
  <div class="card">
    <div class="header">[PropWatch] 房源状态变更</div>
    <div class="content">
      <div class="title">%s</div>
      <div class="transition"><span class="from">%s</span> → <span class="to">%s</span></div>
      <div class="meta">价格: %s<br>MLS#: %s<br>来源: %s</div>
      <div style="text-align:center; margin-bottom: 12px;">
        <a class="cta" href="%s" target="_blank">查看房源页面</a>
      </div>
      <div class="footer">原始输入: %s</div>
    </div>
  </div>
</body>
</html>`

	return fmt.Sprintf(template,
		listingTitle(listing), fromStatus, listing.Status,
		listing.Price, listing.MLS, listing.Source,
		listing.ResolvedURL, listing.InputText,
	)
}

func listingTitle(listing *model.Listing) string {
	if listing.Address != "" {
		return listing.Address
	}
	return listing.InputText
}
