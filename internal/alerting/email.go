package alerting

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
)

const (
	channelNameEmail = "email"

	// 上下文未带截止时间时使用的兜底发送超时
	emailSendTimeout = 30 * time.Second
)

// EmailChannel SMTP邮件通知通道
// 未配置SMTP主机或收件人时通道关闭
type EmailChannel struct {
	cfg config.EmailConfig
}

// NewEmailChannel 创建邮件通道
func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg}
}

// Name 通道名称
func (c *EmailChannel) Name() string {
	return channelNameEmail
}

// Enabled 是否已配置可用
func (c *EmailChannel) Enabled() bool {
	return c.cfg.SMTPHost != "" && len(c.cfg.Recipients) > 0
}

// Send 发送告警邮件
// 连接和所有SMTP往返都受调度上下文的截止时间约束，服务器卡住不会拖垮工作协程
func (c *EmailChannel) Send(ctx context.Context, alert *models.Alert) error {
	addr := fmt.Sprintf("%s:%d", c.cfg.SMTPHost, c.cfg.SMTPPort)
	from := c.cfg.From
	if from == "" {
		from = c.cfg.Username
	}

	msg := buildEmailMessage(from, c.cfg.Recipients, alert)
	if err := c.send(ctx, addr, from, msg); err != nil {
		return fmt.Errorf("发送邮件失败: %v", err)
	}
	return nil
}

func (c *EmailChannel) send(ctx context.Context, addr, from string, msg []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(emailSendTimeout)
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("连接SMTP服务器失败: %v", err)
	}
	conn.SetDeadline(deadline)

	// use_tls为真时走隐式TLS（465端口风格），否则明文连接后尝试STARTTLS
	if c.cfg.UseTLS {
		conn = tls.Client(conn, &tls.Config{ServerName: c.cfg.SMTPHost})
	}

	client, err := smtp.NewClient(conn, c.cfg.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("建立SMTP会话失败: %v", err)
	}
	defer client.Close()

	if !c.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: c.cfg.SMTPHost}); err != nil {
				return fmt.Errorf("STARTTLS失败: %v", err)
			}
		}
	}

	if c.cfg.Username != "" {
		auth := smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP认证失败: %v", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("设置发件人失败: %v", err)
	}
	for _, rcpt := range c.cfg.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("设置收件人失败: %v", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("开始传输邮件体失败: %v", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("写入邮件体失败: %v", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("结束邮件体失败: %v", err)
	}
	return client.Quit()
}

func buildEmailMessage(from string, recipients []string, alert *models.Alert) []byte {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title)

	var body strings.Builder
	body.WriteString("<html><body>")
	body.WriteString(fmt.Sprintf("<h2>%s</h2>", alert.Title))
	body.WriteString(fmt.Sprintf("<p>%s</p>", alert.Message))
	body.WriteString("<ul>")
	body.WriteString(fmt.Sprintf("<li>Device: %s</li>", alert.DeviceID))
	body.WriteString(fmt.Sprintf("<li>Type: %s</li>", alert.Type))
	body.WriteString(fmt.Sprintf("<li>Severity: %s</li>", alert.Severity))
	if alert.MetricValue != nil {
		body.WriteString(fmt.Sprintf("<li>Metric value: %.2f</li>", *alert.MetricValue))
	}
	if alert.AnomalyScore != nil {
		body.WriteString(fmt.Sprintf("<li>Anomaly score: %.3f</li>", *alert.AnomalyScore))
	}
	body.WriteString(fmt.Sprintf("<li>Created: %s</li>", alert.CreatedAt.Format("2006-01-02 15:04:05 UTC")))
	body.WriteString("</ul>")
	body.WriteString("</body></html>")

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(recipients, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body.String())
	return []byte(msg.String())
}
