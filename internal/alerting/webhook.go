package alerting

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
	"github.com/han-fei/hostguard/internal/utils"
)

const (
	channelNameWebhook = "webhook"

	// 签名头，值为 sha256=<hex>
	signatureHeader = "X-HG-Signature"

	// 回调端点连续失败5次后熔断30秒，期间的发送立即失败
	breakerMaxFailures  = 5
	breakerResetTimeout = 30 * time.Second
)

// WebhookChannel HTTP回调通知通道
// 未配置URL时通道关闭；配置了共享密钥时对请求体做HMAC-SHA256签名
type WebhookChannel struct {
	cfg     config.WebhookConfig
	client  *http.Client
	breaker *utils.CircuitBreaker
}

// NewWebhookChannel 创建Webhook通道
func NewWebhookChannel(cfg config.WebhookConfig) *WebhookChannel {
	return &WebhookChannel{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout.Std()},
		breaker: utils.NewCircuitBreaker(channelNameWebhook, breakerMaxFailures, breakerResetTimeout),
	}
}

// Name 通道名称
func (c *WebhookChannel) Name() string {
	return channelNameWebhook
}

// Enabled 是否已配置可用
func (c *WebhookChannel) Enabled() bool {
	return c.cfg.URL != ""
}

// Send 发送告警回调，端点持续不可用时由熔断器拒绝
func (c *WebhookChannel) Send(ctx context.Context, alert *models.Alert) error {
	return c.breaker.Execute(func() error {
		return c.post(ctx, alert)
	})
}

func (c *WebhookChannel) post(ctx context.Context, alert *models.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("序列化告警失败: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("构造请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Secret != "" {
		req.Header.Set(signatureHeader, "sha256="+signBody(c.cfg.Secret, body))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("回调返回非成功状态: %d", resp.StatusCode)
	}
	return nil
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
