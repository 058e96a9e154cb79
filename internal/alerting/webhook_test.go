package alerting

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
)

// TestWebhookDisabled 测试未配置URL时通道关闭
func TestWebhookDisabled(t *testing.T) {
	ch := NewWebhookChannel(config.WebhookConfig{Timeout: config.Duration(time.Second)})
	if ch.Enabled() {
		t.Error("Channel without URL should be disabled")
	}
}

// TestWebhookSendSigned 测试带HMAC签名的回调发送
func TestWebhookSendSigned(t *testing.T) {
	const secret = "shared-secret"

	var gotSignature string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-HG-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := NewWebhookChannel(config.WebhookConfig{
		URL:     server.URL,
		Secret:  secret,
		Timeout: config.Duration(5 * time.Second),
	})
	if !ch.Enabled() {
		t.Fatal("Channel with URL should be enabled")
	}

	alert := testAlert("wh-1")
	if err := ch.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if !strings.HasPrefix(gotSignature, "sha256=") {
		t.Fatalf("Expected sha256= signature prefix, got %q", gotSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSignature != expected {
		t.Errorf("Signature mismatch: expected %q, got %q", expected, gotSignature)
	}

	var decoded models.Alert
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("Body is not a valid alert: %v", err)
	}
	if decoded.ID != alert.ID {
		t.Errorf("Expected alert id %s, got %s", alert.ID, decoded.ID)
	}
}

// TestWebhookNoSecret 测试未配置密钥时不带签名头
func TestWebhookNoSecret(t *testing.T) {
	var hasHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasHeader = r.Header["X-Hg-Signature"]
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := NewWebhookChannel(config.WebhookConfig{URL: server.URL, Timeout: config.Duration(5 * time.Second)})
	if err := ch.Send(context.Background(), testAlert("wh-2")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if hasHeader {
		t.Error("Signature header should be absent without a secret")
	}
}

// TestWebhookServerError 测试非成功状态码视为失败
func TestWebhookServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ch := NewWebhookChannel(config.WebhookConfig{URL: server.URL, Timeout: config.Duration(5 * time.Second)})
	if err := ch.Send(context.Background(), testAlert("wh-3")); err == nil {
		t.Error("Non-2xx response should be an error")
	}
}
