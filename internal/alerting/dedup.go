package alerting

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/han-fei/hostguard/internal/models"
	"github.com/han-fei/hostguard/internal/storage"
)

const (
	dedupKeyPrefix      = "alert:dedup:"
	suppressedKeyPrefix = "alert:suppressed:"

	// 本地否定缓存的容量估计与误报率
	seenFilterCapacity = 100000
	seenFilterFPRate   = 0.01
)

// DedupKey 计算设备、告警类型、严重程度的稳定去重键
func DedupKey(deviceID string, alertType models.AlertType, severity models.AlertSeverity) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", deviceID, alertType, severity)))
	return hex.EncodeToString(sum[:])[:16]
}

// Deduplicator 通知去重器
// 每条告警记录都会入库，去重只约束通知通道的触发
type Deduplicator struct {
	store  storage.SuppressionStore
	window time.Duration
	seen   *seenFilter
}

// NewDeduplicator 创建去重器
func NewDeduplicator(store storage.SuppressionStore, window time.Duration) *Deduplicator {
	return &Deduplicator{
		store:  store,
		window: window,
		seen:   newSeenFilter(seenFilterCapacity, seenFilterFPRate, window),
	}
}

// ShouldNotify 判断该告警是否应触发通知通道
// 先看该告警实例的人工压制标记，再看滚动窗口内的去重标记
func (d *Deduplicator) ShouldNotify(ctx context.Context, alert *models.Alert) (bool, error) {
	suppressed, err := d.store.Exists(ctx, suppressedKeyPrefix+alert.ID)
	if err != nil {
		return false, fmt.Errorf("查询压制标记失败: %v", err)
	}
	if suppressed {
		return false, nil
	}

	key := DedupKey(alert.DeviceID, alert.Type, alert.Severity)
	if !d.seen.MightContain(key) {
		// 本地确定窗口内没标记过，不必回源
		return true, nil
	}

	exists, err := d.store.Exists(ctx, dedupKeyPrefix+key)
	if err != nil {
		return false, fmt.Errorf("查询去重标记失败: %v", err)
	}
	return !exists, nil
}

// Mark 在发起通知时立刻写入去重标记，不关心各通道最终是否成功
func (d *Deduplicator) Mark(ctx context.Context, alert *models.Alert) error {
	key := DedupKey(alert.DeviceID, alert.Type, alert.Severity)
	d.seen.Add(key)
	if err := d.store.Set(ctx, dedupKeyPrefix+key, d.window); err != nil {
		return fmt.Errorf("写入去重标记失败: %v", err)
	}
	return nil
}

// Suppress 对单条告警设置限时压制标记
func (d *Deduplicator) Suppress(ctx context.Context, alertID string, ttl time.Duration) error {
	if err := d.store.Set(ctx, suppressedKeyPrefix+alertID, ttl); err != nil {
		return fmt.Errorf("写入压制标记失败: %v", err)
	}
	return nil
}
