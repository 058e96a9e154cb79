// Package broadcast 负责告警事件的实时分发
package broadcast

import (
	"context"

	"github.com/han-fei/hostguard/internal/models"
)

// Broadcaster 告警事件广播接口
type Broadcaster interface {
	// BroadcastAlert 广播一条告警事件，尽力而为
	BroadcastAlert(ctx context.Context, event models.AlertEvent) error
}

// MultiBroadcaster 把事件分发到多个广播端
type MultiBroadcaster struct {
	targets []Broadcaster
}

// NewMultiBroadcaster 创建组合广播器
func NewMultiBroadcaster(targets ...Broadcaster) *MultiBroadcaster {
	return &MultiBroadcaster{targets: targets}
}

// BroadcastAlert 依次广播到全部目标，返回最后一个错误
func (m *MultiBroadcaster) BroadcastAlert(ctx context.Context, event models.AlertEvent) error {
	var lastErr error
	for _, t := range m.targets {
		if err := t.BroadcastAlert(ctx, event); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
