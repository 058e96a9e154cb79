// Package storage 定义了核心流水线依赖的存储契约
package storage

import (
	"context"
	"time"

	"github.com/han-fei/hostguard/internal/models"
)

// AlertStore 告警存储接口
type AlertStore interface {
	// CreateAlert 追加一条告警记录，返回记录ID
	CreateAlert(ctx context.Context, alert *models.Alert) (string, error)
}

// SuppressionStore 带TTL语义的键值存储
// 既用于滚动去重窗口，也用于人工压制标记
type SuppressionStore interface {
	// Set 写入键并设置过期时间
	Set(ctx context.Context, key string, ttl time.Duration) error

	// Exists 检查键是否存在
	Exists(ctx context.Context, key string) (bool, error)
}

// ServiceHealthStore 服务健康记录存储接口
type ServiceHealthStore interface {
	// UpsertServiceHealth 写入或更新服务健康记录
	UpsertServiceHealth(ctx context.Context, record *models.ServiceHealth) error

	// GetServiceHealth 读取单条服务健康记录
	GetServiceHealth(ctx context.Context, key models.ServiceKey) (*models.ServiceHealth, error)

	// ListRecoverable 列出开启自动恢复、状态为stopped或degraded
	// 且连续失败次数大于0的服务记录
	ListRecoverable(ctx context.Context) ([]*models.ServiceHealth, error)
}

// DeviceRegistry 设备注册表只读接口
type DeviceRegistry interface {
	// GetDevice 读取设备信息
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
}
