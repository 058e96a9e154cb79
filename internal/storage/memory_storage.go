package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/han-fei/hostguard/internal/models"
)

// MemoryStorage 内存存储实现，供测试与单机试运行使用
type MemoryStorage struct {
	mu          sync.RWMutex
	alerts      []*models.Alert
	suppression map[string]time.Time
	services    map[models.ServiceKey]*models.ServiceHealth
	devices     map[string]*models.Device
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		suppression: make(map[string]time.Time),
		services:    make(map[models.ServiceKey]*models.ServiceHealth),
		devices:     make(map[string]*models.Device),
	}
}

// CreateAlert 追加告警记录
func (s *MemoryStorage) CreateAlert(ctx context.Context, alert *models.Alert) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *alert
	s.alerts = append(s.alerts, &stored)
	return alert.ID, nil
}

// Alerts 返回全部已保存的告警副本
func (s *MemoryStorage) Alerts() []*models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		copied := *a
		out = append(out, &copied)
	}
	return out
}

// Set 写入压制标记
func (s *MemoryStorage) Set(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.suppression[key] = time.Now().Add(ttl)
	return nil
}

// Exists 检查压制标记是否存在且未过期
func (s *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.suppression[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.suppression, key)
		return false, nil
	}
	return true, nil
}

// UpsertServiceHealth 写入或更新服务健康记录
func (s *MemoryStorage) UpsertServiceHealth(ctx context.Context, record *models.ServiceHealth) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	s.services[record.Key()] = &stored
	return nil
}

// GetServiceHealth 读取单条服务健康记录
func (s *MemoryStorage) GetServiceHealth(ctx context.Context, key models.ServiceKey) (*models.ServiceHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.services[key]
	if !ok {
		return nil, fmt.Errorf("service health not found: %s/%s", key.DeviceID, key.ServiceName)
	}
	copied := *record
	return &copied, nil
}

// ListRecoverable 列出可自动恢复的故障服务记录
func (s *MemoryStorage) ListRecoverable(ctx context.Context) ([]*models.ServiceHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*models.ServiceHealth
	for _, record := range s.services {
		if !record.AutoRecoveryEnabled {
			continue
		}
		if record.Status != models.ServiceStateStopped && record.Status != models.ServiceStateDegraded {
			continue
		}
		if record.ConsecutiveFailures <= 0 {
			continue
		}
		copied := *record
		records = append(records, &copied)
	}
	return records, nil
}

// UpsertDevice 写入或更新设备信息
func (s *MemoryStorage) UpsertDevice(ctx context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *device
	s.devices[device.ID] = &stored
	return nil
}

// GetDevice 读取设备信息
func (s *MemoryStorage) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	device, ok := s.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("device not found: %s", deviceID)
	}
	copied := *device
	return &copied, nil
}
