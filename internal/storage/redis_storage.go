package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
	"github.com/redis/go-redis/v9"
)

// 告警记录与索引的保留时长
const alertRetention = 30 * 24 * time.Hour

// RedisStorage Redis存储实现
// 同时实现AlertStore、SuppressionStore、ServiceHealthStore和DeviceRegistry
type RedisStorage struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStorage 创建Redis存储
func NewRedisStorage(cfg config.RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "hostguard:"
	}

	return &RedisStorage{
		client:    client,
		keyPrefix: keyPrefix,
	}, nil
}

// Close 关闭存储
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// Health 健康检查
func (s *RedisStorage) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// formatKey 格式化键
func (s *RedisStorage) formatKey(key string) string {
	return s.keyPrefix + key
}

// Set 写入压制/去重标记并设置过期时间
func (s *RedisStorage) Set(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.formatKey(key), "1", ttl).Err()
}

// Exists 检查压制/去重标记是否存在
func (s *RedisStorage) Exists(ctx context.Context, key string) (bool, error) {
	result, err := s.client.Exists(ctx, s.formatKey(key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// CreateAlert 保存告警记录并加入设备时间索引
func (s *RedisStorage) CreateAlert(ctx context.Context, alert *models.Alert) (string, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return "", fmt.Errorf("failed to marshal alert: %v", err)
	}

	key := fmt.Sprintf("alert:%s", alert.ID)
	indexKey := fmt.Sprintf("index:alerts:%s", alert.DeviceID)

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.formatKey(key), data, alertRetention)
	pipe.ZAdd(ctx, s.formatKey(indexKey), redis.Z{
		Score:  float64(alert.CreatedAt.UnixNano()),
		Member: alert.ID,
	})
	pipe.Expire(ctx, s.formatKey(indexKey), alertRetention)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store alert: %v", err)
	}
	return alert.ID, nil
}

// GetAlert 读取告警记录
func (s *RedisStorage) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	data, err := s.client.Get(ctx, s.formatKey(fmt.Sprintf("alert:%s", alertID))).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("alert not found: %s", alertID)
		}
		return nil, fmt.Errorf("failed to get alert: %v", err)
	}

	alert := &models.Alert{}
	if err := json.Unmarshal(data, alert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert: %v", err)
	}
	return alert, nil
}

// serviceKey 服务健康记录的存储键
func serviceKey(key models.ServiceKey) string {
	return fmt.Sprintf("service:%s:%s", key.DeviceID, key.ServiceName)
}

// UpsertServiceHealth 写入或更新服务健康记录
func (s *RedisStorage) UpsertServiceHealth(ctx context.Context, record *models.ServiceHealth) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal service health: %v", err)
	}

	key := serviceKey(record.Key())

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.formatKey(key), data, 0)
	pipe.SAdd(ctx, s.formatKey("index:services"), key)

	_, err = pipe.Exec(ctx)
	return err
}

// GetServiceHealth 读取单条服务健康记录
func (s *RedisStorage) GetServiceHealth(ctx context.Context, key models.ServiceKey) (*models.ServiceHealth, error) {
	data, err := s.client.Get(ctx, s.formatKey(serviceKey(key))).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("service health not found: %s/%s", key.DeviceID, key.ServiceName)
		}
		return nil, fmt.Errorf("failed to get service health: %v", err)
	}

	record := &models.ServiceHealth{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal service health: %v", err)
	}
	return record, nil
}

// ListRecoverable 列出可自动恢复的故障服务记录
func (s *RedisStorage) ListRecoverable(ctx context.Context) ([]*models.ServiceHealth, error) {
	keys, err := s.client.SMembers(ctx, s.formatKey("index:services")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %v", err)
	}

	var records []*models.ServiceHealth
	for _, key := range keys {
		data, err := s.client.Get(ctx, s.formatKey(key)).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, fmt.Errorf("failed to get service health: %v", err)
		}

		record := &models.ServiceHealth{}
		if err := json.Unmarshal(data, record); err != nil {
			continue
		}

		if !record.AutoRecoveryEnabled {
			continue
		}
		if record.Status != models.ServiceStateStopped && record.Status != models.ServiceStateDegraded {
			continue
		}
		if record.ConsecutiveFailures <= 0 {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// UpsertDevice 写入或更新设备信息
func (s *RedisStorage) UpsertDevice(ctx context.Context, device *models.Device) error {
	data, err := json.Marshal(device)
	if err != nil {
		return fmt.Errorf("failed to marshal device: %v", err)
	}
	return s.client.Set(ctx, s.formatKey(fmt.Sprintf("device:%s", device.ID)), data, 0).Err()
}

// GetDevice 读取设备信息
func (s *RedisStorage) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	data, err := s.client.Get(ctx, s.formatKey(fmt.Sprintf("device:%s", deviceID))).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("device not found: %s", deviceID)
		}
		return nil, fmt.Errorf("failed to get device: %v", err)
	}

	device := &models.Device{}
	if err := json.Unmarshal(data, device); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device: %v", err)
	}
	return device, nil
}
