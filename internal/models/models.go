package models

import (
	"time"
)

// AlertType 告警类型
type AlertType string

const (
	AlertTypeCPUHigh         AlertType = "cpu_high"
	AlertTypeRAMHigh         AlertType = "ram_high"
	AlertTypeDiskHigh        AlertType = "disk_high"
	AlertTypeTemperatureHigh AlertType = "temperature_high"
	AlertTypeNetworkAnomaly  AlertType = "network_anomaly"
	AlertTypeAIAnomaly       AlertType = "ai_anomaly"
	AlertTypeRansomware      AlertType = "ransomware_pattern"
	AlertTypeServiceDown     AlertType = "service_down"
	AlertTypeRecoverySuccess AlertType = "recovery_success"
	AlertTypeRecoveryFailed  AlertType = "recovery_failed"
	AlertTypeSecurityBreach  AlertType = "security_breach"
	AlertTypeDeviceOffline   AlertType = "device_offline"
)

// AlertSeverity 告警严重程度
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityHigh     AlertSeverity = "high"
	SeverityMedium   AlertSeverity = "medium"
	SeverityLow      AlertSeverity = "low"
	SeverityInfo     AlertSeverity = "info"
)

// ServiceState 服务运行状态
type ServiceState string

const (
	ServiceStateRunning  ServiceState = "running"
	ServiceStateStopped  ServiceState = "stopped"
	ServiceStateDegraded ServiceState = "degraded"
	ServiceStateUnknown  ServiceState = "unknown"
)

// DiskPartition 单个磁盘分区的指标
type DiskPartition struct {
	MountPoint   string  `json:"mount_point"`
	TotalBytes   float64 `json:"total_bytes"`
	UsedBytes    float64 `json:"used_bytes"`
	FreeBytes    float64 `json:"free_bytes"`
	UsagePercent float64 `json:"usage_percent"`
}

// NetworkInterface 单个网络接口的指标
type NetworkInterface struct {
	Name            string  `json:"interface_name"`
	BytesSentPerSec float64 `json:"bytes_sent_per_sec"`
	BytesRecvPerSec float64 `json:"bytes_recv_per_sec"`
	PacketsSent     uint64  `json:"packets_sent"`
	PacketsRecv     uint64  `json:"packets_recv"`
	ErrorsIn        uint64  `json:"errors_in"`
	ErrorsOut       uint64  `json:"errors_out"`
	DropsIn         uint64  `json:"drops_in"`
	DropsOut        uint64  `json:"drops_out"`
}

// TemperatureSensor 单个温度传感器读数
type TemperatureSensor struct {
	SensorLabel        string   `json:"sensor_label"`
	TemperatureCelsius float64  `json:"temperature_celsius"`
	HighThreshold      *float64 `json:"high_threshold,omitempty"`
	CriticalThreshold  *float64 `json:"critical_threshold,omitempty"`
}

// MetricSample 采集代理上报的一次主机健康样本
// 缺失字段保持为nil表示"未知"，只在特征提取阶段才替换为默认值
type MetricSample struct {
	DeviceID    string    `json:"device_id"`
	CollectedAt time.Time `json:"collected_at"`

	CPUUsagePercent *float64 `json:"cpu_usage_percent,omitempty"`
	CPUFrequencyMHz *float64 `json:"cpu_frequency_mhz,omitempty"`
	CPUCoreCount    *int     `json:"cpu_core_count,omitempty"`
	CPULoadAvg1m    *float64 `json:"cpu_load_avg_1m,omitempty"`
	CPULoadAvg5m    *float64 `json:"cpu_load_avg_5m,omitempty"`
	CPULoadAvg15m   *float64 `json:"cpu_load_avg_15m,omitempty"`

	RAMTotalBytes    *float64 `json:"ram_total_bytes,omitempty"`
	RAMUsedBytes     *float64 `json:"ram_used_bytes,omitempty"`
	RAMUsagePercent  *float64 `json:"ram_usage_percent,omitempty"`
	SwapTotalBytes   *float64 `json:"swap_total_bytes,omitempty"`
	SwapUsedBytes    *float64 `json:"swap_used_bytes,omitempty"`
	SwapUsagePercent *float64 `json:"swap_usage_percent,omitempty"`

	DiskPartitions       []DiskPartition `json:"disk_partitions,omitempty"`
	DiskReadBytesPerSec  *float64        `json:"disk_read_bytes_per_sec,omitempty"`
	DiskWriteBytesPerSec *float64        `json:"disk_write_bytes_per_sec,omitempty"`
	DiskIOPSRead         *float64        `json:"disk_iops_read,omitempty"`
	DiskIOPSWrite        *float64        `json:"disk_iops_write,omitempty"`

	NetworkInterfaces        []NetworkInterface `json:"network_interfaces,omitempty"`
	NetworkBytesSentPerSec   *float64           `json:"network_bytes_sent_per_sec,omitempty"`
	NetworkBytesRecvPerSec   *float64           `json:"network_bytes_recv_per_sec,omitempty"`
	NetworkLatencyMs         *float64           `json:"network_latency_ms,omitempty"`
	NetworkPacketLossPercent *float64           `json:"network_packet_loss_percent,omitempty"`

	TemperatureSensors    []TemperatureSensor `json:"temperature_sensors,omitempty"`
	MaxTemperatureCelsius *float64            `json:"max_temperature_celsius,omitempty"`

	ActiveProcessCount  *int `json:"active_process_count,omitempty"`
	ZombieProcessCount  *int `json:"zombie_process_count,omitempty"`
	OpenFileDescriptors *int `json:"open_file_descriptors,omitempty"`
}

// PacketLossFromCounters 根据接口计数器计算丢包率
// 公式沿用采集端的口径：(errin + dropout) / packets_sent * 100
// 注意分子混合了接收侧错误与发送侧丢包，分母只有发送包数，
// 为保持与既有代理上报数据可比，这里不做修正
func PacketLossFromCounters(errorsIn, dropsOut, packetsSent uint64) float64 {
	if packetsSent == 0 {
		return 0.0
	}
	return float64(errorsIn+dropsOut) / float64(packetsSent) * 100.0
}

// Alert 告警记录
type Alert struct {
	ID             string                 `json:"id"`
	DeviceID       string                 `json:"device_id"`
	Type           AlertType              `json:"alert_type"`
	Severity       AlertSeverity          `json:"severity"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	MetricValue    *float64               `json:"metric_value,omitempty"`
	ThresholdValue *float64               `json:"threshold_value,omitempty"`
	AnomalyScore   *float64               `json:"anomaly_score,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`

	Acknowledged bool `json:"is_acknowledged"`
	Resolved     bool `json:"is_resolved"`
	Suppressed   bool `json:"is_suppressed"`

	EmailSent         bool       `json:"email_sent"`
	WebhookSent       bool       `json:"webhook_sent"`
	NotificationCount int        `json:"notification_count"`
	LastNotifiedAt    *time.Time `json:"last_notified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// AlertEvent 告警创建时广播的轻量事件
type AlertEvent struct {
	AlertID   string        `json:"alert_id"`
	DeviceID  string        `json:"device_id"`
	AlertType AlertType     `json:"alert_type"`
	Severity  AlertSeverity `json:"severity"`
	Title     string        `json:"title"`
}

// ServiceKey 服务健康记录的唯一键
type ServiceKey struct {
	DeviceID    string
	ServiceName string
}

// ServiceHealth 单个被监控服务的健康记录
type ServiceHealth struct {
	DeviceID            string       `json:"device_id"`
	ServiceName         string       `json:"service_name"`
	ServiceType         string       `json:"service_type"`
	Status              ServiceState `json:"status"`
	ResponseTimeMs      *float64     `json:"response_time_ms,omitempty"`
	LastCheckedAt       time.Time    `json:"last_checked_at"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	AutoRecoveryEnabled bool         `json:"auto_recovery_enabled"`
	RecoveryCommand     string       `json:"recovery_command,omitempty"`
}

// Key 返回该记录的服务键
func (s *ServiceHealth) Key() ServiceKey {
	return ServiceKey{DeviceID: s.DeviceID, ServiceName: s.ServiceName}
}

// Device 设备注册信息（由外部设备注册表维护）
type Device struct {
	ID         string    `json:"id"`
	Hostname   string    `json:"hostname"`
	IPAddress  string    `json:"ip_address"`
	DeviceType string    `json:"device_type"`
	IsActive   bool      `json:"is_active"`
	IsIsolated bool      `json:"is_isolated"`
	LastSeen   time.Time `json:"last_seen"`
}

// Float64 返回float64指针，用于填充可选字段
func Float64(v float64) *float64 {
	return &v
}

// Int 返回int指针，用于填充可选字段
func Int(v int) *int {
	return &v
}
