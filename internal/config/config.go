package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 支持"30s"、"5m"写法的时长
// yaml.v3不识别time.Duration，这里做一层解析
type Duration time.Duration

// UnmarshalYAML 解析时长字符串
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("解析时长失败: %v", err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML 输出时长字符串
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std 转换为time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config 配置结构
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Alerting  AlertingConfig  `yaml:"alerting"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Recovery  RecoveryConfig  `yaml:"recovery"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// PostgresConfig Postgres配置，DSN为空时告警落Redis
type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// AnalysisConfig 指标分析配置
type AnalysisConfig struct {
	ModelDir           string           `yaml:"model_dir"`
	AlertThreshold     float64          `yaml:"alert_threshold"`
	AnomalyAlertFloor  float64          `yaml:"anomaly_alert_floor"`
	MinTrainingSamples int              `yaml:"min_training_samples"`
	MaxTrainingBuffer  int              `yaml:"max_training_buffer"`
	RetrainInterval    Duration         `yaml:"retrain_interval"`
	Forest             ForestConfig     `yaml:"forest"`
	Thresholds         ThresholdsConfig `yaml:"thresholds"`
}

// ForestConfig 隔离森林超参数
type ForestConfig struct {
	Trees         int   `yaml:"trees"`
	SubsampleSize int   `yaml:"subsample_size"`
	Seed          int64 `yaml:"seed"`
}

// ThresholdsConfig 静态阈值配置
type ThresholdsConfig struct {
	CPUCritical         float64 `yaml:"cpu_critical"`
	CPUHigh             float64 `yaml:"cpu_high"`
	RAMCritical         float64 `yaml:"ram_critical"`
	RAMHigh             float64 `yaml:"ram_high"`
	DiskCritical        float64 `yaml:"disk_critical"`
	DiskHigh            float64 `yaml:"disk_high"`
	TemperatureCritical float64 `yaml:"temperature_critical"`
	TemperatureHigh     float64 `yaml:"temperature_high"`
	PacketLossCritical  float64 `yaml:"packet_loss_critical"`
	PacketLossHigh      float64 `yaml:"packet_loss_high"`
}

// AlertingConfig 告警通知配置
type AlertingConfig struct {
	DedupWindow Duration      `yaml:"dedup_window"`
	QueueSize   int           `yaml:"queue_size"`
	Workers     int           `yaml:"workers"`
	Email       EmailConfig   `yaml:"email"`
	Webhook     WebhookConfig `yaml:"webhook"`
}

// EmailConfig 邮件通道配置，Host或收件人为空时通道关闭
type EmailConfig struct {
	SMTPHost   string   `yaml:"smtp_host"`
	SMTPPort   int      `yaml:"smtp_port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"`
	UseTLS     bool     `yaml:"use_tls"`
	Recipients []string `yaml:"recipients"`
}

// WebhookConfig Webhook通道配置，URL为空时通道关闭
type WebhookConfig struct {
	URL     string   `yaml:"url"`
	Secret  string   `yaml:"secret"`
	Timeout Duration `yaml:"timeout"`
}

// BroadcastConfig 实时广播配置
type BroadcastConfig struct {
	WebSocket WebSocketConfig `yaml:"websocket"`
	Kafka     KafkaConfig     `yaml:"kafka"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	BufferSize      int `yaml:"buffer_size"`
	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	BatchSize    int      `yaml:"batch_size"`
	BatchTimeout Duration `yaml:"batch_timeout"`
	MaxRetry     int      `yaml:"max_retry"`
}

// RecoveryConfig 自动恢复配置
type RecoveryConfig struct {
	Enabled        bool     `yaml:"enabled"`
	PollInterval   Duration `yaml:"poll_interval"`
	RetryDelay     Duration `yaml:"retry_delay"`
	CommandTimeout Duration `yaml:"command_timeout"`
	MaxAttempts    int      `yaml:"max_attempts"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"`
}

// LoadConfig 加载配置文件
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	// 设置默认值
	SetDefaults(config)

	return config, nil
}

// SetDefaults 设置默认值
func SetDefaults(config *Config) {
	// 服务默认值
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8090
	}

	// Redis默认值
	if config.Storage.Redis.Addr == "" {
		config.Storage.Redis.Addr = "localhost:6379"
	}
	if config.Storage.Redis.KeyPrefix == "" {
		config.Storage.Redis.KeyPrefix = "hostguard:"
	}

	// Postgres默认值
	if config.Storage.Postgres.MaxOpenConns == 0 {
		config.Storage.Postgres.MaxOpenConns = 20
	}
	if config.Storage.Postgres.MaxIdleConns == 0 {
		config.Storage.Postgres.MaxIdleConns = 5
	}

	// 分析默认值
	if config.Analysis.ModelDir == "" {
		config.Analysis.ModelDir = "data/models"
	}
	if config.Analysis.AlertThreshold == 0 {
		config.Analysis.AlertThreshold = 0.85
	}
	if config.Analysis.AnomalyAlertFloor == 0 {
		config.Analysis.AnomalyAlertFloor = 0.80
	}
	if config.Analysis.MinTrainingSamples == 0 {
		config.Analysis.MinTrainingSamples = 100
	}
	if config.Analysis.MaxTrainingBuffer == 0 {
		config.Analysis.MaxTrainingBuffer = 1000
	}
	if config.Analysis.RetrainInterval == 0 {
		config.Analysis.RetrainInterval = Duration(24 * time.Hour)
	}
	if config.Analysis.Forest.Trees == 0 {
		config.Analysis.Forest.Trees = 100
	}
	if config.Analysis.Forest.SubsampleSize == 0 {
		config.Analysis.Forest.SubsampleSize = 256
	}
	if config.Analysis.Forest.Seed == 0 {
		config.Analysis.Forest.Seed = 42
	}
	setThresholdDefaults(&config.Analysis.Thresholds)

	// 告警默认值
	if config.Alerting.DedupWindow == 0 {
		config.Alerting.DedupWindow = Duration(5 * time.Minute)
	}
	if config.Alerting.QueueSize == 0 {
		config.Alerting.QueueSize = 256
	}
	if config.Alerting.Workers == 0 {
		config.Alerting.Workers = 4
	}
	if config.Alerting.Email.SMTPPort == 0 {
		config.Alerting.Email.SMTPPort = 587
	}
	if config.Alerting.Webhook.Timeout == 0 {
		config.Alerting.Webhook.Timeout = Duration(10 * time.Second)
	}

	// 广播默认值
	if config.Broadcast.WebSocket.BufferSize == 0 {
		config.Broadcast.WebSocket.BufferSize = 256
	}
	if config.Broadcast.WebSocket.ReadBufferSize == 0 {
		config.Broadcast.WebSocket.ReadBufferSize = 1024
	}
	if config.Broadcast.WebSocket.WriteBufferSize == 0 {
		config.Broadcast.WebSocket.WriteBufferSize = 1024
	}
	if config.Broadcast.Kafka.Topic == "" {
		config.Broadcast.Kafka.Topic = "hostguard-alerts"
	}
	if config.Broadcast.Kafka.BatchSize == 0 {
		config.Broadcast.Kafka.BatchSize = 100
	}
	if config.Broadcast.Kafka.BatchTimeout == 0 {
		config.Broadcast.Kafka.BatchTimeout = Duration(time.Second)
	}
	if config.Broadcast.Kafka.MaxRetry == 0 {
		config.Broadcast.Kafka.MaxRetry = 3
	}

	// 恢复默认值
	if config.Recovery.PollInterval == 0 {
		config.Recovery.PollInterval = Duration(60 * time.Second)
	}
	if config.Recovery.RetryDelay == 0 {
		config.Recovery.RetryDelay = Duration(30 * time.Second)
	}
	if config.Recovery.CommandTimeout == 0 {
		config.Recovery.CommandTimeout = Duration(30 * time.Second)
	}
	if config.Recovery.MaxAttempts == 0 {
		config.Recovery.MaxAttempts = 3
	}

	// 日志默认值
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Output == "" {
		config.Log.Output = "stdout"
	}
}

// setThresholdDefaults 设置静态阈值默认值
func setThresholdDefaults(t *ThresholdsConfig) {
	if t.CPUCritical == 0 {
		t.CPUCritical = 95.0
	}
	if t.CPUHigh == 0 {
		t.CPUHigh = 85.0
	}
	if t.RAMCritical == 0 {
		t.RAMCritical = 95.0
	}
	if t.RAMHigh == 0 {
		t.RAMHigh = 85.0
	}
	if t.DiskCritical == 0 {
		t.DiskCritical = 95.0
	}
	if t.DiskHigh == 0 {
		t.DiskHigh = 85.0
	}
	if t.TemperatureCritical == 0 {
		t.TemperatureCritical = 85.0
	}
	if t.TemperatureHigh == 0 {
		t.TemperatureHigh = 75.0
	}
	if t.PacketLossCritical == 0 {
		t.PacketLossCritical = 10.0
	}
	if t.PacketLossHigh == 0 {
		t.PacketLossHigh = 5.0
	}
}
