package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
)

// alertsSchema 告警表结构
const alertsSchema = `
CREATE TABLE IF NOT EXISTS alerts (
	id UUID PRIMARY KEY,
	device_id VARCHAR(255) NOT NULL,
	alert_type VARCHAR(50) NOT NULL,
	severity VARCHAR(20) NOT NULL,
	title VARCHAR(500) NOT NULL,
	message TEXT NOT NULL,
	metric_value DOUBLE PRECISION,
	threshold_value DOUBLE PRECISION,
	anomaly_score DOUBLE PRECISION,
	metadata JSONB NOT NULL DEFAULT '{}',
	is_acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
	is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
	is_suppressed BOOLEAN NOT NULL DEFAULT FALSE,
	email_sent BOOLEAN NOT NULL DEFAULT FALSE,
	webhook_sent BOOLEAN NOT NULL DEFAULT FALSE,
	notification_count INTEGER NOT NULL DEFAULT 0,
	last_notified_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_device_created ON alerts (device_id, created_at);
CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts (severity);
`

// PostgresAlertStore 基于Postgres的告警存储
type PostgresAlertStore struct {
	db *sqlx.DB
}

// NewPostgresAlertStore 创建Postgres告警存储并初始化表结构
func NewPostgresAlertStore(cfg config.PostgresConfig) (*PostgresAlertStore, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %v", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(alertsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init alerts schema: %v", err)
	}

	return &PostgresAlertStore{db: db}, nil
}

// Close 关闭数据库连接
func (s *PostgresAlertStore) Close() error {
	return s.db.Close()
}

// CreateAlert 插入一条告警记录
func (s *PostgresAlertStore) CreateAlert(ctx context.Context, alert *models.Alert) (string, error) {
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %v", err)
	}

	query := `
		INSERT INTO alerts (
			id, device_id, alert_type, severity, title, message,
			metric_value, threshold_value, anomaly_score, metadata,
			is_acknowledged, is_resolved, is_suppressed,
			email_sent, webhook_sent, notification_count, last_notified_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err = s.db.ExecContext(ctx, query,
		alert.ID,
		alert.DeviceID,
		string(alert.Type),
		string(alert.Severity),
		alert.Title,
		alert.Message,
		alert.MetricValue,
		alert.ThresholdValue,
		alert.AnomalyScore,
		metadata,
		alert.Acknowledged,
		alert.Resolved,
		alert.Suppressed,
		alert.EmailSent,
		alert.WebhookSent,
		alert.NotificationCount,
		alert.LastNotifiedAt,
		alert.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert alert: %v", err)
	}
	return alert.ID, nil
}
