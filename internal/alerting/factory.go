// Package alerting 实现告警创建、去重与多通道通知
package alerting

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/han-fei/hostguard/internal/broadcast"
	"github.com/han-fei/hostguard/internal/models"
	"github.com/han-fei/hostguard/internal/storage"
)

// CreateParams 一次告警创建的参数
type CreateParams struct {
	DeviceID       string
	Type           models.AlertType
	Severity       models.AlertSeverity
	Title          string
	Message        string
	MetricValue    *float64
	ThresholdValue *float64
	AnomalyScore   *float64
	Metadata       map[string]interface{}
}

// Factory 告警工厂
// 每次调用都落一条新记录，不与既有告警合并；
// 事件广播无条件发出，通知派发异步进行，创建路径不等待通道结果
type Factory struct {
	store       storage.AlertStore
	broadcaster broadcast.Broadcaster
	dispatcher  *Dispatcher
}

// NewFactory 创建告警工厂，broadcaster和dispatcher可为nil
func NewFactory(store storage.AlertStore, broadcaster broadcast.Broadcaster, dispatcher *Dispatcher) *Factory {
	return &Factory{
		store:       store,
		broadcaster: broadcaster,
		dispatcher:  dispatcher,
	}
}

// Create 创建并持久化一条告警
func (f *Factory) Create(ctx context.Context, params CreateParams) (*models.Alert, error) {
	alert := &models.Alert{
		ID:             uuid.NewString(),
		DeviceID:       params.DeviceID,
		Type:           params.Type,
		Severity:       params.Severity,
		Title:          params.Title,
		Message:        params.Message,
		MetricValue:    params.MetricValue,
		ThresholdValue: params.ThresholdValue,
		AnomalyScore:   params.AnomalyScore,
		Metadata:       params.Metadata,
		CreatedAt:      time.Now().UTC(),
	}

	if _, err := f.store.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("持久化告警失败: %v", err)
	}

	if f.broadcaster != nil {
		event := models.AlertEvent{
			AlertID:   alert.ID,
			DeviceID:  alert.DeviceID,
			AlertType: alert.Type,
			Severity:  alert.Severity,
			Title:     alert.Title,
		}
		if err := f.broadcaster.BroadcastAlert(ctx, event); err != nil {
			log.Printf("广播告警事件失败: id=%s err=%v", alert.ID, err)
		}
	}

	if f.dispatcher != nil {
		f.dispatcher.Enqueue(alert)
	}

	return alert, nil
}
