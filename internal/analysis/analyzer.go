package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/han-fei/hostguard/internal/alerting"
	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
	"github.com/han-fei/hostguard/internal/storage"
)

// Analyzer 指标分析编排器
// 对每条样本执行勒索模式检查、异常评分与静态阈值评估，
// 并通过告警工厂产出告警
type Analyzer struct {
	cfg        config.AnalysisConfig
	scorer     *Scorer
	thresholds *ThresholdEvaluator
	factory    *alerting.Factory
	registry   storage.DeviceRegistry
}

// AnalysisResult 一次样本分析的结果
type AnalysisResult struct {
	AnomalyScore    *float64
	IsAnomalous     bool
	AnomalyFeatures *AnomalyFeatures
	Alerts          []*models.Alert
}

// NewAnalyzer 创建分析编排器，registry可为nil
func NewAnalyzer(cfg config.AnalysisConfig, scorer *Scorer, factory *alerting.Factory, registry storage.DeviceRegistry) *Analyzer {
	return &Analyzer{
		cfg:        cfg,
		scorer:     scorer,
		thresholds: NewThresholdEvaluator(cfg.Thresholds),
		factory:    factory,
		registry:   registry,
	}
}

// ProcessSample 分析一条指标样本并产出告警
func (a *Analyzer) ProcessSample(ctx context.Context, sample *models.MetricSample) (*AnalysisResult, error) {
	device := a.lookupDevice(ctx, sample.DeviceID)
	result := &AnalysisResult{}

	features := ExtractFeatures(sample)

	// 规则覆盖：勒索模式命中时直接给满分，不走模型
	if detected, detail := DetectRansomwarePattern(sample); detected {
		log.Printf("检测到勒索软件行为模式: device=%s detail=%s", sample.DeviceID, detail)

		// 样本仍进训练缓冲，与未命中路径保持一致
		a.scorer.Score(features)

		score := 1.0
		result.AnomalyScore = &score
		result.IsAnomalous = true
		result.AnomalyFeatures = &AnomalyFeatures{
			TopFeatures:       []string{"disk_write_bytes_per_sec", "cpu_usage_percent"},
			RansomwarePattern: true,
			Detail:            detail,
		}

		alert, err := a.factory.Create(ctx, alerting.CreateParams{
			DeviceID:     sample.DeviceID,
			Type:         models.AlertTypeRansomware,
			Severity:     models.SeverityCritical,
			Title:        fmt.Sprintf("Ransomware Pattern Detected: %s", device.Hostname),
			Message:      fmt.Sprintf("Rule-based detection matched ransomware indicators on %s. %s", device.Hostname, detail),
			AnomalyScore: &score,
			Metadata:     map[string]interface{}{"features": result.AnomalyFeatures},
		})
		if err != nil {
			return result, err
		}
		result.Alerts = append(result.Alerts, alert)

		a.evaluateThresholds(ctx, device, sample, result)
		return result, nil
	}

	scored := a.scorer.Score(features)
	result.AnomalyScore = scored.Score
	result.IsAnomalous = scored.IsAnomalous
	result.AnomalyFeatures = scored.Features

	if scored.IsAnomalous && scored.Score != nil && *scored.Score >= a.cfg.AnomalyAlertFloor {
		severity := models.SeverityHigh
		if *scored.Score >= 0.95 {
			severity = models.SeverityCritical
		}

		var top []string
		if scored.Features != nil {
			top = scored.Features.TopFeatures
		}
		alert, err := a.factory.Create(ctx, alerting.CreateParams{
			DeviceID: sample.DeviceID,
			Type:     models.AlertTypeAIAnomaly,
			Severity: severity,
			Title:    fmt.Sprintf("AI Anomaly Detected: %s", device.Hostname),
			Message: fmt.Sprintf("AI engine detected anomalous behavior on %s. Anomaly score: %.3f. Suspicious features: %s",
				device.Hostname, *scored.Score, strings.Join(top, ", ")),
			AnomalyScore: scored.Score,
			Metadata:     map[string]interface{}{"features": scored.Features},
		})
		if err != nil {
			return result, err
		}
		result.Alerts = append(result.Alerts, alert)
	}

	a.evaluateThresholds(ctx, device, sample, result)
	return result, nil
}

// evaluateThresholds 静态阈值检查，单条告警失败不影响其余
func (a *Analyzer) evaluateThresholds(ctx context.Context, device *models.Device, sample *models.MetricSample, result *AnalysisResult) {
	for _, v := range a.thresholds.Evaluate(device, sample) {
		metricValue := v.MetricValue
		thresholdValue := v.ThresholdValue
		alert, err := a.factory.Create(ctx, alerting.CreateParams{
			DeviceID:       sample.DeviceID,
			Type:           v.Type,
			Severity:       v.Severity,
			Title:          v.Title,
			Message:        v.Message,
			MetricValue:    &metricValue,
			ThresholdValue: &thresholdValue,
			Metadata:       v.Metadata,
		})
		if err != nil {
			log.Printf("创建阈值告警失败: device=%s type=%s err=%v", sample.DeviceID, v.Type, err)
			continue
		}
		result.Alerts = append(result.Alerts, alert)
	}
}

// lookupDevice 查询设备信息，注册表不可用时退化为用设备ID当主机名
func (a *Analyzer) lookupDevice(ctx context.Context, deviceID string) *models.Device {
	if a.registry != nil {
		if device, err := a.registry.GetDevice(ctx, deviceID); err == nil && device != nil {
			return device
		}
	}
	return &models.Device{ID: deviceID, Hostname: deviceID, IsActive: true}
}
