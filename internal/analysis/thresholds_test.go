package analysis

import (
	"testing"

	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
)

func testThresholds() config.ThresholdsConfig {
	cfg := config.ThresholdsConfig{}
	full := &config.Config{}
	full.Analysis.Thresholds = cfg
	config.SetDefaults(full)
	return full.Analysis.Thresholds
}

func testDevice() *models.Device {
	return &models.Device{ID: "dev-1", Hostname: "web-01", IsActive: true}
}

// TestThresholdCPUCritical 测试CPU临界阈值
func TestThresholdCPUCritical(t *testing.T) {
	evaluator := NewThresholdEvaluator(testThresholds())
	sample := &models.MetricSample{
		DeviceID:        "dev-1",
		CPUUsagePercent: models.Float64(96.0),
	}

	violations := evaluator.Evaluate(testDevice(), sample)
	if len(violations) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(violations))
	}
	v := violations[0]
	if v.Type != models.AlertTypeCPUHigh || v.Severity != models.SeverityCritical {
		t.Errorf("Expected cpu_high/critical, got %s/%s", v.Type, v.Severity)
	}
	if v.Title != "Critical CPU Usage: web-01" {
		t.Errorf("Unexpected title: %q", v.Title)
	}
}

// TestThresholdCPUHigh 测试CPU高阈值只产生一条告警
func TestThresholdCPUHigh(t *testing.T) {
	evaluator := NewThresholdEvaluator(testThresholds())
	sample := &models.MetricSample{
		DeviceID:        "dev-1",
		CPUUsagePercent: models.Float64(90.0),
	}

	violations := evaluator.Evaluate(testDevice(), sample)
	if len(violations) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(violations))
	}
	if violations[0].Severity != models.SeverityHigh {
		t.Errorf("Expected high severity, got %s", violations[0].Severity)
	}
}

// TestThresholdBelow 测试低于阈值不产生告警
func TestThresholdBelow(t *testing.T) {
	evaluator := NewThresholdEvaluator(testThresholds())
	sample := &models.MetricSample{
		DeviceID:              "dev-1",
		CPUUsagePercent:       models.Float64(50.0),
		RAMUsagePercent:       models.Float64(60.0),
		MaxTemperatureCelsius: models.Float64(55.0),
	}

	if violations := evaluator.Evaluate(testDevice(), sample); len(violations) != 0 {
		t.Errorf("Expected no violations, got %d", len(violations))
	}
}

// TestThresholdMissingFields 测试缺失字段直接跳过
func TestThresholdMissingFields(t *testing.T) {
	evaluator := NewThresholdEvaluator(testThresholds())
	sample := &models.MetricSample{DeviceID: "dev-1"}

	if violations := evaluator.Evaluate(testDevice(), sample); len(violations) != 0 {
		t.Errorf("Expected no violations for empty sample, got %d", len(violations))
	}
}

// TestThresholdDiskPerPartition 测试磁盘按分区独立评估
func TestThresholdDiskPerPartition(t *testing.T) {
	evaluator := NewThresholdEvaluator(testThresholds())
	sample := &models.MetricSample{
		DeviceID: "dev-1",
		DiskPartitions: []models.DiskPartition{
			{MountPoint: "/", UsagePercent: 96.0},
			{MountPoint: "/data", UsagePercent: 88.0},
			{MountPoint: "/var", UsagePercent: 40.0},
		},
	}

	violations := evaluator.Evaluate(testDevice(), sample)
	if len(violations) != 2 {
		t.Fatalf("Expected 2 violations, got %d", len(violations))
	}
	if violations[0].Severity != models.SeverityCritical {
		t.Errorf("Expected critical for /, got %s", violations[0].Severity)
	}
	if violations[0].Metadata["mount_point"] != "/" {
		t.Errorf("Expected mount_point /, got %v", violations[0].Metadata["mount_point"])
	}
	if violations[1].Severity != models.SeverityHigh {
		t.Errorf("Expected high for /data, got %s", violations[1].Severity)
	}
}

// TestThresholdMultipleDomains 测试多个指标域同时越界
func TestThresholdMultipleDomains(t *testing.T) {
	evaluator := NewThresholdEvaluator(testThresholds())
	sample := &models.MetricSample{
		DeviceID:                 "dev-1",
		CPUUsagePercent:          models.Float64(97.0),
		RAMUsagePercent:          models.Float64(90.0),
		MaxTemperatureCelsius:    models.Float64(88.0),
		NetworkPacketLossPercent: models.Float64(12.0),
	}

	violations := evaluator.Evaluate(testDevice(), sample)
	if len(violations) != 4 {
		t.Fatalf("Expected 4 violations, got %d", len(violations))
	}

	severities := map[models.AlertType]models.AlertSeverity{}
	for _, v := range violations {
		severities[v.Type] = v.Severity
	}
	if severities[models.AlertTypeCPUHigh] != models.SeverityCritical {
		t.Error("CPU should be critical")
	}
	if severities[models.AlertTypeRAMHigh] != models.SeverityHigh {
		t.Error("RAM should be high")
	}
	if severities[models.AlertTypeTemperatureHigh] != models.SeverityCritical {
		t.Error("Temperature should be critical")
	}
	if severities[models.AlertTypeNetworkAnomaly] != models.SeverityCritical {
		t.Error("Packet loss should be critical")
	}
}
