package analysis

import (
	"fmt"

	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
)

// ThresholdViolation 一次静态阈值越界
type ThresholdViolation struct {
	Type           models.AlertType
	Severity       models.AlertSeverity
	Title          string
	Message        string
	MetricValue    float64
	ThresholdValue float64
	Metadata       map[string]interface{}
}

// ThresholdEvaluator 静态阈值评估器
// 每个指标域只产生最高一级的越界，磁盘按分区逐个检查
type ThresholdEvaluator struct {
	thresholds config.ThresholdsConfig
}

// NewThresholdEvaluator 创建阈值评估器
func NewThresholdEvaluator(thresholds config.ThresholdsConfig) *ThresholdEvaluator {
	return &ThresholdEvaluator{thresholds: thresholds}
}

// Evaluate 对一次样本做全部静态阈值检查
// 缺失的指标域直接跳过，不视为越界
func (e *ThresholdEvaluator) Evaluate(device *models.Device, sample *models.MetricSample) []ThresholdViolation {
	var violations []ThresholdViolation

	// CPU
	if sample.CPUUsagePercent != nil {
		cpu := *sample.CPUUsagePercent
		if cpu >= e.thresholds.CPUCritical {
			violations = append(violations, ThresholdViolation{
				Type:           models.AlertTypeCPUHigh,
				Severity:       models.SeverityCritical,
				Title:          fmt.Sprintf("Critical CPU Usage: %s", device.Hostname),
				Message:        fmt.Sprintf("CPU usage at %.1f%% (threshold: %g%%)", cpu, e.thresholds.CPUCritical),
				MetricValue:    cpu,
				ThresholdValue: e.thresholds.CPUCritical,
			})
		} else if cpu >= e.thresholds.CPUHigh {
			violations = append(violations, ThresholdViolation{
				Type:           models.AlertTypeCPUHigh,
				Severity:       models.SeverityHigh,
				Title:          fmt.Sprintf("High CPU Usage: %s", device.Hostname),
				Message:        fmt.Sprintf("CPU usage at %.1f%%", cpu),
				MetricValue:    cpu,
				ThresholdValue: e.thresholds.CPUHigh,
			})
		}
	}

	// 内存
	if sample.RAMUsagePercent != nil {
		ram := *sample.RAMUsagePercent
		if ram >= e.thresholds.RAMCritical {
			violations = append(violations, ThresholdViolation{
				Type:           models.AlertTypeRAMHigh,
				Severity:       models.SeverityCritical,
				Title:          fmt.Sprintf("Critical RAM Usage: %s", device.Hostname),
				Message:        fmt.Sprintf("RAM usage at %.1f%%", ram),
				MetricValue:    ram,
				ThresholdValue: e.thresholds.RAMCritical,
			})
		} else if ram >= e.thresholds.RAMHigh {
			violations = append(violations, ThresholdViolation{
				Type:           models.AlertTypeRAMHigh,
				Severity:       models.SeverityHigh,
				Title:          fmt.Sprintf("High RAM Usage: %s", device.Hostname),
				Message:        fmt.Sprintf("RAM usage at %.1f%%", ram),
				MetricValue:    ram,
				ThresholdValue: e.thresholds.RAMHigh,
			})
		}
	}

	// 磁盘，逐分区
	for _, partition := range sample.DiskPartitions {
		usage := partition.UsagePercent
		if usage >= e.thresholds.DiskCritical {
			violations = append(violations, ThresholdViolation{
				Type:           models.AlertTypeDiskHigh,
				Severity:       models.SeverityCritical,
				Title:          fmt.Sprintf("Critical Disk Usage: %s", device.Hostname),
				Message:        fmt.Sprintf("Disk %s at %.1f%%", partition.MountPoint, usage),
				MetricValue:    usage,
				ThresholdValue: e.thresholds.DiskCritical,
				Metadata:       map[string]interface{}{"mount_point": partition.MountPoint},
			})
		} else if usage >= e.thresholds.DiskHigh {
			violations = append(violations, ThresholdViolation{
				Type:           models.AlertTypeDiskHigh,
				Severity:       models.SeverityHigh,
				Title:          fmt.Sprintf("High Disk Usage: %s", device.Hostname),
				Message:        fmt.Sprintf("Disk %s at %.1f%%", partition.MountPoint, usage),
				MetricValue:    usage,
				ThresholdValue: e.thresholds.DiskHigh,
				Metadata:       map[string]interface{}{"mount_point": partition.MountPoint},
			})
		}
	}

	// 温度
	if sample.MaxTemperatureCelsius != nil {
		temp := *sample.MaxTemperatureCelsius
		if temp >= e.thresholds.TemperatureCritical {
			violations = append(violations, ThresholdViolation{
				Type:           models.AlertTypeTemperatureHigh,
				Severity:       models.SeverityCritical,
				Title:          fmt.Sprintf("Critical Temperature: %s", device.Hostname),
				Message:        fmt.Sprintf("Temperature at %.1f°C", temp),
				MetricValue:    temp,
				ThresholdValue: e.thresholds.TemperatureCritical,
			})
		} else if temp >= e.thresholds.TemperatureHigh {
			violations = append(violations, ThresholdViolation{
				Type:           models.AlertTypeTemperatureHigh,
				Severity:       models.SeverityHigh,
				Title:          fmt.Sprintf("High Temperature: %s", device.Hostname),
				Message:        fmt.Sprintf("Temperature at %.1f°C", temp),
				MetricValue:    temp,
				ThresholdValue: e.thresholds.TemperatureHigh,
			})
		}
	}

	// 丢包率
	if sample.NetworkPacketLossPercent != nil {
		loss := *sample.NetworkPacketLossPercent
		if loss >= e.thresholds.PacketLossCritical {
			violations = append(violations, ThresholdViolation{
				Type:           models.AlertTypeNetworkAnomaly,
				Severity:       models.SeverityCritical,
				Title:          fmt.Sprintf("Critical Packet Loss: %s", device.Hostname),
				Message:        fmt.Sprintf("Packet loss at %.1f%%", loss),
				MetricValue:    loss,
				ThresholdValue: e.thresholds.PacketLossCritical,
			})
		} else if loss >= e.thresholds.PacketLossHigh {
			violations = append(violations, ThresholdViolation{
				Type:           models.AlertTypeNetworkAnomaly,
				Severity:       models.SeverityHigh,
				Title:          fmt.Sprintf("High Packet Loss: %s", device.Hostname),
				Message:        fmt.Sprintf("Packet loss at %.1f%%", loss),
				MetricValue:    loss,
				ThresholdValue: e.thresholds.PacketLossHigh,
			})
		}
	}

	return violations
}
