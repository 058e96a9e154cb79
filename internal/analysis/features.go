// Package analysis 实现指标样本的特征提取、异常评分与阈值评估
package analysis

import (
	"github.com/han-fei/hostguard/internal/models"
)

// FeatureCount 特征向量长度
const FeatureCount = 10

// FeatureNames 特征名称，顺序即特征向量顺序
var FeatureNames = [FeatureCount]string{
	"cpu_usage_percent",
	"ram_usage_percent",
	"swap_usage_percent",
	"max_temperature_celsius",
	"network_latency_ms",
	"network_packet_loss_percent",
	"disk_read_bytes_per_sec",
	"disk_write_bytes_per_sec",
	"active_process_count",
	"zombie_process_count",
}

// FeatureVector 定长特征向量
type FeatureVector [FeatureCount]float64

// ExtractFeatures 从指标样本提取特征向量
// 纯函数，缺失字段替换为安全默认值，永不失败
func ExtractFeatures(sample *models.MetricSample) FeatureVector {
	return FeatureVector{
		floatOrZero(sample.CPUUsagePercent),
		floatOrZero(sample.RAMUsagePercent),
		floatOrZero(sample.SwapUsagePercent),
		floatOrZero(sample.MaxTemperatureCelsius),
		floatOrZero(sample.NetworkLatencyMs),
		packetLossPercent(sample),
		floatOrZero(sample.DiskReadBytesPerSec),
		floatOrZero(sample.DiskWriteBytesPerSec),
		intOrZero(sample.ActiveProcessCount),
		intOrZero(sample.ZombieProcessCount),
	}
}

// MaxDiskUsagePercent 返回全部分区中的最大使用率，无分区时为0
func MaxDiskUsagePercent(sample *models.MetricSample) float64 {
	max := 0.0
	for _, p := range sample.DiskPartitions {
		if p.UsagePercent > max {
			max = p.UsagePercent
		}
	}
	return max
}

// packetLossPercent 丢包率特征
// 样本未直接上报时，用接口计数器按采集端口径推算
func packetLossPercent(sample *models.MetricSample) float64 {
	if sample.NetworkPacketLossPercent != nil {
		return *sample.NetworkPacketLossPercent
	}
	if len(sample.NetworkInterfaces) == 0 {
		return 0.0
	}

	var errorsIn, dropsOut, packetsSent uint64
	for _, iface := range sample.NetworkInterfaces {
		errorsIn += iface.ErrorsIn
		dropsOut += iface.DropsOut
		packetsSent += iface.PacketsSent
	}
	return models.PacketLossFromCounters(errorsIn, dropsOut, packetsSent)
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0.0
	}
	return *v
}

func intOrZero(v *int) float64 {
	if v == nil {
		return 0.0
	}
	return float64(*v)
}
