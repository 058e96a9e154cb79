package analysis

import (
	"testing"

	"github.com/han-fei/hostguard/internal/models"
)

// TestExtractFeaturesFull 测试完整样本的特征提取
func TestExtractFeaturesFull(t *testing.T) {
	sample := &models.MetricSample{
		DeviceID:                 "dev-1",
		CPUUsagePercent:          models.Float64(42.5),
		RAMUsagePercent:          models.Float64(60.0),
		SwapUsagePercent:         models.Float64(10.0),
		MaxTemperatureCelsius:    models.Float64(55.0),
		NetworkLatencyMs:         models.Float64(12.0),
		NetworkPacketLossPercent: models.Float64(0.5),
		DiskReadBytesPerSec:      models.Float64(1024),
		DiskWriteBytesPerSec:     models.Float64(2048),
		ActiveProcessCount:       models.Int(120),
		ZombieProcessCount:       models.Int(2),
	}

	features := ExtractFeatures(sample)

	expected := FeatureVector{42.5, 60.0, 10.0, 55.0, 12.0, 0.5, 1024, 2048, 120, 2}
	if features != expected {
		t.Errorf("Expected %v, got %v", expected, features)
	}
}

// TestExtractFeaturesEmpty 测试空样本的默认值替换
func TestExtractFeaturesEmpty(t *testing.T) {
	features := ExtractFeatures(&models.MetricSample{DeviceID: "dev-1"})

	for i, v := range features {
		if v != 0.0 {
			t.Errorf("Feature %s: expected 0.0, got %v", FeatureNames[i], v)
		}
	}
}

// TestPacketLossFromInterfaces 测试用接口计数器推算丢包率
func TestPacketLossFromInterfaces(t *testing.T) {
	sample := &models.MetricSample{
		DeviceID: "dev-1",
		NetworkInterfaces: []models.NetworkInterface{
			{Name: "eth0", ErrorsIn: 5, DropsOut: 5, PacketsSent: 1000},
		},
	}

	features := ExtractFeatures(sample)

	// (5+5)/1000*100 = 1.0
	if features[5] != 1.0 {
		t.Errorf("Expected packet loss 1.0, got %v", features[5])
	}

	// 直接上报的值优先于计数器推算
	sample.NetworkPacketLossPercent = models.Float64(3.0)
	features = ExtractFeatures(sample)
	if features[5] != 3.0 {
		t.Errorf("Expected reported packet loss 3.0, got %v", features[5])
	}
}

// TestMaxDiskUsagePercent 测试最大分区使用率
func TestMaxDiskUsagePercent(t *testing.T) {
	sample := &models.MetricSample{DeviceID: "dev-1"}
	if got := MaxDiskUsagePercent(sample); got != 0.0 {
		t.Errorf("Expected 0.0 for no partitions, got %v", got)
	}

	sample.DiskPartitions = []models.DiskPartition{
		{MountPoint: "/", UsagePercent: 40.0},
		{MountPoint: "/data", UsagePercent: 91.5},
		{MountPoint: "/var", UsagePercent: 70.0},
	}
	if got := MaxDiskUsagePercent(sample); got != 91.5 {
		t.Errorf("Expected 91.5, got %v", got)
	}
}
