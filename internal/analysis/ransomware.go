package analysis

import (
	"fmt"
	"strings"

	"github.com/han-fei/hostguard/internal/models"
)

// 勒索软件模式检测阈值
const (
	// RansomwareDiskWriteBytes 磁盘写入速率高水位（500 MiB/s）
	RansomwareDiskWriteBytes = 500 * 1024 * 1024
	// RansomwareCPUPercent 加密行为伴随的CPU高水位
	RansomwareCPUPercent = 70.0
	// RansomwareZombieCount 僵尸进程数量高水位
	RansomwareZombieCount = 20
)

// DetectRansomwarePattern 基于规则的勒索软件模式检测
// 独立于学习模型，在模型评分之前执行
// 至少两个指示器同时命中才判定为勒索软件模式
func DetectRansomwarePattern(sample *models.MetricSample) (bool, string) {
	var indicators []string

	// 极端磁盘写入
	if sample.DiskWriteBytesPerSec != nil && *sample.DiskWriteBytesPerSec > RansomwareDiskWriteBytes {
		indicators = append(indicators,
			fmt.Sprintf("Extreme disk write: %.0f MB/s", *sample.DiskWriteBytesPerSec/(1024*1024)))
	}

	// 同时伴随高CPU
	if sample.CPUUsagePercent != nil && *sample.CPUUsagePercent > RansomwareCPUPercent {
		indicators = append(indicators,
			fmt.Sprintf("Elevated CPU: %.1f%%", *sample.CPUUsagePercent))
	}

	// 大量僵尸进程，可能是恶意程序在批量创建和终止进程
	if sample.ZombieProcessCount != nil && *sample.ZombieProcessCount > RansomwareZombieCount {
		indicators = append(indicators,
			fmt.Sprintf("High zombie count: %d", *sample.ZombieProcessCount))
	}

	if len(indicators) >= 2 {
		return true, strings.Join(indicators, "; ")
	}
	return false, ""
}
