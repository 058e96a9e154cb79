package analysis

import (
	"math"
)

// StandardScaler 按特征维度做均值方差归一化
type StandardScaler struct {
	Mean   [FeatureCount]float64 `json:"mean"`
	Std    [FeatureCount]float64 `json:"std"`
	Fitted bool                  `json:"fitted"`
}

// NewStandardScaler 创建未拟合的归一化器
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fit 在训练样本上拟合均值与标准差
func (s *StandardScaler) Fit(data []FeatureVector) {
	n := float64(len(data))
	if n == 0 {
		return
	}

	var mean [FeatureCount]float64
	for _, row := range data {
		for i, v := range row {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= n
	}

	var variance [FeatureCount]float64
	for _, row := range data {
		for i, v := range row {
			d := v - mean[i]
			variance[i] += d * d
		}
	}

	var std [FeatureCount]float64
	for i := range variance {
		std[i] = math.Sqrt(variance[i] / n)
		// 常量特征方差为0，避免除零
		if std[i] == 0 {
			std[i] = 1.0
		}
	}

	s.Mean = mean
	s.Std = std
	s.Fitted = true
}

// Transform 归一化单个特征向量
// 未拟合时原样返回
func (s *StandardScaler) Transform(x FeatureVector) FeatureVector {
	if !s.Fitted {
		return x
	}
	var out FeatureVector
	for i, v := range x {
		out[i] = (v - s.Mean[i]) / s.Std[i]
	}
	return out
}
