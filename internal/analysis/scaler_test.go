package analysis

import (
	"math"
	"testing"
)

// TestScalerFitTransform 测试归一化器拟合与变换
func TestScalerFitTransform(t *testing.T) {
	data := []FeatureVector{
		{10, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{20, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{30, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	}

	scaler := NewStandardScaler()
	scaler.Fit(data)

	if !scaler.Fitted {
		t.Fatal("Scaler should be fitted")
	}
	if math.Abs(scaler.Mean[0]-20.0) > 1e-9 {
		t.Errorf("Expected mean 20.0, got %v", scaler.Mean[0])
	}

	// 均值样本变换后应为0
	out := scaler.Transform(FeatureVector{20, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	if math.Abs(out[0]) > 1e-9 {
		t.Errorf("Expected 0 for mean sample, got %v", out[0])
	}
}

// TestScalerZeroStd 测试零方差特征不产生除零
func TestScalerZeroStd(t *testing.T) {
	data := []FeatureVector{
		{5, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{5, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	}

	scaler := NewStandardScaler()
	scaler.Fit(data)

	out := scaler.Transform(FeatureVector{5, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("Feature %d: got non-finite value %v", i, v)
		}
	}
}

// TestScalerUnfitted 测试未拟合时透传输入
func TestScalerUnfitted(t *testing.T) {
	scaler := NewStandardScaler()
	in := FeatureVector{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	out := scaler.Transform(in)
	if out != in {
		t.Errorf("Unfitted scaler should return input unchanged, got %v", out)
	}
}
