package analysis

import (
	"math/rand"
	"testing"
)

// normalTrainingData 生成集中在低值区间的正常样本
func normalTrainingData(n int, seed int64) []FeatureVector {
	rng := rand.New(rand.NewSource(seed))
	data := make([]FeatureVector, n)
	for i := range data {
		data[i] = FeatureVector{
			20 + rng.Float64()*10, // cpu
			40 + rng.Float64()*10, // ram
			rng.Float64() * 5,     // swap
			45 + rng.Float64()*10, // temp
			5 + rng.Float64()*10,  // latency
			rng.Float64() * 0.5,   // packet loss
			rng.Float64() * 1e6,   // disk read
			rng.Float64() * 1e6,   // disk write
			100 + rng.Float64()*50,
			rng.Float64() * 2,
		}
	}
	return data
}

// TestForestDeterminism 测试相同种子产生相同评分
func TestForestDeterminism(t *testing.T) {
	data := normalTrainingData(200, 1)

	f1 := NewIsolationForest(50, 128, 42)
	f1.Fit(data)
	f2 := NewIsolationForest(50, 128, 42)
	f2.Fit(data)

	probe := FeatureVector{99, 99, 99, 99, 99, 99, 1e9, 1e9, 9999, 99}
	if f1.DecisionFunction(probe) != f2.DecisionFunction(probe) {
		t.Error("Same seed should produce identical scores")
	}
}

// TestForestOutlierScoresLower 测试离群点的决策值更低
func TestForestOutlierScoresLower(t *testing.T) {
	data := normalTrainingData(300, 7)

	forest := NewIsolationForest(100, 256, 42)
	forest.Fit(data)

	if !forest.Trained() {
		t.Fatal("Forest should be trained after Fit")
	}

	inlier := data[0]
	outlier := FeatureVector{100, 100, 100, 95, 500, 50, 1e9, 1e9, 5000, 100}

	inlierRaw := forest.DecisionFunction(inlier)
	outlierRaw := forest.DecisionFunction(outlier)

	if outlierRaw >= inlierRaw {
		t.Errorf("Outlier raw score %v should be lower than inlier %v", outlierRaw, inlierRaw)
	}

	// 归一化后离群点的分数应更高
	if NormalizeScore(outlierRaw) <= NormalizeScore(inlierRaw) {
		t.Errorf("Normalized outlier score should exceed inlier score")
	}
}

// TestForestUntrained 测试未训练状态
func TestForestUntrained(t *testing.T) {
	forest := NewIsolationForest(10, 32, 1)
	if forest.Trained() {
		t.Error("New forest should not be trained")
	}
}

// TestAveragePathLength 测试路径长度修正项
func TestAveragePathLength(t *testing.T) {
	if got := averagePathLength(1); got != 0 {
		t.Errorf("c(1) should be 0, got %v", got)
	}
	// c(n)随n单调增长
	if averagePathLength(256) <= averagePathLength(16) {
		t.Error("averagePathLength should grow with n")
	}
}
