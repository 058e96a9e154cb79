package analysis

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/han-fei/hostguard/internal/config"
)

// safeRanges 各特征的静态安全上界，用于解释异常成因
var safeRanges = map[string]float64{
	"cpu_usage_percent":           80,
	"ram_usage_percent":           85,
	"swap_usage_percent":          50,
	"max_temperature_celsius":     70,
	"network_latency_ms":          100,
	"network_packet_loss_percent": 2,
	"disk_read_bytes_per_sec":     200 * 1024 * 1024,
	"disk_write_bytes_per_sec":    200 * 1024 * 1024,
	"active_process_count":        500,
	"zombie_process_count":        5,
}

// maxTopFeatures 异常解释最多列出的特征数
const maxTopFeatures = 5

// FeatureDeviation 单个特征超出安全范围的程度
type FeatureDeviation struct {
	Value        float64 `json:"value"`
	SafeMax      float64 `json:"safe_max"`
	DeviationPct float64 `json:"deviation_pct"`
}

// AnomalyFeatures 异常成因说明
type AnomalyFeatures struct {
	TopFeatures       []string                    `json:"top_features"`
	FeatureDetails    map[string]FeatureDeviation `json:"feature_details,omitempty"`
	RansomwarePattern bool                        `json:"ransomware_pattern"`
	Detail            string                      `json:"detail,omitempty"`
}

// ScoreResult 评分结果
// Score为nil表示模型未就绪，无法给出判定
type ScoreResult struct {
	Score       *float64
	IsAnomalous bool
	Features    *AnomalyFeatures
}

// modelState 模型与归一化器的原子快照
// 两者总是一起替换，读方不会看到新旧混用
type modelState struct {
	model  Model
	scaler *StandardScaler
}

// Scorer 自适应异常评分器
// 状态机：untrained（缓冲训练样本）-> trained（归一化后评分）
type Scorer struct {
	mu         sync.RWMutex
	state      *modelState
	buffer     []FeatureVector
	retraining bool

	cfg       config.AnalysisConfig
	newModel  func() Model
	artifacts *ArtifactStore
}

// NewScorer 创建评分器，尝试从模型目录恢复已训练状态
func NewScorer(cfg config.AnalysisConfig) *Scorer {
	s := &Scorer{
		cfg:       cfg,
		artifacts: NewArtifactStore(cfg.ModelDir),
		newModel: func() Model {
			return NewIsolationForest(cfg.Forest.Trees, cfg.Forest.SubsampleSize, cfg.Forest.Seed)
		},
	}

	forest, scaler, err := s.artifacts.Load()
	if err != nil {
		log.Printf("未找到已持久化的模型，评分器以未训练状态启动: %v", err)
		return s
	}
	s.state = &modelState{model: forest, scaler: scaler}
	log.Printf("已从 %s 加载模型制品", cfg.ModelDir)
	return s
}

// NormalizeScore 将原始决策分数映射到[0,1]
// 原始分数越低越异常，映射后1表示高度异常
func NormalizeScore(raw float64) float64 {
	normalized := 0.5 - raw
	if normalized < 0 {
		return 0
	}
	if normalized > 1 {
		return 1
	}
	return normalized
}

// Trained 评分器是否已训练
func (s *Scorer) Trained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state != nil
}

// BufferLen 当前训练缓冲大小
func (s *Scorer) BufferLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buffer)
}

// Score 对特征向量评分
// 未训练时仅缓冲样本并返回无判定；缓冲达到下限时同步完成首次训练
func (s *Scorer) Score(features FeatureVector) ScoreResult {
	s.mu.Lock()
	s.buffer = append(s.buffer, features)
	state := s.state
	shouldTrain := state == nil && len(s.buffer) >= s.cfg.MinTrainingSamples && !s.retraining
	s.mu.Unlock()

	if state == nil {
		if shouldTrain {
			s.Retrain()
		}
		return ScoreResult{}
	}

	scaled := state.scaler.Transform(features)
	raw := state.model.DecisionFunction(scaled)
	score := NormalizeScore(raw)
	isAnomalous := score >= s.cfg.AlertThreshold

	result := ScoreResult{
		Score:       &score,
		IsAnomalous: isAnomalous,
	}
	if isAnomalous {
		result.Features = ExplainAnomalousFeatures(features)
	}
	return result
}

// Retrain 用缓冲样本重新拟合归一化器与模型，并原子替换快照
// 同一时间只允许一次重训，其余调用直接返回
func (s *Scorer) Retrain() {
	s.mu.Lock()
	if s.retraining || len(s.buffer) < s.cfg.MinTrainingSamples {
		s.mu.Unlock()
		return
	}
	s.retraining = true
	snapshot := make([]FeatureVector, len(s.buffer))
	copy(snapshot, s.buffer)
	s.mu.Unlock()

	// 拟合在锁外进行，评分请求继续使用旧快照
	scaler := NewStandardScaler()
	scaler.Fit(snapshot)

	scaled := make([]FeatureVector, len(snapshot))
	for i, row := range snapshot {
		scaled[i] = scaler.Transform(row)
	}

	model := s.newModel()
	model.Fit(scaled)

	s.mu.Lock()
	s.state = &modelState{model: model, scaler: scaler}
	// 只保留最近的样本，控制缓冲上限
	if len(s.buffer) > s.cfg.MaxTrainingBuffer {
		trimmed := make([]FeatureVector, s.cfg.MaxTrainingBuffer)
		copy(trimmed, s.buffer[len(s.buffer)-s.cfg.MaxTrainingBuffer:])
		s.buffer = trimmed
	}
	s.retraining = false
	s.mu.Unlock()

	if err := s.artifacts.Save(model, scaler); err != nil {
		log.Printf("持久化模型制品失败: %v", err)
	}
	log.Printf("模型重训完成，训练样本数: %d", len(snapshot))
}

// Run 周期性重训循环
func (s *Scorer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RetrainInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Retrain()
		case <-ctx.Done():
			return
		}
	}
}

// ExplainAnomalousFeatures 找出超出安全范围的特征
// 按偏离百分比排序，最多返回前5个
func ExplainAnomalousFeatures(features FeatureVector) *AnomalyFeatures {
	details := make(map[string]FeatureDeviation)
	var names []string

	for i, name := range FeatureNames {
		high, ok := safeRanges[name]
		if !ok {
			continue
		}
		value := features[i]
		if value <= high {
			continue
		}

		deviation := 100.0
		if high > 0 {
			deviation = (value - high) / high * 100
		}
		details[name] = FeatureDeviation{
			Value:        value,
			SafeMax:      high,
			DeviationPct: deviation,
		}
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		return details[names[i]].DeviationPct > details[names[j]].DeviationPct
	})
	if len(names) > maxTopFeatures {
		for _, name := range names[maxTopFeatures:] {
			delete(details, name)
		}
		names = names[:maxTopFeatures]
	}

	return &AnomalyFeatures{
		TopFeatures:    names,
		FeatureDetails: details,
	}
}
