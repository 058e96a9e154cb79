package analysis

import (
	"math"
	"math/rand"
)

// Model 异常评分模型接口，可替换评分提供方
// DecisionFunction返回原始分数，越低越异常
type Model interface {
	Fit(data []FeatureVector)
	DecisionFunction(x FeatureVector) float64
	Trained() bool
}

// eulerMascheroni 调和数近似用常数
const eulerMascheroni = 0.5772156649

// treeNode 隔离树节点
// Left为nil时是外部节点，Size记录落入该节点的样本数
type treeNode struct {
	SplitFeature int       `json:"f"`
	SplitValue   float64   `json:"v"`
	Left         *treeNode `json:"l,omitempty"`
	Right        *treeNode `json:"r,omitempty"`
	Size         int       `json:"n"`
}

// IsolationForest 隔离森林异常检测模型
// 固定随机种子保证重复训练结果可复现
type IsolationForest struct {
	NumTrees      int         `json:"num_trees"`
	SubsampleSize int         `json:"subsample_size"`
	Seed          int64       `json:"seed"`
	Trees         []*treeNode `json:"trees,omitempty"`
}

// NewIsolationForest 创建未训练的隔离森林
func NewIsolationForest(numTrees, subsampleSize int, seed int64) *IsolationForest {
	return &IsolationForest{
		NumTrees:      numTrees,
		SubsampleSize: subsampleSize,
		Seed:          seed,
	}
}

// Trained 是否已训练
func (f *IsolationForest) Trained() bool {
	return len(f.Trees) > 0
}

// Fit 在训练数据上构建隔离树
func (f *IsolationForest) Fit(data []FeatureVector) {
	if len(data) == 0 {
		return
	}

	rng := rand.New(rand.NewSource(f.Seed))

	psi := f.SubsampleSize
	if psi > len(data) {
		psi = len(data)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(psi)))) + 1

	trees := make([]*treeNode, 0, f.NumTrees)
	for t := 0; t < f.NumTrees; t++ {
		// 随机抽取子样本
		sample := make([]FeatureVector, psi)
		for i := range sample {
			sample[i] = data[rng.Intn(len(data))]
		}
		trees = append(trees, buildTree(sample, 0, maxDepth, rng))
	}
	f.Trees = trees
}

// buildTree 递归构建隔离树
func buildTree(data []FeatureVector, depth, maxDepth int, rng *rand.Rand) *treeNode {
	if depth >= maxDepth || len(data) <= 1 {
		return &treeNode{Size: len(data)}
	}

	feature := rng.Intn(FeatureCount)
	min, max := data[0][feature], data[0][feature]
	for _, row := range data {
		if row[feature] < min {
			min = row[feature]
		}
		if row[feature] > max {
			max = row[feature]
		}
	}
	// 该维度无区分度时换不了分裂点，直接收尾
	if min == max {
		return &treeNode{Size: len(data)}
	}

	split := min + rng.Float64()*(max-min)

	var left, right []FeatureVector
	for _, row := range data {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &treeNode{
		SplitFeature: feature,
		SplitValue:   split,
		Left:         buildTree(left, depth+1, maxDepth, rng),
		Right:        buildTree(right, depth+1, maxDepth, rng),
		Size:         len(data),
	}
}

// pathLength 计算样本在单棵树中的路径长度
func pathLength(node *treeNode, x FeatureVector, depth float64) float64 {
	if node.Left == nil {
		// 外部节点用平均路径长度修正
		return depth + averagePathLength(node.Size)
	}
	if x[node.SplitFeature] < node.SplitValue {
		return pathLength(node.Left, x, depth+1)
	}
	return pathLength(node.Right, x, depth+1)
}

// averagePathLength BST失败查找的平均路径长度c(n)
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + eulerMascheroni
	return 2*h - 2*float64(n-1)/float64(n)
}

// DecisionFunction 计算原始异常分数
// 正常样本接近0，异常样本趋向-0.5，上界为0.5
func (f *IsolationForest) DecisionFunction(x FeatureVector) float64 {
	if !f.Trained() {
		return 0
	}

	total := 0.0
	for _, tree := range f.Trees {
		total += pathLength(tree, x, 0)
	}
	avgPath := total / float64(len(f.Trees))

	c := averagePathLength(f.SubsampleSize)
	if c == 0 {
		return 0
	}

	// 异常度s∈(0,1]，路径越短越接近1
	s := math.Pow(2, -avgPath/c)
	return 0.5 - s
}
