package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// 模型制品文件名
const (
	forestArtifact = "isolation_forest.json"
	scalerArtifact = "scaler.json"
)

// ArtifactStore 模型制品的磁盘持久化
// 两个制品文件都存在时才认为有可恢复的已训练状态
type ArtifactStore struct {
	dir string
}

// NewArtifactStore 创建制品存储
func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{dir: dir}
}

// Save 持久化模型与归一化器
func (a *ArtifactStore) Save(model Model, scaler *StandardScaler) error {
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return fmt.Errorf("创建模型目录失败: %v", err)
	}

	if err := writeJSON(filepath.Join(a.dir, forestArtifact), model); err != nil {
		return err
	}
	return writeJSON(filepath.Join(a.dir, scalerArtifact), scaler)
}

// Load 恢复模型与归一化器
// 任一制品缺失时返回错误，调用方以未训练状态启动
func (a *ArtifactStore) Load() (*IsolationForest, *StandardScaler, error) {
	forest := &IsolationForest{}
	if err := readJSON(filepath.Join(a.dir, forestArtifact), forest); err != nil {
		return nil, nil, err
	}
	if !forest.Trained() {
		return nil, nil, fmt.Errorf("模型制品未包含已训练的森林")
	}

	scaler := &StandardScaler{}
	if err := readJSON(filepath.Join(a.dir, scalerArtifact), scaler); err != nil {
		return nil, nil, err
	}
	return forest, scaler, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化制品失败: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入制品失败: %v", err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("解析制品失败: %v", err)
	}
	return nil
}
