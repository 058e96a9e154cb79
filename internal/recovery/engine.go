package recovery

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/han-fei/hostguard/internal/alerting"
	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
	"github.com/han-fei/hostguard/internal/storage"
)

// Engine 自动恢复引擎
// 周期性扫描可恢复的服务健康记录，按键做有上限的恢复尝试，
// 尝试耗尽后升级为critical告警并停止自动恢复
type Engine struct {
	cfg      config.RecoveryConfig
	health   storage.ServiceHealthStore
	registry storage.DeviceRegistry
	factory  *alerting.Factory
	executor CommandExecutor

	mu        sync.Mutex
	attempts  map[models.ServiceKey]int
	escalated map[models.ServiceKey]bool
	inFlight  map[models.ServiceKey]bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine 创建恢复引擎
func NewEngine(cfg config.RecoveryConfig, health storage.ServiceHealthStore, registry storage.DeviceRegistry, factory *alerting.Factory, executor CommandExecutor) *Engine {
	return &Engine{
		cfg:       cfg,
		health:    health,
		registry:  registry,
		factory:   factory,
		executor:  executor,
		attempts:  make(map[models.ServiceKey]int),
		escalated: make(map[models.ServiceKey]bool),
		inFlight:  make(map[models.ServiceKey]bool),
		stopChan:  make(chan struct{}),
	}
}

// Start 启动轮询循环
func (e *Engine) Start() {
	if !e.cfg.Enabled {
		log.Printf("自动恢复引擎未启用")
		return
	}

	e.wg.Add(1)
	go e.run()
	log.Printf("自动恢复引擎已启动: interval=%v maxAttempts=%d", e.cfg.PollInterval.Std(), e.cfg.MaxAttempts)
}

// Stop 停止引擎，等待在途恢复尝试结束
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})
	e.wg.Wait()
	log.Printf("自动恢复引擎已停止")
}

// ResetAttempts 外部人工处理后重置某个服务的尝试状态
func (e *Engine) ResetAttempts(key models.ServiceKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.attempts, key)
	delete(e.escalated, key)
}

// Attempts 返回某个服务当前的尝试次数
func (e *Engine) Attempts(key models.ServiceKey) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts[key]
}

func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.PollInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.pollOnce()
		case <-e.stopChan:
			return
		}
	}
}

// pollOnce 执行一轮扫描
func (e *Engine) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PollInterval.Std())
	defer cancel()

	records, err := e.health.ListRecoverable(ctx)
	if err != nil {
		log.Printf("查询可恢复服务失败: %v", err)
		return
	}

	for _, record := range records {
		e.consider(ctx, record)
	}
}

// consider 判定单条记录是否发起恢复尝试
func (e *Engine) consider(ctx context.Context, record *models.ServiceHealth) {
	if !e.deviceEligible(ctx, record.DeviceID) {
		return
	}

	key := record.Key()

	e.mu.Lock()
	if e.inFlight[key] {
		e.mu.Unlock()
		return
	}
	if e.attempts[key] >= e.cfg.MaxAttempts {
		alreadyEscalated := e.escalated[key]
		e.escalated[key] = true
		e.mu.Unlock()
		if !alreadyEscalated {
			e.escalate(record)
		}
		return
	}
	e.attempts[key]++
	attempt := e.attempts[key]
	e.inFlight[key] = true
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.inFlight, key)
			e.mu.Unlock()
		}()
		e.attemptRecovery(record, attempt)
	}()
}

// deviceEligible 设备必须在线且未被隔离
func (e *Engine) deviceEligible(ctx context.Context, deviceID string) bool {
	if e.registry == nil {
		return true
	}
	device, err := e.registry.GetDevice(ctx, deviceID)
	if err != nil || device == nil {
		log.Printf("查询设备失败，跳过恢复: device=%s err=%v", deviceID, err)
		return false
	}
	return device.IsActive && !device.IsIsolated
}

// attemptRecovery 执行一次恢复尝试
// 先等待固定延迟让故障状态稳定，再执行恢复命令
func (e *Engine) attemptRecovery(record *models.ServiceHealth, attempt int) {
	key := record.Key()
	log.Printf("开始恢复尝试: device=%s service=%s attempt=%d/%d",
		key.DeviceID, key.ServiceName, attempt, e.cfg.MaxAttempts)

	select {
	case <-time.After(e.cfg.RetryDelay.Std()):
	case <-e.stopChan:
		// 停机时放弃未开始执行的尝试，计数回退
		e.mu.Lock()
		e.attempts[key]--
		e.mu.Unlock()
		return
	}

	command := record.RecoveryCommand
	if command == "" {
		command = DefaultRecoveryCommand(record.ServiceName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CommandTimeout.Std())
	defer cancel()

	result, err := e.executor.Run(ctx, command)
	if err != nil {
		e.onFailure(record, attempt, command, err.Error())
		return
	}
	if result.ExitCode != 0 {
		diag := result.Stderr
		if diag == "" {
			diag = result.Stdout
		}
		e.onFailure(record, attempt, command,
			fmt.Sprintf("exit code %d: %s", result.ExitCode, diag))
		return
	}

	e.onSuccess(record, attempt, command)
}

// onSuccess 恢复成功：清零计数、标记服务健康、发info告警
func (e *Engine) onSuccess(record *models.ServiceHealth, attempt int, command string) {
	key := record.Key()
	log.Printf("恢复成功: device=%s service=%s attempt=%d", key.DeviceID, key.ServiceName, attempt)

	e.mu.Lock()
	delete(e.attempts, key)
	delete(e.escalated, key)
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	record.Status = models.ServiceStateRunning
	record.ConsecutiveFailures = 0
	record.LastCheckedAt = time.Now().UTC()
	if err := e.health.UpsertServiceHealth(ctx, record); err != nil {
		log.Printf("更新服务健康记录失败: device=%s service=%s err=%v", key.DeviceID, key.ServiceName, err)
	}

	_, err := e.factory.Create(ctx, alerting.CreateParams{
		DeviceID: record.DeviceID,
		Type:     models.AlertTypeRecoverySuccess,
		Severity: models.SeverityInfo,
		Title:    fmt.Sprintf("Service Recovered: %s", record.ServiceName),
		Message: fmt.Sprintf("Service %s on device %s was automatically recovered (attempt %d/%d)",
			record.ServiceName, record.DeviceID, attempt, e.cfg.MaxAttempts),
		Metadata: map[string]interface{}{
			"service_name": record.ServiceName,
			"command":      command,
			"attempt":      attempt,
		},
	})
	if err != nil {
		log.Printf("创建恢复成功告警失败: %v", err)
	}
}

// onFailure 恢复失败：保留计数等待下轮，发high告警带诊断信息
func (e *Engine) onFailure(record *models.ServiceHealth, attempt int, command, diagnostic string) {
	key := record.Key()
	log.Printf("恢复失败: device=%s service=%s attempt=%d/%d diag=%s",
		key.DeviceID, key.ServiceName, attempt, e.cfg.MaxAttempts, diagnostic)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := e.factory.Create(ctx, alerting.CreateParams{
		DeviceID: record.DeviceID,
		Type:     models.AlertTypeRecoveryFailed,
		Severity: models.SeverityHigh,
		Title:    fmt.Sprintf("Service Recovery Failed: %s", record.ServiceName),
		Message: fmt.Sprintf("Recovery attempt %d/%d for service %s on device %s failed: %s",
			attempt, e.cfg.MaxAttempts, record.ServiceName, record.DeviceID, diagnostic),
		Metadata: map[string]interface{}{
			"service_name": record.ServiceName,
			"command":      command,
			"attempt":      attempt,
			"diagnostic":   diagnostic,
		},
	})
	if err != nil {
		log.Printf("创建恢复失败告警失败: %v", err)
	}
}

// escalate 尝试耗尽后升级，每个键只升级一次
func (e *Engine) escalate(record *models.ServiceHealth) {
	key := record.Key()
	log.Printf("恢复尝试耗尽，升级告警: device=%s service=%s", key.DeviceID, key.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := e.factory.Create(ctx, alerting.CreateParams{
		DeviceID: record.DeviceID,
		Type:     models.AlertTypeServiceDown,
		Severity: models.SeverityCritical,
		Title:    fmt.Sprintf("Service Down, Manual Intervention Required: %s", record.ServiceName),
		Message: fmt.Sprintf("Service %s on device %s failed to recover after %d attempts. Automatic recovery is paused until the attempt counter is reset.",
			record.ServiceName, record.DeviceID, e.cfg.MaxAttempts),
		Metadata: map[string]interface{}{
			"service_name": record.ServiceName,
			"max_attempts": e.cfg.MaxAttempts,
		},
	})
	if err != nil {
		log.Printf("创建升级告警失败: %v", err)
	}
}
