package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/han-fei/hostguard/internal/alerting"
	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
	"github.com/han-fei/hostguard/internal/storage"
)

// fakeExecutor 可配置结果的命令执行器
type fakeExecutor struct {
	mu       sync.Mutex
	commands []string
	exitCode int
	err      error
}

func (e *fakeExecutor) Run(ctx context.Context, command string) (*CommandResult, error) {
	e.mu.Lock()
	e.commands = append(e.commands, command)
	e.mu.Unlock()
	if e.err != nil {
		return &CommandResult{}, e.err
	}
	return &CommandResult{ExitCode: e.exitCode, Stderr: "boom"}, nil
}

func (e *fakeExecutor) runCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.commands)
}

func testRecoveryConfig() config.RecoveryConfig {
	return config.RecoveryConfig{
		Enabled:        true,
		PollInterval:   config.Duration(time.Minute),
		RetryDelay:     config.Duration(time.Millisecond),
		CommandTimeout: config.Duration(time.Second),
		MaxAttempts:    3,
	}
}

func newTestEngine(t *testing.T, cfg config.RecoveryConfig, executor CommandExecutor) (*Engine, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	store.UpsertDevice(context.Background(), &models.Device{
		ID: "dev-1", Hostname: "web-01", IsActive: true,
	})
	store.UpsertServiceHealth(context.Background(), &models.ServiceHealth{
		DeviceID:            "dev-1",
		ServiceName:         "nginx",
		Status:              models.ServiceStateStopped,
		ConsecutiveFailures: 2,
		AutoRecoveryEnabled: true,
	})

	factory := alerting.NewFactory(store, nil, nil)
	return NewEngine(cfg, store, store, factory, executor), store
}

func alertsOfType(store *storage.MemoryStorage, alertType models.AlertType) []*models.Alert {
	var out []*models.Alert
	for _, a := range store.Alerts() {
		if a.Type == alertType {
			out = append(out, a)
		}
	}
	return out
}

// TestRecoverySuccess 测试恢复成功后清零计数并标记服务健康
func TestRecoverySuccess(t *testing.T) {
	executor := &fakeExecutor{exitCode: 0}
	engine, store := newTestEngine(t, testRecoveryConfig(), executor)

	engine.pollOnce()
	engine.wg.Wait()

	if executor.runCount() != 1 {
		t.Fatalf("Expected 1 command execution, got %d", executor.runCount())
	}
	// 未配置恢复命令时使用默认重启命令
	if executor.commands[0] != "systemctl restart nginx" {
		t.Errorf("Unexpected command: %q", executor.commands[0])
	}

	key := models.ServiceKey{DeviceID: "dev-1", ServiceName: "nginx"}
	if engine.Attempts(key) != 0 {
		t.Errorf("Attempt counter should be reset, got %d", engine.Attempts(key))
	}

	record, err := store.GetServiceHealth(context.Background(), key)
	if err != nil {
		t.Fatalf("GetServiceHealth failed: %v", err)
	}
	if record.Status != models.ServiceStateRunning || record.ConsecutiveFailures != 0 {
		t.Errorf("Record should be healthy, got status=%s failures=%d",
			record.Status, record.ConsecutiveFailures)
	}

	success := alertsOfType(store, models.AlertTypeRecoverySuccess)
	if len(success) != 1 {
		t.Fatalf("Expected 1 recovery_success alert, got %d", len(success))
	}
	if success[0].Severity != models.SeverityInfo {
		t.Errorf("Expected info severity, got %s", success[0].Severity)
	}
}

// TestRecoveryFailure 测试恢复失败保留计数并发high告警
func TestRecoveryFailure(t *testing.T) {
	executor := &fakeExecutor{exitCode: 1}
	engine, store := newTestEngine(t, testRecoveryConfig(), executor)

	engine.pollOnce()
	engine.wg.Wait()

	key := models.ServiceKey{DeviceID: "dev-1", ServiceName: "nginx"}
	if engine.Attempts(key) != 1 {
		t.Errorf("Attempt counter should stay at 1, got %d", engine.Attempts(key))
	}

	failed := alertsOfType(store, models.AlertTypeRecoveryFailed)
	if len(failed) != 1 {
		t.Fatalf("Expected 1 recovery_failed alert, got %d", len(failed))
	}
	if failed[0].Severity != models.SeverityHigh {
		t.Errorf("Expected high severity, got %s", failed[0].Severity)
	}
	if failed[0].Metadata["diagnostic"] != "exit code 1: boom" {
		t.Errorf("Unexpected diagnostic: %v", failed[0].Metadata["diagnostic"])
	}
}

// TestRecoveryEscalation 测试尝试耗尽后只升级一次
func TestRecoveryEscalation(t *testing.T) {
	cfg := testRecoveryConfig()
	cfg.MaxAttempts = 1
	executor := &fakeExecutor{err: errors.New("command not found")}
	engine, store := newTestEngine(t, cfg, executor)

	// 第一轮：唯一一次尝试，失败
	engine.pollOnce()
	engine.wg.Wait()
	if executor.runCount() != 1 {
		t.Fatalf("Expected 1 execution, got %d", executor.runCount())
	}

	// 第二轮：达到上限，升级critical告警
	engine.pollOnce()
	engine.wg.Wait()

	down := alertsOfType(store, models.AlertTypeServiceDown)
	if len(down) != 1 {
		t.Fatalf("Expected 1 escalation alert, got %d", len(down))
	}
	if down[0].Severity != models.SeverityCritical {
		t.Errorf("Expected critical severity, got %s", down[0].Severity)
	}

	// 第三轮：不再重复升级也不再尝试
	engine.pollOnce()
	engine.wg.Wait()
	if len(alertsOfType(store, models.AlertTypeServiceDown)) != 1 {
		t.Error("Escalation alert should be raised exactly once")
	}
	if executor.runCount() != 1 {
		t.Errorf("No further attempts after escalation, got %d executions", executor.runCount())
	}

	// 外部重置后恢复尝试
	engine.ResetAttempts(models.ServiceKey{DeviceID: "dev-1", ServiceName: "nginx"})
	engine.pollOnce()
	engine.wg.Wait()
	if executor.runCount() != 2 {
		t.Errorf("Attempts should resume after reset, got %d executions", executor.runCount())
	}
}

// TestRecoverySkipsIneligibleDevice 测试离线或被隔离的设备不做恢复
func TestRecoverySkipsIneligibleDevice(t *testing.T) {
	executor := &fakeExecutor{exitCode: 0}
	engine, store := newTestEngine(t, testRecoveryConfig(), executor)

	store.UpsertDevice(context.Background(), &models.Device{
		ID: "dev-1", Hostname: "web-01", IsActive: true, IsIsolated: true,
	})

	engine.pollOnce()
	engine.wg.Wait()

	if executor.runCount() != 0 {
		t.Errorf("Isolated device should not be recovered, got %d executions", executor.runCount())
	}
}

// TestRecoveryCustomCommand 测试使用记录中配置的恢复命令
func TestRecoveryCustomCommand(t *testing.T) {
	executor := &fakeExecutor{exitCode: 0}
	engine, store := newTestEngine(t, testRecoveryConfig(), executor)

	store.UpsertServiceHealth(context.Background(), &models.ServiceHealth{
		DeviceID:            "dev-1",
		ServiceName:         "nginx",
		Status:              models.ServiceStateDegraded,
		ConsecutiveFailures: 1,
		AutoRecoveryEnabled: true,
		RecoveryCommand:     "docker restart nginx",
	})

	engine.pollOnce()
	engine.wg.Wait()

	if executor.runCount() != 1 {
		t.Fatalf("Expected 1 execution, got %d", executor.runCount())
	}
	if executor.commands[0] != "docker restart nginx" {
		t.Errorf("Expected configured command, got %q", executor.commands[0])
	}
}
