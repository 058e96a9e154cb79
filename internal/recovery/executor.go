// Package recovery 实现被监控服务的自动恢复
package recovery

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandResult 一次恢复命令的执行结果
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// CommandExecutor 恢复命令执行接口
type CommandExecutor interface {
	// Run 执行一条命令，退出码为0视为成功
	Run(ctx context.Context, command string) (*CommandResult, error)
}

// ShellExecutor 通过shell执行恢复命令
type ShellExecutor struct{}

// NewShellExecutor 创建shell执行器
func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{}
}

// Run 执行命令，上下文超时或取消时终止进程
func (e *ShellExecutor) Run(ctx context.Context, command string) (*CommandResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &CommandResult{
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}

	if err != nil {
		// 超时或取消导致的进程终止也会表现为ExitError，先看上下文
		if ctx.Err() != nil {
			return result, fmt.Errorf("命令执行超时: %v", ctx.Err())
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("命令执行失败: %v", err)
	}
	return result, nil
}

// DefaultRecoveryCommand 未配置恢复命令时按服务名生成默认重启命令
func DefaultRecoveryCommand(serviceName string) string {
	return fmt.Sprintf("systemctl restart %s", serviceName)
}
