// Package utils 提供跨模块复用的并发原语
package utils

import (
	"errors"
	"log"
	"sync"
	"time"
)

// ErrBreakerOpen 熔断器处于打开状态，调用被直接拒绝
var ErrBreakerOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker 保护对外部依赖的调用
// 连续失败达到上限后打开，冷却期过后放行一次探测请求
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.Mutex
	state       breakerState
	failures    int
	lastFailure time.Time
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
	}
}

// Execute 在熔断器保护下执行fn
// 打开状态下冷却期未到时返回ErrBreakerOpen，不执行fn
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}
	err := fn()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == stateOpen {
		if time.Since(cb.lastFailure) < cb.resetTimeout {
			return ErrBreakerOpen
		}
		cb.state = stateHalfOpen
	}
	return nil
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.state == stateHalfOpen || cb.failures >= cb.maxFailures {
			if cb.state != stateOpen {
				log.Printf("熔断器打开: name=%s failures=%d", cb.name, cb.failures)
			}
			cb.state = stateOpen
		}
		return
	}

	if cb.state != stateClosed {
		log.Printf("熔断器恢复闭合: name=%s", cb.name)
	}
	cb.failures = 0
	cb.state = stateClosed
}

// Failures 当前连续失败次数
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Open 熔断器是否处于打开状态
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == stateOpen && time.Since(cb.lastFailure) < cb.resetTimeout
}
