package alerting

import (
	"sync"
	"time"

	"github.com/willf/bloom"
)

// seenFilter 去重键的本地否定缓存
// 采用双代轮换的布隆过滤器：写入只进当前代，查询同时看两代，
// 每过一个去重窗口把当前代降为上一代并丢弃更早的。
// 过滤器报"未见过"时，该键一定没有在窗口内被标记过，
// 可以跳过远端存储查询；报"见过"时仍需回源确认。
type seenFilter struct {
	mu         sync.Mutex
	active     *bloom.BloomFilter
	previous   *bloom.BloomFilter
	capacity   uint
	fpRate     float64
	rotateEach time.Duration
	lastRotate time.Time
}

func newSeenFilter(capacity uint, fpRate float64, rotateEach time.Duration) *seenFilter {
	return &seenFilter{
		active:     bloom.NewWithEstimates(capacity, fpRate),
		previous:   bloom.NewWithEstimates(capacity, fpRate),
		capacity:   capacity,
		fpRate:     fpRate,
		rotateEach: rotateEach,
		lastRotate: time.Now(),
	}
}

// rotateLocked 到期时轮换两代过滤器，调用方持锁
func (f *seenFilter) rotateLocked(now time.Time) {
	if now.Sub(f.lastRotate) < f.rotateEach {
		return
	}
	f.previous = f.active
	f.active = bloom.NewWithEstimates(f.capacity, f.fpRate)
	f.lastRotate = now
}

// Add 记录一个键
func (f *seenFilter) Add(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotateLocked(time.Now())
	f.active.Add([]byte(key))
}

// MightContain 返回该键是否可能在最近两个窗口内出现过
func (f *seenFilter) MightContain(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotateLocked(time.Now())
	return f.active.Test([]byte(key)) || f.previous.Test([]byte(key))
}
