package alerting

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
)

// 单条告警全部通道的派发时限
const dispatchTimeout = 30 * time.Second

// Channel 通知通道
type Channel interface {
	// Name 通道名称
	Name() string

	// Enabled 通道是否已配置可用
	Enabled() bool

	// Send 发送一条告警通知
	Send(ctx context.Context, alert *models.Alert) error
}

// Dispatcher 通知派发器
// 维护一个有界队列和固定数量的工作协程，
// 入队永不阻塞告警创建路径，队列满时丢弃并记日志
type Dispatcher struct {
	channels []Channel
	dedup    *Deduplicator
	queue    chan *models.Alert
	workers  int
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewDispatcher 创建通知派发器
func NewDispatcher(cfg config.AlertingConfig, dedup *Deduplicator, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		dedup:    dedup,
		queue:    make(chan *models.Alert, cfg.QueueSize),
		workers:  cfg.Workers,
	}
}

// Start 启动工作协程
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	log.Printf("通知派发器已启动: workers=%d queue=%d", d.workers, cap(d.queue))
}

// Stop 停止派发器，排空队列中已有的告警后返回
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
	log.Printf("通知派发器已停止")
}

// Enqueue 非阻塞入队，队列满时丢弃并返回false
func (d *Dispatcher) Enqueue(alert *models.Alert) bool {
	select {
	case d.queue <- alert:
		return true
	default:
		log.Printf("通知队列已满，丢弃告警通知: id=%s type=%s", alert.ID, alert.Type)
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for alert := range d.queue {
		d.dispatch(alert)
	}
}

// dispatch 对单条告警执行去重检查并并发尝试全部可用通道
func (d *Dispatcher) dispatch(alert *models.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	notify, err := d.dedup.ShouldNotify(ctx, alert)
	if err != nil {
		// 去重存储不可用时宁可重复通知也不漏报
		log.Printf("去重检查失败，按需要通知处理: id=%s err=%v", alert.ID, err)
		notify = true
	}
	if !notify {
		alert.Suppressed = true
		return
	}

	// 标记写在发送之前，通道失败也不重试通知
	if err := d.dedup.Mark(ctx, alert); err != nil {
		log.Printf("写入去重标记失败: id=%s err=%v", alert.ID, err)
	}

	enabled := make([]Channel, 0, len(d.channels))
	for _, ch := range d.channels {
		if ch.Enabled() {
			enabled = append(enabled, ch)
		}
	}
	if len(enabled) == 0 {
		return
	}

	results := make(chan string, len(enabled))
	var wg sync.WaitGroup
	for _, ch := range enabled {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Send(ctx, alert); err != nil {
				log.Printf("通知发送失败: channel=%s id=%s err=%v", ch.Name(), alert.ID, err)
				return
			}
			results <- ch.Name()
		}(ch)
	}
	wg.Wait()
	close(results)

	now := time.Now().UTC()
	for name := range results {
		switch name {
		case channelNameEmail:
			alert.EmailSent = true
		case channelNameWebhook:
			alert.WebhookSent = true
		}
		alert.NotificationCount++
		alert.LastNotifiedAt = &now
	}
}
