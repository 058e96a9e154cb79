package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/han-fei/hostguard/internal/config"
	"github.com/han-fei/hostguard/internal/models"
)

// publishQueueSize 待发事件队列长度，队列满时丢弃新事件
const publishQueueSize = 256

// messageWriter Kafka写入端，便于测试替换
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 告警事件的Kafka生产者
// 发送在独立的后台协程中完成，BroadcastAlert只入队不等待；
// 未启用或未配置broker时所有操作为空操作
type KafkaPublisher struct {
	cfg      config.KafkaConfig
	writer   messageWriter
	queue    chan kafka.Message
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	enabled  bool
}

// NewKafkaPublisher 创建Kafka生产者并启动发送协程
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return &KafkaPublisher{cfg: cfg, enabled: false}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout.Std(),
		RequiredAcks: kafka.RequireOne,
	}

	p := newKafkaPublisher(cfg, writer)
	return p
}

func newKafkaPublisher(cfg config.KafkaConfig, writer messageWriter) *KafkaPublisher {
	p := &KafkaPublisher{
		cfg:      cfg,
		writer:   writer,
		queue:    make(chan kafka.Message, publishQueueSize),
		stopChan: make(chan struct{}),
		enabled:  true,
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// IsEnabled 检查生产者是否启用
func (p *KafkaPublisher) IsEnabled() bool {
	return p.enabled
}

// BroadcastAlert 将告警事件入队等待发送，不阻塞调用方
// 队列满时丢弃并记录日志
func (p *KafkaPublisher) BroadcastAlert(ctx context.Context, event models.AlertEvent) error {
	if !p.enabled {
		return nil
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化告警事件失败: %v", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.DeviceID),
		Value: value,
		Time:  time.Now(),
	}

	select {
	case p.queue <- msg:
		return nil
	case <-p.stopChan:
		return nil
	default:
		log.Printf("Kafka发送队列已满，丢弃告警事件: alert=%s", event.AlertID)
		return nil
	}
}

// run 发送协程，逐条发送并做指数退避重试
func (p *KafkaPublisher) run() {
	defer p.wg.Done()

	for {
		select {
		case msg := <-p.queue:
			p.publish(msg)
		case <-p.stopChan:
			return
		}
	}
}

func (p *KafkaPublisher) publish(msg kafka.Message) {
	var err error
	for i := 0; i < p.cfg.MaxRetry; i++ {
		err = p.writer.WriteMessages(context.Background(), msg)
		if err == nil {
			return
		}
		log.Printf("发送告警事件到Kafka失败 (尝试 %d/%d): %v", i+1, p.cfg.MaxRetry, err)

		// 指数退避，停机时立即放弃
		select {
		case <-time.After(time.Duration(1<<uint(i)) * 100 * time.Millisecond):
		case <-p.stopChan:
			return
		}
	}
	log.Printf("告警事件发送到Kafka最终失败: %v", err)
}

// Close 停止发送协程并关闭Kafka生产者
func (p *KafkaPublisher) Close() error {
	if !p.enabled {
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
	return p.writer.Close()
}
