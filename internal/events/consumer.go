package events

import (
	"context"
	"encoding/json"
	"fmt"

	"campus-match-go/internal/config"
	"campus-match-go/internal/logger"
	"campus-match-go/internal/storage"
)

// Consumer 消费交互事件队列并交给反馈服务处理
type Consumer struct {
	mq      *storage.RabbitMQ
	service *FeedbackService
	cfg     *config.RabbitMQConfig

	stopChs []chan struct{}
}

// NewConsumer 创建交互事件消费者
func NewConsumer(mq *storage.RabbitMQ, service *FeedbackService, cfg *config.RabbitMQConfig) *Consumer {
	return &Consumer{
		mq:      mq,
		service: service,
		cfg:     cfg,
	}
}

// Start 按配置的worker数量启动消费者
func (c *Consumer) Start(ctx context.Context) error {
	if c.cfg.InteractionQueue == "" {
		return fmt.Errorf("未配置交互事件队列")
	}

	workers := c.cfg.ConsumerWorkers["interaction_consumer_workers"]
	if workers <= 0 {
		workers = 1
	}
	prefetch := c.cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = 1
	}

	for i := 0; i < workers; i++ {
		stopCh, err := c.mq.StartConsumer(c.cfg.InteractionQueue, prefetch, c.handle(ctx))
		if err != nil {
			c.Stop()
			return fmt.Errorf("启动交互事件消费者失败: %w", err)
		}
		c.stopChs = append(c.stopChs, stopCh)
	}

	logger.Info().
		Str("queue", c.cfg.InteractionQueue).
		Int("workers", workers).
		Msg("交互事件消费者已启动")
	return nil
}

// handle 返回单条消息的处理函数
// 返回true确认消息；返回false拒绝并重新入队
func (c *Consumer) handle(ctx context.Context) func([]byte) bool {
	return func(body []byte) bool {
		var event storage.InteractionEventMessage
		if err := json.Unmarshal(body, &event); err != nil {
			// 格式损坏的消息重投也不会成功，直接确认丢弃
			logger.Error().Err(err).Str("body", string(body)).Msg("交互事件JSON解析失败，丢弃消息")
			return true
		}

		if err := c.service.Apply(ctx, event); err != nil {
			logger.Error().Err(err).Str("event_id", event.EventID).Msg("处理交互事件失败，消息将重新入队")
			return false
		}
		return true
	}
}

// Stop 停止所有消费者协程
func (c *Consumer) Stop() {
	for _, stopCh := range c.stopChs {
		close(stopCh)
	}
	c.stopChs = nil
}
