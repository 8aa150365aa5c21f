package service

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"

	"discuss-social/apps/sync-service/model"
	"discuss-social/pkg/logger"
)

// EventConsumer 评论事件消费处理器，按提交顺序喂给订阅中枢
type EventConsumer struct {
	hub    *Hub
	logger logger.Logger
}

// NewEventConsumer 创建事件消费处理器
func NewEventConsumer(hub *Hub, logger logger.Logger) *EventConsumer {
	return &EventConsumer{
		hub:    hub,
		logger: logger,
	}
}

// HandleMessage 处理Kafka消息
// 分发是内存操作不会失败，解析失败记日志后跳过
func (c *EventConsumer) HandleMessage(msg *sarama.ConsumerMessage) error {
	var event model.CommentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error(context.Background(), "Failed to unmarshal comment event",
			logger.F("topic", msg.Topic),
			logger.F("offset", msg.Offset),
			logger.F("error", err.Error()))
		return nil
	}

	c.hub.OnEvent(&event)
	return nil
}
