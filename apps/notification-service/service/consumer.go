package service

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"

	"discuss-social/apps/notification-service/model"
	"discuss-social/pkg/logger"
)

// EventConsumer 评论事件消费处理器
type EventConsumer struct {
	service *Service
	logger  logger.Logger
}

// NewEventConsumer 创建事件消费处理器
func NewEventConsumer(service *Service, logger logger.Logger) *EventConsumer {
	return &EventConsumer{
		service: service,
		logger:  logger,
	}
}

// HandleMessage 处理Kafka消息
// 无法解析的消息记日志后吞掉，避免毒消息阻塞分区
func (c *EventConsumer) HandleMessage(msg *sarama.ConsumerMessage) error {
	ctx := context.Background()

	var event model.CommentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error(ctx, "Failed to unmarshal comment event",
			logger.F("topic", msg.Topic),
			logger.F("partition", msg.Partition),
			logger.F("offset", msg.Offset),
			logger.F("error", err.Error()))
		return nil
	}

	if err := c.service.ProcessEvent(ctx, &event); err != nil {
		c.logger.Error(ctx, "Failed to process comment event",
			logger.F("eventID", event.EventID),
			logger.F("eventType", event.Type),
			logger.F("error", err.Error()))
		return err
	}
	return nil
}
