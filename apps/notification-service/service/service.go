package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"discuss-social/apps/notification-service/dao"
	"discuss-social/apps/notification-service/model"
	"discuss-social/pkg/logger"
	"discuss-social/pkg/redis"
	"discuss-social/pkg/snowflake"
	"discuss-social/pkg/telemetry"
)

// Service 通知服务
type Service struct {
	dao      dao.NotificationDAO
	resolver dao.ActorResolver
	redis    *redis.RedisClient
	logger   logger.Logger
}

// NewService 创建通知服务实例
func NewService(dao dao.NotificationDAO, resolver dao.ActorResolver, redis *redis.RedisClient, logger logger.Logger) *Service {
	return &Service{
		dao:      dao,
		resolver: resolver,
		redis:    redis,
		logger:   logger,
	}
}

// ProcessEvent 处理评论领域事件并扇出通知
// 幂等：同一event_id重投递不会产生第二份通知集合
func (s *Service) ProcessEvent(ctx context.Context, event *model.CommentEvent) error {
	ctx, span := telemetry.StartSpan(ctx, "notification.service.ProcessEvent")
	defer span.End()

	span.SetAttributes(
		attribute.String("event.id", event.EventID),
		attribute.String("event.type", event.Type),
		attribute.Int64("event.comment_id", event.CommentID),
	)

	if event.EventID == "" {
		return fmt.Errorf("事件ID不能为空")
	}

	processed, err := s.isProcessed(ctx, event.EventID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if processed {
		s.logger.Info(ctx, "Event already processed, skipping",
			logger.F("eventID", event.EventID))
		span.SetStatus(codes.Ok, "duplicate event skipped")
		return nil
	}

	mentionedIDs := s.resolveMentions(ctx, event)
	intents := ComputeFanout(event, mentionedIDs)

	span.SetAttributes(attribute.Int("fanout.recipient_count", len(intents)))

	if len(intents) > 0 {
		if err := s.dispatch(ctx, event, intents); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fanout dispatch failed")
			return err
		}
	}

	// 全部投递落库之后才声明事件已处理
	if err := s.markProcessed(ctx, event.EventID); err != nil {
		span.RecordError(err)
		return err
	}

	s.logger.Info(ctx, "Event fanned out successfully",
		logger.F("eventID", event.EventID),
		logger.F("eventType", event.Type),
		logger.F("recipientCount", len(intents)))

	span.SetStatus(codes.Ok, "event processed successfully")
	return nil
}

// dispatch 并发写入全部通知，join后才返回
func (s *Service) dispatch(ctx context.Context, event *model.CommentEvent, intents []*model.NotificationIntent) error {
	notifications := make([]*model.Notification, len(intents))
	now := time.Now()
	for i, intent := range intents {
		notifications[i] = &model.Notification{
			ID:          snowflake.GenerateID(),
			RecipientID: intent.RecipientID,
			SenderID:    intent.SenderID,
			Kind:        intent.Kind,
			ThreadID:    intent.ThreadID,
			CommentID:   intent.CommentID,
			Message:     intent.Message,
			EventID:     event.EventID,
			CreatedAt:   now,
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(notifications))
	for i, notification := range notifications {
		wg.Add(1)
		go func(i int, n *model.Notification) {
			defer wg.Done()
			errs[i] = s.dao.CreateNotifications(ctx, []*model.Notification{n})
		}(i, notification)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			s.logger.Error(ctx, "Failed to create notification",
				logger.F("eventID", event.EventID),
				logger.F("recipientID", notifications[i].RecipientID),
				logger.F("error", err.Error()))
			return err
		}
	}
	return nil
}

// resolveMentions 解析内容中的提及，未知用户名静默跳过
func (s *Service) resolveMentions(ctx context.Context, event *model.CommentEvent) []int64 {
	if s.resolver == nil || event.Content == "" {
		return nil
	}

	usernames := ParseMentions(event.Content)
	var ids []int64
	for _, username := range usernames {
		id, err := s.resolver.ResolveUsername(ctx, username)
		if err != nil {
			if !errors.Is(err, dao.ErrUsernameUnknown) {
				s.logger.Warn(ctx, "Failed to resolve mention",
					logger.F("username", username),
					logger.F("error", err.Error()))
			}
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// isProcessed 检查事件是否已处理（Redis快速路径 + MongoDB兜底）
func (s *Service) isProcessed(ctx context.Context, eventID string) (bool, error) {
	if s.redis != nil {
		count, err := s.redis.Exists(ctx, model.ProcessedEventCachePrefix+eventID)
		if err == nil && count > 0 {
			return true, nil
		}
	}
	return s.dao.IsEventProcessed(ctx, eventID)
}

// markProcessed 标记事件已处理
func (s *Service) markProcessed(ctx context.Context, eventID string) error {
	err := s.dao.MarkEventProcessed(ctx, eventID)
	if err != nil && !errors.Is(err, model.ErrEventAlreadyHandled) {
		return err
	}

	if s.redis != nil {
		cacheErr := s.redis.Set(ctx, model.ProcessedEventCachePrefix+eventID, "1",
			model.ProcessedEventCacheTTL*time.Second)
		if cacheErr != nil {
			s.logger.Warn(ctx, "Failed to cache processed event marker",
				logger.F("eventID", eventID),
				logger.F("error", cacheErr.Error()))
		}
	}
	return nil
}

// ListNotifications 游标分页获取通知列表
func (s *Service) ListNotifications(ctx context.Context, params *model.ListNotificationsParams) ([]*model.Notification, string, bool, int64, error) {
	if params.RecipientID <= 0 {
		return nil, "", false, 0, fmt.Errorf("收件人ID无效")
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	if pageSize > model.MaxPageSize {
		pageSize = model.MaxPageSize
	}

	// 多取一条判断是否还有下一页
	probe := *params
	probe.PageSize = pageSize + 1

	notifications, total, err := s.dao.ListNotifications(ctx, &probe)
	if err != nil {
		return nil, "", false, 0, err
	}

	hasMore := len(notifications) > pageSize
	if hasMore {
		notifications = notifications[:pageSize]
	}

	nextCursor := ""
	if hasMore && len(notifications) > 0 {
		nextCursor = dao.EncodeCursor(notifications[len(notifications)-1].ID)
	}

	return notifications, nextCursor, hasMore, total, nil
}

// MarkRead 标记通知已读
func (s *Service) MarkRead(ctx context.Context, recipientID, notificationID int64) error {
	if recipientID <= 0 || notificationID <= 0 {
		return fmt.Errorf("参数无效")
	}
	return s.dao.MarkRead(ctx, recipientID, notificationID)
}

// MarkAllRead 标记全部通知已读
func (s *Service) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	if recipientID <= 0 {
		return 0, fmt.Errorf("收件人ID无效")
	}
	return s.dao.MarkAllRead(ctx, recipientID)
}

// DeleteNotification 删除通知
func (s *Service) DeleteNotification(ctx context.Context, recipientID, notificationID int64) error {
	if recipientID <= 0 || notificationID <= 0 {
		return fmt.Errorf("参数无效")
	}
	return s.dao.DeleteNotification(ctx, recipientID, notificationID)
}

// DeleteAllNotifications 删除全部通知
func (s *Service) DeleteAllNotifications(ctx context.Context, recipientID int64) (int64, error) {
	if recipientID <= 0 {
		return 0, fmt.Errorf("收件人ID无效")
	}
	return s.dao.DeleteAllNotifications(ctx, recipientID)
}

// UnreadCount 未读通知数
func (s *Service) UnreadCount(ctx context.Context, recipientID int64) (int64, error) {
	if recipientID <= 0 {
		return 0, fmt.Errorf("收件人ID无效")
	}
	return s.dao.UnreadCount(ctx, recipientID)
}
