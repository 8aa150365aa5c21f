package dao

import (
	"context"

	"discuss-social/apps/notification-service/model"
)

// NotificationDAO 通知数据访问接口
type NotificationDAO interface {
	// 索引初始化
	EnsureIndexes(ctx context.Context) error

	// 扇出写入
	CreateNotifications(ctx context.Context, notifications []*model.Notification) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string) error

	// 收件箱操作
	ListNotifications(ctx context.Context, params *model.ListNotificationsParams) ([]*model.Notification, int64, error)
	MarkRead(ctx context.Context, recipientID, notificationID int64) error
	MarkAllRead(ctx context.Context, recipientID int64) (int64, error)
	DeleteNotification(ctx context.Context, recipientID, notificationID int64) error
	DeleteAllNotifications(ctx context.Context, recipientID int64) (int64, error)
	UnreadCount(ctx context.Context, recipientID int64) (int64, error)
}

// ActorResolver 用户名到用户ID的解析接口（身份服务是外部协作方）
type ActorResolver interface {
	ResolveUsername(ctx context.Context, username string) (int64, error)
}
