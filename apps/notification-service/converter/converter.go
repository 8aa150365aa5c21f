package converter

import (
	"time"

	"discuss-social/apps/notification-service/model"
)

// Converter 模型与视图转换器
type Converter struct{}

// NewConverter 创建转换器实例
func NewConverter() *Converter {
	return &Converter{}
}

// NotificationView 通知视图
type NotificationView struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	SenderID    int64     `json:"sender_id"`
	Kind        string    `json:"kind"`
	ThreadID    int64     `json:"thread_id"`
	CommentID   int64     `json:"comment_id,omitempty"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListNotificationsResponse 通知列表响应
type ListNotificationsResponse struct {
	Success       bool                `json:"success"`
	Message       string              `json:"message"`
	Notifications []*NotificationView `json:"notifications"`
	NextCursor    string              `json:"next_cursor,omitempty"`
	HasMore       bool                `json:"has_more"`
	Total         int64               `json:"total"`
}

// OperationResponse 通用操作响应
type OperationResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	AffectedCount int64  `json:"affected_count,omitempty"`
}

// UnreadCountResponse 未读数响应
type UnreadCountResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	UnreadCount int64  `json:"unread_count"`
}

// ToNotificationView 模型转视图
func (c *Converter) ToNotificationView(n *model.Notification) *NotificationView {
	if n == nil {
		return nil
	}
	return &NotificationView{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		SenderID:    n.SenderID,
		Kind:        n.Kind,
		ThreadID:    n.ThreadID,
		CommentID:   n.CommentID,
		Message:     n.Message,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}
}

// ToNotificationViews 批量模型转视图
func (c *Converter) ToNotificationViews(notifications []*model.Notification) []*NotificationView {
	views := make([]*NotificationView, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, c.ToNotificationView(n))
	}
	return views
}

// BuildListNotificationsResponse 构建通知列表响应
func (c *Converter) BuildListNotificationsResponse(success bool, message string, views []*NotificationView, nextCursor string, hasMore bool, total int64) *ListNotificationsResponse {
	return &ListNotificationsResponse{
		Success:       success,
		Message:       message,
		Notifications: views,
		NextCursor:    nextCursor,
		HasMore:       hasMore,
		Total:         total,
	}
}

// BuildOperationResponse 构建通用操作响应
func (c *Converter) BuildOperationResponse(success bool, message string, affected int64) *OperationResponse {
	return &OperationResponse{
		Success:       success,
		Message:       message,
		AffectedCount: affected,
	}
}
