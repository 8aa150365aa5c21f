package model

import (
	"time"
)

// Notification 通知模型，按 (recipient_id, _id) 存取，is_read 建二级索引
type Notification struct {
	ID          int64     `bson:"_id" json:"id"`
	RecipientID int64     `bson:"recipient_id" json:"recipient_id"`
	SenderID    int64     `bson:"sender_id" json:"sender_id"`
	Kind        string    `bson:"kind" json:"kind"`
	ThreadID    int64     `bson:"thread_id" json:"thread_id"`
	CommentID   int64     `bson:"comment_id,omitempty" json:"comment_id,omitempty"`
	Message     string    `bson:"message" json:"message"`
	EventID     string    `bson:"event_id" json:"event_id"` // 与recipient_id组成去重键
	IsRead      bool      `bson:"is_read" json:"is_read"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// ProcessedEvent 已处理事件标记，event_id唯一索引保证重投递不重复扇出
type ProcessedEvent struct {
	EventID     string    `bson:"_id" json:"event_id"`
	ProcessedAt time.Time `bson:"processed_at" json:"processed_at"`
}

// CommentEvent 评论领域事件（comment-events主题的线格式）
type CommentEvent struct {
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"`
	CommentID      int64     `json:"comment_id"`
	ThreadID       int64     `json:"thread_id"`
	ThreadOwnerID  int64     `json:"thread_owner_id"`
	AuthorID       int64     `json:"author_id"`
	ParentID       int64     `json:"parent_id"`
	ParentAuthorID int64     `json:"parent_author_id"`
	ActorID        int64     `json:"actor_id"`
	ActorName      string    `json:"actor_name"`
	Content        string    `json:"content"`
	Visibility     string    `json:"visibility"`
	CascadedIDs    []int64   `json:"cascaded_ids,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsReplyEvent 判断事件是否作用于回复
func (e *CommentEvent) IsReplyEvent() bool {
	return e.ParentID > 0
}

// NotificationIntent 扇出意图，纯函数输出，落库前由服务层补全ID
type NotificationIntent struct {
	RecipientID int64
	SenderID    int64
	Kind        string
	ThreadID    int64
	CommentID   int64
	Message     string
}

// ListNotificationsParams 获取通知列表参数
type ListNotificationsParams struct {
	RecipientID int64  `json:"recipient_id"`
	Filter      string `json:"filter"` // all | unread | read
	Cursor      string `json:"cursor"`
	PageSize    int    `json:"page_size"`
}
