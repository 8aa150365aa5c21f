package model

import "time"

// CommentRecord 订阅窗口中的扁平评论记录，按ID存取，parent_id做父子关联
type CommentRecord struct {
	ID         int64      `gorm:"column:id" json:"id"`
	ThreadID   int64      `gorm:"column:thread_id" json:"thread_id"`
	ParentID   int64      `gorm:"column:parent_id" json:"parent_id"`
	AuthorID   int64      `gorm:"column:author_id" json:"author_id"`
	AuthorName string     `gorm:"column:author_name" json:"author_name"`
	Content    string     `gorm:"column:content" json:"content"`
	Visibility string     `gorm:"column:visibility" json:"visibility"`
	LikeCount  int64      `gorm:"column:like_count" json:"like_count"`
	ReplyCount int64      `gorm:"column:reply_count" json:"reply_count"`
	Deleted    bool       `gorm:"column:deleted" json:"-"`
	EditedAt   *time.Time `gorm:"column:edited_at" json:"edited_at,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at" json:"created_at"`
}

// TableName 指定表名（与comment-service共享comments表）
func (CommentRecord) TableName() string {
	return "comments"
}

// IsRoot 判断是否为根评论
func (c *CommentRecord) IsRoot() bool {
	return c.ParentID == 0
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

// ClientMessage 客户端指令帧
type ClientMessage struct {
	Op        string `json:"op"` // subscribe | load_more | expand_replies | reconfigure | unsubscribe
	ThreadID  int64  `json:"thread_id,omitempty"`
	CommentID int64  `json:"comment_id,omitempty"`
	SortOrder string `json:"sort_order,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
}

// Diff 单条增量变更
type Diff struct {
	Kind    string         `json:"kind"` // added | removed | modified
	Comment *CommentRecord `json:"comment,omitempty"`
	// removed只携带ID，避免把已删除内容再推给客户端
	CommentID int64 `json:"comment_id,omitempty"`
	IsNew     bool  `json:"is_new,omitempty"`
}

// ServerFrame 服务端推送帧
type ServerFrame struct {
	Type     string  `json:"type"` // snapshot | diff | error
	ThreadID int64   `json:"thread_id,omitempty"`
	ParentID int64   `json:"parent_id,omitempty"`
	Diffs    []*Diff `json:"diffs,omitempty"`
	HasMore  bool    `json:"has_more,omitempty"`
	Message  string  `json:"message,omitempty"`
}
