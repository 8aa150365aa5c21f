package model

import (
	"time"
)

// Thread 评论主题模型（帖子或留言板条目，由外部系统创建）
type Thread struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	OwnerID      int64     `json:"owner_id" gorm:"not null;index"`                          // 主题所有者ID
	ThreadType   string    `json:"thread_type" gorm:"type:varchar(20);not null"`            // 主题类型
	CommentCount int64     `json:"comment_count" gorm:"default:0"`                          // 评论总数（含回复）
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Thread) TableName() string {
	return "threads"
}

// Comment 评论模型
type Comment struct {
	ID         int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	ThreadID   int64      `json:"thread_id" gorm:"not null;index:idx_thread_created"`        // 所属主题ID
	ParentID   int64      `json:"parent_id" gorm:"default:0;index"`                          // 父评论ID（0表示根评论，最多两层）
	AuthorID   int64      `json:"author_id" gorm:"not null;index"`                           // 评论作者ID
	AuthorName string     `json:"author_name" gorm:"type:varchar(100);not null"`             // 作者名（冗余字段）
	Content    string     `json:"content" gorm:"type:text;not null"`                         // 评论内容
	Visibility string     `json:"visibility" gorm:"type:varchar(10);not null;default:'public'"` // 可见性
	LikeCount  int32      `json:"like_count" gorm:"default:0"`                               // 点赞数
	ReplyCount int32      `json:"reply_count" gorm:"default:0"`                              // 回复数（仅根评论维护）
	Deleted    bool       `json:"deleted" gorm:"default:false;index"`                        // 软删除标记
	EditedAt   *time.Time `json:"edited_at"`                                                 // 最后编辑时间
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime;index:idx_thread_created"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Comment) TableName() string {
	return "comments"
}

// CommentLike 评论点赞记录
type CommentLike struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	CommentID int64     `json:"comment_id" gorm:"not null;uniqueIndex:idx_comment_user"`
	UserID    int64     `json:"user_id" gorm:"not null;uniqueIndex:idx_comment_user"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (CommentLike) TableName() string {
	return "comment_likes"
}

// 查询参数结构体

// CreateCommentParams 创建评论参数
type CreateCommentParams struct {
	ThreadID   int64  `json:"thread_id"`
	ParentID   int64  `json:"parent_id"`
	AuthorID   int64  `json:"author_id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
}

// EditCommentParams 编辑评论参数
type EditCommentParams struct {
	CommentID int64  `json:"comment_id"`
	ActorID   int64  `json:"actor_id"`
	Content   string `json:"content"`
}

// DeleteCommentParams 删除评论参数
type DeleteCommentParams struct {
	CommentID int64 `json:"comment_id"`
	ActorID   int64 `json:"actor_id"`
	IsAdmin   bool  `json:"is_admin"`
}

// ListCommentsParams 获取根评论列表参数
type ListCommentsParams struct {
	ThreadID  int64  `json:"thread_id"`
	SortOrder string `json:"sort_order"`
	PageSize  int    `json:"page_size"`
	Cursor    string `json:"cursor"`
}

// ListRepliesParams 获取回复列表参数
type ListRepliesParams struct {
	ParentID int64  `json:"parent_id"`
	PageSize int    `json:"page_size"`
	Cursor   string `json:"cursor"`
}

// GetUserCommentsParams 获取用户评论参数
type GetUserCommentsParams struct {
	UserID   int64 `json:"user_id"`
	Page     int32 `json:"page"`
	PageSize int32 `json:"page_size"`
}

// DeleteResult 删除结果（级联删除时包含被删除的回复ID）
type DeleteResult struct {
	Comment     *Comment `json:"comment"`
	CascadedIDs []int64  `json:"cascaded_ids"`
}

// 辅助方法

// IsRoot 判断是否为根评论
func (c *Comment) IsRoot() bool {
	return c.ParentID == 0
}

// IsReply 判断是否为回复
func (c *Comment) IsReply() bool {
	return c.ParentID > 0
}

// CanEdit 判断用户是否可以编辑评论（仅作者本人）
func (c *Comment) CanEdit(actorID int64) bool {
	return c.AuthorID == actorID && !c.Deleted
}

// CanDelete 判断用户是否可以删除评论（作者、主题所有者或管理员）
func (c *Comment) CanDelete(actorID, threadOwnerID int64, isAdmin bool) bool {
	if c.Deleted {
		return false
	}
	if isAdmin {
		return true
	}
	return c.AuthorID == actorID || threadOwnerID == actorID
}

// VisibleTo 判断评论对指定查看者是否可见
func (c *Comment) VisibleTo(viewerID, threadOwnerID int64) bool {
	if c.Visibility == VisibilityPublic {
		return true
	}
	return c.AuthorID == viewerID || viewerID == threadOwnerID
}
