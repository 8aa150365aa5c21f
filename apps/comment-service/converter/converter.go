package converter

import (
	"time"

	"discuss-social/apps/comment-service/model"
)

// Converter 转换器，将存储实体转换为视图模型并在读取侧实施可见性规则
type Converter struct{}

// NewConverter 创建转换器实例
func NewConverter() *Converter {
	return &Converter{}
}

// CommentView 评论视图模型
type CommentView struct {
	ID         int64  `json:"id"`
	ThreadID   int64  `json:"thread_id"`
	ParentID   int64  `json:"parent_id"`
	AuthorID   int64  `json:"author_id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
	CanView    bool   `json:"can_view"`
	LikeCount  int32  `json:"like_count"`
	ReplyCount int32  `json:"reply_count"`
	EditedAt   string `json:"edited_at,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ThreadStatsView 主题统计视图模型
type ThreadStatsView struct {
	ThreadID     int64  `json:"thread_id"`
	ThreadType   string `json:"thread_type"`
	OwnerID      int64  `json:"owner_id"`
	CommentCount int64  `json:"comment_count"`
}

// 响应结构体

// CommentResponse 单条评论响应
type CommentResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Comment *CommentView `json:"comment,omitempty"`
}

// DeleteCommentResponse 删除评论响应
type DeleteCommentResponse struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	CascadedIDs []int64 `json:"cascaded_ids,omitempty"`
}

// ListCommentsResponse 评论列表响应
type ListCommentsResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Comments   []*CommentView `json:"comments"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// UserCommentsResponse 用户评论响应
type UserCommentsResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Comments []*CommentView `json:"comments"`
	Total    int64          `json:"total"`
}

// LikeResponse 点赞响应
type LikeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LikeStatusResponse 点赞状态响应
type LikeStatusResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Liked   map[int64]bool `json:"liked,omitempty"`
	IsLiked bool           `json:"is_liked"`
}

// ThreadStatsResponse 主题统计响应
type ThreadStatsResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Stats   *ThreadStatsView `json:"stats,omitempty"`
}

// ToCommentView 将评论转换为视图模型
// 私密评论对非作者且非主题所有者的查看者屏蔽正文，读取侧统一实施，不依赖存储层
func (c *Converter) ToCommentView(comment *model.Comment, viewerID, threadOwnerID int64) *CommentView {
	if comment == nil {
		return nil
	}

	view := &CommentView{
		ID:         comment.ID,
		ThreadID:   comment.ThreadID,
		ParentID:   comment.ParentID,
		AuthorID:   comment.AuthorID,
		AuthorName: comment.AuthorName,
		Visibility: comment.Visibility,
		LikeCount:  comment.LikeCount,
		ReplyCount: comment.ReplyCount,
		CreatedAt:  comment.CreatedAt.Format(time.RFC3339),
	}

	if comment.EditedAt != nil {
		view.EditedAt = comment.EditedAt.Format(time.RFC3339)
	}

	view.CanView = comment.VisibleTo(viewerID, threadOwnerID)
	if view.CanView {
		view.Content = comment.Content
	} else {
		view.Content = model.PrivatePlaceholder
	}

	return view
}

// ToCommentViews 批量转换评论视图
func (c *Converter) ToCommentViews(comments []*model.Comment, viewerID, threadOwnerID int64) []*CommentView {
	result := make([]*CommentView, 0, len(comments))
	for _, comment := range comments {
		if view := c.ToCommentView(comment, viewerID, threadOwnerID); view != nil {
			result = append(result, view)
		}
	}
	return result
}

// ToThreadStatsView 转换主题统计视图
func (c *Converter) ToThreadStatsView(thread *model.Thread) *ThreadStatsView {
	if thread == nil {
		return nil
	}
	return &ThreadStatsView{
		ThreadID:     thread.ID,
		ThreadType:   thread.ThreadType,
		OwnerID:      thread.OwnerID,
		CommentCount: thread.CommentCount,
	}
}

// 响应构造方法

// BuildCommentResponse 构造单条评论响应
func (c *Converter) BuildCommentResponse(success bool, message string, view *CommentView) *CommentResponse {
	return &CommentResponse{Success: success, Message: message, Comment: view}
}

// BuildDeleteCommentResponse 构造删除评论响应
func (c *Converter) BuildDeleteCommentResponse(success bool, message string, cascadedIDs []int64) *DeleteCommentResponse {
	return &DeleteCommentResponse{Success: success, Message: message, CascadedIDs: cascadedIDs}
}

// BuildListCommentsResponse 构造评论列表响应
func (c *Converter) BuildListCommentsResponse(success bool, message string, views []*CommentView, nextCursor string, hasMore bool) *ListCommentsResponse {
	if views == nil {
		views = []*CommentView{}
	}
	return &ListCommentsResponse{
		Success:    success,
		Message:    message,
		Comments:   views,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}
}

// BuildUserCommentsResponse 构造用户评论响应
func (c *Converter) BuildUserCommentsResponse(success bool, message string, views []*CommentView, total int64) *UserCommentsResponse {
	if views == nil {
		views = []*CommentView{}
	}
	return &UserCommentsResponse{Success: success, Message: message, Comments: views, Total: total}
}

// BuildLikeResponse 构造点赞响应
func (c *Converter) BuildLikeResponse(success bool, message string) *LikeResponse {
	return &LikeResponse{Success: success, Message: message}
}

// BuildThreadStatsResponse 构造主题统计响应
func (c *Converter) BuildThreadStatsResponse(success bool, message string, stats *ThreadStatsView) *ThreadStatsResponse {
	return &ThreadStatsResponse{Success: success, Message: message, Stats: stats}
}
