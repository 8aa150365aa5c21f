package dao

import (
	"context"
	"time"

	"discuss-social/apps/comment-service/cursor"
	"discuss-social/apps/comment-service/model"
)

// CommentDAO 评论数据访问接口
type CommentDAO interface {
	// 主题操作
	CreateThread(ctx context.Context, thread *model.Thread) error
	GetThread(ctx context.Context, threadID int64) (*model.Thread, error)

	// 评论操作
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, commentID int64) (*model.Comment, error)
	EditComment(ctx context.Context, commentID int64, content string, editedAt time.Time) error
	DeleteComment(ctx context.Context, commentID int64) (*model.DeleteResult, error)

	// 评论查询
	ListRootComments(ctx context.Context, threadID int64, after *cursor.Cursor, sortOrder string, limit int) ([]*model.Comment, error)
	ListReplies(ctx context.Context, parentID int64, after *cursor.Cursor, limit int) ([]*model.Comment, error)
	GetUserComments(ctx context.Context, params *model.GetUserCommentsParams) ([]*model.Comment, int64, error)

	// 点赞操作
	AddCommentLike(ctx context.Context, commentID, userID int64) error
	RemoveCommentLike(ctx context.Context, commentID, userID int64) error
	IsCommentLiked(ctx context.Context, commentID, userID int64) (bool, error)
	BatchIsCommentLiked(ctx context.Context, commentIDs []int64, userID int64) (map[int64]bool, error)

	// 清理操作
	CleanDeletedComments(ctx context.Context, beforeTime time.Time) (int64, error)
}
