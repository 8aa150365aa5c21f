package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"discuss-social/apps/sync-service/model"
	"discuss-social/pkg/database"
)

// 查询错误定义
var (
	ErrCommentNotFound = errors.New("评论不存在")
	ErrThreadNotFound  = errors.New("主题不存在")
)

// threadRecord 主题记录（仅读取所有者，表由comment-service维护）
type threadRecord struct {
	ID      int64 `gorm:"column:id"`
	OwnerID int64 `gorm:"column:owner_id"`
}

func (threadRecord) TableName() string {
	return "threads"
}

// ReadDAO 评论只读访问接口（sync-service不做任何写入）
type ReadDAO interface {
	ListRootComments(ctx context.Context, threadID int64, sortOrder string, limit int) ([]*model.CommentRecord, error)
	ListReplies(ctx context.Context, parentID int64) ([]*model.CommentRecord, error)
	GetComment(ctx context.Context, commentID int64) (*model.CommentRecord, error)
	GetThreadOwner(ctx context.Context, threadID int64) (int64, error)
}

// readDAO 基于gorm的只读实现
type readDAO struct {
	db *database.PostgreSQL
}

// NewReadDAO 创建只读DAO实例
func NewReadDAO(db *database.PostgreSQL) ReadDAO {
	return &readDAO{
		db: db,
	}
}

// ListRootComments 按排序方向获取根评论窗口
func (d *readDAO) ListRootComments(ctx context.Context, threadID int64, sortOrder string, limit int) ([]*model.CommentRecord, error) {
	order := "created_at DESC, id DESC"
	if sortOrder == model.SortOrderAsc {
		order = "created_at ASC, id ASC"
	}

	var comments []*model.CommentRecord
	err := d.db.WithContext(ctx).
		Where("thread_id = ? AND parent_id = ? AND deleted = ?", threadID, 0, false).
		Order(order).
		Limit(limit).
		Find(&comments).Error
	return comments, err
}

// ListReplies 获取根评论的全部回复（最早优先）
func (d *readDAO) ListReplies(ctx context.Context, parentID int64) ([]*model.CommentRecord, error) {
	var replies []*model.CommentRecord
	err := d.db.WithContext(ctx).
		Where("parent_id = ? AND deleted = ?", parentID, false).
		Order("created_at ASC, id ASC").
		Find(&replies).Error
	return replies, err
}

// GetThreadOwner 获取主题所有者ID
func (d *readDAO) GetThreadOwner(ctx context.Context, threadID int64) (int64, error) {
	var thread threadRecord
	err := d.db.WithContext(ctx).Where("id = ?", threadID).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrThreadNotFound
		}
		return 0, err
	}
	return thread.OwnerID, nil
}

// GetComment 按ID获取评论
func (d *readDAO) GetComment(ctx context.Context, commentID int64) (*model.CommentRecord, error) {
	var comment model.CommentRecord
	err := d.db.WithContext(ctx).Where("id = ?", commentID).First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}
