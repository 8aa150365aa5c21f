package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"discuss-social/apps/comment-service/cursor"
	"discuss-social/apps/comment-service/model"
	"discuss-social/pkg/database"
)

// commentDAO 评论数据访问实现
type commentDAO struct {
	db *database.PostgreSQL
}

// NewCommentDAO 创建评论DAO实例
func NewCommentDAO(db *database.PostgreSQL) CommentDAO {
	return &commentDAO{
		db: db,
	}
}

// CreateThread 创建主题（由外部协作方调用）
func (d *commentDAO) CreateThread(ctx context.Context, thread *model.Thread) error {
	return d.db.WithContext(ctx).Create(thread).Error
}

// GetThread 获取主题
func (d *commentDAO) GetThread(ctx context.Context, threadID int64) (*model.Thread, error) {
	var thread model.Thread
	err := d.db.WithContext(ctx).Where("id = ?", threadID).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrThreadNotFound
		}
		return nil, err
	}
	return &thread, nil
}

// CreateComment 创建评论
// 回复的父评论回复数和主题评论总数在同一事务内维护
func (d *commentDAO) CreateComment(ctx context.Context, comment *model.Comment) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if comment.ParentID > 0 {
			// 父评论必须是存在且未删除的根评论
			var parent model.Comment
			if err := tx.Where("id = ? AND deleted = ?", comment.ParentID, false).
				First(&parent).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return model.ErrParentNotFound
				}
				return err
			}
			if parent.IsReply() {
				return model.ErrReplyToReply
			}

			if err := tx.Model(&model.Comment{}).
				Where("id = ?", comment.ParentID).
				UpdateColumn("reply_count", gorm.Expr("reply_count + ?", 1)).Error; err != nil {
				return err
			}
		}

		if err := tx.Create(comment).Error; err != nil {
			return err
		}

		return incrementThreadCountTx(tx, comment.ThreadID, 1)
	})
}

// GetComment 获取评论
func (d *commentDAO) GetComment(ctx context.Context, commentID int64) (*model.Comment, error) {
	var comment model.Comment
	err := d.db.WithContext(ctx).Where("id = ?", commentID).First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}

// EditComment 编辑评论内容
func (d *commentDAO) EditComment(ctx context.Context, commentID int64, content string, editedAt time.Time) error {
	result := d.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ? AND deleted = ?", commentID, false).
		Updates(map[string]interface{}{
			"content":   content,
			"edited_at": editedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrCommentNotFound
	}
	return nil
}

// DeleteComment 软删除评论
// 根评论级联删除所有回复，主题计数在同一事务内减少 1+N
func (d *commentDAO) DeleteComment(ctx context.Context, commentID int64) (*model.DeleteResult, error) {
	var res model.DeleteResult

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment model.Comment
		if err := tx.Where("id = ? AND deleted = ?", commentID, false).
			First(&comment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ErrCommentNotFound
			}
			return err
		}
		res.Comment = &comment

		removed := int64(1)

		if comment.IsRoot() {
			// 收集未删除的回复，一并级联删除
			var replyIDs []int64
			if err := tx.Model(&model.Comment{}).
				Where("parent_id = ? AND deleted = ?", comment.ID, false).
				Pluck("id", &replyIDs).Error; err != nil {
				return err
			}

			if len(replyIDs) > 0 {
				if err := tx.Model(&model.Comment{}).
					Where("id IN ?", replyIDs).
					Update("deleted", true).Error; err != nil {
					return err
				}
				res.CascadedIDs = replyIDs
				removed += int64(len(replyIDs))
			}
		} else {
			// 删除回复时减少父评论的回复数
			if err := tx.Model(&model.Comment{}).
				Where("id = ?", comment.ParentID).
				UpdateColumn("reply_count", gorm.Expr("reply_count - ?", 1)).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&comment).Update("deleted", true).Error; err != nil {
			return err
		}

		return incrementThreadCountTx(tx, comment.ThreadID, -removed)
	})
	if err != nil {
		return nil, err
	}

	return &res, nil
}

// ListRootComments 键集分页获取根评论
// (created_at, id) 组成稳定排序键，并发插入不影响已发出页的边界
func (d *commentDAO) ListRootComments(ctx context.Context, threadID int64, after *cursor.Cursor, sortOrder string, limit int) ([]*model.Comment, error) {
	query := d.db.WithContext(ctx).
		Where("thread_id = ? AND parent_id = ? AND deleted = ?", threadID, 0, false)

	if sortOrder == model.SortOrderAsc {
		if after != nil {
			query = query.Where("(created_at, id) > (?, ?)", after.CreatedAt(), after.ID)
		}
		query = query.Order("created_at ASC, id ASC")
	} else {
		if after != nil {
			query = query.Where("(created_at, id) < (?, ?)", after.CreatedAt(), after.ID)
		}
		query = query.Order("created_at DESC, id DESC")
	}

	var comments []*model.Comment
	err := query.Limit(limit).Find(&comments).Error
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, model.ErrStoreTimeout
		}
		return nil, err
	}
	return comments, nil
}

// ListReplies 键集分页获取回复（固定最早优先）
func (d *commentDAO) ListReplies(ctx context.Context, parentID int64, after *cursor.Cursor, limit int) ([]*model.Comment, error) {
	query := d.db.WithContext(ctx).
		Where("parent_id = ? AND deleted = ?", parentID, false)

	if after != nil {
		query = query.Where("(created_at, id) > (?, ?)", after.CreatedAt(), after.ID)
	}

	var comments []*model.Comment
	err := query.Order("created_at ASC, id ASC").Limit(limit).Find(&comments).Error
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, model.ErrStoreTimeout
		}
		return nil, err
	}
	return comments, nil
}

// GetUserComments 获取用户评论（传统页码分页）
func (d *commentDAO) GetUserComments(ctx context.Context, params *model.GetUserCommentsParams) ([]*model.Comment, int64, error) {
	query := d.db.WithContext(ctx).Model(&model.Comment{}).
		Where("author_id = ? AND deleted = ?", params.UserID, false)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (params.Page - 1) * params.PageSize
	var comments []*model.Comment
	err := query.Order("created_at DESC").
		Offset(int(offset)).Limit(int(params.PageSize)).
		Find(&comments).Error
	return comments, total, err
}

// AddCommentLike 添加评论点赞
// 读取-检查-写入在单个事务内完成，防止同一用户并发重复点赞造成重复计数
func (d *commentDAO) AddCommentLike(ctx context.Context, commentID, userID int64) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.CommentLike{}).
			Where("comment_id = ? AND user_id = ?", commentID, userID).
			Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			return model.ErrAlreadyLiked
		}

		like := &model.CommentLike{
			CommentID: commentID,
			UserID:    userID,
		}
		if err := tx.Create(like).Error; err != nil {
			return err
		}

		return tx.Model(&model.Comment{}).
			Where("id = ?", commentID).
			UpdateColumn("like_count", gorm.Expr("like_count + ?", 1)).Error
	})
}

// RemoveCommentLike 移除评论点赞（仅在配置允许取消点赞时使用）
func (d *commentDAO) RemoveCommentLike(ctx context.Context, commentID, userID int64) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).
			Delete(&model.CommentLike{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return model.ErrCommentNotFound
		}

		return tx.Model(&model.Comment{}).
			Where("id = ?", commentID).
			UpdateColumn("like_count", gorm.Expr("like_count - ?", 1)).Error
	})
}

// IsCommentLiked 检查是否已点赞
func (d *commentDAO) IsCommentLiked(ctx context.Context, commentID, userID int64) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&model.CommentLike{}).
		Where("comment_id = ? AND user_id = ?", commentID, userID).
		Count(&count).Error
	return count > 0, err
}

// BatchIsCommentLiked 批量检查点赞状态
func (d *commentDAO) BatchIsCommentLiked(ctx context.Context, commentIDs []int64, userID int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(commentIDs))
	for _, id := range commentIDs {
		result[id] = false
	}

	var likes []*model.CommentLike
	err := d.db.WithContext(ctx).
		Where("comment_id IN ? AND user_id = ?", commentIDs, userID).
		Find(&likes).Error
	if err != nil {
		return nil, err
	}

	for _, like := range likes {
		result[like.CommentID] = true
	}
	return result, nil
}

// CleanDeletedComments 物理清理删除已久的评论
func (d *commentDAO) CleanDeletedComments(ctx context.Context, beforeTime time.Time) (int64, error) {
	result := d.db.WithContext(ctx).
		Where("deleted = ? AND updated_at < ?", true, beforeTime).
		Delete(&model.Comment{})
	return result.RowsAffected, result.Error
}

// incrementThreadCountTx 在事务中增减主题评论总数
func incrementThreadCountTx(tx *gorm.DB, threadID int64, delta int64) error {
	return tx.Model(&model.Thread{}).
		Where("id = ?", threadID).
		UpdateColumn("comment_count", gorm.Expr("comment_count + ?", delta)).Error
}
