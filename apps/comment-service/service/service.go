package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"discuss-social/apps/comment-service/cursor"
	"discuss-social/apps/comment-service/dao"
	"discuss-social/apps/comment-service/model"
	"discuss-social/pkg/config"
	tracecontext "discuss-social/pkg/context"
	"discuss-social/pkg/kafka"
	"discuss-social/pkg/logger"
	"discuss-social/pkg/redis"
	"discuss-social/pkg/telemetry"
)

// Service 评论服务
type Service struct {
	dao      dao.CommentDAO
	redis    *redis.RedisClient
	producer *kafka.Producer
	logger   logger.Logger
	policy   config.CommentConfig
}

// NewService 创建评论服务实例
func NewService(dao dao.CommentDAO, redis *redis.RedisClient, producer *kafka.Producer, logger logger.Logger, policy config.CommentConfig) *Service {
	return &Service{
		dao:      dao,
		redis:    redis,
		producer: producer,
		logger:   logger,
		policy:   policy,
	}
}

// CreateComment 创建评论
func (s *Service) CreateComment(ctx context.Context, params *model.CreateCommentParams) (*model.Comment, error) {
	ctx, span := telemetry.StartSpan(ctx, "comment.service.CreateComment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("comment.thread_id", params.ThreadID),
		attribute.Int64("comment.parent_id", params.ParentID),
		attribute.Int64("comment.author_id", params.AuthorID),
		attribute.Int("comment.content_length", len(params.Content)),
	)

	ctx = tracecontext.WithUserID(ctx, params.AuthorID)

	if params.AuthorID <= 0 {
		span.SetStatus(codes.Error, "invalid author")
		return nil, fmt.Errorf("作者ID无效")
	}

	// 主题提供所有者和类型（内容长度限制按主题类型区分）
	thread, err := s.dao.GetThread(ctx, params.ThreadID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "thread not found")
		return nil, err
	}

	content := strings.TrimSpace(params.Content)
	if err := s.validateContent(content, thread.ThreadType); err != nil {
		span.SetStatus(codes.Error, "invalid content")
		return nil, err
	}

	visibility := params.Visibility
	if visibility == "" {
		visibility = model.VisibilityPublic
	}
	if visibility != model.VisibilityPublic && visibility != model.VisibilityPrivate {
		return nil, fmt.Errorf("可见性无效: %s", visibility)
	}

	comment := &model.Comment{
		ThreadID:   params.ThreadID,
		ParentID:   params.ParentID,
		AuthorID:   params.AuthorID,
		AuthorName: params.AuthorName,
		Content:    content,
		Visibility: visibility,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	// 回复前置检查：父评论必须是存在且未删除的根评论
	// DAO在事务中再次校验，这里提前拿到父评论作者用于事件
	var parentAuthorID int64
	if params.ParentID > 0 {
		parent, err := s.dao.GetComment(ctx, params.ParentID)
		if err != nil || parent.Deleted {
			span.SetStatus(codes.Error, "parent not found")
			return nil, model.ErrParentNotFound
		}
		if parent.IsReply() {
			span.SetStatus(codes.Error, "nested reply")
			return nil, model.ErrReplyToReply
		}
		parentAuthorID = parent.AuthorID
	}

	if err := s.dao.CreateComment(ctx, comment); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create comment")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("comment.id", comment.ID))

	s.clearCommentCache(ctx, comment.ThreadID)
	s.publishEvent(ctx, model.EventCommentCreated, comment, thread, parentAuthorID, comment.AuthorID, params.AuthorName, nil)

	s.logger.Info(ctx, "Comment created successfully",
		logger.F("commentID", comment.ID),
		logger.F("threadID", comment.ThreadID),
		logger.F("authorID", comment.AuthorID))

	span.SetStatus(codes.Ok, "comment created successfully")
	return comment, nil
}

// EditComment 编辑评论
func (s *Service) EditComment(ctx context.Context, params *model.EditCommentParams) (*model.Comment, error) {
	ctx, span := telemetry.StartSpan(ctx, "comment.service.EditComment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("comment.id", params.CommentID),
		attribute.Int64("comment.actor_id", params.ActorID),
	)

	if params.CommentID <= 0 {
		return nil, fmt.Errorf("评论ID无效")
	}

	comment, err := s.dao.GetComment(ctx, params.CommentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "comment not found")
		return nil, err
	}

	// 仅作者本人可编辑
	if !comment.CanEdit(params.ActorID) {
		span.SetStatus(codes.Error, "permission denied")
		return nil, model.ErrPermissionDenied
	}

	thread, err := s.dao.GetThread(ctx, comment.ThreadID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(params.Content)
	if err := s.validateContent(content, thread.ThreadType); err != nil {
		span.SetStatus(codes.Error, "invalid content")
		return nil, err
	}

	now := time.Now()
	if err := s.dao.EditComment(ctx, comment.ID, content, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to edit comment")
		return nil, err
	}

	comment.Content = content
	comment.EditedAt = &now

	s.clearCommentCache(ctx, comment.ThreadID)
	s.publishEvent(ctx, model.EventCommentEdited, comment, thread, 0, params.ActorID, comment.AuthorName, nil)

	s.logger.Info(ctx, "Comment edited successfully",
		logger.F("commentID", comment.ID),
		logger.F("actorID", params.ActorID))

	span.SetStatus(codes.Ok, "comment edited successfully")
	return comment, nil
}

// DeleteComment 删除评论（根评论级联删除全部回复）
func (s *Service) DeleteComment(ctx context.Context, params *model.DeleteCommentParams) (*model.DeleteResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "comment.service.DeleteComment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("comment.id", params.CommentID),
		attribute.Int64("comment.actor_id", params.ActorID),
	)

	if params.CommentID <= 0 {
		return nil, fmt.Errorf("评论ID无效")
	}

	comment, err := s.dao.GetComment(ctx, params.CommentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "comment not found")
		return nil, err
	}

	thread, err := s.dao.GetThread(ctx, comment.ThreadID)
	if err != nil {
		return nil, err
	}

	// 作者、主题所有者或管理员可删除
	if !comment.CanDelete(params.ActorID, thread.OwnerID, params.IsAdmin) {
		span.SetStatus(codes.Error, "permission denied")
		return nil, model.ErrPermissionDenied
	}

	result, err := s.dao.DeleteComment(ctx, params.CommentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete comment")
		return nil, err
	}

	span.SetAttributes(attribute.Int("comment.cascaded_count", len(result.CascadedIDs)))

	s.clearCommentCache(ctx, comment.ThreadID)
	s.publishEvent(ctx, model.EventCommentDeleted, result.Comment, thread, 0, params.ActorID, "", result.CascadedIDs)

	s.logger.Info(ctx, "Comment deleted successfully",
		logger.F("commentID", comment.ID),
		logger.F("actorID", params.ActorID),
		logger.F("cascadedCount", len(result.CascadedIDs)))

	span.SetStatus(codes.Ok, "comment deleted successfully")
	return result, nil
}

// GetComment 获取评论
func (s *Service) GetComment(ctx context.Context, commentID int64) (*model.Comment, error) {
	if commentID <= 0 {
		return nil, fmt.Errorf("评论ID无效")
	}
	return s.dao.GetComment(ctx, commentID)
}

// ListComments 游标分页获取根评论列表
func (s *Service) ListComments(ctx context.Context, params *model.ListCommentsParams) ([]*model.Comment, string, bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "comment.service.ListComments")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("comment.thread_id", params.ThreadID),
		attribute.String("comment.sort_order", params.SortOrder),
		attribute.Int("comment.page_size", params.PageSize),
	)

	if params.ThreadID <= 0 {
		return nil, "", false, fmt.Errorf("主题ID无效")
	}

	sortOrder := params.SortOrder
	if sortOrder == "" {
		sortOrder = model.SortOrderDesc
	}
	if sortOrder != model.SortOrderAsc && sortOrder != model.SortOrderDesc {
		return nil, "", false, fmt.Errorf("排序方向无效: %s", sortOrder)
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	if pageSize > model.MaxPageSize {
		pageSize = model.MaxPageSize
	}

	var after *cursor.Cursor
	if params.Cursor != "" {
		var err error
		after, err = cursor.DecodeFor(params.Cursor, sortOrder)
		if err != nil {
			span.SetStatus(codes.Error, "invalid cursor")
			return nil, "", false, err
		}
	}

	// 分页查询有界超时，超时返回可重试错误而非无限挂起
	queryCtx, cancel := context.WithTimeout(ctx, model.ListQueryTimeoutSeconds*time.Second)
	defer cancel()

	// 多取一条判断是否还有下一页
	comments, err := s.dao.ListRootComments(queryCtx, params.ThreadID, after, sortOrder, pageSize+1)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list comments")
		return nil, "", false, err
	}

	hasMore := len(comments) > pageSize
	if hasMore {
		comments = comments[:pageSize]
	}

	nextCursor := ""
	if hasMore && len(comments) > 0 {
		nextCursor = cursor.FromComment(comments[len(comments)-1], sortOrder).Encode()
	}

	span.SetAttributes(attribute.Int("comment.result_count", len(comments)))
	span.SetStatus(codes.Ok, "comments listed successfully")
	return comments, nextCursor, hasMore, nil
}

// ListReplies 游标分页获取回复列表（固定最早优先）
func (s *Service) ListReplies(ctx context.Context, params *model.ListRepliesParams) ([]*model.Comment, string, bool, error) {
	if params.ParentID <= 0 {
		return nil, "", false, fmt.Errorf("父评论ID无效")
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	if pageSize > model.MaxPageSize {
		pageSize = model.MaxPageSize
	}

	var after *cursor.Cursor
	if params.Cursor != "" {
		var err error
		after, err = cursor.DecodeFor(params.Cursor, model.SortOrderAsc)
		if err != nil {
			return nil, "", false, err
		}
	}

	queryCtx, cancel := context.WithTimeout(ctx, model.ListQueryTimeoutSeconds*time.Second)
	defer cancel()

	replies, err := s.dao.ListReplies(queryCtx, params.ParentID, after, pageSize+1)
	if err != nil {
		return nil, "", false, err
	}

	hasMore := len(replies) > pageSize
	if hasMore {
		replies = replies[:pageSize]
	}

	nextCursor := ""
	if hasMore && len(replies) > 0 {
		nextCursor = cursor.FromComment(replies[len(replies)-1], model.SortOrderAsc).Encode()
	}

	return replies, nextCursor, hasMore, nil
}

// GetUserComments 获取用户评论
func (s *Service) GetUserComments(ctx context.Context, params *model.GetUserCommentsParams) ([]*model.Comment, int64, error) {
	if params.UserID <= 0 {
		return nil, 0, fmt.Errorf("用户ID无效")
	}

	if params.Page <= 0 {
		params.Page = model.DefaultPage
	}
	if params.PageSize <= 0 {
		params.PageSize = model.DefaultPageSize
	}
	if params.PageSize > model.MaxPageSize {
		params.PageSize = model.MaxPageSize
	}

	return s.dao.GetUserComments(ctx, params)
}

// GetThreadStats 获取主题统计（评论总数）
func (s *Service) GetThreadStats(ctx context.Context, threadID int64) (*model.Thread, error) {
	if threadID <= 0 {
		return nil, fmt.Errorf("主题ID无效")
	}
	return s.dao.GetThread(ctx, threadID)
}

// LikeComment 点赞评论
// 点赞不可撤销；是否允许自赞由配置决定
func (s *Service) LikeComment(ctx context.Context, commentID, actorID int64, actorName string) error {
	ctx, span := telemetry.StartSpan(ctx, "comment.service.LikeComment")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("comment.id", commentID),
		attribute.Int64("user.id", actorID),
	)

	ctx = tracecontext.WithUserID(ctx, actorID)

	if commentID <= 0 {
		return fmt.Errorf("评论ID无效")
	}
	if actorID <= 0 {
		return fmt.Errorf("用户ID无效")
	}

	comment, err := s.dao.GetComment(ctx, commentID)
	if err != nil || comment.Deleted {
		span.SetStatus(codes.Error, "comment not found")
		return model.ErrCommentNotFound
	}

	if !s.policy.AllowSelfLike && comment.AuthorID == actorID {
		span.SetStatus(codes.Error, "self like forbidden")
		return model.ErrSelfLikeForbidden
	}

	if err := s.dao.AddCommentLike(ctx, commentID, actorID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add like")
		return err
	}

	// 仅在未点赞->已点赞的转换上发布事件，重复尝试永不触发通知
	thread, terr := s.dao.GetThread(ctx, comment.ThreadID)
	if terr == nil {
		s.publishEvent(ctx, model.EventCommentLiked, comment, thread, 0, actorID, actorName, nil)
	}

	s.clearCommentCache(ctx, comment.ThreadID)

	s.logger.Info(ctx, "Comment liked successfully",
		logger.F("commentID", commentID),
		logger.F("userID", actorID))

	span.SetStatus(codes.Ok, "comment liked successfully")
	return nil
}

// UnlikeComment 取消点赞
// 默认策略下点赞是永久的，这是显式产品决策而非缺失的代码路径
func (s *Service) UnlikeComment(ctx context.Context, commentID, actorID int64) error {
	if !s.policy.AllowUnlike {
		return model.ErrUnlikeNotSupported
	}

	if commentID <= 0 || actorID <= 0 {
		return fmt.Errorf("参数无效")
	}

	if err := s.dao.RemoveCommentLike(ctx, commentID, actorID); err != nil {
		return err
	}

	comment, err := s.dao.GetComment(ctx, commentID)
	if err == nil {
		s.clearCommentCache(ctx, comment.ThreadID)
	}
	return nil
}

// IsCommentLiked 检查是否已点赞
func (s *Service) IsCommentLiked(ctx context.Context, commentID, userID int64) (bool, error) {
	if commentID <= 0 || userID <= 0 {
		return false, fmt.Errorf("参数无效")
	}
	return s.dao.IsCommentLiked(ctx, commentID, userID)
}

// BatchIsCommentLiked 批量检查点赞状态
func (s *Service) BatchIsCommentLiked(ctx context.Context, commentIDs []int64, userID int64) (map[int64]bool, error) {
	if len(commentIDs) == 0 {
		return nil, fmt.Errorf("评论ID列表不能为空")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("用户ID无效")
	}
	return s.dao.BatchIsCommentLiked(ctx, commentIDs, userID)
}

// CleanDeletedComments 清理删除已久的评论
func (s *Service) CleanDeletedComments(ctx context.Context, before time.Time) (int64, error) {
	return s.dao.CleanDeletedComments(ctx, before)
}

// 辅助方法

// validateContent 按主题类型校验评论内容
func (s *Service) validateContent(content, threadType string) error {
	if len(content) < model.MinCommentLength {
		return model.ErrEmptyContent
	}

	limit := s.policy.PostContentLimit
	if threadType == model.ThreadTypeGuestbook {
		limit = s.policy.GuestbookContentLimit
	}
	if limit > 0 && len([]rune(content)) > limit {
		return fmt.Errorf("%w，最多%d个字符", model.ErrContentTooLong, limit)
	}

	return nil
}

// clearCommentCache 清除主题相关缓存
func (s *Service) clearCommentCache(ctx context.Context, threadID int64) {
	if s.redis == nil {
		return
	}

	pattern := fmt.Sprintf("%s%d:*", model.CommentListCachePrefix, threadID)
	keys, err := s.redis.Keys(ctx, pattern)
	if err == nil && len(keys) > 0 {
		s.redis.Del(ctx, keys...)
	}

	statsKey := fmt.Sprintf("%s%d", model.ThreadStatsCachePrefix, threadID)
	s.redis.Del(ctx, statsKey)
}

// publishEvent 发布领域事件到Kafka
// 通知投递是尽力而为的，发布失败只记日志，不回滚评论变更
func (s *Service) publishEvent(ctx context.Context, eventType string, comment *model.Comment, thread *model.Thread, parentAuthorID, actorID int64, actorName string, cascadedIDs []int64) {
	if s.producer == nil {
		return
	}

	content := comment.Content
	if eventType == model.EventCommentDeleted || eventType == model.EventCommentLiked {
		content = ""
	}

	event := &model.CommentEvent{
		EventID:        uuid.New().String(),
		Type:           eventType,
		CommentID:      comment.ID,
		ThreadID:       comment.ThreadID,
		ThreadOwnerID:  thread.OwnerID,
		AuthorID:       comment.AuthorID,
		ParentID:       comment.ParentID,
		ParentAuthorID: parentAuthorID,
		ActorID:        actorID,
		ActorName:      actorName,
		Content:        content,
		Visibility:     comment.Visibility,
		CascadedIDs:    cascadedIDs,
		CreatedAt:      time.Now(),
	}

	go func() {
		key := strconv.FormatInt(event.ThreadID, 10)
		if err := s.producer.SendJSON(model.CommentEventsTopic, key, event); err != nil {
			s.logger.Error(context.Background(), "Failed to publish event",
				logger.F("eventType", eventType),
				logger.F("commentID", comment.ID),
				logger.F("error", err.Error()))
		}
	}()
}
