package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"discuss-social/apps/comment-service/converter"
	"discuss-social/apps/comment-service/model"
	"discuss-social/apps/comment-service/service"
	"discuss-social/pkg/httpx"
	"discuss-social/pkg/logger"
)

// HTTPHandler HTTP处理器
type HTTPHandler struct {
	svc       *service.Service
	converter *converter.Converter
	logger    logger.Logger
}

// NewHTTPHandler 创建HTTP处理器
func NewHTTPHandler(svc *service.Service, logger logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:       svc,
		converter: converter.NewConverter(),
		logger:    logger,
	}
}

// RegisterRoutes 注册路由
func (h *HTTPHandler) RegisterRoutes(engine *gin.Engine) {
	api := engine.Group("/api/v1/comment")
	{
		// 基础评论操作
		api.POST("/create", h.CreateComment)
		api.POST("/edit", h.EditComment)
		api.POST("/delete", h.DeleteComment)
		api.POST("/get", h.GetComment)

		// 评论列表查询
		api.POST("/list", h.ListComments)
		api.POST("/replies", h.ListReplies)
		api.POST("/user_comments", h.GetUserComments)

		// 点赞
		api.POST("/like", h.LikeComment)
		api.POST("/unlike", h.UnlikeComment)
		api.POST("/is_liked", h.IsCommentLiked)
		api.POST("/batch_liked", h.BatchIsCommentLiked)

		// 统计查询
		api.POST("/thread_stats", h.GetThreadStats)
	}
}

// actorID 从认证中间件取当前用户ID
func actorID(c *gin.Context) int64 {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// actorName 从认证中间件取当前用户名
func actorName(c *gin.Context) string {
	if v, ok := c.Get("username"); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}

// CreateComment 创建评论
func (h *HTTPHandler) CreateComment(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		ThreadID   int64  `json:"thread_id"`
		ParentID   int64  `json:"parent_id"`
		Content    string `json:"content"`
		Visibility string `json:"visibility"`
	}
	if err := c.Bind(&req); err != nil {
		h.logger.Error(ctx, "Invalid create comment request", logger.F("error", err.Error()))
		res := h.converter.BuildCommentResponse(false, "Invalid request format", nil)
		httpx.WriteObject(c, res, err)
		return
	}

	params := &model.CreateCommentParams{
		ThreadID:   req.ThreadID,
		ParentID:   req.ParentID,
		AuthorID:   actorID(c),
		AuthorName: actorName(c),
		Content:    req.Content,
		Visibility: req.Visibility,
	}

	comment, err := h.svc.CreateComment(ctx, params)

	var res *converter.CommentResponse
	if err != nil {
		h.logger.Error(ctx, "Create comment failed", logger.F("error", err.Error()))
		res = h.converter.BuildCommentResponse(false, err.Error(), nil)
	} else {
		view := h.converter.ToCommentView(comment, params.AuthorID, 0)
		res = h.converter.BuildCommentResponse(true, "评论成功", view)
	}

	httpx.WriteObject(c, res, err)
}

// EditComment 编辑评论
func (h *HTTPHandler) EditComment(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		CommentID int64  `json:"comment_id"`
		Content   string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		h.logger.Error(ctx, "Invalid edit comment request", logger.F("error", err.Error()))
		res := h.converter.BuildCommentResponse(false, "Invalid request format", nil)
		httpx.WriteObject(c, res, err)
		return
	}

	params := &model.EditCommentParams{
		CommentID: req.CommentID,
		ActorID:   actorID(c),
		Content:   req.Content,
	}

	comment, err := h.svc.EditComment(ctx, params)

	var res *converter.CommentResponse
	if err != nil {
		h.logger.Error(ctx, "Edit comment failed", logger.F("error", err.Error()))
		res = h.converter.BuildCommentResponse(false, err.Error(), nil)
	} else {
		view := h.converter.ToCommentView(comment, params.ActorID, 0)
		res = h.converter.BuildCommentResponse(true, "编辑成功", view)
	}

	httpx.WriteObject(c, res, err)
}

// DeleteComment 删除评论
func (h *HTTPHandler) DeleteComment(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		CommentID int64 `json:"comment_id"`
		IsAdmin   bool  `json:"is_admin"`
	}
	if err := c.Bind(&req); err != nil {
		h.logger.Error(ctx, "Invalid delete comment request", logger.F("error", err.Error()))
		res := h.converter.BuildDeleteCommentResponse(false, "Invalid request format", nil)
		httpx.WriteObject(c, res, err)
		return
	}

	params := &model.DeleteCommentParams{
		CommentID: req.CommentID,
		ActorID:   actorID(c),
		IsAdmin:   req.IsAdmin,
	}

	result, err := h.svc.DeleteComment(ctx, params)

	var res *converter.DeleteCommentResponse
	if err != nil {
		h.logger.Error(ctx, "Delete comment failed", logger.F("error", err.Error()))
		res = h.converter.BuildDeleteCommentResponse(false, err.Error(), nil)
	} else {
		res = h.converter.BuildDeleteCommentResponse(true, "删除成功", result.CascadedIDs)
	}

	httpx.WriteObject(c, res, err)
}

// GetComment 获取评论
func (h *HTTPHandler) GetComment(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		CommentID int64 `json:"comment_id"`
	}
	if err := c.Bind(&req); err != nil {
		res := h.converter.BuildCommentResponse(false, "Invalid request format", nil)
		httpx.WriteObject(c, res, err)
		return
	}

	comment, err := h.svc.GetComment(ctx, req.CommentID)

	var res *converter.CommentResponse
	if err != nil {
		h.logger.Error(ctx, "Get comment failed", logger.F("error", err.Error()))
		res = h.converter.BuildCommentResponse(false, err.Error(), nil)
	} else {
		owner := h.threadOwner(c, comment.ThreadID)
		view := h.converter.ToCommentView(comment, actorID(c), owner)
		res = h.converter.BuildCommentResponse(true, "获取成功", view)
	}

	httpx.WriteObject(c, res, err)
}

// ListComments 游标分页获取根评论列表
func (h *HTTPHandler) ListComments(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		ThreadID  int64  `json:"thread_id"`
		SortOrder string `json:"sort_order"`
		PageSize  int    `json:"page_size"`
		Cursor    string `json:"cursor"`
	}
	if err := c.Bind(&req); err != nil {
		h.logger.Error(ctx, "Invalid list comments request", logger.F("error", err.Error()))
		res := h.converter.BuildListCommentsResponse(false, "Invalid request format", nil, "", false)
		httpx.WriteObject(c, res, err)
		return
	}

	params := &model.ListCommentsParams{
		ThreadID:  req.ThreadID,
		SortOrder: req.SortOrder,
		PageSize:  req.PageSize,
		Cursor:    req.Cursor,
	}

	comments, nextCursor, hasMore, err := h.svc.ListComments(ctx, params)

	var res *converter.ListCommentsResponse
	if err != nil {
		h.logger.Error(ctx, "List comments failed", logger.F("error", err.Error()))
		res = h.converter.BuildListCommentsResponse(false, err.Error(), nil, "", false)
	} else {
		owner := h.threadOwner(c, req.ThreadID)
		views := h.converter.ToCommentViews(comments, actorID(c), owner)
		res = h.converter.BuildListCommentsResponse(true, "获取成功", views, nextCursor, hasMore)
	}

	httpx.WriteObject(c, res, err)
}

// ListReplies 游标分页获取回复列表
func (h *HTTPHandler) ListReplies(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		ParentID int64  `json:"parent_id"`
		PageSize int    `json:"page_size"`
		Cursor   string `json:"cursor"`
	}
	if err := c.Bind(&req); err != nil {
		h.logger.Error(ctx, "Invalid list replies request", logger.F("error", err.Error()))
		res := h.converter.BuildListCommentsResponse(false, "Invalid request format", nil, "", false)
		httpx.WriteObject(c, res, err)
		return
	}

	params := &model.ListRepliesParams{
		ParentID: req.ParentID,
		PageSize: req.PageSize,
		Cursor:   req.Cursor,
	}

	replies, nextCursor, hasMore, err := h.svc.ListReplies(ctx, params)

	var res *converter.ListCommentsResponse
	if err != nil {
		h.logger.Error(ctx, "List replies failed", logger.F("error", err.Error()))
		res = h.converter.BuildListCommentsResponse(false, err.Error(), nil, "", false)
	} else {
		var owner int64
		if len(replies) > 0 {
			owner = h.threadOwner(c, replies[0].ThreadID)
		}
		views := h.converter.ToCommentViews(replies, actorID(c), owner)
		res = h.converter.BuildListCommentsResponse(true, "获取成功", views, nextCursor, hasMore)
	}

	httpx.WriteObject(c, res, err)
}

// GetUserComments 获取用户评论
func (h *HTTPHandler) GetUserComments(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		UserID   int64 `json:"user_id"`
		Page     int32 `json:"page"`
		PageSize int32 `json:"page_size"`
	}
	if err := c.Bind(&req); err != nil {
		res := h.converter.BuildUserCommentsResponse(false, "Invalid request format", nil, 0)
		httpx.WriteObject(c, res, err)
		return
	}

	params := &model.GetUserCommentsParams{
		UserID:   req.UserID,
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	comments, total, err := h.svc.GetUserComments(ctx, params)

	var res *converter.UserCommentsResponse
	if err != nil {
		h.logger.Error(ctx, "Get user comments failed", logger.F("error", err.Error()))
		res = h.converter.BuildUserCommentsResponse(false, err.Error(), nil, 0)
	} else {
		views := h.converter.ToCommentViews(comments, actorID(c), 0)
		res = h.converter.BuildUserCommentsResponse(true, "获取成功", views, total)
	}

	httpx.WriteObject(c, res, err)
}

// LikeComment 点赞评论
func (h *HTTPHandler) LikeComment(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		CommentID int64 `json:"comment_id"`
	}
	if err := c.Bind(&req); err != nil {
		res := h.converter.BuildLikeResponse(false, "Invalid request format")
		httpx.WriteObject(c, res, err)
		return
	}

	err := h.svc.LikeComment(ctx, req.CommentID, actorID(c), actorName(c))

	var res *converter.LikeResponse
	if errors.Is(err, model.ErrAlreadyLiked) {
		// 重复点赞按无操作成功处理
		res = h.converter.BuildLikeResponse(true, "已点赞")
		httpx.WriteObject(c, res, nil)
		return
	}
	if err != nil {
		h.logger.Error(ctx, "Like comment failed", logger.F("error", err.Error()))
		res = h.converter.BuildLikeResponse(false, err.Error())
	} else {
		res = h.converter.BuildLikeResponse(true, "点赞成功")
	}

	httpx.WriteObject(c, res, err)
}

// UnlikeComment 取消点赞
func (h *HTTPHandler) UnlikeComment(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		CommentID int64 `json:"comment_id"`
	}
	if err := c.Bind(&req); err != nil {
		res := h.converter.BuildLikeResponse(false, "Invalid request format")
		httpx.WriteObject(c, res, err)
		return
	}

	err := h.svc.UnlikeComment(ctx, req.CommentID, actorID(c))

	var res *converter.LikeResponse
	if err != nil {
		res = h.converter.BuildLikeResponse(false, err.Error())
	} else {
		res = h.converter.BuildLikeResponse(true, "取消点赞成功")
	}

	httpx.WriteObject(c, res, err)
}

// IsCommentLiked 检查是否已点赞
func (h *HTTPHandler) IsCommentLiked(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		CommentID int64 `json:"comment_id"`
	}
	if err := c.Bind(&req); err != nil {
		httpx.WriteObject(c, &converter.LikeStatusResponse{Success: false, Message: "Invalid request format"}, err)
		return
	}

	liked, err := h.svc.IsCommentLiked(ctx, req.CommentID, actorID(c))

	res := &converter.LikeStatusResponse{Success: err == nil, IsLiked: liked}
	if err != nil {
		res.Message = err.Error()
	}
	httpx.WriteObject(c, res, err)
}

// BatchIsCommentLiked 批量检查点赞状态
func (h *HTTPHandler) BatchIsCommentLiked(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		CommentIDs []int64 `json:"comment_ids"`
	}
	if err := c.Bind(&req); err != nil {
		httpx.WriteObject(c, &converter.LikeStatusResponse{Success: false, Message: "Invalid request format"}, err)
		return
	}

	liked, err := h.svc.BatchIsCommentLiked(ctx, req.CommentIDs, actorID(c))

	res := &converter.LikeStatusResponse{Success: err == nil, Liked: liked}
	if err != nil {
		res.Message = err.Error()
	}
	httpx.WriteObject(c, res, err)
}

// GetThreadStats 获取主题统计
func (h *HTTPHandler) GetThreadStats(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		ThreadID int64 `json:"thread_id"`
	}
	if err := c.Bind(&req); err != nil {
		res := h.converter.BuildThreadStatsResponse(false, "Invalid request format", nil)
		httpx.WriteObject(c, res, err)
		return
	}

	thread, err := h.svc.GetThreadStats(ctx, req.ThreadID)

	var res *converter.ThreadStatsResponse
	if err != nil {
		h.logger.Error(ctx, "Get thread stats failed", logger.F("error", err.Error()))
		res = h.converter.BuildThreadStatsResponse(false, err.Error(), nil)
	} else {
		res = h.converter.BuildThreadStatsResponse(true, "获取成功", h.converter.ToThreadStatsView(thread))
	}

	httpx.WriteObject(c, res, err)
}

// threadOwner 获取主题所有者ID，取不到时返回0
func (h *HTTPHandler) threadOwner(c *gin.Context, threadID int64) int64 {
	thread, err := h.svc.GetThreadStats(c.Request.Context(), threadID)
	if err != nil {
		return 0
	}
	return thread.OwnerID
}
