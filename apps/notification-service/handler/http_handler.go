package handler

import (
	"github.com/gin-gonic/gin"

	"discuss-social/apps/notification-service/converter"
	"discuss-social/apps/notification-service/model"
	"discuss-social/apps/notification-service/service"
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
	api := engine.Group("/api/v1/notification")
	{
		api.POST("/list", h.ListNotifications)
		api.POST("/mark_read", h.MarkRead)
		api.POST("/mark_all_read", h.MarkAllRead)
		api.POST("/delete", h.DeleteNotification)
		api.POST("/delete_all", h.DeleteAllNotifications)
		api.POST("/unread_count", h.UnreadCount)
	}
}

// recipientID 从认证中间件取当前用户ID
func recipientID(c *gin.Context) int64 {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// ListNotifications 游标分页获取通知列表
func (h *HTTPHandler) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		Filter   string `json:"filter"`
		Cursor   string `json:"cursor"`
		PageSize int    `json:"page_size"`
	}
	if err := c.Bind(&req); err != nil {
		h.logger.Error(ctx, "Invalid list notifications request", logger.F("error", err.Error()))
		res := h.converter.BuildListNotificationsResponse(false, "Invalid request format", nil, "", false, 0)
		httpx.WriteObject(c, res, err)
		return
	}

	params := &model.ListNotificationsParams{
		RecipientID: recipientID(c),
		Filter:      req.Filter,
		Cursor:      req.Cursor,
		PageSize:    req.PageSize,
	}

	notifications, nextCursor, hasMore, total, err := h.svc.ListNotifications(ctx, params)

	var res *converter.ListNotificationsResponse
	if err != nil {
		h.logger.Error(ctx, "List notifications failed", logger.F("error", err.Error()))
		res = h.converter.BuildListNotificationsResponse(false, err.Error(), nil, "", false, 0)
	} else {
		views := h.converter.ToNotificationViews(notifications)
		res = h.converter.BuildListNotificationsResponse(true, "获取成功", views, nextCursor, hasMore, total)
	}

	httpx.WriteObject(c, res, err)
}

// MarkRead 标记通知已读
func (h *HTTPHandler) MarkRead(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		NotificationID int64 `json:"notification_id"`
	}
	if err := c.Bind(&req); err != nil {
		res := h.converter.BuildOperationResponse(false, "Invalid request format", 0)
		httpx.WriteObject(c, res, err)
		return
	}

	err := h.svc.MarkRead(ctx, recipientID(c), req.NotificationID)

	var res *converter.OperationResponse
	if err != nil {
		h.logger.Error(ctx, "Mark read failed", logger.F("error", err.Error()))
		res = h.converter.BuildOperationResponse(false, err.Error(), 0)
	} else {
		res = h.converter.BuildOperationResponse(true, "标记已读成功", 1)
	}

	httpx.WriteObject(c, res, err)
}

// MarkAllRead 标记全部通知已读
func (h *HTTPHandler) MarkAllRead(c *gin.Context) {
	ctx := c.Request.Context()

	affected, err := h.svc.MarkAllRead(ctx, recipientID(c))

	var res *converter.OperationResponse
	if err != nil {
		h.logger.Error(ctx, "Mark all read failed", logger.F("error", err.Error()))
		res = h.converter.BuildOperationResponse(false, err.Error(), 0)
	} else {
		res = h.converter.BuildOperationResponse(true, "全部标记已读成功", affected)
	}

	httpx.WriteObject(c, res, err)
}

// DeleteNotification 删除通知
func (h *HTTPHandler) DeleteNotification(c *gin.Context) {
	ctx := c.Request.Context()
	var req struct {
		NotificationID int64 `json:"notification_id"`
	}
	if err := c.Bind(&req); err != nil {
		res := h.converter.BuildOperationResponse(false, "Invalid request format", 0)
		httpx.WriteObject(c, res, err)
		return
	}

	err := h.svc.DeleteNotification(ctx, recipientID(c), req.NotificationID)

	var res *converter.OperationResponse
	if err != nil {
		h.logger.Error(ctx, "Delete notification failed", logger.F("error", err.Error()))
		res = h.converter.BuildOperationResponse(false, err.Error(), 0)
	} else {
		res = h.converter.BuildOperationResponse(true, "删除成功", 1)
	}

	httpx.WriteObject(c, res, err)
}

// DeleteAllNotifications 删除全部通知
func (h *HTTPHandler) DeleteAllNotifications(c *gin.Context) {
	ctx := c.Request.Context()

	affected, err := h.svc.DeleteAllNotifications(ctx, recipientID(c))

	var res *converter.OperationResponse
	if err != nil {
		h.logger.Error(ctx, "Delete all notifications failed", logger.F("error", err.Error()))
		res = h.converter.BuildOperationResponse(false, err.Error(), 0)
	} else {
		res = h.converter.BuildOperationResponse(true, "全部删除成功", affected)
	}

	httpx.WriteObject(c, res, err)
}

// UnreadCount 未读通知数
func (h *HTTPHandler) UnreadCount(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.svc.UnreadCount(ctx, recipientID(c))

	res := &converter.UnreadCountResponse{Success: err == nil, UnreadCount: count}
	if err != nil {
		h.logger.Error(ctx, "Get unread count failed", logger.F("error", err.Error()))
		res.Message = err.Error()
	}
	httpx.WriteObject(c, res, err)
}
