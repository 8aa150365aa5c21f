package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"discuss-social/apps/sync-service/dao"
	"discuss-social/apps/sync-service/model"
	"discuss-social/apps/sync-service/service"
	"discuss-social/pkg/auth"
	"discuss-social/pkg/logger"
)

// WSHandler 评论流WebSocket处理器，每个连接承载一个主题订阅
type WSHandler struct {
	hub       *service.Hub
	dao       dao.ReadDAO
	jwtSecret string
	logger    logger.Logger
}

// NewWSHandler 创建WebSocket处理器
func NewWSHandler(hub *service.Hub, readDAO dao.ReadDAO, jwtSecret string, logger logger.Logger) *WSHandler {
	return &WSHandler{
		hub:       hub,
		dao:       readDAO,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// HandleConnection 处理WebSocket连接的完整生命周期
// 握手无法携带Authorization头，身份从token查询参数解析；匿名连接可订阅，
// 私密评论内容按可见性规则在推送前打码
func (h *WSHandler) HandleConnection(conn *websocket.Conn, r *http.Request) {
	ctx := context.Background()
	viewerID := h.resolveViewer(r)

	writeMu := &sync.Mutex{}
	var sub *service.Subscription

	defer func() {
		if sub != nil {
			h.hub.Unsubscribe(sub)
		}
	}()

	for {
		var msg model.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Op {
		case model.OpSubscribe:
			if sub != nil {
				h.hub.Unsubscribe(sub)
				sub = nil
			}
			owner, err := h.dao.GetThreadOwner(ctx, msg.ThreadID)
			if err != nil {
				h.writeError(conn, writeMu, err.Error())
				continue
			}
			newSub, err := h.hub.Subscribe(ctx, msg.ThreadID, msg.SortOrder, msg.PageSize)
			if err != nil {
				h.writeError(conn, writeMu, err.Error())
				continue
			}
			sub = newSub
			go h.writeLoop(conn, writeMu, newSub, viewerID, owner)

		case model.OpLoadMore:
			if sub == nil {
				h.writeError(conn, writeMu, "尚未订阅")
				continue
			}
			if err := h.hub.LoadMore(ctx, sub); err != nil {
				h.writeError(conn, writeMu, err.Error())
			}

		case model.OpExpandReplies:
			if sub == nil {
				h.writeError(conn, writeMu, "尚未订阅")
				continue
			}
			if err := h.hub.ExpandReplies(ctx, sub, msg.CommentID); err != nil {
				h.writeError(conn, writeMu, err.Error())
			}

		case model.OpReconfigure:
			if sub == nil {
				h.writeError(conn, writeMu, "尚未订阅")
				continue
			}
			if err := h.hub.Reconfigure(ctx, sub, msg.SortOrder); err != nil {
				h.writeError(conn, writeMu, err.Error())
			}

		case model.OpUnsubscribe:
			if sub != nil {
				h.hub.Unsubscribe(sub)
				sub = nil
			}

		default:
			h.writeError(conn, writeMu, "未知指令: "+msg.Op)
		}
	}
}

// writeLoop 把订阅帧打码后推给客户端，订阅关闭时退出
// 通道关闭也可能是推送缓冲溢出触发的强制关闭，统一从中枢摘除
func (h *WSHandler) writeLoop(conn *websocket.Conn, writeMu *sync.Mutex, sub *service.Subscription, viewerID, threadOwnerID int64) {
	for frame := range sub.Frames() {
		masked := maskFrame(frame, viewerID, threadOwnerID)
		writeMu.Lock()
		err := conn.WriteJSON(masked)
		writeMu.Unlock()
		if err != nil {
			h.logger.Warn(context.Background(), "Failed to push frame, closing subscription",
				logger.F("threadID", sub.ThreadID()),
				logger.F("error", err.Error()))
			break
		}
	}
	h.hub.Unsubscribe(sub)
}

// writeError 推送错误帧
func (h *WSHandler) writeError(conn *websocket.Conn, writeMu *sync.Mutex, message string) {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.WriteJSON(&model.ServerFrame{
		Type:    model.FrameError,
		Message: message,
	})
}

// resolveViewer 从token查询参数解析观看者身份，失败按匿名处理
func (h *WSHandler) resolveViewer(r *http.Request) int64 {
	token := r.URL.Query().Get("token")
	if token == "" {
		return 0
	}
	claims, err := auth.ValidateJWT(token, h.jwtSecret)
	if err != nil {
		return 0
	}
	return claims.UserID
}

// maskFrame 按可见性规则打码私密评论
// 读路径之外的推送路径同样强制执行，不信任上游给了什么
func maskFrame(frame *model.ServerFrame, viewerID, threadOwnerID int64) *model.ServerFrame {
	needsMask := false
	for _, diff := range frame.Diffs {
		if diff.Comment != nil && !visibleTo(diff.Comment, viewerID, threadOwnerID) {
			needsMask = true
			break
		}
	}
	if !needsMask {
		return frame
	}

	masked := *frame
	masked.Diffs = make([]*model.Diff, len(frame.Diffs))
	for i, diff := range frame.Diffs {
		if diff.Comment != nil && !visibleTo(diff.Comment, viewerID, threadOwnerID) {
			record := *diff.Comment
			record.Content = model.PrivatePlaceholder
			maskedDiff := *diff
			maskedDiff.Comment = &record
			masked.Diffs[i] = &maskedDiff
		} else {
			masked.Diffs[i] = diff
		}
	}
	return &masked
}

// visibleTo 私密评论仅作者本人和主题所有者可见
func visibleTo(record *model.CommentRecord, viewerID, threadOwnerID int64) bool {
	if record.Visibility != model.VisibilityPrivate {
		return true
	}
	return viewerID != 0 && (viewerID == record.AuthorID || viewerID == threadOwnerID)
}
