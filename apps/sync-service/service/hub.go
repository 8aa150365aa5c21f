package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"discuss-social/apps/sync-service/dao"
	"discuss-social/apps/sync-service/model"
	"discuss-social/pkg/config"
	"discuss-social/pkg/logger"
)

// Hub 订阅中枢：维护主题到订阅的路由，把领域事件翻译成各订阅的增量帧
type Hub struct {
	mu          sync.RWMutex
	dao         dao.ReadDAO
	logger      logger.Logger
	highlight   time.Duration
	maxPageSize int
	byThread    map[int64]map[*Subscription]struct{}
}

// NewHub 创建订阅中枢
func NewHub(readDAO dao.ReadDAO, logger logger.Logger, cfg config.SyncConfig) *Hub {
	highlightSeconds := cfg.HighlightSeconds
	if highlightSeconds <= 0 {
		highlightSeconds = 5
	}
	maxPageSize := cfg.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = model.MaxPageSize
	}
	return &Hub{
		dao:         readDAO,
		logger:      logger,
		highlight:   time.Duration(highlightSeconds) * time.Second,
		maxPageSize: maxPageSize,
		byThread:    make(map[int64]map[*Subscription]struct{}),
	}
}

// Subscribe 建立订阅：Loading期间加载首页快照，随后进入Live
func (h *Hub) Subscribe(ctx context.Context, threadID int64, sortOrder string, pageSize int) (*Subscription, error) {
	if threadID <= 0 {
		return nil, fmt.Errorf("主题ID无效")
	}
	if sortOrder == "" {
		sortOrder = model.SortOrderDesc
	}
	if sortOrder != model.SortOrderAsc && sortOrder != model.SortOrderDesc {
		return nil, fmt.Errorf("排序方向无效: %s", sortOrder)
	}
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	if pageSize > h.maxPageSize {
		pageSize = h.maxPageSize
	}

	sub := newSubscription(threadID, sortOrder, pageSize)

	h.mu.Lock()
	if h.byThread[threadID] == nil {
		h.byThread[threadID] = make(map[*Subscription]struct{})
	}
	h.byThread[threadID][sub] = struct{}{}
	h.mu.Unlock()

	if err := h.loadSnapshot(ctx, sub); err != nil {
		h.Unsubscribe(sub)
		return nil, err
	}

	h.logger.Info(ctx, "Subscription established",
		logger.F("threadID", threadID),
		logger.F("sortOrder", sortOrder),
		logger.F("pageSize", pageSize))
	return sub, nil
}

// loadSnapshot 加载当前窗口并推送snapshot帧
func (h *Hub) loadSnapshot(ctx context.Context, sub *Subscription) error {
	sub.mu.Lock()
	limit := sub.windowLimit()
	threadID := sub.threadID
	sortOrder := sub.sortOrder
	sub.state = model.StateLoading
	sub.mu.Unlock()

	// 多取一条判断是否还有下一页
	roots, err := h.dao.ListRootComments(ctx, threadID, sortOrder, limit+1)
	if err != nil {
		return err
	}
	hasMore := len(roots) > limit
	if hasMore {
		roots = roots[:limit]
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return nil
	}
	diffs := sub.installRootsLocked(roots)
	sub.sendLocked(&model.ServerFrame{
		Type:     model.FrameSnapshot,
		ThreadID: threadID,
		Diffs:    diffs,
		HasMore:  hasMore,
	})
	sub.state = model.StateLive

	// 查询返回到进入Live之间提交的事件已被缓存，快照之后按序重放，
	// 快照里已有的记录重放时是no-op
	pending := sub.pending
	sub.pending = nil
	for _, event := range pending {
		if sub.closed {
			break
		}
		h.applyEventLocked(sub, event)
	}
	return nil
}

// LoadMore 扩展窗口一页，新进入窗口的记录以added diff推送
func (h *Hub) LoadMore(ctx context.Context, sub *Subscription) error {
	sub.mu.Lock()
	if sub.closed || sub.state != model.StateLive {
		sub.mu.Unlock()
		return fmt.Errorf("订阅不在Live状态")
	}
	sub.pagesLoaded++
	limit := sub.windowLimit()
	threadID := sub.threadID
	sortOrder := sub.sortOrder
	sub.mu.Unlock()

	roots, err := h.dao.ListRootComments(ctx, threadID, sortOrder, limit+1)
	if err != nil {
		sub.mu.Lock()
		sub.pagesLoaded--
		sub.mu.Unlock()
		return err
	}
	hasMore := len(roots) > limit
	if hasMore {
		roots = roots[:limit]
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return nil
	}
	diffs := sub.installRootsLocked(roots)
	sub.sendLocked(&model.ServerFrame{
		Type:     model.FrameDiff,
		ThreadID: threadID,
		Diffs:    diffs,
		HasMore:  hasMore,
	})
	return nil
}

// ExpandReplies 展开回复：首次加载后保持订阅，折叠只隐藏不退订
// 回复只加载一次，之后的变化全部来自事件流（有界读成本的显式策略）
func (h *Hub) ExpandReplies(ctx context.Context, sub *Subscription, commentID int64) error {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return fmt.Errorf("订阅已关闭")
	}
	if sub.expanded[commentID] {
		sub.mu.Unlock()
		return nil
	}
	sub.mu.Unlock()

	replies, err := h.dao.ListReplies(ctx, commentID)
	if err != nil {
		return err
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed || sub.expanded[commentID] {
		return nil
	}
	sub.expanded[commentID] = true

	diffs := make([]*model.Diff, 0, len(replies))
	for _, reply := range replies {
		sub.window[reply.ID] = reply
		diffs = append(diffs, &model.Diff{Kind: model.DiffAdded, Comment: reply})
	}
	sub.sendLocked(&model.ServerFrame{
		Type:     model.FrameSnapshot,
		ThreadID: sub.threadID,
		ParentID: commentID,
		Diffs:    diffs,
	})
	return nil
}

// Reconfigure 切换排序：窗口作废并全量重载，所有未消费游标随之失效
func (h *Hub) Reconfigure(ctx context.Context, sub *Subscription, sortOrder string) error {
	if sortOrder != model.SortOrderAsc && sortOrder != model.SortOrderDesc {
		return fmt.Errorf("排序方向无效: %s", sortOrder)
	}

	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return fmt.Errorf("订阅已关闭")
	}
	sub.state = model.StateReconfiguring
	sub.sortOrder = sortOrder
	sub.resetWindowLocked()
	sub.mu.Unlock()

	return h.loadSnapshot(ctx, sub)
}

// Unsubscribe 退订：在中枢锁内摘除并关闭推送通道，之后任何在途事件都不再投递
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if subs, ok := h.byThread[sub.threadID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.byThread, sub.threadID)
		}
	}

	sub.mu.Lock()
	alreadyClosed := sub.closed
	if !alreadyClosed {
		sub.closed = true
		sub.state = model.StateUnsubscribed
		close(sub.send)
	}
	sub.mu.Unlock()
	h.mu.Unlock()
}

// OnEvent 把领域事件按订阅的提交顺序翻译成增量帧
func (h *Hub) OnEvent(event *model.CommentEvent) {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.byThread[event.ThreadID]))
	for sub := range h.byThread[event.ThreadID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		h.applyEvent(sub, event)
	}
}

// applyEvent 对单个订阅应用事件
// Loading/Reconfiguring期间先入队，快照之后重放，避免快照窗口间隙丢事件
func (h *Hub) applyEvent(sub *Subscription, event *model.CommentEvent) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	if sub.state != model.StateLive {
		sub.pending = append(sub.pending, event)
		return
	}
	h.applyEventLocked(sub, event)
}

// applyEventLocked 应用单个事件，调用方必须持有sub.mu
func (h *Hub) applyEventLocked(sub *Subscription, event *model.CommentEvent) {
	switch event.Type {
	case model.EventCommentCreated:
		h.applyCreatedLocked(sub, event)
	case model.EventCommentDeleted:
		h.applyDeletedLocked(sub, event)
	case model.EventCommentEdited:
		h.applyEditedLocked(sub, event)
	case model.EventCommentLiked:
		h.applyLikedLocked(sub, event)
	}
}

func recordFromEvent(event *model.CommentEvent) *model.CommentRecord {
	return &model.CommentRecord{
		ID:         event.CommentID,
		ThreadID:   event.ThreadID,
		ParentID:   event.ParentID,
		AuthorID:   event.AuthorID,
		AuthorName: event.ActorName,
		Content:    event.Content,
		Visibility: event.Visibility,
		CreatedAt:  event.CreatedAt,
	}
}

func (h *Hub) applyCreatedLocked(sub *Subscription, event *model.CommentEvent) {
	record := recordFromEvent(event)

	if record.IsRoot() {
		inserted, evicted := sub.insertRootLocked(record)
		if !inserted {
			return
		}
		diffs := []*model.Diff{{Kind: model.DiffAdded, Comment: record, IsNew: true}}
		for _, id := range evicted {
			diffs = append(diffs, &model.Diff{Kind: model.DiffRemoved, CommentID: id})
		}
		sub.sendLocked(&model.ServerFrame{
			Type:     model.FrameDiff,
			ThreadID: sub.threadID,
			Diffs:    diffs,
		})
		h.scheduleHighlightClear(sub, record.ID)
		return
	}

	// 回复只推给已展开该父评论的订阅
	if !sub.expanded[event.ParentID] {
		if parent, ok := sub.window[event.ParentID]; ok {
			parent.ReplyCount++
			sub.sendLocked(&model.ServerFrame{
				Type:     model.FrameDiff,
				ThreadID: sub.threadID,
				Diffs:    []*model.Diff{{Kind: model.DiffModified, Comment: parent}},
			})
		}
		return
	}

	sub.window[record.ID] = record
	diffs := []*model.Diff{{Kind: model.DiffAdded, Comment: record}}
	if parent, ok := sub.window[event.ParentID]; ok {
		parent.ReplyCount++
		diffs = append(diffs, &model.Diff{Kind: model.DiffModified, Comment: parent})
	}
	sub.sendLocked(&model.ServerFrame{
		Type:     model.FrameDiff,
		ThreadID: sub.threadID,
		ParentID: event.ParentID,
		Diffs:    diffs,
	})
}

func (h *Hub) applyDeletedLocked(sub *Subscription, event *model.CommentEvent) {
	ids := append([]int64{event.CommentID}, event.CascadedIDs...)
	var diffs []*model.Diff
	for _, id := range ids {
		if sub.removeLocked(id) {
			diffs = append(diffs, &model.Diff{Kind: model.DiffRemoved, CommentID: id})
		}
	}
	// 回复被删时父评论的回复数同步回落
	// 创建路径对未展开的父评论也递增过计数，这里必须对称回落，
	// 不能只在回复本体在窗口内时处理
	if event.ParentID > 0 {
		if parent, ok := sub.window[event.ParentID]; ok {
			if parent.ReplyCount > 0 {
				parent.ReplyCount--
			}
			diffs = append(diffs, &model.Diff{Kind: model.DiffModified, Comment: parent})
		}
	}
	if len(diffs) == 0 {
		return
	}
	sub.sendLocked(&model.ServerFrame{
		Type:     model.FrameDiff,
		ThreadID: sub.threadID,
		Diffs:    diffs,
	})
}

func (h *Hub) applyEditedLocked(sub *Subscription, event *model.CommentEvent) {
	record, ok := sub.window[event.CommentID]
	if !ok {
		return
	}
	record.Content = event.Content
	editedAt := event.CreatedAt
	record.EditedAt = &editedAt
	sub.sendLocked(&model.ServerFrame{
		Type:     model.FrameDiff,
		ThreadID: sub.threadID,
		Diffs:    []*model.Diff{{Kind: model.DiffModified, Comment: record}},
	})
}

func (h *Hub) applyLikedLocked(sub *Subscription, event *model.CommentEvent) {
	record, ok := sub.window[event.CommentID]
	if !ok {
		return
	}
	// liked事件只在未赞->已赞的转换上发布，本地计数递增是准确的
	record.LikeCount++
	sub.sendLocked(&model.ServerFrame{
		Type:     model.FrameDiff,
		ThreadID: sub.threadID,
		Diffs:    []*model.Diff{{Kind: model.DiffModified, Comment: record}},
	})
}

// scheduleHighlightClear 高亮到期后补发modified diff清除is_new标记
func (h *Hub) scheduleHighlightClear(sub *Subscription, commentID int64) {
	time.AfterFunc(h.highlight, func() {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		if sub.closed {
			return
		}
		record, ok := sub.window[commentID]
		if !ok {
			return
		}
		sub.sendLocked(&model.ServerFrame{
			Type:     model.FrameDiff,
			ThreadID: sub.threadID,
			Diffs:    []*model.Diff{{Kind: model.DiffModified, Comment: record, IsNew: false}},
		})
	})
}
