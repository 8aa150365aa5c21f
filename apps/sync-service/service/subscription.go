package service

import (
	"sync"

	"discuss-social/apps/sync-service/model"
)

// sendBufferSize 每个订阅的推送缓冲，写满时丢帧而不是阻塞事件分发
const sendBufferSize = 128

// Subscription 单个客户端对一个主题评论流的订阅
// 窗口是按ID存取的扁平记录仓（根评论+已展开的回复），
// order只维护窗口内根评论的排序
type Subscription struct {
	mu          sync.Mutex
	state       string
	threadID    int64
	sortOrder   string
	pageSize    int
	pagesLoaded int
	window      map[int64]*model.CommentRecord
	order       []int64
	expanded    map[int64]bool
	send        chan *model.ServerFrame
	closed      bool
	dropped     int64
	// Loading/Reconfiguring期间到达的事件，快照推送后按序重放
	pending []*model.CommentEvent
}

func newSubscription(threadID int64, sortOrder string, pageSize int) *Subscription {
	return &Subscription{
		state:       model.StateLoading,
		threadID:    threadID,
		sortOrder:   sortOrder,
		pageSize:    pageSize,
		pagesLoaded: 1,
		window:      make(map[int64]*model.CommentRecord),
		expanded:    make(map[int64]bool),
		send:        make(chan *model.ServerFrame, sendBufferSize),
	}
}

// Frames 服务端推送帧通道，退订时关闭
func (s *Subscription) Frames() <-chan *model.ServerFrame {
	return s.send
}

// State 当前订阅状态
func (s *Subscription) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ThreadID 订阅的主题ID
func (s *Subscription) ThreadID() int64 {
	return s.threadID
}

// windowLimit 窗口容量 = 页大小 × 已加载页数
func (s *Subscription) windowLimit() int {
	return s.pageSize * s.pagesLoaded
}

// sendLocked 推送帧，调用方必须持有s.mu
// 退订后永不投递；缓冲打满说明消费端跟不上，静默丢帧会让客户端
// 窗口永久漂移，直接关闭订阅强制重连全量重载
func (s *Subscription) sendLocked(frame *model.ServerFrame) {
	if s.closed {
		return
	}
	select {
	case s.send <- frame:
	default:
		s.dropped++
		s.closed = true
		s.state = model.StateUnsubscribed
		close(s.send)
	}
}

// resetWindowLocked 清空根评论窗口（排序切换时调用），调用方必须持有s.mu
// 已展开的回复保持订阅，展开状态不随排序切换回收
func (s *Subscription) resetWindowLocked() {
	for _, id := range s.order {
		delete(s.window, id)
	}
	s.order = nil
	s.pagesLoaded = 1
}

// installRootsLocked 写入一批根评论并返回added diff，调用方必须持有s.mu
func (s *Subscription) installRootsLocked(roots []*model.CommentRecord) []*model.Diff {
	diffs := make([]*model.Diff, 0, len(roots))
	for _, root := range roots {
		if _, ok := s.window[root.ID]; ok {
			continue
		}
		s.window[root.ID] = root
		s.order = append(s.order, root.ID)
		diffs = append(diffs, &model.Diff{Kind: model.DiffAdded, Comment: root})
	}
	return diffs
}

// insertRootLocked 把新根评论放进窗口，调用方必须持有s.mu
// 最新优先时插在头部；最早优先时只有窗口未满才追加在尾部。
// 返回被挤出窗口的记录ID，挤出必须以removed diff告知客户端，
// 否则客户端会留着一行服务端不再推送更新的陈旧记录
func (s *Subscription) insertRootLocked(record *model.CommentRecord) (bool, []int64) {
	if _, ok := s.window[record.ID]; ok {
		return false, nil
	}

	if s.sortOrder == model.SortOrderAsc {
		if len(s.order) >= s.windowLimit() {
			// 窗口之外的尾部追加，等load_more再出现
			return false, nil
		}
		s.window[record.ID] = record
		s.order = append(s.order, record.ID)
		return true, nil
	}

	s.window[record.ID] = record
	s.order = append([]int64{record.ID}, s.order...)
	// 头部插入挤出窗口尾部多余的记录
	var evicted []int64
	for len(s.order) > s.windowLimit() {
		last := s.order[len(s.order)-1]
		s.order = s.order[:len(s.order)-1]
		delete(s.window, last)
		evicted = append(evicted, last)
	}
	return true, evicted
}

// removeLocked 从窗口移除一条记录，调用方必须持有s.mu
func (s *Subscription) removeLocked(commentID int64) bool {
	record, ok := s.window[commentID]
	if !ok {
		return false
	}
	delete(s.window, commentID)
	if record.IsRoot() {
		for i, id := range s.order {
			if id == commentID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	return true
}
