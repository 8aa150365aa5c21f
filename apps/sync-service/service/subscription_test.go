package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"discuss-social/apps/sync-service/dao"
	"discuss-social/apps/sync-service/model"
	"discuss-social/pkg/config"
	"discuss-social/pkg/logger"
)

// fakeReadDAO 内存版只读DAO
type fakeReadDAO struct {
	mu              sync.Mutex
	comments        map[int64]*model.CommentRecord
	listRepliesCall int
	// 查询返回前触发一次，模拟快照查询和进入Live之间提交的写入
	onListRoots func()
}

func newFakeReadDAO() *fakeReadDAO {
	return &fakeReadDAO{comments: make(map[int64]*model.CommentRecord)}
}

func (f *fakeReadDAO) add(record *model.CommentRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[record.ID] = record
}

func (f *fakeReadDAO) ListRootComments(ctx context.Context, threadID int64, sortOrder string, limit int) ([]*model.CommentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var roots []*model.CommentRecord
	for _, c := range f.comments {
		if c.ThreadID == threadID && c.ParentID == 0 && !c.Deleted {
			roots = append(roots, c)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if sortOrder == model.SortOrderAsc {
			return roots[i].CreatedAt.Before(roots[j].CreatedAt)
		}
		return roots[i].CreatedAt.After(roots[j].CreatedAt)
	})
	if len(roots) > limit {
		roots = roots[:limit]
	}
	if f.onListRoots != nil {
		hook := f.onListRoots
		f.onListRoots = nil
		hook()
	}
	return roots, nil
}

func (f *fakeReadDAO) ListReplies(ctx context.Context, parentID int64) ([]*model.CommentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listRepliesCall++
	var replies []*model.CommentRecord
	for _, c := range f.comments {
		if c.ParentID == parentID && !c.Deleted {
			replies = append(replies, c)
		}
	}
	sort.Slice(replies, func(i, j int) bool {
		return replies[i].CreatedAt.Before(replies[j].CreatedAt)
	})
	return replies, nil
}

func (f *fakeReadDAO) GetComment(ctx context.Context, commentID int64) (*model.CommentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.comments[commentID]; ok {
		return c, nil
	}
	return nil, dao.ErrCommentNotFound
}

func (f *fakeReadDAO) GetThreadOwner(ctx context.Context, threadID int64) (int64, error) {
	return 10, nil
}

func seedRoots(fakeDAO *fakeReadDAO, threadID int64, count int) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		fakeDAO.add(&model.CommentRecord{
			ID:        int64(i + 1),
			ThreadID:  threadID,
			AuthorID:  20,
			Content:   "评论",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
}

func newTestHub(fakeDAO *fakeReadDAO) *Hub {
	hub := NewHub(fakeDAO, logger.GetLogger(), config.SyncConfig{HighlightSeconds: 5, MaxPageSize: 100})
	hub.highlight = 20 * time.Millisecond
	return hub
}

// nextFrame 读一帧，超时视为没有投递
func nextFrame(t *testing.T, sub *Subscription, timeout time.Duration) (*model.ServerFrame, bool) {
	t.Helper()
	select {
	case frame, ok := <-sub.Frames():
		return frame, ok
	case <-time.After(timeout):
		return nil, false
	}
}

func createdRootEvent(commentID, threadID int64, createdAt time.Time) *model.CommentEvent {
	return &model.CommentEvent{
		EventID:   "evt",
		Type:      model.EventCommentCreated,
		CommentID: commentID,
		ThreadID:  threadID,
		AuthorID:  30,
		ActorID:   30,
		ActorName: "alice",
		Content:   "新评论",
		CreatedAt: createdAt,
	}
}

func TestSubscribeSnapshot(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 25)
	hub := newTestHub(fakeDAO)

	sub, err := hub.Subscribe(context.Background(), 100, model.SortOrderDesc, 10)
	if err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	defer hub.Unsubscribe(sub)

	frame, ok := nextFrame(t, sub, time.Second)
	if !ok || frame.Type != model.FrameSnapshot {
		t.Fatalf("期望snapshot帧，得到 %+v", frame)
	}
	if len(frame.Diffs) != 10 {
		t.Errorf("期望10条added，得到 %d", len(frame.Diffs))
	}
	if !frame.HasMore {
		t.Error("25条评论只取10条，应有下一页")
	}
	// 最新优先：首条是最后创建的
	if frame.Diffs[0].Comment.ID != 25 {
		t.Errorf("期望首条ID=25，得到 %d", frame.Diffs[0].Comment.ID)
	}
	if sub.State() != model.StateLive {
		t.Errorf("快照后期望Live状态，得到 %s", sub.State())
	}
}

func TestLoadMoreExtendsWindow(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 25)
	hub := newTestHub(fakeDAO)

	sub, _ := hub.Subscribe(context.Background(), 100, model.SortOrderDesc, 10)
	defer hub.Unsubscribe(sub)
	nextFrame(t, sub, time.Second)

	if err := hub.LoadMore(context.Background(), sub); err != nil {
		t.Fatalf("load_more失败: %v", err)
	}
	frame, ok := nextFrame(t, sub, time.Second)
	if !ok || frame.Type != model.FrameDiff {
		t.Fatalf("期望diff帧，得到 %+v", frame)
	}
	// 只推窗口新增的第二页
	if len(frame.Diffs) != 10 {
		t.Errorf("期望10条新增，得到 %d", len(frame.Diffs))
	}
	if !frame.HasMore {
		t.Error("还剩5条，应有下一页")
	}
}

func TestNewRootCommentHeadInsert(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	// 窗口未满，头部插入不发生挤出
	seedRoots(fakeDAO, 100, 5)
	hub := newTestHub(fakeDAO)

	sub, _ := hub.Subscribe(context.Background(), 100, model.SortOrderDesc, 10)
	defer hub.Unsubscribe(sub)
	nextFrame(t, sub, time.Second)

	hub.OnEvent(createdRootEvent(50, 100, time.Now()))

	frame, ok := nextFrame(t, sub, time.Second)
	if !ok || frame.Type != model.FrameDiff {
		t.Fatalf("期望diff帧，得到 %+v", frame)
	}
	if len(frame.Diffs) != 1 || frame.Diffs[0].Kind != model.DiffAdded {
		t.Fatalf("期望1条added，得到 %+v", frame.Diffs)
	}
	if !frame.Diffs[0].IsNew {
		t.Error("头部新增应带is_new标记")
	}

	// 高亮到期后补发modified清除标记
	clearFrame, ok := nextFrame(t, sub, time.Second)
	if !ok {
		t.Fatal("期望高亮清除帧")
	}
	if clearFrame.Diffs[0].Kind != model.DiffModified || clearFrame.Diffs[0].IsNew {
		t.Errorf("期望is_new=false的modified，得到 %+v", clearFrame.Diffs[0])
	}
}

func TestNewRootCommentBeyondAscWindow(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 10)
	hub := newTestHub(fakeDAO)

	// 最早优先且窗口已满：尾部追加在窗口之外，不投递
	sub, _ := hub.Subscribe(context.Background(), 100, model.SortOrderAsc, 10)
	defer hub.Unsubscribe(sub)
	nextFrame(t, sub, time.Second)

	hub.OnEvent(createdRootEvent(50, 100, time.Now()))

	if frame, ok := nextFrame(t, sub, 100*time.Millisecond); ok {
		t.Errorf("窗口外的尾部追加不应投递，得到 %+v", frame)
	}
}

func TestNewRootCommentAscTailInsert(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 5)
	hub := newTestHub(fakeDAO)

	sub, _ := hub.Subscribe(context.Background(), 100, model.SortOrderAsc, 10)
	defer hub.Unsubscribe(sub)
	nextFrame(t, sub, time.Second)

	hub.OnEvent(createdRootEvent(50, 100, time.Now()))

	frame, ok := nextFrame(t, sub, time.Second)
	if !ok || len(frame.Diffs) != 1 || !frame.Diffs[0].IsNew {
		t.Fatalf("窗口未满时尾部追加应投递is_new，得到 %+v", frame)
	}
}

func TestCascadeDeleteRemovesFromWindow(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 3)
	base := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	fakeDAO.add(&model.CommentRecord{ID: 31, ThreadID: 100, ParentID: 1, AuthorID: 21, Content: "回复1", CreatedAt: base})
	fakeDAO.add(&model.CommentRecord{ID: 32, ThreadID: 100, ParentID: 1, AuthorID: 22, Content: "回复2", CreatedAt: base.Add(time.Minute)})
	hub := newTestHub(fakeDAO)

	sub, _ := hub.Subscribe(context.Background(), 100, model.SortOrderDesc, 10)
	defer hub.Unsubscribe(sub)
	nextFrame(t, sub, time.Second)

	if err := hub.ExpandReplies(context.Background(), sub, 1); err != nil {
		t.Fatalf("展开回复失败: %v", err)
	}
	nextFrame(t, sub, time.Second)

	hub.OnEvent(&model.CommentEvent{
		EventID:     "evt-del",
		Type:        model.EventCommentDeleted,
		CommentID:   1,
		ThreadID:    100,
		ActorID:     20,
		CascadedIDs: []int64{31, 32},
	})

	frame, ok := nextFrame(t, sub, time.Second)
	if !ok {
		t.Fatal("期望removed diff帧")
	}
	if len(frame.Diffs) != 3 {
		t.Fatalf("级联删除期望3条removed，得到 %d", len(frame.Diffs))
	}
	for _, diff := range frame.Diffs {
		if diff.Kind != model.DiffRemoved {
			t.Errorf("期望removed，得到 %s", diff.Kind)
		}
	}
}

func TestRepliesCachedOnce(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 3)
	fakeDAO.add(&model.CommentRecord{ID: 31, ThreadID: 100, ParentID: 1, Content: "回复", CreatedAt: time.Now()})
	hub := newTestHub(fakeDAO)

	sub, _ := hub.Subscribe(context.Background(), 100, model.SortOrderDesc, 10)
	defer hub.Unsubscribe(sub)
	nextFrame(t, sub, time.Second)

	hub.ExpandReplies(context.Background(), sub, 1)
	frame, ok := nextFrame(t, sub, time.Second)
	if !ok || frame.ParentID != 1 || len(frame.Diffs) != 1 {
		t.Fatalf("期望回复快照，得到 %+v", frame)
	}

	// 再次展开是no-op：回复只加载一次
	hub.ExpandReplies(context.Background(), sub, 1)
	if frame, ok := nextFrame(t, sub, 100*time.Millisecond); ok {
		t.Errorf("重复展开不应再投递，得到 %+v", frame)
	}
	if fakeDAO.listRepliesCall != 1 {
		t.Errorf("回复应只查询一次，实际 %d 次", fakeDAO.listRepliesCall)
	}
}

func TestReplyEventOnlyForExpanded(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 3)
	hub := newTestHub(fakeDAO)

	sub, _ := hub.Subscribe(context.Background(), 100, model.SortOrderDesc, 10)
	defer hub.Unsubscribe(sub)
	nextFrame(t, sub, time.Second)

	replyEvent := &model.CommentEvent{
		EventID:   "evt-reply",
		Type:      model.EventCommentCreated,
		CommentID: 41,
		ThreadID:  100,
		ParentID:  1,
		AuthorID:  30,
		ActorID:   30,
		Content:   "新回复",
		CreatedAt: time.Now(),
	}

	// 未展开：只推父评论回复数的modified
	hub.OnEvent(replyEvent)
	frame, ok := nextFrame(t, sub, time.Second)
	if !ok || len(frame.Diffs) != 1 || frame.Diffs[0].Kind != model.DiffModified {
		t.Fatalf("未展开时期望父评论modified，得到 %+v", frame)
	}
	if frame.Diffs[0].Comment.ReplyCount != 1 {
		t.Errorf("期望回复数1，得到 %d", frame.Diffs[0].Comment.ReplyCount)
	}

	// 展开后：回复本体以added投递
	hub.ExpandReplies(context.Background(), sub, 1)
	nextFrame(t, sub, time.Second)

	replyEvent2 := *replyEvent
	replyEvent2.CommentID = 42
	hub.OnEvent(&replyEvent2)
	frame, ok = nextFrame(t, sub, time.Second)
	if !ok || frame.Diffs[0].Kind != model.DiffAdded || frame.Diffs[0].Comment.ID != 42 {
		t.Fatalf("展开后期望回复added，得到 %+v", frame)
	}
}

func TestDeleteReplyUnderUnexpandedRoot(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 3)
	hub := newTestHub(fakeDAO)

	sub, _ := hub.Subscribe(context.Background(), 100, model.SortOrderDesc, 10)
	defer hub.Unsubscribe(sub)
	nextFrame(t, sub, time.Second)

	// 未展开根评论下新增回复：父评论回复数推到1
	hub.OnEvent(&model.CommentEvent{
		EventID:   "evt-reply",
		Type:      model.EventCommentCreated,
		CommentID: 41,
		ThreadID:  100,
		ParentID:  1,
		AuthorID:  30,
		ActorID:   30,
		Content:   "回复",
		CreatedAt: time.Now(),
	})
	frame, ok := nextFrame(t, sub, time.Second)
	if !ok || frame.Diffs[0].Comment.ReplyCount != 1 {
		t.Fatalf("期望父评论回复数推到1，得到 %+v", frame)
	}

	// 删除同一条回复：回复本体不在窗口里，父评论计数必须对称回落
	hub.OnEvent(&model.CommentEvent{
		EventID:   "evt-del",
		Type:      model.EventCommentDeleted,
		CommentID: 41,
		ThreadID:  100,
		ParentID:  1,
		ActorID:   30,
	})
	frame, ok = nextFrame(t, sub, time.Second)
	if !ok {
		t.Fatal("删除未展开的回复应推送父评论modified，否则客户端计数漂移")
	}
	if len(frame.Diffs) != 1 || frame.Diffs[0].Kind != model.DiffModified {
		t.Fatalf("期望1条父评论modified，得到 %+v", frame.Diffs)
	}
	if frame.Diffs[0].Comment.ReplyCount != 0 {
		t.Errorf("期望回复数回落到0，得到 %d", frame.Diffs[0].Comment.ReplyCount)
	}
}

func TestHeadInsertEvictsTailWithRemovedDiff(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 10)
	hub := newTestHub(fakeDAO)

	// 最新优先且窗口已满：头部插入挤出尾部，挤出必须以removed告知
	sub, _ := hub.Subscribe(context.Background(), 100, model.SortOrderDesc, 10)
	defer hub.Unsubscribe(sub)
	nextFrame(t, sub, time.Second)

	hub.OnEvent(createdRootEvent(50, 100, time.Now()))

	frame, ok := nextFrame(t, sub, time.Second)
	if !ok || len(frame.Diffs) != 2 {
		t.Fatalf("期望added+removed两条diff，得到 %+v", frame)
	}
	if frame.Diffs[0].Kind != model.DiffAdded || !frame.Diffs[0].IsNew {
		t.Errorf("首条期望is_new的added，得到 %+v", frame.Diffs[0])
	}
	// 尾部是窗口里最早的一条（ID=1）
	if frame.Diffs[1].Kind != model.DiffRemoved || frame.Diffs[1].CommentID != 1 {
		t.Errorf("期望removed ID=1，得到 %+v", frame.Diffs[1])
	}
}

func TestEventDuringLoadingReplayed(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 5)
	hub := newTestHub(fakeDAO)

	// 快照查询返回后、进入Live之前提交的事件不能丢：
	// 此时订阅已注册但仍在Loading，事件进入重放队列
	fakeDAO.onListRoots = func() {
		hub.OnEvent(createdRootEvent(50, 100, time.Now()))
	}

	sub, err := hub.Subscribe(context.Background(), 100, model.SortOrderDesc, 10)
	if err != nil {
		t.Fatalf("订阅失败: %v", err)
	}
	defer hub.Unsubscribe(sub)

	frame, ok := nextFrame(t, sub, time.Second)
	if !ok || frame.Type != model.FrameSnapshot {
		t.Fatalf("期望snapshot帧，得到 %+v", frame)
	}

	// 加载期间的事件在快照之后按序重放
	frame, ok = nextFrame(t, sub, time.Second)
	if !ok {
		t.Fatal("加载期间提交的评论丢失，窗口永久缺一条")
	}
	if frame.Type != model.FrameDiff || frame.Diffs[0].Comment.ID != 50 {
		t.Fatalf("期望重放ID=50的added，得到 %+v", frame)
	}
}

func TestSlowConsumerForcesTeardown(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 5)
	hub := newTestHub(fakeDAO)

	sub, _ := hub.Subscribe(context.Background(), 100, model.SortOrderDesc, 10)

	// 不消费任何帧，持续推送直到缓冲打满
	base := time.Now()
	for i := 0; i < 2*sendBufferSize; i++ {
		hub.OnEvent(createdRootEvent(int64(1000+i), 100, base.Add(time.Duration(i)*time.Second)))
	}

	// 静默丢帧会让客户端漂移，缓冲溢出必须关闭订阅强制重连
	if sub.State() != model.StateUnsubscribed {
		t.Fatalf("缓冲溢出后期望Unsubscribed，得到 %s", sub.State())
	}
	for {
		if _, ok := <-sub.Frames(); !ok {
			break
		}
	}

	// 中枢摘除是幂等的
	hub.Unsubscribe(sub)
}

func TestReconfigureResetsWindow(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 5)
	hub := newTestHub(fakeDAO)

	sub, _ := hub.Subscribe(context.Background(), 100, model.SortOrderDesc, 10)
	defer hub.Unsubscribe(sub)
	nextFrame(t, sub, time.Second)

	if err := hub.Reconfigure(context.Background(), sub, model.SortOrderAsc); err != nil {
		t.Fatalf("reconfigure失败: %v", err)
	}
	frame, ok := nextFrame(t, sub, time.Second)
	if !ok || frame.Type != model.FrameSnapshot {
		t.Fatalf("排序切换后期望全量snapshot，得到 %+v", frame)
	}
	if frame.Diffs[0].Comment.ID != 1 {
		t.Errorf("最早优先首条期望ID=1，得到 %d", frame.Diffs[0].Comment.ID)
	}
	if sub.State() != model.StateLive {
		t.Errorf("期望Live状态，得到 %s", sub.State())
	}
}

func TestTeardownDeliversNothing(t *testing.T) {
	fakeDAO := newFakeReadDAO()
	seedRoots(fakeDAO, 100, 5)
	hub := newTestHub(fakeDAO)

	sub, _ := hub.Subscribe(context.Background(), 100, model.SortOrderDesc, 10)
	nextFrame(t, sub, time.Second)

	hub.Unsubscribe(sub)
	if sub.State() != model.StateUnsubscribed {
		t.Errorf("期望Unsubscribed状态，得到 %s", sub.State())
	}

	// 退订后在途事件不再投递，通道已关闭
	hub.OnEvent(createdRootEvent(50, 100, time.Now()))
	frame, ok := <-sub.Frames()
	if ok {
		t.Errorf("退订后不应再有帧，得到 %+v", frame)
	}

	// 重复退订是安全的
	hub.Unsubscribe(sub)
}
