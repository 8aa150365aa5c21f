package service

import (
	"context"
	"sync"
	"testing"

	"discuss-social/apps/notification-service/dao"
	"discuss-social/apps/notification-service/model"
	"discuss-social/pkg/logger"
	"discuss-social/pkg/snowflake"
)

func TestMain(m *testing.M) {
	if err := snowflake.InitGlobalSnowflake(1); err != nil {
		panic(err)
	}
	m.Run()
}

// fakeNotificationDAO 内存版通知DAO，复刻(event_id, recipient_id)唯一索引语义
type fakeNotificationDAO struct {
	mu            sync.Mutex
	notifications []*model.Notification
	dedupKeys     map[[2]interface{}]bool
	processed     map[string]bool
}

func newFakeNotificationDAO() *fakeNotificationDAO {
	return &fakeNotificationDAO{
		dedupKeys: make(map[[2]interface{}]bool),
		processed: make(map[string]bool),
	}
}

func (f *fakeNotificationDAO) EnsureIndexes(ctx context.Context) error { return nil }

func (f *fakeNotificationDAO) CreateNotifications(ctx context.Context, notifications []*model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range notifications {
		key := [2]interface{}{n.EventID, n.RecipientID}
		if f.dedupKeys[key] {
			continue
		}
		f.dedupKeys[key] = true
		f.notifications = append(f.notifications, n)
	}
	return nil
}

func (f *fakeNotificationDAO) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processed[eventID], nil
}

func (f *fakeNotificationDAO) MarkEventProcessed(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processed[eventID] {
		return model.ErrEventAlreadyHandled
	}
	f.processed[eventID] = true
	return nil
}

func (f *fakeNotificationDAO) ListNotifications(ctx context.Context, params *model.ListNotificationsParams) ([]*model.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*model.Notification
	for _, n := range f.notifications {
		if n.RecipientID != params.RecipientID {
			continue
		}
		switch params.Filter {
		case model.FilterUnread:
			if n.IsRead {
				continue
			}
		case model.FilterRead:
			if !n.IsRead {
				continue
			}
		}
		matched = append(matched, n)
	}
	total := int64(len(matched))
	if params.PageSize > 0 && len(matched) > params.PageSize {
		matched = matched[:params.PageSize]
	}
	return matched, total, nil
}

func (f *fakeNotificationDAO) MarkRead(ctx context.Context, recipientID, notificationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.ID == notificationID && n.RecipientID == recipientID {
			n.IsRead = true
			return nil
		}
	}
	return model.ErrNotificationNotFound
}

func (f *fakeNotificationDAO) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var affected int64
	for _, n := range f.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			affected++
		}
	}
	return affected, nil
}

func (f *fakeNotificationDAO) DeleteNotification(ctx context.Context, recipientID, notificationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.notifications {
		if n.ID == notificationID && n.RecipientID == recipientID {
			f.notifications = append(f.notifications[:i], f.notifications[i+1:]...)
			return nil
		}
	}
	return model.ErrNotificationNotFound
}

func (f *fakeNotificationDAO) DeleteAllNotifications(ctx context.Context, recipientID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*model.Notification
	var deleted int64
	for _, n := range f.notifications {
		if n.RecipientID == recipientID {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	f.notifications = kept
	return deleted, nil
}

func (f *fakeNotificationDAO) UnreadCount(ctx context.Context, recipientID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, n := range f.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationDAO) countFor(recipientID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.notifications {
		if n.RecipientID == recipientID {
			count++
		}
	}
	return count
}

// fakeResolver 静态用户名映射
type fakeResolver struct {
	users map[string]int64
}

func (f *fakeResolver) ResolveUsername(ctx context.Context, username string) (int64, error) {
	if id, ok := f.users[username]; ok {
		return id, nil
	}
	return 0, dao.ErrUsernameUnknown
}

func newTestService(d dao.NotificationDAO, r dao.ActorResolver) *Service {
	return NewService(d, r, nil, logger.GetLogger())
}

func replyEvent(eventID string) *model.CommentEvent {
	return &model.CommentEvent{
		EventID:        eventID,
		Type:           model.EventCommentCreated,
		CommentID:      2,
		ThreadID:       100,
		ThreadOwnerID:  10,
		AuthorID:       30,
		ParentID:       1,
		ParentAuthorID: 20,
		ActorID:        30,
		ActorName:      "alice",
		Content:        "回复内容",
	}
}

func TestProcessEventFansOut(t *testing.T) {
	fakeDAO := newFakeNotificationDAO()
	svc := newTestService(fakeDAO, nil)

	if err := svc.ProcessEvent(context.Background(), replyEvent("evt-100")); err != nil {
		t.Fatalf("处理事件失败: %v", err)
	}

	if got := fakeDAO.countFor(20); got != 1 {
		t.Errorf("父评论作者期望1条通知，得到 %d", got)
	}
	if got := fakeDAO.countFor(10); got != 1 {
		t.Errorf("主题所有者期望1条通知，得到 %d", got)
	}
	if !fakeDAO.processed["evt-100"] {
		t.Error("事件应被标记为已处理")
	}
}

func TestProcessEventIdempotent(t *testing.T) {
	fakeDAO := newFakeNotificationDAO()
	svc := newTestService(fakeDAO, nil)

	// 同一事件重投递三次，通知集合与投递一次完全相同
	for i := 0; i < 3; i++ {
		if err := svc.ProcessEvent(context.Background(), replyEvent("evt-200")); err != nil {
			t.Fatalf("第%d次处理失败: %v", i+1, err)
		}
	}

	if got := len(fakeDAO.notifications); got != 2 {
		t.Errorf("重投递后期望2条通知，得到 %d", got)
	}
}

func TestProcessEventResolvesMentions(t *testing.T) {
	fakeDAO := newFakeNotificationDAO()
	resolver := &fakeResolver{users: map[string]int64{"carol": 40}}
	svc := newTestService(fakeDAO, resolver)

	event := replyEvent("evt-300")
	event.Content = "@carol @ghost 看这里"

	if err := svc.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("处理事件失败: %v", err)
	}

	// carol被解析并通知，ghost无法解析被静默跳过
	if got := fakeDAO.countFor(40); got != 1 {
		t.Errorf("被提及者期望1条通知，得到 %d", got)
	}
	if got := len(fakeDAO.notifications); got != 3 {
		t.Errorf("期望3条通知（父作者+所有者+提及），得到 %d", got)
	}
}

func TestProcessEventRejectsEmptyID(t *testing.T) {
	svc := newTestService(newFakeNotificationDAO(), nil)
	event := replyEvent("")
	if err := svc.ProcessEvent(context.Background(), event); err == nil {
		t.Error("空事件ID应返回错误")
	}
}

func TestListNotificationsPagination(t *testing.T) {
	fakeDAO := newFakeNotificationDAO()
	svc := newTestService(fakeDAO, nil)

	for i := 0; i < 5; i++ {
		fakeDAO.notifications = append(fakeDAO.notifications, &model.Notification{
			ID:          int64(i + 1),
			RecipientID: 10,
			Kind:        model.KindComment,
		})
	}

	notifications, nextCursor, hasMore, total, err := svc.ListNotifications(context.Background(), &model.ListNotificationsParams{
		RecipientID: 10,
		Filter:      model.FilterAll,
		PageSize:    3,
	})
	if err != nil {
		t.Fatalf("获取列表失败: %v", err)
	}
	if len(notifications) != 3 {
		t.Errorf("期望3条，得到 %d", len(notifications))
	}
	if !hasMore || nextCursor == "" {
		t.Errorf("期望还有下一页，hasMore=%v cursor=%q", hasMore, nextCursor)
	}
	if total != 5 {
		t.Errorf("期望总数5，得到 %d", total)
	}
}

func TestInboxReadAndDelete(t *testing.T) {
	fakeDAO := newFakeNotificationDAO()
	svc := newTestService(fakeDAO, nil)

	fakeDAO.notifications = []*model.Notification{
		{ID: 1, RecipientID: 10},
		{ID: 2, RecipientID: 10},
		{ID: 3, RecipientID: 99},
	}

	// 不能操作别人的通知
	if err := svc.MarkRead(context.Background(), 10, 3); err == nil {
		t.Error("标记他人通知应失败")
	}

	if err := svc.MarkRead(context.Background(), 10, 1); err != nil {
		t.Fatalf("标记已读失败: %v", err)
	}
	count, err := svc.UnreadCount(context.Background(), 10)
	if err != nil || count != 1 {
		t.Errorf("期望未读数1，得到 %d (err=%v)", count, err)
	}

	affected, err := svc.MarkAllRead(context.Background(), 10)
	if err != nil || affected != 1 {
		t.Errorf("期望全部已读影响1条，得到 %d (err=%v)", affected, err)
	}

	deleted, err := svc.DeleteAllNotifications(context.Background(), 10)
	if err != nil || deleted != 2 {
		t.Errorf("期望删除2条，得到 %d (err=%v)", deleted, err)
	}
	if got := fakeDAO.countFor(99); got != 1 {
		t.Errorf("他人通知不应被删除，剩余 %d", got)
	}
}
