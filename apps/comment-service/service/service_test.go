package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"discuss-social/apps/comment-service/cursor"
	"discuss-social/apps/comment-service/model"
	"discuss-social/pkg/config"
	"discuss-social/pkg/logger"
)

// fakeCommentDAO 内存版评论DAO，互斥锁保证与数据库事务等价的原子性
type fakeCommentDAO struct {
	mu       sync.Mutex
	nextID   int64
	threads  map[int64]*model.Thread
	comments map[int64]*model.Comment
	likes    map[[2]int64]bool // (commentID, userID)
}

func newFakeCommentDAO() *fakeCommentDAO {
	return &fakeCommentDAO{
		nextID:   1,
		threads:  make(map[int64]*model.Thread),
		comments: make(map[int64]*model.Comment),
		likes:    make(map[[2]int64]bool),
	}
}

func (f *fakeCommentDAO) CreateThread(ctx context.Context, thread *model.Thread) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads[thread.ID] = thread
	return nil
}

func (f *fakeCommentDAO) GetThread(ctx context.Context, threadID int64) (*model.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	thread, ok := f.threads[threadID]
	if !ok {
		return nil, model.ErrThreadNotFound
	}
	copied := *thread
	return &copied, nil
}

func (f *fakeCommentDAO) CreateComment(ctx context.Context, comment *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if comment.ParentID > 0 {
		parent, ok := f.comments[comment.ParentID]
		if !ok || parent.Deleted {
			return model.ErrParentNotFound
		}
		if parent.IsReply() {
			return model.ErrReplyToReply
		}
		parent.ReplyCount++
	}

	comment.ID = f.nextID
	f.nextID++
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	copied := *comment
	f.comments[comment.ID] = &copied

	if thread, ok := f.threads[comment.ThreadID]; ok {
		thread.CommentCount++
	}
	return nil
}

func (f *fakeCommentDAO) GetComment(ctx context.Context, commentID int64) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment, ok := f.comments[commentID]
	if !ok {
		return nil, model.ErrCommentNotFound
	}
	copied := *comment
	return &copied, nil
}

func (f *fakeCommentDAO) EditComment(ctx context.Context, commentID int64, content string, editedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment, ok := f.comments[commentID]
	if !ok || comment.Deleted {
		return model.ErrCommentNotFound
	}
	comment.Content = content
	comment.EditedAt = &editedAt
	return nil
}

func (f *fakeCommentDAO) DeleteComment(ctx context.Context, commentID int64) (*model.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	comment, ok := f.comments[commentID]
	if !ok || comment.Deleted {
		return nil, model.ErrCommentNotFound
	}

	res := &model.DeleteResult{Comment: comment}
	removed := int64(1)

	if comment.IsRoot() {
		for _, c := range f.comments {
			if c.ParentID == commentID && !c.Deleted {
				c.Deleted = true
				res.CascadedIDs = append(res.CascadedIDs, c.ID)
				removed++
			}
		}
	} else if parent, ok := f.comments[comment.ParentID]; ok {
		parent.ReplyCount--
	}

	comment.Deleted = true
	if thread, ok := f.threads[comment.ThreadID]; ok {
		thread.CommentCount -= removed
	}
	return res, nil
}

func (f *fakeCommentDAO) ListRootComments(ctx context.Context, threadID int64, after *cursor.Cursor, sortOrder string, limit int) ([]*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var roots []*model.Comment
	for _, c := range f.comments {
		if c.ThreadID == threadID && c.IsRoot() && !c.Deleted {
			copied := *c
			roots = append(roots, &copied)
		}
	}

	asc := sortOrder == model.SortOrderAsc
	sort.Slice(roots, func(i, j int) bool {
		a, b := roots[i], roots[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if asc {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		if asc {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	var result []*model.Comment
	for _, c := range roots {
		if after != nil {
			key := c.CreatedAt.UnixMicro()
			afterKey := after.CreatedAtMicro
			var beyond bool
			if asc {
				beyond = key > afterKey || (key == afterKey && c.ID > after.ID)
			} else {
				beyond = key < afterKey || (key == afterKey && c.ID < after.ID)
			}
			if !beyond {
				continue
			}
		}
		result = append(result, c)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (f *fakeCommentDAO) ListReplies(ctx context.Context, parentID int64, after *cursor.Cursor, limit int) ([]*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var replies []*model.Comment
	for _, c := range f.comments {
		if c.ParentID == parentID && !c.Deleted {
			copied := *c
			replies = append(replies, &copied)
		}
	}
	sort.Slice(replies, func(i, j int) bool {
		if !replies[i].CreatedAt.Equal(replies[j].CreatedAt) {
			return replies[i].CreatedAt.Before(replies[j].CreatedAt)
		}
		return replies[i].ID < replies[j].ID
	})

	var result []*model.Comment
	for _, c := range replies {
		if after != nil {
			key := c.CreatedAt.UnixMicro()
			if key < after.CreatedAtMicro || (key == after.CreatedAtMicro && c.ID <= after.ID) {
				continue
			}
		}
		result = append(result, c)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (f *fakeCommentDAO) GetUserComments(ctx context.Context, params *model.GetUserCommentsParams) ([]*model.Comment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*model.Comment
	for _, c := range f.comments {
		if c.AuthorID == params.UserID && !c.Deleted {
			copied := *c
			result = append(result, &copied)
		}
	}
	return result, int64(len(result)), nil
}

func (f *fakeCommentDAO) AddCommentLike(ctx context.Context, commentID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := [2]int64{commentID, userID}
	if f.likes[key] {
		return model.ErrAlreadyLiked
	}
	f.likes[key] = true
	if comment, ok := f.comments[commentID]; ok {
		comment.LikeCount++
	}
	return nil
}

func (f *fakeCommentDAO) RemoveCommentLike(ctx context.Context, commentID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int64{commentID, userID}
	if !f.likes[key] {
		return model.ErrCommentNotFound
	}
	delete(f.likes, key)
	if comment, ok := f.comments[commentID]; ok {
		comment.LikeCount--
	}
	return nil
}

func (f *fakeCommentDAO) IsCommentLiked(ctx context.Context, commentID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.likes[[2]int64{commentID, userID}], nil
}

func (f *fakeCommentDAO) BatchIsCommentLiked(ctx context.Context, commentIDs []int64, userID int64) (map[int64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[int64]bool, len(commentIDs))
	for _, id := range commentIDs {
		result[id] = f.likes[[2]int64{id, userID}]
	}
	return result, nil
}

func (f *fakeCommentDAO) CleanDeletedComments(ctx context.Context, beforeTime time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cleaned int64
	for id, c := range f.comments {
		if c.Deleted && c.UpdatedAt.Before(beforeTime) {
			delete(f.comments, id)
			cleaned++
		}
	}
	return cleaned, nil
}

// likeCountOf 读取点赞计数和点赞记录数，用于校验不变量
func (f *fakeCommentDAO) likeCountOf(commentID int64) (int32, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records int
	for key := range f.likes {
		if key[0] == commentID {
			records++
		}
	}
	return f.comments[commentID].LikeCount, records
}

func defaultPolicy() config.CommentConfig {
	return config.CommentConfig{
		PostContentLimit:      1000,
		GuestbookContentLimit: 500,
		AllowSelfLike:         false,
		AllowUnlike:           false,
	}
}

func newTestService(t *testing.T) (*Service, *fakeCommentDAO) {
	t.Helper()
	fake := newFakeCommentDAO()
	svc := NewService(fake, nil, nil, logger.GetLogger(), defaultPolicy())

	fake.CreateThread(context.Background(), &model.Thread{ID: 100, OwnerID: 2, ThreadType: model.ThreadTypePost})
	fake.CreateThread(context.Background(), &model.Thread{ID: 200, OwnerID: 2, ThreadType: model.ThreadTypeGuestbook})
	return svc, fake
}

func mustCreate(t *testing.T, svc *Service, params *model.CreateCommentParams) *model.Comment {
	t.Helper()
	comment, err := svc.CreateComment(context.Background(), params)
	if err != nil {
		t.Fatalf("创建评论失败: %v", err)
	}
	return comment
}

func TestCreateCommentValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		params  *model.CreateCommentParams
		wantErr error
	}{
		{
			"空内容",
			&model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "   "},
			model.ErrEmptyContent,
		},
		{
			"帖子超长",
			&model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: strings.Repeat("字", 1001)},
			model.ErrContentTooLong,
		},
		{
			"留言板限制更严",
			&model.CreateCommentParams{ThreadID: 200, AuthorID: 1, Content: strings.Repeat("字", 501)},
			model.ErrContentTooLong,
		},
		{
			"主题不存在",
			&model.CreateCommentParams{ThreadID: 999, AuthorID: 1, Content: "你好"},
			model.ErrThreadNotFound,
		},
		{
			"父评论不存在",
			&model.CreateCommentParams{ThreadID: 100, ParentID: 777, AuthorID: 1, Content: "你好"},
			model.ErrParentNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateComment(ctx, tc.params)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("期望 %v, got %v", tc.wantErr, err)
			}
		})
	}

	// 留言板允许500字以内
	long := strings.Repeat("字", 500)
	if _, err := svc.CreateComment(ctx, &model.CreateCommentParams{ThreadID: 200, AuthorID: 1, Content: long}); err != nil {
		t.Errorf("500字留言应当成功: %v", err)
	}
}

func TestCreateReplyToReplyRejected(t *testing.T) {
	svc, _ := newTestService(t)

	root := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "根评论"})
	reply := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, ParentID: root.ID, AuthorID: 3, Content: "回复"})

	// 嵌套深度上限为两层
	_, err := svc.CreateComment(context.Background(), &model.CreateCommentParams{
		ThreadID: 100, ParentID: reply.ID, AuthorID: 4, Content: "回复的回复",
	})
	if !errors.Is(err, model.ErrReplyToReply) {
		t.Fatalf("期望 ErrReplyToReply, got %v", err)
	}
}

func TestCascadingDelete(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	root := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "根评论"})
	for i := 0; i < 3; i++ {
		mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, ParentID: root.ID, AuthorID: 3, Content: "回复"})
	}

	thread, _ := fake.GetThread(ctx, 100)
	if thread.CommentCount != 4 {
		t.Fatalf("评论总数 = %d, want 4", thread.CommentCount)
	}

	// 作者删除根评论，3条回复级联删除，计数减少 1+3
	result, err := svc.DeleteComment(ctx, &model.DeleteCommentParams{CommentID: root.ID, ActorID: 1})
	if err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if len(result.CascadedIDs) != 3 {
		t.Errorf("级联删除数 = %d, want 3", len(result.CascadedIDs))
	}

	thread, _ = fake.GetThread(ctx, 100)
	if thread.CommentCount != 0 {
		t.Errorf("删除后评论总数 = %d, want 0", thread.CommentCount)
	}

	remaining, _, _, err := svc.ListComments(ctx, &model.ListCommentsParams{ThreadID: 100})
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("删除后仍可见 %d 条评论", len(remaining))
	}
}

func TestDeleteReplyDecrementsByOne(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	root := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "根评论"})
	reply := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, ParentID: root.ID, AuthorID: 3, Content: "回复"})

	if _, err := svc.DeleteComment(ctx, &model.DeleteCommentParams{CommentID: reply.ID, ActorID: 3}); err != nil {
		t.Fatalf("删除回复失败: %v", err)
	}

	thread, _ := fake.GetThread(ctx, 100)
	if thread.CommentCount != 1 {
		t.Errorf("评论总数 = %d, want 1", thread.CommentCount)
	}

	rootAfter, _ := fake.GetComment(ctx, root.ID)
	if rootAfter.ReplyCount != 0 {
		t.Errorf("回复数 = %d, want 0", rootAfter.ReplyCount)
	}
}

func TestDeletePermissionMatrix(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		actorID int64
		isAdmin bool
		wantOK  bool
	}{
		{"作者可删", 1, false, true},
		{"主题所有者可删", 2, false, true},
		{"管理员可删", 99, true, true},
		{"无关用户不可删", 3, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			comment := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "待删"})
			_, err := svc.DeleteComment(ctx, &model.DeleteCommentParams{
				CommentID: comment.ID, ActorID: tc.actorID, IsAdmin: tc.isAdmin,
			})
			if tc.wantOK && err != nil {
				t.Errorf("期望删除成功, got %v", err)
			}
			if !tc.wantOK && !errors.Is(err, model.ErrPermissionDenied) {
				t.Errorf("期望 ErrPermissionDenied, got %v", err)
			}
		})
	}
}

func TestEditOnlyByAuthor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	comment := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "原文"})

	// 主题所有者也不能编辑别人的评论
	_, err := svc.EditComment(ctx, &model.EditCommentParams{CommentID: comment.ID, ActorID: 2, Content: "改"})
	if !errors.Is(err, model.ErrPermissionDenied) {
		t.Fatalf("期望 ErrPermissionDenied, got %v", err)
	}

	edited, err := svc.EditComment(ctx, &model.EditCommentParams{CommentID: comment.ID, ActorID: 1, Content: "改好了"})
	if err != nil {
		t.Fatalf("作者编辑失败: %v", err)
	}
	if edited.EditedAt == nil {
		t.Error("编辑后应设置编辑时间")
	}
}

func TestConcurrentDuplicateLikes(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	comment := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "点我"})

	// 同一用户并发提交点赞，最终计数必须恰好为1
	const attempts = 20
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.LikeComment(ctx, comment.ID, 3, "liker")
		}()
	}
	wg.Wait()

	likeCount, records := fake.likeCountOf(comment.ID)
	if likeCount != 1 {
		t.Errorf("like_count = %d, want 1", likeCount)
	}
	if records != 1 {
		t.Errorf("点赞记录数 = %d, want 1", records)
	}
}

func TestLikeCountMatchesRecords(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	comment := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "热评"})

	for userID := int64(10); userID < 15; userID++ {
		if err := svc.LikeComment(ctx, comment.ID, userID, "user"); err != nil {
			t.Fatalf("点赞失败: %v", err)
		}
		// 重复点赞不改变计数
		if err := svc.LikeComment(ctx, comment.ID, userID, "user"); !errors.Is(err, model.ErrAlreadyLiked) {
			t.Fatalf("期望 ErrAlreadyLiked, got %v", err)
		}
	}

	likeCount, records := fake.likeCountOf(comment.ID)
	if likeCount != 5 || records != 5 {
		t.Errorf("like_count = %d, 记录数 = %d, want 5/5", likeCount, records)
	}
}

func TestSelfLikePolicy(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	comment := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "自恋"})

	if err := svc.LikeComment(ctx, comment.ID, 1, "author"); !errors.Is(err, model.ErrSelfLikeForbidden) {
		t.Fatalf("期望 ErrSelfLikeForbidden, got %v", err)
	}

	// 配置允许后自赞成功
	permissive := defaultPolicy()
	permissive.AllowSelfLike = true
	fake2 := newFakeCommentDAO()
	fake2.CreateThread(ctx, &model.Thread{ID: 100, OwnerID: 2, ThreadType: model.ThreadTypePost})
	svc2 := NewService(fake2, nil, nil, logger.GetLogger(), permissive)
	c2 := mustCreate(t, svc2, &model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "自恋"})
	if err := svc2.LikeComment(ctx, c2.ID, 1, "author"); err != nil {
		t.Fatalf("配置允许时自赞应成功: %v", err)
	}
}

func TestUnlikeNotSupported(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	comment := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "永久赞"})
	if err := svc.LikeComment(ctx, comment.ID, 3, "liker"); err != nil {
		t.Fatalf("点赞失败: %v", err)
	}

	if err := svc.UnlikeComment(ctx, comment.ID, 3); !errors.Is(err, model.ErrUnlikeNotSupported) {
		t.Fatalf("期望 ErrUnlikeNotSupported, got %v", err)
	}
}

func TestPaginationDisjointUnion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	fakeDAO := svc.dao.(*fakeCommentDAO)
	for i := 0; i < 25; i++ {
		fakeDAO.CreateComment(ctx, &model.Comment{
			ThreadID:   100,
			AuthorID:   1,
			Content:    "评论",
			Visibility: model.VisibilityPublic,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
	}

	// 逐页取完，无交集且保持顺序
	var paged []int64
	seen := make(map[int64]bool)
	cursorToken := ""
	for {
		page, next, hasMore, err := svc.ListComments(ctx, &model.ListCommentsParams{
			ThreadID: 100, SortOrder: model.SortOrderDesc, PageSize: 10, Cursor: cursorToken,
		})
		if err != nil {
			t.Fatalf("分页查询失败: %v", err)
		}
		for _, c := range page {
			if seen[c.ID] {
				t.Fatalf("评论 %d 出现在多页中", c.ID)
			}
			seen[c.ID] = true
			paged = append(paged, c.ID)
		}
		if !hasMore {
			break
		}
		cursorToken = next
	}

	all, _, _, err := svc.ListComments(ctx, &model.ListCommentsParams{
		ThreadID: 100, SortOrder: model.SortOrderDesc, PageSize: model.MaxPageSize,
	})
	if err != nil {
		t.Fatalf("全量查询失败: %v", err)
	}
	if len(paged) != len(all) {
		t.Fatalf("分页并集 %d 条, 全量 %d 条", len(paged), len(all))
	}
	for i := range all {
		if paged[i] != all[i].ID {
			t.Fatalf("第 %d 条顺序不一致: %d vs %d", i, paged[i], all[i].ID)
		}
	}
}

func TestListCommentsInvalidCursor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	comment := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "你好"})

	token := cursor.FromComment(comment, model.SortOrderDesc).Encode()

	// 换排序方向后旧游标失效
	_, _, _, err := svc.ListComments(ctx, &model.ListCommentsParams{
		ThreadID: 100, SortOrder: model.SortOrderAsc, Cursor: token,
	})
	if !errors.Is(err, model.ErrInvalidCursor) {
		t.Fatalf("期望 ErrInvalidCursor, got %v", err)
	}

	_, _, _, err = svc.ListComments(ctx, &model.ListCommentsParams{
		ThreadID: 100, SortOrder: model.SortOrderDesc, Cursor: "garbage!!",
	})
	if !errors.Is(err, model.ErrInvalidCursor) {
		t.Fatalf("期望 ErrInvalidCursor, got %v", err)
	}
}

func TestLikeDeletedComment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	comment := mustCreate(t, svc, &model.CreateCommentParams{ThreadID: 100, AuthorID: 1, Content: "将被删"})
	if _, err := svc.DeleteComment(ctx, &model.DeleteCommentParams{CommentID: comment.ID, ActorID: 1}); err != nil {
		t.Fatalf("删除失败: %v", err)
	}

	if err := svc.LikeComment(ctx, comment.ID, 3, "liker"); !errors.Is(err, model.ErrCommentNotFound) {
		t.Fatalf("期望 ErrCommentNotFound, got %v", err)
	}
}
