package converter

import (
	"testing"
	"time"

	"discuss-social/apps/comment-service/model"
)

func TestToCommentViewVisibility(t *testing.T) {
	const (
		author      = int64(1)
		threadOwner = int64(2)
		stranger    = int64(3)
	)

	conv := NewConverter()

	private := &model.Comment{
		ID:         10,
		ThreadID:   100,
		AuthorID:   author,
		Content:    "只给你看的留言",
		Visibility: model.VisibilityPrivate,
		CreatedAt:  time.Now(),
	}

	cases := []struct {
		name        string
		viewerID    int64
		wantCanView bool
		wantContent string
	}{
		{"作者可见", author, true, "只给你看的留言"},
		{"主题所有者可见", threadOwner, true, "只给你看的留言"},
		{"无关用户不可见", stranger, false, model.PrivatePlaceholder},
		{"未登录不可见", 0, false, model.PrivatePlaceholder},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			view := conv.ToCommentView(private, tc.viewerID, threadOwner)
			if view.CanView != tc.wantCanView {
				t.Errorf("CanView = %v, want %v", view.CanView, tc.wantCanView)
			}
			if view.Content != tc.wantContent {
				t.Errorf("Content = %q, want %q", view.Content, tc.wantContent)
			}
		})
	}
}

func TestToCommentViewPublic(t *testing.T) {
	conv := NewConverter()

	public := &model.Comment{
		ID:         11,
		AuthorID:   1,
		Content:    "大家好",
		Visibility: model.VisibilityPublic,
		CreatedAt:  time.Now(),
	}

	// 公开评论对任何人可见，包括未登录查看者
	view := conv.ToCommentView(public, 0, 2)
	if !view.CanView {
		t.Error("公开评论应当对所有人可见")
	}
	if view.Content != "大家好" {
		t.Errorf("Content = %q", view.Content)
	}
}

func TestToCommentViewEditedAt(t *testing.T) {
	conv := NewConverter()

	edited := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	comment := &model.Comment{
		ID:         12,
		AuthorID:   1,
		Content:    "改过了",
		Visibility: model.VisibilityPublic,
		EditedAt:   &edited,
		CreatedAt:  time.Now(),
	}

	view := conv.ToCommentView(comment, 1, 2)
	if view.EditedAt == "" {
		t.Error("已编辑的评论应携带编辑时间")
	}

	comment.EditedAt = nil
	view = conv.ToCommentView(comment, 1, 2)
	if view.EditedAt != "" {
		t.Error("未编辑的评论不应携带编辑时间")
	}
}
