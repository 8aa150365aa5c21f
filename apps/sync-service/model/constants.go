package model

// CommentEventsTopic 评论领域事件主题
const CommentEventsTopic = "comment-events"

// 事件类型常量
const (
	EventCommentCreated = "comment.created"
	EventCommentEdited  = "comment.edited"
	EventCommentDeleted = "comment.deleted"
	EventCommentLiked   = "comment.liked"
)

// 客户端指令常量
const (
	OpSubscribe     = "subscribe"
	OpLoadMore      = "load_more"
	OpExpandReplies = "expand_replies"
	OpReconfigure   = "reconfigure"
	OpUnsubscribe   = "unsubscribe"
)

// 服务端帧类型常量
const (
	FrameSnapshot = "snapshot"
	FrameDiff     = "diff"
	FrameError    = "error"
)

// 增量变更类型常量
const (
	DiffAdded    = "added"
	DiffRemoved  = "removed"
	DiffModified = "modified"
)

// 可见性常量
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	// PrivatePlaceholder 私密评论对无权查看者展示的占位文本
	PrivatePlaceholder = "[private]"
)

// 排序方向常量
const (
	SortOrderAsc  = "asc"  // 最早优先，新评论追加在尾部
	SortOrderDesc = "desc" // 最新优先，新评论插入在头部
)

// 订阅状态机：Unsubscribed -> Loading -> Live -> (Reconfiguring -> Loading) -> Unsubscribed
const (
	StateUnsubscribed  = "unsubscribed"
	StateLoading       = "loading"
	StateLive          = "live"
	StateReconfiguring = "reconfiguring"
)

// 分页常量
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
