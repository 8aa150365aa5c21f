package model

// 主题类型常量
const (
	ThreadTypePost      = "post"      // 帖子
	ThreadTypeGuestbook = "guestbook" // 留言板
)

// 可见性常量
const (
	VisibilityPublic  = "public"  // 所有人可见
	VisibilityPrivate = "private" // 仅作者和主题所有者可见
)

// PrivatePlaceholder 私密评论对无权查看者显示的占位文本
const PrivatePlaceholder = "[private]"

// 排序方向常量
const (
	SortOrderAsc  = "asc"  // 最早优先
	SortOrderDesc = "desc" // 最新优先
)

// 分页常量
const (
	DefaultPage      = 1
	DefaultPageSize  = 20
	MaxPageSize      = 100
	DefaultReplyPage = 10
)

// 评论内容限制
const (
	MinCommentLength = 1 // 评论最小长度
)

// 缓存相关常量
const (
	CommentListCachePrefix = "comment_list:"
	ThreadStatsCachePrefix = "thread_stats:"
	CacheExpireTime        = 3600 // 缓存过期时间（秒）
)

// 事件类型常量
const (
	EventCommentCreated = "comment.created"
	EventCommentEdited  = "comment.edited"
	EventCommentDeleted = "comment.deleted"
	EventCommentLiked   = "comment.liked"
)

// CommentEventsTopic 评论事件Kafka主题
const CommentEventsTopic = "comment-events"

// 查询超时
const (
	ListQueryTimeoutSeconds = 5 // 分页查询超时（秒）
)
