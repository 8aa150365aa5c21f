package model

// 通知类型常量（封闭枚举，新类型是编译期扩展）
const (
	KindComment            = "comment"               // 新根评论通知主题所有者
	KindReply              = "reply"                 // 回复通知父评论作者
	KindReplyToThreadOwner = "reply_to_thread_owner" // 回复通知主题所有者
	KindLikeComment        = "like_comment"          // 根评论被点赞
	KindLikeReply          = "like_reply"            // 回复被点赞
	KindTag                = "tag"                   // 被@提及
)

// CommentEventsTopic 评论领域事件主题
const CommentEventsTopic = "comment-events"

// 事件类型常量
const (
	EventCommentCreated = "comment.created"
	EventCommentEdited  = "comment.edited"
	EventCommentDeleted = "comment.deleted"
	EventCommentLiked   = "comment.liked"
)

// 通知过滤器常量
const (
	FilterAll    = "all"
	FilterUnread = "unread"
	FilterRead   = "read"
)

// MongoDB集合名
const (
	NotificationCollection   = "notifications"
	ProcessedEventCollection = "processed_events"
)

// 分页常量
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Redis键前缀
const (
	ProcessedEventCachePrefix = "notif_event:"   // 已处理事件快速路径标记
	UsernameCachePrefix       = "username_to_id:" // 用户名到用户ID的映射
	ProcessedEventCacheTTL    = 86400             // 事件标记缓存过期（秒）
)
