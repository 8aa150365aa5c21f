package model

import "time"

// CommentEvent 评论领域事件，发布到Kafka供通知和实时同步服务消费
type CommentEvent struct {
	EventID        string    `json:"event_id"` // uuid，消费端幂等去重键
	Type           string    `json:"type"`
	CommentID      int64     `json:"comment_id"`
	ThreadID       int64     `json:"thread_id"`
	ThreadOwnerID  int64     `json:"thread_owner_id"`
	AuthorID       int64     `json:"author_id"`
	ParentID       int64     `json:"parent_id"`        // 0表示根评论
	ParentAuthorID int64     `json:"parent_author_id"` // 0表示根评论
	ActorID        int64     `json:"actor_id"`         // 执行动作的用户（点赞者/删除者）
	ActorName      string    `json:"actor_name"`
	Content        string    `json:"content"` // 删除/点赞事件为空
	Visibility     string    `json:"visibility"`
	CascadedIDs    []int64   `json:"cascaded_ids,omitempty"` // 级联删除的回复ID
	CreatedAt      time.Time `json:"created_at"`
}
