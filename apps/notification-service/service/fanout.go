package service

import (
	"fmt"

	"discuss-social/apps/notification-service/model"
)

// ComputeFanout 根据领域事件计算通知意图集合
// 纯函数：决策表逐行独立求值，每个收件人每个事件至多一条通知，
// 收件人永远不等于发送者（自触发行为被各行的抑制条件吃掉）
func ComputeFanout(event *model.CommentEvent, mentionedIDs []int64) []*model.NotificationIntent {
	var intents []*model.NotificationIntent
	seen := make(map[int64]bool)

	add := func(recipientID int64, kind, message string) {
		if recipientID <= 0 || recipientID == event.ActorID || seen[recipientID] {
			return
		}
		seen[recipientID] = true
		intents = append(intents, &model.NotificationIntent{
			RecipientID: recipientID,
			SenderID:    event.ActorID,
			Kind:        kind,
			ThreadID:    event.ThreadID,
			CommentID:   event.CommentID,
			Message:     message,
		})
	}

	switch event.Type {
	case model.EventCommentCreated:
		if event.IsReplyEvent() {
			// 回复通知父评论作者；主题所有者另收一条，除非他就是父评论作者
			add(event.ParentAuthorID, model.KindReply,
				fmt.Sprintf("%s 回复了你的评论", event.ActorName))
			if event.ThreadOwnerID != event.ParentAuthorID {
				add(event.ThreadOwnerID, model.KindReplyToThreadOwner,
					fmt.Sprintf("%s 在你的主题下发表了回复", event.ActorName))
			}
		} else {
			add(event.ThreadOwnerID, model.KindComment,
				fmt.Sprintf("%s 评论了你的主题", event.ActorName))
		}

	case model.EventCommentLiked:
		kind := model.KindLikeComment
		message := fmt.Sprintf("%s 赞了你的评论", event.ActorName)
		if event.IsReplyEvent() {
			kind = model.KindLikeReply
			message = fmt.Sprintf("%s 赞了你的回复", event.ActorName)
		}
		add(event.AuthorID, kind, message)

	case model.EventCommentEdited, model.EventCommentDeleted:
		// 编辑只产生提及通知，删除不产生任何通知
	}

	// 提及行与回复扇出行独立求值，可为同一事件叠加记录
	if event.Type == model.EventCommentCreated || event.Type == model.EventCommentEdited {
		for _, mentionedID := range mentionedIDs {
			add(mentionedID, model.KindTag,
				fmt.Sprintf("%s 在评论中提到了你", event.ActorName))
		}
	}

	return intents
}
