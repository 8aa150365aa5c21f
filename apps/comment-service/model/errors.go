package model

import "errors"

// 业务错误定义
var (
	ErrEmptyContent       = errors.New("评论内容不能为空")
	ErrContentTooLong     = errors.New("评论内容过长")
	ErrThreadNotFound     = errors.New("主题不存在")
	ErrParentNotFound     = errors.New("父评论不存在或已删除")
	ErrReplyToReply       = errors.New("只能回复根评论")
	ErrCommentNotFound    = errors.New("评论不存在")
	ErrPermissionDenied   = errors.New("无权限执行此操作")
	ErrAlreadyLiked       = errors.New("已经点赞过了")
	ErrSelfLikeForbidden  = errors.New("不能给自己的评论点赞")
	ErrUnlikeNotSupported = errors.New("不支持取消点赞")
	ErrInvalidCursor      = errors.New("分页游标无效")
	ErrStoreTimeout       = errors.New("查询超时，请重试")
)
