package model

import "errors"

// 业务错误定义
var (
	ErrNotificationNotFound = errors.New("通知不存在")
	ErrInvalidFilter        = errors.New("过滤器无效")
	ErrInvalidCursor        = errors.New("分页游标无效")
	ErrEventAlreadyHandled  = errors.New("事件已处理")
)
