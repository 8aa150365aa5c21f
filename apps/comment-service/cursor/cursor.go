package cursor

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"discuss-social/apps/comment-service/model"
)

// Cursor 分页游标，由上一页最后一条记录的排序键构成
// 微秒时间戳 + 评论ID作为并列破除键，保证并发插入下的稳定前向分页
type Cursor struct {
	CreatedAtMicro int64  `json:"created_at_micro"`
	ID             int64  `json:"id"`
	SortOrder      string `json:"sort_order"`
}

// FromComment 从评论构造游标
func FromComment(c *model.Comment, sortOrder string) *Cursor {
	return &Cursor{
		CreatedAtMicro: c.CreatedAt.UnixMicro(),
		ID:             c.ID,
		SortOrder:      sortOrder,
	}
}

// CreatedAt 还原时间排序键
func (c *Cursor) CreatedAt() time.Time {
	return time.UnixMicro(c.CreatedAtMicro)
}

// Encode 编码为不透明token
func (c *Cursor) Encode() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode 解码游标token
func Decode(token string) (*Cursor, error) {
	if token == "" {
		return nil, model.ErrInvalidCursor
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, model.ErrInvalidCursor
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, model.ErrInvalidCursor
	}
	if c.ID <= 0 || c.CreatedAtMicro <= 0 {
		return nil, model.ErrInvalidCursor
	}

	return &c, nil
}

// DecodeFor 解码并校验排序方向
// 排序方向变化会使所有在途游标失效，强制客户端全量重载
func DecodeFor(token, sortOrder string) (*Cursor, error) {
	c, err := Decode(token)
	if err != nil {
		return nil, err
	}
	if c.SortOrder != sortOrder {
		return nil, model.ErrInvalidCursor
	}
	return c, nil
}
