package dao

import (
	"encoding/base64"
	"strconv"

	"discuss-social/apps/notification-service/model"
)

// EncodeCursor 编码分页游标（最后一条通知ID）
func EncodeCursor(lastID int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(lastID, 10)))
}

// decodeCursor 解码分页游标
func decodeCursor(token string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, model.ErrInvalidCursor
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.ErrInvalidCursor
	}
	return id, nil
}
