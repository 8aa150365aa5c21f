package dao

import (
	"context"
	"errors"
	"strconv"

	"discuss-social/apps/notification-service/model"
	"discuss-social/pkg/redis"
)

// ErrUsernameUnknown 用户名未注册到解析表
var ErrUsernameUnknown = errors.New("用户名无法解析")

// redisActorResolver 基于Redis映射表的用户名解析实现
// 身份服务把 username_to_id:<username> -> userID 写入Redis，本服务只读
type redisActorResolver struct {
	redis *redis.RedisClient
}

// NewRedisActorResolver 创建Redis用户名解析器
func NewRedisActorResolver(client *redis.RedisClient) ActorResolver {
	return &redisActorResolver{
		redis: client,
	}
}

// ResolveUsername 解析用户名为用户ID，未知用户名返回ErrUsernameUnknown
func (r *redisActorResolver) ResolveUsername(ctx context.Context, username string) (int64, error) {
	val, err := r.redis.Get(ctx, model.UsernameCachePrefix+username)
	if err != nil {
		if redis.IsNil(err) {
			return 0, ErrUsernameUnknown
		}
		return 0, err
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrUsernameUnknown
	}
	return id, nil
}
