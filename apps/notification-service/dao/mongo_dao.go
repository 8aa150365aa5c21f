package dao

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"discuss-social/apps/notification-service/model"
)

// mongoDAO 通知数据访问实现
type mongoDAO struct {
	db *mongo.Database
}

// NewMongoDAO 创建MongoDB DAO实例
func NewMongoDAO(db *mongo.Database) NotificationDAO {
	return &mongoDAO{
		db: db,
	}
}

// EnsureIndexes 创建集合索引
// (event_id, recipient_id) 唯一索引是扇出幂等的最后一道防线
func (d *mongoDAO) EnsureIndexes(ctx context.Context) error {
	notifications := d.db.Collection(model.NotificationCollection)
	_, err := notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "_id", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "is_read", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "recipient_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	return err
}

// CreateNotifications 批量写入通知
// 无序插入，重复键（同事件同收件人）跳过而不中断其余写入
func (d *mongoDAO) CreateNotifications(ctx context.Context, notifications []*model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	collection := d.db.Collection(model.NotificationCollection)
	docs := make([]interface{}, len(notifications))
	for i, n := range notifications {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now()
		}
		docs[i] = n
	}

	opts := options.InsertMany().SetOrdered(false)
	_, err := collection.InsertMany(ctx, docs, opts)
	if err != nil && isDuplicateKeyError(err) {
		return nil
	}
	return err
}

// IsEventProcessed 检查事件是否已处理
func (d *mongoDAO) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	collection := d.db.Collection(model.ProcessedEventCollection)
	err := collection.FindOne(ctx, bson.M{"_id": eventID}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkEventProcessed 标记事件已处理
func (d *mongoDAO) MarkEventProcessed(ctx context.Context, eventID string) error {
	collection := d.db.Collection(model.ProcessedEventCollection)
	_, err := collection.InsertOne(ctx, &model.ProcessedEvent{
		EventID:     eventID,
		ProcessedAt: time.Now(),
	})
	if err != nil && isDuplicateKeyError(err) {
		return model.ErrEventAlreadyHandled
	}
	return err
}

// ListNotifications 游标分页获取通知列表
// 通知ID是时间有序的snowflake，按 _id 倒序键集分页
func (d *mongoDAO) ListNotifications(ctx context.Context, params *model.ListNotificationsParams) ([]*model.Notification, int64, error) {
	collection := d.db.Collection(model.NotificationCollection)

	filter := bson.M{"recipient_id": params.RecipientID}
	switch params.Filter {
	case model.FilterUnread:
		filter["is_read"] = false
	case model.FilterRead:
		filter["is_read"] = true
	case model.FilterAll, "":
	default:
		return nil, 0, model.ErrInvalidFilter
	}

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	if params.Cursor != "" {
		afterID, err := decodeCursor(params.Cursor)
		if err != nil {
			return nil, 0, err
		}
		filter["_id"] = bson.M{"$lt": afterID}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(params.PageSize))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var notifications []*model.Notification
	for cursor.Next(ctx) {
		var n model.Notification
		if err := cursor.Decode(&n); err != nil {
			continue
		}
		notifications = append(notifications, &n)
	}

	return notifications, total, nil
}

// MarkRead 标记通知已读
func (d *mongoDAO) MarkRead(ctx context.Context, recipientID, notificationID int64) error {
	collection := d.db.Collection(model.NotificationCollection)
	result, err := collection.UpdateOne(ctx,
		bson.M{"_id": notificationID, "recipient_id": recipientID},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return model.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead 标记全部通知已读
func (d *mongoDAO) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	collection := d.db.Collection(model.NotificationCollection)
	result, err := collection.UpdateMany(ctx,
		bson.M{"recipient_id": recipientID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// DeleteNotification 删除通知
func (d *mongoDAO) DeleteNotification(ctx context.Context, recipientID, notificationID int64) error {
	collection := d.db.Collection(model.NotificationCollection)
	result, err := collection.DeleteOne(ctx,
		bson.M{"_id": notificationID, "recipient_id": recipientID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return model.ErrNotificationNotFound
	}
	return nil
}

// DeleteAllNotifications 删除全部通知
func (d *mongoDAO) DeleteAllNotifications(ctx context.Context, recipientID int64) (int64, error) {
	collection := d.db.Collection(model.NotificationCollection)
	result, err := collection.DeleteMany(ctx, bson.M{"recipient_id": recipientID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// UnreadCount 未读通知数
func (d *mongoDAO) UnreadCount(ctx context.Context, recipientID int64) (int64, error) {
	collection := d.db.Collection(model.NotificationCollection)
	return collection.CountDocuments(ctx,
		bson.M{"recipient_id": recipientID, "is_read": false})
}

// isDuplicateKeyError 判断是否为重复键错误
func isDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
