package main

import (
	"context"

	"github.com/gin-gonic/gin"

	"discuss-social/apps/notification-service/dao"
	"discuss-social/apps/notification-service/handler"
	"discuss-social/apps/notification-service/model"
	"discuss-social/apps/notification-service/service"
	"discuss-social/pkg/kafka"
	"discuss-social/pkg/lifecycle"
	"discuss-social/pkg/server"
	"discuss-social/pkg/snowflake"
)

func main() {
	// 创建应用程序
	app := server.NewApplication("notification-service", server.Options{
		EnableMongoDB: true,
		EnableRedis:   true,
		EnableKafka:   true,
	})

	// 启用HTTP服务器
	app.EnableHTTP()

	// 通知ID由snowflake生成，时间有序支撑游标分页
	if err := snowflake.InitGlobalSnowflake(2); err != nil {
		panic("Failed to init snowflake: " + err.Error())
	}

	// 初始化DAO层
	notificationDAO := dao.NewMongoDAO(app.GetMongoDB().GetDatabase())
	if err := notificationDAO.EnsureIndexes(context.Background()); err != nil {
		panic("Failed to ensure indexes: " + err.Error())
	}
	resolver := dao.NewRedisActorResolver(app.GetRedisClient())

	// 初始化Service层
	svc := service.NewService(notificationDAO, resolver, app.GetRedisClient(), app.GetLogger())

	// 初始化Handler并注册路由
	httpHandler := handler.NewHTTPHandler(svc, app.GetLogger())
	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		httpHandler.RegisterRoutes(engine)
	})

	// 初始化Kafka消费者，作为业务级生命周期钩子启动
	cfg := app.GetConfig()
	eventConsumer := service.NewEventConsumer(svc, app.GetLogger())
	consumer, err := kafka.InitConsumer(kafka.KafkaConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topics:  []string{model.CommentEventsTopic},
	}, eventConsumer)
	if err != nil {
		panic("Failed to init kafka consumer: " + err.Error())
	}

	app.AddLifecycleHook(lifecycle.Hook{
		Name: "comment-events-consumer",
		OnStart: func(ctx context.Context) error {
			return consumer.StartConsuming(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return consumer.Close()
		},
		Priority: 200,
	})

	// 运行应用程序
	if err := app.Run(); err != nil {
		panic(err)
	}
}
