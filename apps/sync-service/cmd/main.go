package main

import (
	"context"

	"discuss-social/apps/sync-service/dao"
	"discuss-social/apps/sync-service/handler"
	"discuss-social/apps/sync-service/model"
	"discuss-social/apps/sync-service/service"
	"discuss-social/pkg/kafka"
	"discuss-social/pkg/lifecycle"
	"discuss-social/pkg/server"
)

func main() {
	// 创建应用程序
	app := server.NewApplication("sync-service", server.Options{
		EnablePostgreSQL: true,
		EnableKafka:      true,
	})

	// 启用HTTP服务器（承载WebSocket握手和健康检查）
	app.EnableHTTP()
	wsServer := app.EnableWebSocket()

	cfg := app.GetConfig()

	// 初始化DAO层（只读，comments/threads表由comment-service维护）
	readDAO := dao.NewReadDAO(app.GetPostgreSQL())

	// 初始化订阅中枢
	hub := service.NewHub(readDAO, app.GetLogger(), cfg.Sync)

	// 注册WebSocket处理器
	wsHandler := handler.NewWSHandler(hub, readDAO, cfg.App.JWTSecret, app.GetLogger())
	wsServer.RegisterHandler("/ws/comments", wsHandler)

	// 初始化Kafka消费者，把评论事件按提交顺序喂给中枢
	eventConsumer := service.NewEventConsumer(hub, app.GetLogger())
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
