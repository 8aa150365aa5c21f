package main

import (
	"github.com/gin-gonic/gin"

	"discuss-social/apps/comment-service/dao"
	"discuss-social/apps/comment-service/handler"
	"discuss-social/apps/comment-service/model"
	"discuss-social/apps/comment-service/service"
	"discuss-social/pkg/server"
)

func main() {
	// 创建应用程序
	app := server.NewApplication("comment-service", server.Options{
		EnablePostgreSQL: true,
		EnableRedis:      true,
		EnableKafka:      true,
	})

	// 启用HTTP服务器
	app.EnableHTTP()

	// 自动迁移数据库表结构
	postgreSQL := app.GetPostgreSQL()
	if err := postgreSQL.AutoMigrate(
		&model.Thread{},
		&model.Comment{},
		&model.CommentLike{},
	); err != nil {
		panic("Failed to migrate database: " + err.Error())
	}

	// 初始化DAO层
	commentDAO := dao.NewCommentDAO(postgreSQL)

	// 初始化Service层
	svc := service.NewService(commentDAO, app.GetRedisClient(), app.GetKafkaProducer(), app.GetLogger(), app.GetConfig().Comment)

	// 初始化Handler并注册路由
	httpHandler := handler.NewHTTPHandler(svc, app.GetLogger())
	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		httpHandler.RegisterRoutes(engine)
	})

	// 运行应用程序
	if err := app.Run(); err != nil {
		panic(err)
	}
}
