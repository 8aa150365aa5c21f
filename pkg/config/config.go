package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Comment  CommentConfig  `mapstructure:"comment"`
	Sync     SyncConfig     `mapstructure:"sync"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name      string `mapstructure:"name"`
	Version   string `mapstructure:"version"`
	JWTSecret string `mapstructure:"jwt_secret"`
	LogLevel  string `mapstructure:"log_level"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Network string `mapstructure:"network"`
	Addr    string `mapstructure:"addr"`
	Timeout string `mapstructure:"timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
	PostgreSQL PostgreSQLConfig `mapstructure:"postgresql"`
}

// MongoDBConfig MongoDB配置
type MongoDBConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"db_name"`
}

// PostgreSQLConfig PostgreSQL配置
type PostgreSQLConfig struct {
	DSN    string `mapstructure:"dsn"`
	DBName string `mapstructure:"db_name"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	Topic   string   `mapstructure:"topic"`
}

// CommentConfig 评论策略配置
// 点赞不可撤销、不允许自赞是显式的产品策略，而不是缺失的代码路径
type CommentConfig struct {
	PostContentLimit      int  `mapstructure:"post_content_limit"`      // 帖子评论最大长度
	GuestbookContentLimit int  `mapstructure:"guestbook_content_limit"` // 留言板评论最大长度
	AllowSelfLike         bool `mapstructure:"allow_self_like"`         // 是否允许给自己的评论点赞
	AllowUnlike           bool `mapstructure:"allow_unlike"`            // 是否允许取消点赞
}

// SyncConfig 实时同步配置
type SyncConfig struct {
	HighlightSeconds int `mapstructure:"highlight_seconds"` // 新评论高亮时长（秒）
	MaxPageSize      int `mapstructure:"max_page_size"`
}

// LoadConfig 加载配置：config.yaml（可选）+ 环境变量覆盖
func LoadConfig(serviceName string) *Config {
	var defaultHTTPPort string

	// 根据服务名称设置默认端口
	switch serviceName {
	case "comment-service":
		defaultHTTPPort = "21001"
	case "notification-service":
		defaultHTTPPort = "21002"
	case "sync-service":
		defaultHTTPPort = "21003"
	default:
		panic(fmt.Sprintf("未知的服务名称: %s，支持的服务名称: comment-service, notification-service, sync-service", serviceName))
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("DISCUSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 默认值
	v.SetDefault("app.name", serviceName)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.jwt_secret", "discuss-social")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":"+defaultHTTPPort)
	v.SetDefault("server.http.timeout", "30s")
	v.SetDefault("database.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongodb.db_name", serviceName+"DB")
	v.SetDefault("database.postgresql.dsn", "host=localhost user=postgres password=postgres dbname=discussDB port=5432 sslmode=disable")
	v.SetDefault("database.postgresql.db_name", "discussDB")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", serviceName+"-group")
	v.SetDefault("kafka.topic", "comment-events")
	v.SetDefault("comment.post_content_limit", 1000)
	v.SetDefault("comment.guestbook_content_limit", 500)
	v.SetDefault("comment.allow_self_like", false)
	v.SetDefault("comment.allow_unlike", false)
	v.SetDefault("sync.highlight_seconds", 5)
	v.SetDefault("sync.max_page_size", 100)

	// 配置文件不存在时使用默认值
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Sprintf("读取配置文件失败: %v", err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("解析配置失败: %v", err))
	}

	return &cfg
}
