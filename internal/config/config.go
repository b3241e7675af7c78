package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Converter  ConverterConfig
	Auth       AuthConfig
	Audio      AudioConfig
	Elastic    ElasticConfig
	Embedding  EmbeddingConfig
	Kafka      KafkaConfig
	Membership MembershipConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host          string
	Port          int
	Mode          string
	ReadTimeout   int
	WriteTimeout  int
	MaxUploadSize int64 // 上传大小上限（字节）
	CORSOrigins   []string
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig 文件存储配置
type StorageConfig struct {
	Provider  string // local, minio
	UploadDir string // 本地存储目录
	CacheDir  string // 对象存储的本地缓存目录
	MinIO     MinIOConfig
}

// MinIOConfig MinIO 配置
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ConverterConfig Word 文档转 PDF 配置
type ConverterConfig struct {
	OfficeEnabled bool   // 是否启用 LibreOffice 渲染
	SofficePath   string // soffice 可执行文件
	TimeoutSec    int    // 单次转换超时
	TempDir       string
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret string
}

// AudioConfig 语音转写配置
type AudioConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ElasticConfig Elasticsearch配置
type ElasticConfig struct {
	Host        string
	Username    string
	Password    string
	IndexPrefix string
}

// EmbeddingConfig Embedding配置
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	Timeout    int
	Dimensions int
}

// KafkaConfig 文件事件投递配置
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// MembershipConfig 知识库成员缓存配置
type MembershipConfig struct {
	CacheTTL int // 秒，0 表示不缓存
}

var globalConfig *Config

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("NEXT_FILES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout 单次转换超时
func (c *ConverterConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// TTL 成员缓存有效期
func (c *MembershipConfig) TTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "next-files")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 120)
	v.SetDefault("server.maxUploadSize", 100<<20)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "next_files")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Storage
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.uploadDir", "./data/uploads")
	v.SetDefault("storage.cacheDir", "./data/cache")

	// Converter
	v.SetDefault("converter.officeEnabled", false)
	v.SetDefault("converter.sofficePath", "soffice")
	v.SetDefault("converter.timeoutSec", 60)

	// Audio
	v.SetDefault("audio.model", "whisper-1")

	// Elastic
	v.SetDefault("elastic.indexPrefix", "next_files")

	// Embedding
	v.SetDefault("embedding.provider", "dashscope")
	v.SetDefault("embedding.model", "text-embedding-v3")

	// Kafka
	v.SetDefault("kafka.topic", "file-events")

	// Membership
	v.SetDefault("membership.cacheTTL", 0)
}
