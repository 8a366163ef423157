package config

import (
	"time"

	"mindcare/pkg/logging"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
//
// 密钥类字段不出现在 YAML 中，只从环境变量读取
type YAMLConfig struct {
	APIServer APIServerConfig `yaml:"api_server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Mail      MailConfig      `yaml:"mail"`
	Chatbot   ChatbotConfig   `yaml:"chatbot"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       logging.Config  `yaml:"log"`
	CORS      CORSConfig      `yaml:"cors"`

	// loadedFrom 实际加载的配置文件路径（不序列化）
	loadedFrom string
}

// APIServerConfig HTTP 服务配置
type APIServerConfig struct {
	Port string `yaml:"port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver  string `yaml:"driver"` // mongodb（默认）| postgres | sqlite
	URI     string `yaml:"uri"`    // mongodb 完整连接串，优先于 host/port
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Name    string `yaml:"name"`
	SSLMode string `yaml:"sslmode"`
	Path    string `yaml:"path"` // sqlite 文件路径
}

// RedisConfig Redis 配置，Enabled=false 时使用进程内缓存与广播
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`
}

// MinIOConfig 对象存储配置（博客图片），Endpoint 为空表示未启用
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	PublicURL string `yaml:"public_url"` // 对外访问前缀，为空时经由 API 读取
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// Enabled 是否配置了对象存储
func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

// MailConfig SMTP 配置，Host 为空时邮件只写日志
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	From     string `yaml:"from"`
	Password string `yaml:"-"`
}

// ChatbotConfig 对话补全服务配置
type ChatbotConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	APIKey   string        `yaml:"-"`
}

// AuthConfig 会话与管理员引导配置
type AuthConfig struct {
	TokenTTL      time.Duration `yaml:"token_ttl"`
	JWTSecret     string        `yaml:"-"`
	AdminEmail    string        `yaml:"-"`
	AdminPassword string        `yaml:"-"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env Environment

	APIPort        string
	DatabaseDriver string
	DatabaseURL    string
	DatabaseName   string // mongodb 库名
	RedisURL       string // 为空表示未启用 Redis

	MinIO   MinIOConfig
	Mail    MailConfig
	Chatbot ChatbotConfig
	Auth    AuthConfig
	Log     logging.Config
	CORS    CORSConfig

	ConfigFile string
}
