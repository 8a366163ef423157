// Package config 统一配置管理
//
// 配置加载策略：
//  1. dev/test 从 .env.{env} 加载敏感信息（密码、密钥）
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTokenTTL       = 7 * 24 * time.Hour
	defaultChatbotTimeout = 30 * time.Second
	defaultChatbotModel   = "gemini-1.5-flash"
	defaultChatbotAPI     = "https://generativelanguage.googleapis.com/v1beta"

	devJWTSecret = "mindcare-dev-secret"
)

// Load 加载配置
//  1. 解析 APP_ENV，加载 .env.{env}
//  2. 加载 {env}.yaml
//  3. 环境变量覆盖，构建最终配置
func Load() (*Config, error) {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)

	yamlCfg, err := loadYAMLConfig(env)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(yamlCfg)
	applyDefaults(yamlCfg)

	databaseURL := firstEnv("DATABASE_URL", "MONGODB_URI")
	driver := detectDatabaseDriver(yamlCfg.Database.Driver, databaseURL)
	yamlCfg.Database.Driver = driver
	if databaseURL == "" {
		databaseURL = buildDatabaseURL(yamlCfg.Database, os.Getenv("DB_PASSWORD"))
	}

	cfg := &Config{
		Env:            env,
		APIPort:        yamlCfg.APIServer.Port,
		DatabaseDriver: driver,
		DatabaseURL:    databaseURL,
		DatabaseName:   yamlCfg.Database.Name,
		MinIO:          yamlCfg.MinIO,
		Mail:           yamlCfg.Mail,
		Chatbot:        yamlCfg.Chatbot,
		Auth:           yamlCfg.Auth,
		Log:            yamlCfg.Log,
		CORS:           yamlCfg.CORS,
		ConfigFile:     yamlCfg.loadedFrom,
	}
	if yamlCfg.Redis.Enabled {
		cfg.RedisURL = buildRedisURL(yamlCfg.Redis)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → {env}.yaml，文件不存在时只用默认值
func loadYAMLConfig(env Environment) (*YAMLConfig, error) {
	cfg := defaultYAMLConfig()

	path := findConfigFile()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.loadedFrom = path
	slog.Debug("config file loaded", "env", env, "path", path)
	return cfg, nil
}

func defaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		APIServer: APIServerConfig{Port: "5000"},
		Database:  DatabaseConfig{Host: "localhost", Name: "mindcare", User: "mindcare", SSLMode: "disable"},
		Redis:     RedisConfig{Host: "localhost", Port: 6379},
		MinIO:     MinIOConfig{Bucket: "mindcare"},
		Mail:      MailConfig{Port: 587},
		Chatbot: ChatbotConfig{
			Endpoint: defaultChatbotAPI,
			Model:    defaultChatbotModel,
			Timeout:  defaultChatbotTimeout,
		},
		Auth: AuthConfig{TokenTTL: defaultTokenTTL},
		Log:  loggingDefaults(),
		CORS: CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
}

// applyEnvOverrides 环境变量覆盖 YAML，密钥只从这里读取
func applyEnvOverrides(c *YAMLConfig) {
	if v := os.Getenv("PORT"); v != "" {
		c.APIServer.Port = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
		c.Redis.Enabled = true
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")

	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		c.MinIO.Endpoint = v
	}
	c.MinIO.AccessKey = firstEnv("MINIO_ACCESS_KEY", "MINIO_ROOT_USER")
	c.MinIO.SecretKey = firstEnv("MINIO_SECRET_KEY", "MINIO_ROOT_PASSWORD")

	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.Mail.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Mail.Port = port
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		c.Mail.User = v
	}
	if v := os.Getenv("SENDER_EMAIL"); v != "" {
		c.Mail.From = v
	}
	c.Mail.Password = firstEnv("SMTP_PASSWORD", "SMTP_PASS")

	if v := os.Getenv("CHATBOT_MODEL"); v != "" {
		c.Chatbot.Model = v
	}
	c.Chatbot.APIKey = os.Getenv("GEMINI_API_KEY")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.AdminEmail = os.Getenv("ADMIN_EMAIL")
	c.Auth.AdminPassword = os.Getenv("ADMIN_PASSWORD")

	if v := firstEnv("CORS_ORIGINS", "CLIENT_URL"); v != "" {
		c.CORS.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// applyDefaults 补全 YAML 中被显式置零的字段
func applyDefaults(c *YAMLConfig) {
	if c.APIServer.Port == "" {
		c.APIServer.Port = "5000"
	}
	if c.Database.Port == 0 {
		switch strings.ToLower(c.Database.Driver) {
		case "postgres":
			c.Database.Port = 5432
		default:
			c.Database.Port = 27017
		}
	}
	if c.Chatbot.Timeout <= 0 {
		c.Chatbot.Timeout = defaultChatbotTimeout
	}
	if c.Chatbot.Model == "" {
		c.Chatbot.Model = defaultChatbotModel
	}
	if c.Chatbot.Endpoint == "" {
		c.Chatbot.Endpoint = defaultChatbotAPI
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = defaultTokenTTL
	}
	if c.MinIO.Bucket == "" {
		c.MinIO.Bucket = "mindcare"
	}
}

// validate 生产环境必须显式提供 JWT_SECRET，其他环境使用开发密钥
func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		if c.Env == EnvProduction {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		slog.Warn("JWT_SECRET not set, using development secret", "env", c.Env)
		c.Auth.JWTSecret = devJWTSecret
	}
	if c.MinIO.Enabled() && (c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "") {
		return fmt.Errorf("minio endpoint %q configured without credentials", c.MinIO.Endpoint)
	}
	return nil
}

// IsProd 是否为生产环境（决定 Cookie 的 Secure / SameSite）
func (c *Config) IsProd() bool {
	return c.Env == EnvProduction
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	redisURL := c.RedisURL
	if redisURL == "" {
		redisURL = "disabled"
	}
	return fmt.Sprintf("Config{Env: %s, Driver: %s, DB: %s, Redis: %s, MinIO: %t, SMTP: %t}",
		c.Env, c.DatabaseDriver, maskPassword(c.DatabaseURL), maskPassword(redisURL),
		c.MinIO.Enabled(), c.Mail.Host != "")
}
