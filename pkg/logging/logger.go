// Package logging 结构化日志
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	AccountIDKey ContextKey = "account_id"
)

// Logger 结构化日志器
type Logger struct {
	*slog.Logger
	component string
}

// Config 日志配置
type Config struct {
	Level     string `json:"level" yaml:"level"`
	Format    string `json:"format" yaml:"format"` // json or text
	Output    string `json:"output" yaml:"output"` // stdout, stderr, or file path
	Component string `json:"component" yaml:"-"`
}

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New 创建新的日志器
func New(cfg Config) *Logger {
	level := ParseLevel(cfg.Level)

	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			output = os.Stdout
		} else {
			output = f
		}
	}

	return NewWithWriter(output, cfg.Format, level, cfg.Component)
}

// NewWithWriter 使用指定 Writer 创建日志器
func NewWithWriter(w io.Writer, format string, level slog.Level, component string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler)
	if component != "" {
		l = l.With(slog.String("component", component))
	}
	return &Logger{Logger: l, component: component}
}

// Default 创建默认日志器
func Default(component string) *Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    "stdout",
		Component: component,
	})
}

// Nop 丢弃所有输出的日志器（测试用）
func Nop() *Logger {
	return NewWithWriter(io.Discard, "text", slog.LevelError+1, "")
}

// Component 派生指定组件名的子日志器
func (l *Logger) Component(name string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("component", name)),
		component: name,
	}
}

// WithContext 从上下文提取请求信息
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var attrs []any
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if id, ok := ctx.Value(AccountIDKey).(string); ok && id != "" {
		attrs = append(attrs, slog.String("account_id", id))
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{
		Logger:    l.Logger.With(attrs...),
		component: l.component,
	}
}

// WithAccountID 添加账号 ID
func (l *Logger) WithAccountID(accountID string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("account_id", accountID)),
		component: l.component,
	}
}

// WithError 添加错误信息
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{
		Logger:    l.Logger.With(slog.String("error", err.Error())),
		component: l.component,
	}
}

// WithDuration 添加持续时间
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.Float64("duration_ms", float64(d.Milliseconds()))),
		component: l.component,
	}
}

// HTTPRequestLog HTTP 请求日志
func (l *Logger) HTTPRequestLog(method, path string, status int, duration time.Duration, clientIP string) {
	attrs := []any{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
		slog.String("client_ip", clientIP),
	}
	switch {
	case status >= 500:
		l.Logger.Error("HTTP request", attrs...)
	case status >= 400:
		l.Logger.Warn("HTTP request", attrs...)
	default:
		l.Logger.Info("HTTP request", attrs...)
	}
}
