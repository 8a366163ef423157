// Package mailer 发送事务邮件（欢迎信、验证码）
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"mindcare/internal/config"
	"mindcare/pkg/logging"
)

// Message 一封纯文本邮件
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer 邮件发送接口
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New 根据配置创建发送器，未配置 SMTP 时返回只写日志的实现
func New(cfg config.MailConfig, logger *logging.Logger) Mailer {
	if cfg.Host == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}

// SMTPMailer 基于 net/smtp 的发送器
type SMTPMailer struct {
	addr string
	host string
	from string
	auth smtp.Auth

	// send 可在测试中替换
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer 创建 SMTP 发送器
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	m := &SMTPMailer{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host: cfg.Host,
		from: cfg.From,
		send: smtp.SendMail,
	}
	if m.from == "" {
		m.from = cfg.User
	}
	if cfg.User != "" {
		m.auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return m
}

// Send 发送邮件；smtp.SendMail 不支持 context，仅在发送前检查取消
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("mail recipient is empty")
	}
	if err := m.send(m.addr, m.auth, m.from, []string{msg.To}, m.compose(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) compose(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// LogMailer 只记录日志不发送（开发环境），同时保留最近发送的邮件供测试读取
type LogMailer struct {
	logger *logging.Logger

	mu   sync.Mutex
	sent []Message
}

// NewLogMailer 创建日志发送器
func NewLogMailer(logger *logging.Logger) *LogMailer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LogMailer{logger: logger.Component("mailer")}
}

// Send 记录邮件
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	m.logger.WithContext(ctx).Info("mail not sent, smtp disabled", "to", msg.To, "subject", msg.Subject)
	return nil
}

// Sent 返回已记录的邮件副本
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// Last 最近一封发给 to 的邮件
func (m *LogMailer) Last(to string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == to {
			return m.sent[i], true
		}
	}
	return Message{}, false
}
