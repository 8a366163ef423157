package model

import (
	"strings"

	"github.com/google/uuid"
)

// ID 前缀
const (
	PrefixAccount        = "acc"
	PrefixRoom           = "room"
	PrefixMessage        = "msg"
	PrefixConversation   = "conv"
	PrefixPrivateMessage = "pm"
	PrefixBlog           = "blog"
	PrefixChatbot        = "bot"
	PrefixChatbotMessage = "botmsg"
)

// NewID 生成带前缀的唯一标识符，格式：prefix-<32 位十六进制>
func NewID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
