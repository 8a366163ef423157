// Package storage 定义持久化存储层抽象接口
//
// 调用方只依赖接口，具体实现在子包中：
//   - mongostore/：MongoDB（默认）
//   - repository/：SQL（PostgreSQL / SQLite，由 dbutil.Dialect 屏蔽差异）
//
// 约定：按 ID 读取时不存在返回 (nil, nil)；更新 / 删除不存在返回 ErrNotFound。
package storage

import (
	"context"

	"mindcare/internal/shared/model"
)

// AccountStore 账号存储
type AccountStore interface {
	// CreateAccount 创建账号，邮箱重复返回 ErrDuplicate
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	ListAccounts(ctx context.Context, filter model.AccountFilter) ([]*model.Account, error)
	// GetParticipants 批量获取账号摘要，不存在的 ID 不出现在结果中
	GetParticipants(ctx context.Context, ids []string) (map[string]*model.Participant, error)
	UpdateAccount(ctx context.Context, id string, update model.AccountUpdate) error
	DeleteAccount(ctx context.Context, id string) error
	// CountAccounts 按角色计数，role 为空时统计全部
	CountAccounts(ctx context.Context, role model.Role) (int64, error)

	SetVerifyOTP(ctx context.Context, id, otp string, expireAt int64) error
	// ConsumeVerifyOTP 条件更新：OTP 匹配且未过期时标记已验证并清空 OTP，否则返回 ErrConflict
	ConsumeVerifyOTP(ctx context.Context, id, otp string, nowMs int64) error
	SetResetOTP(ctx context.Context, email, otp string, expireAt int64) error
	// ConsumeResetOTP 条件更新：OTP 匹配且未过期时写入新密码并清空 OTP，否则返回 ErrConflict
	ConsumeResetOTP(ctx context.Context, email, otp string, nowMs int64, passwordHash string) error
}

// RoomStore 讨论室与讨论室消息存储
type RoomStore interface {
	// SeedRooms 按 Type 幂等地创建讨论室
	SeedRooms(ctx context.Context, rooms []*model.Room) error
	ListRooms(ctx context.Context) ([]*model.Room, error)
	GetRoom(ctx context.Context, id string) (*model.Room, error)
	// AppendMessage 原子分配 Seq 并写入消息，讨论室不存在返回 ErrNotFound
	AppendMessage(ctx context.Context, msg *model.Message) error
	// ListMessages 按 Seq 升序返回 Seq > after 的消息
	ListMessages(ctx context.Context, roomID string, after int64) ([]*model.Message, error)
	CountRooms(ctx context.Context) (int64, error)
	CountMessages(ctx context.Context) (int64, error)
}

// ExpertChatStore 专家会话存储
type ExpertChatStore interface {
	// GetOrCreateConversation 按 (UserID, ExpertID) 原子地插入或返回已存在的会话
	GetOrCreateConversation(ctx context.Context, conv *model.Conversation) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	// ListConversations 返回账号参与的会话，最近活跃在前
	ListConversations(ctx context.Context, accountID string) ([]*model.Conversation, error)
	// AppendPrivateMessage 原子分配 Seq、写入消息并更新会话最近活跃时间
	AppendPrivateMessage(ctx context.Context, msg *model.PrivateMessage) error
	ListPrivateMessages(ctx context.Context, conversationID string, after int64) ([]*model.PrivateMessage, error)
}

// BlogStore 文章存储
type BlogStore interface {
	CreateBlog(ctx context.Context, blog *model.Blog) error
	GetBlog(ctx context.Context, id string) (*model.Blog, error)
	// UpdateBlog 更新标题、正文、预览、标签与更新时间
	UpdateBlog(ctx context.Context, blog *model.Blog) error
	DeleteBlog(ctx context.Context, id string) error
	// ListBlogs 返回当前页与满足条件的总数
	ListBlogs(ctx context.Context, q model.BlogQuery) ([]*model.Blog, int64, error)
	CountBlogs(ctx context.Context) (int64, error)
}

// ChatbotStore AI 聊天会话存储
type ChatbotStore interface {
	CreateChatbotConversation(ctx context.Context, conv *model.ChatbotConversation) error
	GetChatbotConversation(ctx context.Context, id string) (*model.ChatbotConversation, error)
	// ListChatbotConversations 返回所有者的会话，最近更新在前
	ListChatbotConversations(ctx context.Context, ownerID string) ([]*model.ChatbotConversation, error)
	RenameChatbotConversation(ctx context.Context, id, title string) error
	// DeleteChatbotConversation 删除会话及其全部消息
	DeleteChatbotConversation(ctx context.Context, id string) error
	AppendChatbotMessage(ctx context.Context, msg *model.ChatbotMessage) error
	ListChatbotMessages(ctx context.Context, conversationID string) ([]*model.ChatbotMessage, error)
}

// PersistentStore 持久化存储聚合接口
type PersistentStore interface {
	AccountStore
	RoomStore
	ExpertChatStore
	BlogStore
	ChatbotStore
	Ping(ctx context.Context) error
	Close() error
}
