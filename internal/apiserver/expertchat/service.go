// Package expertchat 用户与专家的 1:1 私聊
//
// 会话按 (user, expert) 唯一，角色在会话生命周期内固定；
// 只有两位参与者可以读取消息、发送消息和订阅 expert-chat:<id> 频道。
package expertchat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"mindcare/internal/apiserver/realtime"
	"mindcare/internal/shared/apperr"
	"mindcare/internal/shared/keylock"
	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"
	"mindcare/pkg/logging"
)

// MaxContentLength 单条私聊消息最大字符数
const MaxContentLength = 2000

// AccountReader 专家查询与参与者展开
type AccountReader interface {
	storage.ParticipantReader
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListAccounts(ctx context.Context, filter model.AccountFilter) ([]*model.Account, error)
}

// Service 专家私聊业务
type Service struct {
	chats       storage.ExpertChatStore
	accounts    AccountReader
	broadcaster realtime.Broadcaster
	locks       *keylock.Locker
	logger      *logging.Logger

	now    func() time.Time
	onSent func()
}

// NewService 创建专家私聊服务
func NewService(chats storage.ExpertChatStore, accounts AccountReader, broadcaster realtime.Broadcaster, locks *keylock.Locker, logger *logging.Logger) *Service {
	return &Service{
		chats:       chats,
		accounts:    accounts,
		broadcaster: broadcaster,
		locks:       locks,
		logger:      logger.Component("expertchat"),
		now:         time.Now,
	}
}

// OnSent 注册私聊消息发送成功回调（指标）
func (s *Service) OnSent(fn func()) {
	s.onSent = fn
}

// ListExperts 全部专家（不含调用者自己）
func (s *Service) ListExperts(ctx context.Context, callerID string) ([]*model.Participant, error) {
	accounts, err := s.accounts.ListAccounts(ctx, model.AccountFilter{Role: model.RoleExpert})
	if err != nil {
		return nil, fmt.Errorf("list experts: %w", err)
	}
	experts := make([]*model.Participant, 0, len(accounts))
	for _, a := range accounts {
		if a.ID != callerID {
			experts = append(experts, a.Summary())
		}
	}
	return experts, nil
}

// StartOrGetConversation 获取或创建 (user, expert) 会话，重复调用返回同一会话
func (s *Service) StartOrGetConversation(ctx context.Context, userID, expertID string) (*model.Conversation, error) {
	expertID = strings.TrimSpace(expertID)
	if expertID == "" {
		return nil, apperr.Validation("Expert ID is required")
	}
	if expertID == userID {
		return nil, apperr.Validation("You cannot start a chat with yourself")
	}

	if err := s.requireAccount(ctx, userID); err != nil {
		return nil, err
	}
	expert, err := s.accounts.GetAccount(ctx, expertID)
	if err != nil {
		return nil, fmt.Errorf("get expert: %w", err)
	}
	if !expert.IsExpert() {
		return nil, apperr.Validation("Selected user is not an expert")
	}

	conv, err := s.chats.GetOrCreateConversation(ctx, &model.Conversation{
		ID:        model.NewID(model.PrefixConversation),
		UserID:    userID,
		ExpertID:  expertID,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}
	if err := s.expandConversations(ctx, []*model.Conversation{conv}); err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations 调用者参与的会话，最近活跃在前
func (s *Service) ListConversations(ctx context.Context, callerID string) ([]*model.Conversation, error) {
	convs, err := s.chats.ListConversations(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if err := s.expandConversations(ctx, convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// GetPrivateMessages 会话消息（仅参与者）
func (s *Service) GetPrivateMessages(ctx context.Context, convID, callerID string, after int64) ([]*model.PrivateMessage, error) {
	if _, err := s.participantConversation(ctx, convID, callerID); err != nil {
		return nil, err
	}
	msgs, err := s.chats.ListPrivateMessages(ctx, convID, after)
	if err != nil {
		return nil, fmt.Errorf("list private messages: %w", err)
	}
	if err := s.expandSenders(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendPrivateMessage 持久化私聊消息并向 expert-chat:<id> 广播 expertChatMessage
//
// 非参与者发送返回 Forbidden，且不写入任何数据。
func (s *Service) SendPrivateMessage(ctx context.Context, convID, senderID, content string) (*model.PrivateMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("Message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, apperr.Validation("Message must be at most %d characters", MaxContentLength)
	}
	conv, err := s.participantConversation(ctx, convID, senderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAccount(ctx, senderID); err != nil {
		return nil, err
	}

	channel := realtime.ExpertChatChannel(conv.ID)
	unlock := s.locks.Lock(channel)
	defer unlock()

	msg := &model.PrivateMessage{
		ID:             model.NewID(model.PrefixPrivateMessage),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		Timestamp:      s.now().UTC(),
	}
	if err := s.chats.AppendPrivateMessage(ctx, msg); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("Chat not found")
		}
		return nil, fmt.Errorf("append private message: %w", err)
	}
	if err := s.expandSenders(ctx, []*model.PrivateMessage{msg}); err != nil {
		return nil, err
	}

	payload := map[string]any{"chatId": conv.ID, "message": msg}
	if err := s.broadcaster.Broadcast(ctx, channel, realtime.EventExpertChatMessage, payload); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("broadcast expertChatMessage failed", "chat_id", conv.ID)
	}
	if s.onSent != nil {
		s.onSent()
	}
	return msg, nil
}

// requireAccount 调用者账号必须存在
func (s *Service) requireAccount(ctx context.Context, accountID string) error {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return apperr.Unauthenticated("User not found")
	}
	return nil
}

// participantConversation 读取会话并校验调用者为参与者
func (s *Service) participantConversation(ctx context.Context, convID, accountID string) (*model.Conversation, error) {
	conv, err := s.chats.GetConversation(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, apperr.NotFound("Chat not found")
	}
	if !conv.IsParticipant(accountID) {
		return nil, apperr.Forbidden("Not authorized for this chat")
	}
	return conv, nil
}

func (s *Service) expandConversations(ctx context.Context, convs []*model.Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(convs)*2)
	for _, c := range convs {
		ids = append(ids, c.UserID, c.ExpertID)
	}
	lookup, err := storage.LookupParticipants(ctx, s.accounts, ids)
	if err != nil {
		return fmt.Errorf("get participants: %w", err)
	}
	for _, c := range convs {
		c.User = lookup(c.UserID)
		c.Expert = lookup(c.ExpertID)
	}
	return nil
}

func (s *Service) expandSenders(ctx context.Context, msgs []*model.PrivateMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.SenderID
	}
	lookup, err := storage.LookupParticipants(ctx, s.accounts, ids)
	if err != nil {
		return fmt.Errorf("get senders: %w", err)
	}
	for _, m := range msgs {
		m.Sender = lookup(m.SenderID)
	}
	return nil
}
