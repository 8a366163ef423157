// Package chatbot AI 聊天：会话管理与服务端补全代理
//
// API Key 只在服务端使用，客户端通过 /api/chat 获得回复。
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"mindcare/internal/shared/apperr"
	"mindcare/internal/shared/completion"
	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"
	"mindcare/pkg/logging"
)

const (
	DefaultTitle = "New Chat"

	// HistoryTurns 补全请求携带的历史轮数
	HistoryTurns = 20

	maxTitleLength   = 50
	maxPromptLength  = 4000
	maxMessageLength = 20000
)

// Service AI 聊天业务
type Service struct {
	store     storage.ChatbotStore
	completer completion.Completer
	logger    *logging.Logger

	now          func() time.Time
	onCompletion func(d time.Duration, err error)
}

// NewService 创建 AI 聊天服务
func NewService(store storage.ChatbotStore, completer completion.Completer, logger *logging.Logger) *Service {
	return &Service{
		store:     store,
		completer: completer,
		logger:    logger.Component("chatbot"),
		now:       time.Now,
	}
}

// OnCompletion 注册补全耗时回调（指标）
func (s *Service) OnCompletion(fn func(d time.Duration, err error)) {
	s.onCompletion = fn
}

// ListConversations 调用者的会话，最近更新在前
func (s *Service) ListConversations(ctx context.Context, ownerID string) ([]*model.ChatbotConversation, error) {
	convs, err := s.store.ListChatbotConversations(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list chatbot conversations: %w", err)
	}
	return convs, nil
}

// CreateConversation 新建会话，标题为空时使用默认标题
func (s *Service) CreateConversation(ctx context.Context, ownerID, title string) (*model.ChatbotConversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, apperr.Validation("Title must be at most %d characters", maxTitleLength)
	}
	now := s.now().UTC()
	conv := &model.ChatbotConversation{
		ID:        model.NewID(model.PrefixChatbot),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateChatbotConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create chatbot conversation: %w", err)
	}
	return conv, nil
}

// RenameConversation 修改标题
func (s *Service) RenameConversation(ctx context.Context, ownerID, id, title string) (*model.ChatbotConversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation("Title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, apperr.Validation("Title must be at most %d characters", maxTitleLength)
	}
	conv, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.RenameChatbotConversation(ctx, conv.ID, title); err != nil {
		return nil, s.wrapMissing(err, "rename chatbot conversation")
	}
	conv.Title = title
	return conv, nil
}

// DeleteConversation 删除会话及全部消息
func (s *Service) DeleteConversation(ctx context.Context, ownerID, id string) error {
	conv, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteChatbotConversation(ctx, conv.ID); err != nil {
		return s.wrapMissing(err, "delete chatbot conversation")
	}
	return nil
}

// ListMessages 会话消息，按 seq 升序
func (s *Service) ListMessages(ctx context.Context, ownerID, id string) ([]*model.ChatbotMessage, error) {
	conv, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListChatbotMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list chatbot messages: %w", err)
	}
	return msgs, nil
}

// AppendMessage 直接追加一轮对话（客户端自行保存的轮次）
func (s *Service) AppendMessage(ctx context.Context, ownerID, id, text string, sender model.ChatbotSender) (*model.ChatbotMessage, error) {
	if !sender.Valid() {
		return nil, apperr.Validation("Sender must be user or bot")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("Message text is required")
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, apperr.Validation("Message must be at most %d characters", maxMessageLength)
	}
	conv, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.append(ctx, conv.ID, sender, text)
}

// ChatResult 一次 /api/chat 的结果
type ChatResult struct {
	Conversation *model.ChatbotConversation
	UserMessage  *model.ChatbotMessage
	Reply        *model.ChatbotMessage
}

// Chat 保存用户轮次、调用补全、保存回复
//
// 未指定会话时新建；会话的第一条消息决定标题。
func (s *Service) Chat(ctx context.Context, ownerID, conversationID, prompt string) (*ChatResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, apperr.Validation("Message is required")
	}
	if utf8.RuneCountInString(prompt) > maxPromptLength {
		return nil, apperr.Validation("Message must be at most %d characters", maxPromptLength)
	}

	var (
		conv    *model.ChatbotConversation
		history []*model.ChatbotMessage
		err     error
	)
	if conversationID == "" {
		conv, err = s.CreateConversation(ctx, ownerID, Title(prompt))
		if err != nil {
			return nil, err
		}
	} else {
		conv, err = s.owned(ctx, ownerID, conversationID)
		if err != nil {
			return nil, err
		}
		history, err = s.store.ListChatbotMessages(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("list chatbot messages: %w", err)
		}
		if len(history) == 0 {
			title := Title(prompt)
			if err := s.store.RenameChatbotConversation(ctx, conv.ID, title); err != nil {
				return nil, s.wrapMissing(err, "title chatbot conversation")
			}
			conv.Title = title
		}
	}

	userMsg, err := s.append(ctx, conv.ID, model.ChatbotSenderUser, prompt)
	if err != nil {
		return nil, err
	}

	text, err := s.complete(ctx, toTurns(history), prompt)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("completion failed", "conversation_id", conv.ID)
		return nil, apperr.Unavailable(err, "chatbot unavailable")
	}

	reply, err := s.append(ctx, conv.ID, model.ChatbotSenderBot, text)
	if err != nil {
		return nil, err
	}
	conv.MessageCount = reply.Seq
	conv.UpdatedAt = reply.Timestamp
	return &ChatResult{Conversation: conv, UserMessage: userMsg, Reply: reply}, nil
}

func (s *Service) complete(ctx context.Context, history []completion.Turn, prompt string) (string, error) {
	start := s.now()
	text, err := s.completer.Complete(ctx, history, prompt)
	elapsed := s.now().Sub(start)
	if s.onCompletion != nil {
		s.onCompletion(elapsed, err)
	}
	s.logger.WithContext(ctx).WithDuration(elapsed).Debug("completion finished", "history", len(history), "ok", err == nil)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty completion")
	}
	return text, err
}

func (s *Service) append(ctx context.Context, convID string, sender model.ChatbotSender, text string) (*model.ChatbotMessage, error) {
	msg := &model.ChatbotMessage{
		ID:             model.NewID(model.PrefixChatbotMessage),
		ConversationID: convID,
		Sender:         sender,
		Text:           text,
		Timestamp:      s.now().UTC(),
	}
	if err := s.store.AppendChatbotMessage(ctx, msg); err != nil {
		return nil, s.wrapMissing(err, "append chatbot message")
	}
	return msg, nil
}

// owned 读取会话，非所有者与不存在一样返回 NotFound
func (s *Service) owned(ctx context.Context, ownerID, id string) (*model.ChatbotConversation, error) {
	conv, err := s.store.GetChatbotConversation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get chatbot conversation: %w", err)
	}
	if conv == nil || conv.OwnerID != ownerID {
		return nil, apperr.NotFound("Conversation not found")
	}
	return conv, nil
}

func (s *Service) wrapMissing(err error, op string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("Conversation not found")
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Title 由首条消息生成标题：超过 50 个字符时取前 47 个加 "..."
func Title(message string) string {
	message = strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(message) <= maxTitleLength {
		return message
	}
	runes := []rune(message)
	return string(runes[:maxTitleLength-3]) + "..."
}

// toTurns 取最近 HistoryTurns 轮转换为补全历史
func toTurns(msgs []*model.ChatbotMessage) []completion.Turn {
	if len(msgs) > HistoryTurns {
		msgs = msgs[len(msgs)-HistoryTurns:]
	}
	turns := make([]completion.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := completion.RoleUser
		if m.Sender == model.ChatbotSenderBot {
			role = completion.RoleModel
		}
		turns = append(turns, completion.Turn{Role: role, Text: m.Text})
	}
	return turns
}
