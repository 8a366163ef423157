package chatbot

import (
	"net/http"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/apiserver/httpx"
	"mindcare/internal/shared/model"
	"mindcare/pkg/logging"
)

// Handler AI 聊天 HTTP 处理器
type Handler struct {
	svc    *Service
	guard  *auth.Guard
	logger *logging.Logger
}

// NewHandler 创建 AI 聊天处理器
func NewHandler(svc *Service, guard *auth.Guard, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, guard: guard, logger: logger.Component("chatbot")}
}

// RegisterRoutes 注册 AI 聊天路由（均需登录）
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/conversations", h.guard.Require(h.ListConversations))
	mux.HandleFunc("POST /api/conversations", h.guard.Require(h.CreateConversation))
	mux.HandleFunc("DELETE /api/conversations/{id}", h.guard.Require(h.DeleteConversation))
	mux.HandleFunc("PUT /api/conversations/{id}/title", h.guard.Require(h.RenameConversation))
	mux.HandleFunc("GET /api/conversations/{id}/messages", h.guard.Require(h.ListMessages))
	mux.HandleFunc("POST /api/conversations/{id}/messages", h.guard.Require(h.AppendMessage))
	mux.HandleFunc("POST /api/chat", h.guard.Require(h.Chat))
}

type titleRequest struct {
	Title string `json:"title"`
}

type appendMessageRequest struct {
	Text   string              `json:"text"`
	Sender model.ChatbotSender `json:"sender"`
}

type chatRequest struct {
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

// ListConversations 会话列表
//
// 路由: GET /api/conversations
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.svc.ListConversations(r.Context(), auth.AccountID(r.Context()))
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"conversations": convs})
}

// CreateConversation 新建会话
//
// 路由: POST /api/conversations
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.Error(w, r, h.logger, err)
			return
		}
	}
	conv, err := h.svc.CreateConversation(r.Context(), auth.AccountID(r.Context()), req.Title)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, httpx.M{"conversation": conv})
}

// DeleteConversation 删除会话
//
// 路由: DELETE /api/conversations/{id}
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteConversation(r.Context(), auth.AccountID(r.Context()), r.PathValue("id")); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Conversation deleted")
}

// RenameConversation 修改标题
//
// 路由: PUT /api/conversations/{id}/title
func (h *Handler) RenameConversation(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	conv, err := h.svc.RenameConversation(r.Context(), auth.AccountID(r.Context()), r.PathValue("id"), req.Title)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"conversation": conv})
}

// ListMessages 会话消息
//
// 路由: GET /api/conversations/{id}/messages
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.ListMessages(r.Context(), auth.AccountID(r.Context()), r.PathValue("id"))
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"messages": msgs})
}

// AppendMessage 追加一轮对话
//
// 路由: POST /api/conversations/{id}/messages
func (h *Handler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendMessageRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	msg, err := h.svc.AppendMessage(r.Context(), auth.AccountID(r.Context()), r.PathValue("id"), req.Text, req.Sender)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, httpx.M{"message": msg})
}

// Chat 服务端补全代理
//
// 路由: POST /api/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Chat(r.Context(), auth.AccountID(r.Context()), req.ConversationID, req.Message)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{
		"conversation": res.Conversation,
		"userMessage":  res.UserMessage,
		"reply":        res.Reply,
	})
}
