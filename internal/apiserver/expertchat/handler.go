package expertchat

import (
	"net/http"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/apiserver/httpx"
	"mindcare/pkg/logging"
)

// Handler 专家私聊 HTTP 处理器
type Handler struct {
	svc    *Service
	guard  *auth.Guard
	logger *logging.Logger
}

// NewHandler 创建专家私聊处理器
func NewHandler(svc *Service, guard *auth.Guard, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, guard: guard, logger: logger.Component("expertchat")}
}

// RegisterRoutes 注册专家私聊路由（均需登录）
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/expert-chat/experts", h.guard.Require(h.ListExperts))
	mux.HandleFunc("GET /api/expert-chat/chats", h.guard.Require(h.ListChats))
	mux.HandleFunc("POST /api/expert-chat/chats", h.guard.Require(h.StartChat))
	mux.HandleFunc("GET /api/expert-chat/chats/{chatId}/messages", h.guard.Require(h.GetMessages))
	mux.HandleFunc("POST /api/expert-chat/chats/{chatId}/messages", h.guard.Require(h.SendMessage))
}

type startChatRequest struct {
	ExpertID string `json:"expertId"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// ListExperts 专家列表
//
// 路由: GET /api/expert-chat/experts
func (h *Handler) ListExperts(w http.ResponseWriter, r *http.Request) {
	experts, err := h.svc.ListExperts(r.Context(), auth.AccountID(r.Context()))
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"experts": experts})
}

// ListChats 当前账号参与的会话
//
// 路由: GET /api/expert-chat/chats
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.svc.ListConversations(r.Context(), auth.AccountID(r.Context()))
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"chats": chats})
}

// StartChat 获取或创建与专家的会话
//
// 路由: POST /api/expert-chat/chats
func (h *Handler) StartChat(w http.ResponseWriter, r *http.Request) {
	var req startChatRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	chat, err := h.svc.StartOrGetConversation(r.Context(), auth.AccountID(r.Context()), req.ExpertID)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"chat": chat})
}

// GetMessages 会话消息
//
// 路由: GET /api/expert-chat/chats/{chatId}/messages?after=<seq>
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	after := httpx.QueryInt64(r, "after", 0)
	msgs, err := h.svc.GetPrivateMessages(r.Context(), r.PathValue("chatId"), auth.AccountID(r.Context()), after)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"messages": msgs})
}

// SendMessage 发送私聊消息
//
// 路由: POST /api/expert-chat/chats/{chatId}/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	msg, err := h.svc.SendPrivateMessage(r.Context(), r.PathValue("chatId"), auth.AccountID(r.Context()), req.Content)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, httpx.M{"message": msg})
}
