package forum

import (
	"net/http"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/apiserver/httpx"
	"mindcare/pkg/logging"
)

// Handler 讨论室 HTTP 处理器
type Handler struct {
	svc    *Service
	guard  *auth.Guard
	logger *logging.Logger
}

// NewHandler 创建讨论室处理器
func NewHandler(svc *Service, guard *auth.Guard, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, guard: guard, logger: logger.Component("forum")}
}

// RegisterRoutes 注册讨论室路由（均需登录）
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/forum/rooms", h.guard.Require(h.ListRooms))
	mux.HandleFunc("GET /api/forum/rooms/{roomId}/messages", h.guard.Require(h.GetMessages))
	mux.HandleFunc("POST /api/forum/rooms/{roomId}/messages", h.guard.Require(h.PostMessage))
}

type postMessageRequest struct {
	Content string `json:"content"`
}

// ListRooms 讨论室列表
//
// 路由: GET /api/forum/rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.svc.ListRooms(r.Context())
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"rooms": rooms})
}

// GetMessages 讨论室消息日志
//
// 路由: GET /api/forum/rooms/{roomId}/messages?after=<seq>
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	after := httpx.QueryInt64(r, "after", 0)
	msgs, err := h.svc.GetMessages(r.Context(), r.PathValue("roomId"), after)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"messages": msgs})
}

// PostMessage 发帖
//
// 路由: POST /api/forum/rooms/{roomId}/messages
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	msg, err := h.svc.PostMessage(r.Context(), r.PathValue("roomId"), auth.AccountID(r.Context()), req.Content)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, httpx.M{"message": msg})
}
