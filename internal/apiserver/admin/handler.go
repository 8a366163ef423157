package admin

import (
	"net/http"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/apiserver/httpx"
	"mindcare/pkg/logging"
)

// Handler 管理后台 HTTP 处理器
type Handler struct {
	svc    *Service
	guard  *auth.Guard
	logger *logging.Logger
}

// NewHandler 创建管理后台处理器
func NewHandler(svc *Service, guard *auth.Guard, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, guard: guard, logger: logger.Component("admin")}
}

// RegisterRoutes 注册管理后台路由（均需管理员）
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/users", h.guard.RequireAdmin(h.ListUsers))
	mux.HandleFunc("PUT /api/admin/users/{userId}", h.guard.RequireAdmin(h.UpdateUser))
	mux.HandleFunc("PATCH /api/admin/users/{userId}", h.guard.RequireAdmin(h.UpdateUser))
	mux.HandleFunc("DELETE /api/admin/users/{userId}", h.guard.RequireAdmin(h.DeleteUser))
	mux.HandleFunc("GET /api/admin/dashboard-stats", h.guard.RequireAdmin(h.Stats))
	mux.HandleFunc("GET /api/admin/blogs", h.guard.RequireAdmin(h.ListBlogs))
	mux.HandleFunc("DELETE /api/admin/blogs/{blogId}", h.guard.RequireAdmin(h.DeleteBlog))
}

// ListUsers 账号列表
//
// 路由: GET /api/admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"users": users})
}

// UpdateUser 修改账号
//
// 路由: PUT|PATCH /api/admin/users/{userId}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var in UserUpdate
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	user, err := h.svc.UpdateUser(r.Context(), auth.AccountID(r.Context()), r.PathValue("userId"), in)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"user": user})
}

// DeleteUser 删除账号
//
// 路由: DELETE /api/admin/users/{userId}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteUser(r.Context(), auth.AccountID(r.Context()), r.PathValue("userId")); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "User deleted successfully")
}

// Stats 仪表盘统计
//
// 路由: GET /api/admin/dashboard-stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"stats": stats})
}

// ListBlogs 全部文章
//
// 路由: GET /api/admin/blogs
func (h *Handler) ListBlogs(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.svc.ListBlogs(r.Context())
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"blogs": blogs})
}

// DeleteBlog 删除文章
//
// 路由: DELETE /api/admin/blogs/{blogId}
func (h *Handler) DeleteBlog(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBlog(r.Context(), auth.AccountID(r.Context()), r.PathValue("blogId")); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Blog deleted successfully")
}
