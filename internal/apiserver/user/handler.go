// Package user 当前用户资料接口
package user

import (
	"context"
	"net/http"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/apiserver/httpx"
	"mindcare/internal/shared/apperr"
	"mindcare/internal/shared/model"
	"mindcare/pkg/logging"
)

// AccountReader 账号读取接口
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
}

// Handler 用户资料处理器
type Handler struct {
	accounts AccountReader
	guard    *auth.Guard
	logger   *logging.Logger
}

// NewHandler 创建处理器
func NewHandler(accounts AccountReader, guard *auth.Guard, logger *logging.Logger) *Handler {
	return &Handler{accounts: accounts, guard: guard, logger: logger.Component("user")}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/user/data", h.guard.Require(h.GetUserData))
}

type userData struct {
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	IsAccountVerified bool       `json:"isAccountVerified"`
	Role              model.Role `json:"role"`
}

// GetUserData 返回当前用户的精简资料
//
// 路由: GET /api/user/data
func (h *Handler) GetUserData(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccount(r.Context(), auth.AccountID(r.Context()))
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	if account == nil {
		httpx.Error(w, r, h.logger, apperr.NotFound("User not found"))
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"userData": userData{
		Name:              account.Name,
		Email:             account.Email,
		IsAccountVerified: account.IsAccountVerified,
		Role:              account.Role,
	}})
}
