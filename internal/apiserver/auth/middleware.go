package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"mindcare/internal/apiserver/httpx"
	"mindcare/internal/shared/model"
	"mindcare/pkg/logging"
)

const (
	msgNotAuthorised = "Not Authorised. Login Again"
	msgAdminDenied   = "Admin access denied"
)

// AccountReader 守卫需要的账号读取能力
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
}

// Guard 路由守卫
type Guard struct {
	tokens   *TokenManager
	accounts AccountReader
	logger   *logging.Logger
}

// NewGuard 创建守卫
func NewGuard(tokens *TokenManager, accounts AccountReader, logger *logging.Logger) *Guard {
	return &Guard{tokens: tokens, accounts: accounts, logger: logger.Component("auth")}
}

// Authenticate 从 Cookie 解析调用者并确认账号仍存在（HTTP 与 WebSocket 握手共用）
//
// 账号已删除时返回 ErrInvalidToken，令牌在过期前随之失效。
func (g *Guard) Authenticate(r *http.Request) (*AuthUser, error) {
	account, err := g.sessionAccount(r)
	if err != nil {
		return nil, err
	}
	return &AuthUser{ID: account.ID}, nil
}

func (g *Guard) sessionAccount(r *http.Request) (*model.Account, error) {
	id, err := g.tokens.Parse(TokenFromRequest(r))
	if err != nil {
		return nil, err
	}
	account, err := g.accounts.GetAccount(r.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: account %s not found", ErrInvalidToken, id)
	}
	return account, nil
}

// Require 要求已登录，失败返回 401 并终止
func (g *Guard) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := g.authenticate(w, r)
		if !ok {
			return
		}
		next(w, r.WithContext(WithAuthUser(r.Context(), &AuthUser{ID: account.ID})))
	}
}

// RequireAdmin 要求已登录且当前角色为管理员，角色每次从存储读取
func (g *Guard) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, ok := g.authenticate(w, r)
		if !ok {
			return
		}
		if !IsAdmin(account) {
			httpx.Fail(w, http.StatusForbidden, msgAdminDenied)
			return
		}
		next(w, r.WithContext(WithAuthUser(r.Context(), &AuthUser{ID: account.ID})))
	}
}

// authenticate 失败时写出响应：令牌无效或账号不存在为 401，存储错误为 500
func (g *Guard) authenticate(w http.ResponseWriter, r *http.Request) (*model.Account, bool) {
	account, err := g.sessionAccount(r)
	if err == nil {
		return account, true
	}
	if errors.Is(err, ErrInvalidToken) {
		g.logger.Debug("token rejected", "path", r.URL.Path, "error", err)
		httpx.Fail(w, http.StatusUnauthorized, msgNotAuthorised)
		return nil, false
	}
	httpx.Error(w, r, g.logger, err)
	return nil, false
}
