package auth

import (
	"net/http"

	"mindcare/internal/apiserver/httpx"
	"mindcare/pkg/logging"
)

// Handler 认证 HTTP 处理器
type Handler struct {
	svc    *Service
	guard  *Guard
	cookie CookieOptions
	logger *logging.Logger
}

// NewHandler 创建认证处理器
func NewHandler(svc *Service, guard *Guard, cookie CookieOptions, logger *logging.Logger) *Handler {
	return &Handler{svc: svc, guard: guard, cookie: cookie, logger: logger.Component("auth")}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.HandleFunc("POST /api/auth/sendOtp", h.guard.Require(h.SendOTP))
	mux.HandleFunc("POST /api/auth/verifyEmail", h.guard.Require(h.VerifyEmail))
	mux.HandleFunc("GET /api/auth/is-auth", h.guard.Require(h.IsAuthenticated))
	mux.HandleFunc("POST /api/auth/sendresetotp", h.SendResetOTP)
	mux.HandleFunc("POST /api/auth/resetPassword", h.ResetPassword)
}

// ============================================================================
// 请求类型
// ============================================================================

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	OTP string `json:"otp"`
}

type sendResetOTPRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// ============================================================================
// Handlers
// ============================================================================

// Register 用户注册
//
// 路由: POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}

	_, token, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	SetSessionCookie(w, token, h.svc.tokens.TTL(), h.cookie)
	httpx.Message(w, http.StatusCreated, "User registered successfully")
}

// Login 用户登录
//
// 路由: POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}

	_, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	SetSessionCookie(w, token, h.svc.tokens.TTL(), h.cookie)
	httpx.Message(w, http.StatusOK, "Login successful")
}

// Logout 清除会话 Cookie
//
// 路由: POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w, h.cookie)
	httpx.Message(w, http.StatusOK, "Logged out successfully")
}

// SendOTP 发送邮箱验证码
//
// 路由: POST /api/auth/sendOtp
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SendVerifyOTP(r.Context(), AccountID(r.Context())); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Account Verification OTP sent")
}

// VerifyEmail 校验邮箱验证码
//
// 路由: POST /api/auth/verifyEmail
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	if err := h.svc.VerifyEmail(r.Context(), AccountID(r.Context()), req.OTP); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Email Verified successfully")
}

// IsAuthenticated 返回当前登录账号
//
// 路由: GET /api/auth/is-auth
func (h *Handler) IsAuthenticated(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.CurrentAccount(r.Context(), AccountID(r.Context()))
	if err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"userData": account})
}

// SendResetOTP 发送重置密码验证码
//
// 路由: POST /api/auth/sendresetotp
func (h *Handler) SendResetOTP(w http.ResponseWriter, r *http.Request) {
	var req sendResetOTPRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	if err := h.svc.SendResetOTP(r.Context(), req.Email); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Password reset OTP sent")
}

// ResetPassword 校验重置验证码并修改密码
//
// 路由: POST /api/auth/resetPassword
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		httpx.Error(w, r, h.logger, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Password reset successfully")
}
