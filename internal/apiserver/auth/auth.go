// Package auth 用户认证：JWT 会话令牌、密码哈希、HTTP 守卫
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"mindcare/internal/shared/model"
	"mindcare/pkg/logging"
)

// contextKey context 键类型
type contextKey string

const ctxKeyAuthUser contextKey = "auth_user"

// CookieName 会话 Cookie 名称
const CookieName = "token"

// AuthUser 从会话令牌解析出的调用者
type AuthUser struct {
	ID string
}

// ============================================================================
// 密码哈希
// ============================================================================

// bcryptCost 测试中可调低
var bcryptCost = bcrypt.DefaultCost

// HashPassword 使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT Token
// ============================================================================

// ErrInvalidToken 令牌缺失、签名错误或已过期
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenManager 签发与校验 HS256 会话令牌，subject 为账号 ID
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager 创建令牌管理器
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL 令牌有效期（与 Cookie MaxAge 一致）
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue 为账号签发令牌
func (m *TokenManager) Issue(accountID string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse 校验令牌并返回账号 ID
func (m *TokenManager) Parse(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// ============================================================================
// Cookie
// ============================================================================

// CookieOptions 会话 Cookie 属性
type CookieOptions struct {
	Secure bool // 生产环境：Secure + SameSite=None；否则 SameSite=Strict
}

func (o CookieOptions) sameSite() http.SameSite {
	if o.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteStrictMode
}

// SetSessionCookie 写入会话 Cookie
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.sameSite(),
	})
}

// ClearSessionCookie 清除会话 Cookie
func ClearSessionCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.sameSite(),
	})
}

// TokenFromRequest 读取请求中的会话令牌
func TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithAuthUser 将认证用户信息注入 context
func WithAuthUser(ctx context.Context, user *AuthUser) context.Context {
	ctx = context.WithValue(ctx, logging.AccountIDKey, user.ID)
	return context.WithValue(ctx, ctxKeyAuthUser, user)
}

// GetAuthUser 从 context 获取认证用户
func GetAuthUser(ctx context.Context) *AuthUser {
	user, _ := ctx.Value(ctxKeyAuthUser).(*AuthUser)
	return user
}

// AccountID 当前调用者的账号 ID，未认证时为空
func AccountID(ctx context.Context) string {
	if u := GetAuthUser(ctx); u != nil {
		return u.ID
	}
	return ""
}

// IsAdmin 管理员判定策略：以存储中的角色为准
func IsAdmin(account *model.Account) bool {
	return account != nil && account.Role == model.RoleAdmin
}
