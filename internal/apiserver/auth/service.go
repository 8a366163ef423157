package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"mindcare/internal/shared/apperr"
	"mindcare/internal/shared/cache"
	"mindcare/internal/shared/mailer"
	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"
	"mindcare/pkg/logging"
)

const (
	minPasswordLen = 6
	// bcrypt 只接受 72 字节以内的密码
	maxPasswordBytes = 72

	verifyOTPTTL = 24 * time.Hour
	resetOTPTTL  = 15 * time.Minute

	mailTimeout = 15 * time.Second
)

// Service 账号认证业务
type Service struct {
	accounts storage.AccountStore
	cooldown cache.CooldownCache
	mailer   mailer.Mailer
	tokens   *TokenManager
	logger   *logging.Logger

	now       func() time.Time
	otpFunc   func() (string, error)
	onOTPSent func(kind string)
}

// NewService 创建认证服务
func NewService(accounts storage.AccountStore, cooldown cache.CooldownCache, m mailer.Mailer, tokens *TokenManager, logger *logging.Logger) *Service {
	return &Service{
		accounts: accounts,
		cooldown: cooldown,
		mailer:   m,
		tokens:   tokens,
		logger:   logger.Component("auth"),
		now:      time.Now,
		otpFunc:  generateOTP,
	}
}

// OnOTPSent 注册验证码邮件发送成功回调（指标）
func (s *Service) OnOTPSent(fn func(kind string)) {
	s.onOTPSent = fn
}

// Register 注册新账号并签发令牌
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.Account, string, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, "", apperr.Validation("Missing Details")
	}
	if !ValidEmail(email) {
		return nil, "", apperr.Validation("Invalid email format")
	}
	if err := checkPassword(password); err != nil {
		return nil, "", err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	account := &model.Account{
		ID:           model.NewID(model.PrefixAccount),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, "", apperr.Conflict("User Already exists")
		}
		return nil, "", fmt.Errorf("create account: %w", err)
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	// 欢迎邮件失败不影响注册结果
	if err := s.sendMail(ctx, mailer.Welcome(account.Email, account.Name)); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("welcome mail failed", "account_id", account.ID)
	}
	return account, token, nil
}

// Login 校验邮箱密码并签发令牌
func (s *Service) Login(ctx context.Context, email, password string) (*model.Account, string, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, "", apperr.Validation("Email and Password are required")
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("get account: %w", err)
	}
	if account == nil || !CheckPassword(password, account.PasswordHash) {
		return nil, "", apperr.Validation("Invalid email or password")
	}

	token, err := s.tokens.Issue(account.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return account, token, nil
}

// CurrentAccount 返回调用者账号，账号已删除视为未登录
func (s *Service) CurrentAccount(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, apperr.Unauthenticated("User not found")
	}
	return account, nil
}

// SendVerifyOTP 生成邮箱验证码（24 小时有效）并发送，60 秒内不可重复发送
func (s *Service) SendVerifyOTP(ctx context.Context, accountID string) error {
	account, err := s.CurrentAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.IsAccountVerified {
		return apperr.Validation("Account Already Verified")
	}

	key := cache.KeyVerifyOTPCooldown + account.ID
	if err := s.acquireCooldown(ctx, key); err != nil {
		return err
	}

	otp, err := s.otpFunc()
	if err != nil {
		s.releaseCooldown(ctx, key)
		return fmt.Errorf("generate otp: %w", err)
	}
	expireAt := s.now().Add(verifyOTPTTL).UnixMilli()
	if err := s.accounts.SetVerifyOTP(ctx, account.ID, otp, expireAt); err != nil {
		s.releaseCooldown(ctx, key)
		return fmt.Errorf("set verify otp: %w", err)
	}

	if err := s.sendMail(ctx, mailer.VerifyOTP(account.Email, otp)); err != nil {
		s.releaseCooldown(ctx, key)
		return apperr.Unavailable(err, "Failed to send OTP email")
	}
	s.otpSent("verify")
	return nil
}

// VerifyEmail 以单次条件更新消费验证码
func (s *Service) VerifyEmail(ctx context.Context, accountID, otp string) error {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return apperr.Validation("Details missing")
	}

	err := s.accounts.ConsumeVerifyOTP(ctx, accountID, otp, s.now().UnixMilli())
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrConflict) && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("consume verify otp: %w", err)
	}

	// 条件未满足：重新读取以区分原因
	account, err := s.CurrentAccount(ctx, accountID)
	if err != nil {
		return err
	}
	switch {
	case account.IsAccountVerified:
		return apperr.Validation("Account Already Verified")
	case account.VerifyOTP != "" && account.VerifyOTP == otp:
		return apperr.Validation("OTP Expired")
	}
	return apperr.Validation("Invalid OTP")
}

// SendResetOTP 生成重置密码验证码（15 分钟有效）并发送
func (s *Service) SendResetOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return apperr.Validation("Email Missing")
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return apperr.NotFound("User not found")
	}

	key := cache.KeyResetOTPCooldown + account.ID
	if err := s.acquireCooldown(ctx, key); err != nil {
		return err
	}

	otp, err := s.otpFunc()
	if err != nil {
		s.releaseCooldown(ctx, key)
		return fmt.Errorf("generate otp: %w", err)
	}
	expireAt := s.now().Add(resetOTPTTL).UnixMilli()
	if err := s.accounts.SetResetOTP(ctx, email, otp, expireAt); err != nil {
		s.releaseCooldown(ctx, key)
		return fmt.Errorf("set reset otp: %w", err)
	}

	if err := s.sendMail(ctx, mailer.ResetOTP(account.Email, otp)); err != nil {
		s.releaseCooldown(ctx, key)
		return apperr.Unavailable(err, "Failed to send OTP email")
	}
	s.otpSent("reset")
	return nil
}

// ResetPassword 以单次条件更新消费重置验证码并写入新密码
func (s *Service) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	email = NormalizeEmail(email)
	otp = strings.TrimSpace(otp)
	if email == "" || otp == "" || newPassword == "" {
		return apperr.Validation("Missing details")
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.accounts.ConsumeResetOTP(ctx, email, otp, s.now().UnixMilli(), hash)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrNotFound):
		return apperr.Validation("Invalid or expired OTP")
	}
	return fmt.Errorf("consume reset otp: %w", err)
}

// EnsureAdmin 启动时创建管理员账号，已存在则提升为管理员
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return nil
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get admin account: %w", err)
	}
	if account != nil {
		if IsAdmin(account) {
			return nil
		}
		role := model.RoleAdmin
		if err := s.accounts.UpdateAccount(ctx, account.ID, model.AccountUpdate{Role: &role}); err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		s.logger.Info("account promoted to admin", "account_id", account.ID)
		return nil
	}

	if err := checkPassword(password); err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	admin := &model.Account{
		ID:                model.NewID(model.PrefixAccount),
		Name:              "Admin",
		Email:             email,
		PasswordHash:      hash,
		Role:              model.RoleAdmin,
		IsAccountVerified: true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.accounts.CreateAccount(ctx, admin); err != nil && !errors.Is(err, storage.ErrDuplicate) {
		return fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info("admin account created", "account_id", admin.ID)
	return nil
}

func (s *Service) acquireCooldown(ctx context.Context, key string) error {
	ok, remaining, err := s.cooldown.AcquireCooldown(ctx, key, cache.TTLOTPCooldown)
	if err != nil {
		// 缓存不可用时不阻塞发送
		s.logger.WithContext(ctx).WithError(err).Warn("otp cooldown check failed")
		return nil
	}
	if !ok {
		secs := int(remaining.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		return apperr.TooManyRequests("Please wait %d seconds before requesting another OTP", secs)
	}
	return nil
}

func (s *Service) releaseCooldown(ctx context.Context, key string) {
	if err := s.cooldown.ReleaseCooldown(ctx, key); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("otp cooldown release failed")
	}
}

func (s *Service) sendMail(ctx context.Context, msg mailer.Message) error {
	ctx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()
	return s.mailer.Send(ctx, msg)
}

func (s *Service) otpSent(kind string) {
	if s.onOTPSent != nil {
		s.onOTPSent(kind)
	}
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen {
		return apperr.Validation("Password must be at least %d characters", minPasswordLen)
	}
	if len(password) > maxPasswordBytes {
		return apperr.Validation("Password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

// generateOTP 6 位数字验证码
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// NormalizeEmail 邮箱统一小写并去除首尾空白
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail 校验邮箱格式（要求域名含点）
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@")+1:], ".")
}
