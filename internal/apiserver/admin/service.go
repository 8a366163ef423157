// Package admin 管理后台：账号管理、文章管理、统计
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/apiserver/blog"
	"mindcare/internal/shared/apperr"
	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"
	"mindcare/pkg/logging"
)

// Store 管理后台需要的存储能力
type Store interface {
	storage.AccountStore
	CountRooms(ctx context.Context) (int64, error)
	CountMessages(ctx context.Context) (int64, error)
	CountBlogs(ctx context.Context) (int64, error)
}

// UserUpdate 管理员修改账号的请求体（缺省字段不修改）
type UserUpdate struct {
	Name              *string `json:"name"`
	Email             *string `json:"email"`
	Role              *string `json:"role"`
	IsAccountVerified *bool   `json:"isAccountVerified"`
}

// Service 管理后台业务
type Service struct {
	store  Store
	blogs  *blog.Service
	logger *logging.Logger
}

// NewService 创建管理后台服务
func NewService(store Store, blogs *blog.Service, logger *logging.Logger) *Service {
	return &Service{store: store, blogs: blogs, logger: logger.Component("admin")}
}

// ListUsers 非管理员账号
func (s *Service) ListUsers(ctx context.Context) ([]*model.Account, error) {
	users, err := s.store.ListAccounts(ctx, model.AccountFilter{ExcludeRole: model.RoleAdmin})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return users, nil
}

// UpdateUser 修改账号资料，管理员不能撤销自己的管理员角色
func (s *Service) UpdateUser(ctx context.Context, callerID, userID string, in UserUpdate) (*model.Account, error) {
	update, err := toAccountUpdate(in)
	if err != nil {
		return nil, err
	}
	if update.Empty() {
		return nil, apperr.Validation("No fields to update")
	}
	if userID == callerID && update.Role != nil && *update.Role != model.RoleAdmin {
		return nil, apperr.Validation("You cannot remove your own admin role")
	}

	if err := s.store.UpdateAccount(ctx, userID, update); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, apperr.NotFound("User not found")
		case errors.Is(err, storage.ErrDuplicate):
			return nil, apperr.Conflict("Email already in use")
		}
		return nil, fmt.Errorf("update account: %w", err)
	}

	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		return nil, apperr.NotFound("User not found")
	}
	s.logger.WithContext(ctx).Info("account updated by admin", "target_id", userID)
	return account, nil
}

// DeleteUser 删除账号，管理员不能删除自己
func (s *Service) DeleteUser(ctx context.Context, callerID, userID string) error {
	if userID == callerID {
		return apperr.Validation("You cannot delete your own account")
	}
	if err := s.store.DeleteAccount(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return fmt.Errorf("delete account: %w", err)
	}
	s.logger.WithContext(ctx).Info("account deleted by admin", "target_id", userID)
	return nil
}

// Stats 仪表盘统计
func (s *Service) Stats(ctx context.Context) (*model.DashboardStats, error) {
	var (
		stats model.DashboardStats
		err   error
	)
	if stats.UserCount, err = s.store.CountAccounts(ctx, ""); err != nil {
		return nil, fmt.Errorf("count accounts: %w", err)
	}
	if stats.ExpertCount, err = s.store.CountAccounts(ctx, model.RoleExpert); err != nil {
		return nil, fmt.Errorf("count experts: %w", err)
	}
	if stats.BlogCount, err = s.store.CountBlogs(ctx); err != nil {
		return nil, fmt.Errorf("count blogs: %w", err)
	}
	if stats.RoomCount, err = s.store.CountRooms(ctx); err != nil {
		return nil, fmt.Errorf("count rooms: %w", err)
	}
	if stats.MessageCount, err = s.store.CountMessages(ctx); err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	return &stats, nil
}

// ListBlogs 全部文章
func (s *Service) ListBlogs(ctx context.Context) ([]*model.Blog, error) {
	return s.blogs.ListAll(ctx)
}

// DeleteBlog 删除任意文章（管理员身份由路由守卫保证）
func (s *Service) DeleteBlog(ctx context.Context, callerID, blogID string) error {
	return s.blogs.Delete(ctx, callerID, blogID)
}

func toAccountUpdate(in UserUpdate) (model.AccountUpdate, error) {
	var u model.AccountUpdate
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return u, apperr.Validation("Name cannot be empty")
		}
		u.Name = &name
	}
	if in.Email != nil {
		email := auth.NormalizeEmail(*in.Email)
		if !auth.ValidEmail(email) {
			return u, apperr.Validation("Invalid email format")
		}
		u.Email = &email
	}
	if in.Role != nil {
		role := model.Role(strings.TrimSpace(*in.Role))
		if !role.Valid() {
			return u, apperr.Validation("Invalid role %q", *in.Role)
		}
		u.Role = &role
	}
	u.IsAccountVerified = in.IsAccountVerified
	return u, nil
}
