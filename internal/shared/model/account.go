// Package model 定义核心数据模型
//
// account.go 包含账号相关的数据模型定义：
//   - Account：注册用户（普通用户 / 专家 / 管理员）
//   - Role：账号角色枚举
//   - Participant：对外展示的账号摘要（消息作者、会话参与者）
package model

import "time"

// ============================================================================
// Role - 账号角色
// ============================================================================

// Role 账号角色
type Role string

const (
	// RoleUser 普通用户
	RoleUser Role = "user"

	// RoleExpert 专家（可被用户发起 1:1 会话）
	RoleExpert Role = "expert"

	// RoleAdmin 管理员
	RoleAdmin Role = "admin"
)

// Valid 是否为合法角色
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleExpert, RoleAdmin:
		return true
	}
	return false
}

// ============================================================================
// Account - 注册账号
// ============================================================================

// Account 注册账号
//
// OTP 过期时间使用 Unix 毫秒，0 表示未设置
type Account struct {
	ID                string    `json:"_id" bson:"_id" db:"id"`
	Name              string    `json:"name" bson:"name" db:"name"`
	Email             string    `json:"email" bson:"email" db:"email"`
	PasswordHash      string    `json:"-" bson:"password_hash" db:"password_hash"` // never expose in JSON
	Role              Role      `json:"role" bson:"role" db:"role"`
	IsAccountVerified bool      `json:"isAccountVerified" bson:"is_account_verified" db:"is_account_verified"`
	VerifyOTP         string    `json:"-" bson:"verify_otp" db:"verify_otp"`
	VerifyOTPExpireAt int64     `json:"-" bson:"verify_otp_expire_at" db:"verify_otp_expire_at"`
	ResetOTP          string    `json:"-" bson:"reset_otp" db:"reset_otp"`
	ResetOTPExpireAt  int64     `json:"-" bson:"reset_otp_expire_at" db:"reset_otp_expire_at"`
	CreatedAt         time.Time `json:"createdAt" bson:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" bson:"updated_at" db:"updated_at"`
}

// IsExpert 是否为专家
func (a *Account) IsExpert() bool {
	return a != nil && a.Role == RoleExpert
}

// Summary 返回对外展示的账号摘要
func (a *Account) Summary() *Participant {
	if a == nil {
		return nil
	}
	return &Participant{ID: a.ID, Name: a.Name, Email: a.Email}
}

// Participant 账号摘要（展开后的作者 / 会话参与者）
type Participant struct {
	ID    string `json:"_id" bson:"_id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email,omitempty" bson:"email"`
}

// Public 去掉邮箱的摘要（讨论室消息、文章作者对所有人可见）
func (p *Participant) Public() *Participant {
	if p == nil {
		return nil
	}
	return &Participant{ID: p.ID, Name: p.Name}
}

// DeletedParticipant 作者账号已删除时的占位摘要
func DeletedParticipant(id string) *Participant {
	return &Participant{ID: id, Name: "Deleted user"}
}

// AccountUpdate 管理员修改账号资料（nil 字段不修改）
type AccountUpdate struct {
	Name              *string
	Email             *string
	Role              *Role
	IsAccountVerified *bool
}

// Empty 是否没有任何修改
func (u AccountUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Role == nil && u.IsAccountVerified == nil
}

// AccountFilter 账号列表过滤条件
type AccountFilter struct {
	Role        Role // 只返回该角色（空表示不限）
	ExcludeRole Role // 排除该角色（空表示不排除）
}
