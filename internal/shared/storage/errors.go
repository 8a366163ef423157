// Package storage 定义存储层接口与领域错误
//
// 各驱动实现（repository/mongostore）负责将底层错误转换为这些领域错误，
// 业务层只依赖这里的哨兵错误。
package storage

import "errors"

var (
	// ErrNotFound 实体不存在（更新 / 删除时）
	// 读取操作不存在时返回 (nil, nil)
	ErrNotFound = errors.New("entity not found")

	// ErrConflict 条件更新未命中（OTP 不匹配或已过期）
	ErrConflict = errors.New("conflict: condition not satisfied")

	// ErrDuplicate 唯一键冲突（邮箱、会话参与者对）
	ErrDuplicate = errors.New("duplicate: entity already exists")
)
