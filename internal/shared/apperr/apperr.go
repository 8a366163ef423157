// Package apperr 定义业务错误分类
//
// 服务层返回 *Error，HTTP 层按 Kind 映射状态码；
// 其余错误一律视为内部错误，只记录日志，不向客户端暴露细节。
package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误分类
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindTooManyRequests
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTooManyRequests:
		return "too_many_requests"
	case KindUnavailable:
		return "unavailable"
	}
	return "internal"
}

// Error 带分类的业务错误
//
// Message 面向客户端，Err 为底层原因（仅用于日志）
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation 请求参数不合法
func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

// Unauthenticated 未登录或凭证无效
func Unauthenticated(format string, args ...any) *Error {
	return newf(KindUnauthenticated, format, args...)
}

// Forbidden 已登录但无权限
func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

// NotFound 资源不存在
func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

// Conflict 资源冲突（如邮箱已注册）
func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

// TooManyRequests 触发频率限制（如验证码冷却）
func TooManyRequests(format string, args ...any) *Error {
	return newf(KindTooManyRequests, format, args...)
}

// Unavailable 依赖的外部服务不可用
func Unavailable(err error, format string, args ...any) *Error {
	e := newf(KindUnavailable, format, args...)
	e.Err = err
	return e
}

// KindOf 返回错误分类，非 *Error 返回 KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断错误是否属于指定分类
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
