// Package httpx HTTP 处理器公共工具
//
// 所有响应统一为 {success: bool, message?: string, ...payload}
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"mindcare/internal/shared/apperr"
	"mindcare/pkg/logging"
)

// maxBodyBytes JSON 请求体上限
const maxBodyBytes = 1 << 20

// M 响应载荷
type M map[string]any

// WriteJSON 将数据以 JSON 格式写入响应
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// OK 成功响应，payload 中的字段与 success 平铺
func OK(w http.ResponseWriter, status int, payload M) {
	body := M{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	WriteJSON(w, status, body)
}

// Message 只带提示信息的成功响应
func Message(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, M{"success": true, "message": message})
}

// Fail 失败响应
func Fail(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, M{"success": false, "message": message})
}

// StatusOf apperr 分类对应的 HTTP 状态码
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindTooManyRequests:
		return http.StatusTooManyRequests
	case apperr.KindUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Error 将服务层错误写入响应
//
// *apperr.Error 返回其 Message；其他错误记录日志并返回通用提示
func Error(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		status := StatusOf(ae.Kind)
		if ae.Err != nil {
			logger.WithContext(r.Context()).WithError(ae.Err).Warn("request failed",
				"method", r.Method, "path", r.URL.Path, "kind", ae.Kind.String(), "status", status)
		}
		Fail(w, status, ae.Message)
		return
	}
	logger.WithContext(r.Context()).WithError(err).Error("internal error",
		"method", r.Method, "path", r.URL.Path)
	Fail(w, http.StatusInternalServerError, "internal error")
}

// DecodeJSON 解析 JSON 请求体，格式错误返回校验错误
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return apperr.Validation("request body too large")
		}
		return apperr.Validation("invalid request body")
	}
	return nil
}

// QueryInt 读取整数查询参数，缺失或非法时返回默认值
func QueryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// QueryInt64 读取 int64 查询参数
func QueryInt64(r *http.Request, key string, def int64) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
