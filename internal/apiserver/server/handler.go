package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"mindcare/api"
)

// Router 创建并配置 HTTP 路由
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", h.metrics.MetricsHandler())
	mux.HandleFunc("GET /api/openapi.yaml", h.OpenAPIDocument)

	for _, rh := range h.handlers() {
		rh.RegisterRoutes(mux)
	}

	handler := h.metrics.MetricsMiddleware(mux)
	handler = h.requestLogMiddleware(handler)

	// WebSocket 路由不经过指标与日志中间件（长连接）
	topMux := http.NewServeMux()
	h.gateway.RegisterRoutes(topMux)
	topMux.Handle("/", handler)

	return h.corsMiddleware(topMux)
}

// OpenAPIDocument 返回内嵌的 OpenAPI 文档
//
// 路由: GET /api/openapi.yaml
func (h *Handler) OpenAPIDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(api.Document())
}

// corsMiddleware 只对白名单 Origin 回显并允许携带 Cookie，"*" 放行全部
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(h.allowedOrigins))
	for _, o := range h.allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || allowed[strings.TrimRight(origin, "/")]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogMiddleware 记录每个请求的方法、路径、状态码与耗时
func (h *Handler) requestLogMiddleware(next http.Handler) http.Handler {
	logger := h.logger.Component("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrapResponseWriter(w)
		next.ServeHTTP(wrapped, r)
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			return
		}
		logger.HTTPRequestLog(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start), clientIP(r))
	})
}

// clientIP 优先取反向代理写入的 X-Forwarded-For 首个地址
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
