package server

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有 API Server 指标
//
// 每个实例使用独立的 Registry，测试中可创建多个 Handler
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// WebSocket 指标
	WSConnectionsActive prometheus.Gauge
	WSMessagesTotal     *prometheus.CounterVec

	// 业务指标
	MessagesPostedTotal *prometheus.CounterVec
	OTPSentTotal        *prometheus.CounterVec
	CompletionDuration  *prometheus.HistogramVec
}

// NewMetrics 创建指标实例
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		WSConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connections_active",
				Help:      "Active WebSocket connections",
			},
		),
		WSMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_messages_total",
				Help:      "Total WebSocket messages",
			},
			[]string{"direction", "type"},
		),
		MessagesPostedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_posted_total",
				Help:      "Total chat messages persisted",
			},
			[]string{"kind"},
		),
		OTPSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "otp_sent_total",
				Help:      "Total OTP mails sent",
			},
			[]string{"kind"},
		),
		CompletionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chatbot_completion_duration_seconds",
				Help:      "Chatbot upstream completion latency in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.WSConnectionsActive,
		m.WSMessagesTotal,
		m.MessagesPostedTotal,
		m.OTPSentTotal,
		m.CompletionDuration,
	)
	return m
}

// MetricsHandler 返回 Prometheus HTTP Handler
func (m *Metrics) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// MetricsMiddleware 创建 HTTP 指标中间件
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		wrapped := wrapResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// responseWriter 包装 http.ResponseWriter 以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack WebSocket 升级需要底层连接
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return hj.Hijack()
}

// Unwrap 供 http.ResponseController 使用
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// idSegments 路径中紧跟 ID 的集合名
var idSegments = map[string]bool{
	"rooms":         true,
	"chats":         true,
	"blogs":         true,
	"users":         true,
	"conversations": true,
	"images":        true,
}

// normalizePath 规范化路径，将 ID 替换为占位符，避免高基数
//
// 例如 /api/forum/rooms/room-123/messages -> /api/forum/rooms/{id}/messages
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/api/") {
		return path
	}
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		if !idSegments[parts[i-1]] || parts[i] == "" {
			continue
		}
		switch parts[i] {
		case "my-blogs", "images":
			continue
		}
		parts[i] = "{id}"
	}
	return strings.Join(parts, "/")
}

// WSConnectionOpened WebSocket 连接打开
func (m *Metrics) WSConnectionOpened() {
	m.WSConnectionsActive.Inc()
}

// WSConnectionClosed WebSocket 连接关闭
func (m *Metrics) WSConnectionClosed() {
	m.WSConnectionsActive.Dec()
}

// RecordWSMessage 记录 WebSocket 消息
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessagesTotal.WithLabelValues(direction, msgType).Inc()
}

// RecordMessagePosted 记录一条已持久化的聊天消息
func (m *Metrics) RecordMessagePosted(kind string) {
	m.MessagesPostedTotal.WithLabelValues(kind).Inc()
}

// RecordOTPSent 记录验证码邮件
func (m *Metrics) RecordOTPSent(kind string) {
	m.OTPSentTotal.WithLabelValues(kind).Inc()
}

// RecordCompletion 记录一次对话补全耗时
func (m *Metrics) RecordCompletion(d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CompletionDuration.WithLabelValues(status).Observe(d.Seconds())
}
