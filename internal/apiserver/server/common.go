// Package server 组装 HTTP API
//
// 本包把各业务模块装配为一个 http.Handler：
//   - auth / user: 注册登录、邮箱验证、当前用户
//   - forum: 公共讨论室
//   - expertchat: 用户与专家私聊
//   - blog: 文章与图片
//   - admin: 管理后台
//   - chatbot: AI 聊天
//   - realtime: WebSocket 推送
//
// 文件组织：
//   - common.go: Deps 与 Handler 定义、健康检查
//   - handler.go: 路由与中间件
//   - metrics.go: Prometheus 指标
package server

import (
	"context"
	"net/http"
	"time"

	"mindcare/internal/apiserver/admin"
	"mindcare/internal/apiserver/auth"
	"mindcare/internal/apiserver/blog"
	"mindcare/internal/apiserver/chatbot"
	"mindcare/internal/apiserver/expertchat"
	"mindcare/internal/apiserver/forum"
	"mindcare/internal/apiserver/httpx"
	"mindcare/internal/apiserver/realtime"
	"mindcare/internal/apiserver/user"
	"mindcare/internal/shared/cache"
	"mindcare/internal/shared/completion"
	"mindcare/internal/shared/eventbus"
	"mindcare/internal/shared/keylock"
	"mindcare/internal/shared/mailer"
	"mindcare/internal/shared/storage"
	"mindcare/pkg/logging"
)

const healthCheckTimeout = 2 * time.Second

// Deps Handler 依赖
//
// EventBus 为 nil 时在进程内广播；Images 为 nil 时关闭图片上传。
type Deps struct {
	Store     storage.PersistentStore
	Cache     cache.CooldownCache
	EventBus  eventbus.EventBus
	Mailer    mailer.Mailer
	Completer completion.Completer
	Images    blog.ImageStore

	// HealthChecks 健康检查时探测的外部依赖
	HealthChecks map[string]func(context.Context) error

	JWTSecret      string
	TokenTTL       time.Duration
	SecureCookies  bool
	AllowedOrigins []string

	Logger *logging.Logger
}

// Handler API 入口，持有全部业务服务
type Handler struct {
	store  storage.PersistentStore
	bus    eventbus.EventBus
	logger *logging.Logger

	tokens *auth.TokenManager
	guard  *auth.Guard

	Auth       *auth.Service
	Forum      *forum.Service
	ExpertChat *expertchat.Service
	Blog       *blog.Service
	Admin      *admin.Service
	Chatbot    *chatbot.Service

	hub     *realtime.Hub
	gateway *realtime.Gateway
	metrics *Metrics

	checks         map[string]func(context.Context) error
	allowedOrigins []string
	cookie         auth.CookieOptions
}

// NewHandler 装配全部服务
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = logging.Default("api-server")
	}
	cooldown := d.Cache
	if cooldown == nil {
		cooldown = cache.NewMemoryCache()
	}
	m := d.Mailer
	if m == nil {
		m = mailer.NewLogMailer(logger)
	}

	h := &Handler{
		store:          d.Store,
		bus:            d.EventBus,
		logger:         logger,
		metrics:        NewMetrics("mindcare"),
		checks:         d.HealthChecks,
		allowedOrigins: d.AllowedOrigins,
		cookie:         auth.CookieOptions{Secure: d.SecureCookies},
	}

	h.tokens = auth.NewTokenManager(d.JWTSecret, d.TokenTTL)
	h.guard = auth.NewGuard(h.tokens, d.Store, logger)

	h.hub = realtime.NewHub(logger)
	h.hub.SetMetrics(h.metrics)
	broadcaster := realtime.NewBroadcaster(h.hub, d.EventBus)
	locks := keylock.New()

	h.Auth = auth.NewService(d.Store, cooldown, m, h.tokens, logger)
	h.Forum = forum.NewService(d.Store, d.Store, broadcaster, locks, logger)
	h.ExpertChat = expertchat.NewService(d.Store, d.Store, broadcaster, locks, logger)
	h.Blog = blog.NewService(d.Store, d.Store, d.Images, logger)
	h.Admin = admin.NewService(d.Store, h.Blog, logger)
	h.Chatbot = chatbot.NewService(d.Store, d.Completer, logger)

	h.gateway = realtime.NewGateway(h.hub, h.guard, d.Store, d.Store, d.AllowedOrigins, logger)

	h.Auth.OnOTPSent(h.metrics.RecordOTPSent)
	h.Forum.OnPosted(func() { h.metrics.RecordMessagePosted("forum") })
	h.ExpertChat.OnSent(func() { h.metrics.RecordMessagePosted("expert_chat") })
	h.Chatbot.OnCompletion(h.metrics.RecordCompletion)
	return h
}

// Tokens 会话令牌管理器
func (h *Handler) Tokens() *auth.TokenManager {
	return h.tokens
}

// Hub 实时连接管理
func (h *Handler) Hub() *realtime.Hub {
	return h.hub
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// Start 启动后台任务：配置了事件总线时订阅并投递给本地连接
func (h *Handler) Start(ctx context.Context) {
	if h.bus == nil {
		return
	}
	go func() {
		for {
			err := h.hub.Run(ctx, h.bus)
			if ctx.Err() != nil {
				return
			}
			h.logger.WithError(err).Warn("event bus subscription ended, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()
}

// Shutdown 关闭全部 WebSocket 连接
func (h *Handler) Shutdown(timeout time.Duration) {
	h.hub.Shutdown(timeout)
}

func (h *Handler) handlers() []interface{ RegisterRoutes(*http.ServeMux) } {
	return []interface{ RegisterRoutes(*http.ServeMux) }{
		auth.NewHandler(h.Auth, h.guard, h.cookie, h.logger),
		user.NewHandler(h.store, h.guard, h.logger),
		forum.NewHandler(h.Forum, h.guard, h.logger),
		expertchat.NewHandler(h.ExpertChat, h.guard, h.logger),
		blog.NewHandler(h.Blog, h.guard, h.logger),
		admin.NewHandler(h.Admin, h.guard, h.logger),
		chatbot.NewHandler(h.Chatbot, h.guard, h.logger),
	}
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 任一外部依赖探测失败时返回 503
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WithError(err).Warn("health check failed", "dependency", name)
			results[name] = "unavailable"
			healthy = false
			continue
		}
		results[name] = "ok"
	}

	if !healthy {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, httpx.M{"success": false, "status": "degraded", "checks": results})
		return
	}
	httpx.OK(w, http.StatusOK, httpx.M{"status": "ok", "checks": results})
}
