package realtime

import (
	"context"
	"sync"
	"time"

	"mindcare/internal/shared/eventbus"
	"mindcare/pkg/logging"
)

// Hub 管理本进程内的 WebSocket 连接及其频道订阅
//
// 投递为尽力而为：发送缓冲已满的连接会被断开，不做重放。
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}
	closing  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger  *logging.Logger
	metrics Metrics
}

// NewHub 创建 Hub
func NewHub(logger *logging.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:  make(map[*Client]struct{}),
		channels: make(map[string]map[*Client]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.Component("realtime"),
		metrics:  nopMetrics{},
	}
}

// SetMetrics 设置指标钩子
func (h *Hub) SetMetrics(m Metrics) {
	if m != nil {
		h.metrics = m
	}
}

// Run 订阅事件总线并投递给本地连接，ctx 取消后返回
func (h *Hub) Run(ctx context.Context, bus eventbus.EventBus) error {
	events, err := bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	for ev := range events {
		payload, err := encodeFrame(ev.Type, ev.Data)
		if err != nil {
			h.logger.WithError(err).Warn("encode bus event failed", "channel", ev.Channel)
			continue
		}
		h.Deliver(ev.Channel, ev.Type, payload)
	}
	return nil
}

// register 登记连接并启动读写协程
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.metrics.WSConnectionOpened()
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
	return true
}

// unregister 移除连接、退订全部频道并关闭发送队列，可重复调用
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for name := range c.channels {
		h.removeLocked(name, c)
	}
	c.channels = nil
	c.room = ""
	close(c.send)
	h.mu.Unlock()

	h.metrics.WSConnectionClosed()
}

func (h *Hub) addLocked(channel string, c *Client) {
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[c] = struct{}{}
	c.channels[channel] = struct{}{}
}

func (h *Hub) removeLocked(channel string, c *Client) {
	if subs, ok := h.channels[channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(c.channels, channel)
}

// Join 订阅频道
func (h *Hub) Join(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.addLocked(channel, c)
}

// Leave 退订频道，返回此前是否已订阅
func (h *Hub) Leave(c *Client, channel string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := c.channels[channel]; !ok {
		return false
	}
	h.removeLocked(channel, c)
	if c.room == channel {
		c.room = ""
	}
	return true
}

// JoinRoom 切换讨论室：每个连接同时只在一个讨论室，返回之前的讨论室频道
func (h *Hub) JoinRoom(c *Client, channel string) (previous string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return ""
	}
	previous = c.room
	if previous != "" && previous != channel {
		h.removeLocked(previous, c)
	}
	h.addLocked(channel, c)
	c.room = channel
	return previous
}

// LeaveRoom 离开当前讨论室，返回离开的频道（未在讨论室时为空）
func (h *Hub) LeaveRoom(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := c.room
	if room != "" {
		h.removeLocked(room, c)
		c.room = ""
	}
	return room
}

// Subscribers 频道当前订阅数
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Deliver 把已编码的帧投递给频道的全部订阅者，返回成功入队的数量
func (h *Hub) Deliver(channel, eventType string, payload []byte) int {
	var delivered int
	var failed []*Client

	h.mu.RLock()
	for c := range h.channels[channel] {
		if c.trySend(payload) {
			delivered++
		} else {
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	if delivered > 0 {
		h.metrics.RecordWSMessage("out", eventType)
	}
	for _, c := range failed {
		h.logger.Warn("client send buffer full, dropping connection",
			"account_id", c.accountID, "channel", channel)
		h.unregister(c)
		c.conn.Close()
	}
	return delivered
}

// sendTo 向单个连接回复帧（命令应答）
func (h *Hub) sendTo(c *Client, eventType string, data any) {
	payload, err := encodeFrame(eventType, data)
	if err != nil {
		h.logger.WithError(err).Warn("encode frame failed", "type", eventType)
		return
	}

	h.mu.RLock()
	_, ok := h.clients[c]
	sent := ok && c.trySend(payload)
	h.mu.RUnlock()

	if !ok {
		return
	}
	if !sent {
		h.unregister(c)
		c.conn.Close()
		return
	}
	h.metrics.RecordWSMessage("out", eventType)
}

// Shutdown 关闭全部连接并等待读写协程退出
func (h *Hub) Shutdown(timeout time.Duration) {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.cancel()
	for _, c := range clients {
		c.closeWithMessage()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		h.logger.Info("realtime hub stopped", "clients", len(clients))
	case <-time.After(timeout):
		h.logger.Warn("realtime hub shutdown timed out", "timeout", timeout)
	}
}
