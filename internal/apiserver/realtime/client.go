package realtime

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// commandHandler 处理客户端上行帧
type commandHandler func(ctx context.Context, c *Client, raw []byte)

// Client 单个 WebSocket 连接
//
// channels 与 room 由 Hub.mu 保护。
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	accountID string
	send      chan []byte
	handle    commandHandler

	channels map[string]struct{}
	room     string
}

func newClient(hub *Hub, conn *websocket.Conn, accountID string, handle commandHandler) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		accountID: accountID,
		send:      make(chan []byte, sendBufferSize),
		handle:    handle,
		channels:  make(map[string]struct{}),
	}
}

// AccountID 连接所属账号
func (c *Client) AccountID() string {
	return c.accountID
}

// trySend 非阻塞入队，调用方须持有 Hub.mu（读锁即可）
func (c *Client) trySend(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// readPump 读取客户端命令，连接断开后注销
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", "account_id", c.accountID, "error", err)
			}
			return
		}
		c.handle(c.hub.ctx, c, msg)
	}
}

// writePump 串行写出发送队列并定时 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeWithMessage 发送关闭帧并断开（服务关闭时）
func (c *Client) closeWithMessage() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.conn.Close()
}
