package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/apiserver/httpx"
	"mindcare/internal/shared/model"
	"mindcare/pkg/logging"
)

const commandTimeout = 5 * time.Second

// Authenticator 握手鉴权（auth.Guard 实现）
type Authenticator interface {
	Authenticate(r *http.Request) (*auth.AuthUser, error)
}

// RoomLookup 讨论室查询
type RoomLookup interface {
	GetRoom(ctx context.Context, id string) (*model.Room, error)
}

// ConversationLookup 专家会话查询
type ConversationLookup interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
}

// Gateway WebSocket 入口：握手鉴权、命令处理
type Gateway struct {
	hub      *Hub
	authn    Authenticator
	rooms    RoomLookup
	convs    ConversationLookup
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewGateway 创建网关，allowedOrigins 为空时只允许同源或无 Origin 的请求，"*" 放行全部
func NewGateway(hub *Hub, authn Authenticator, rooms RoomLookup, convs ConversationLookup, allowedOrigins []string, logger *logging.Logger) *Gateway {
	g := &Gateway{
		hub:    hub,
		authn:  authn,
		rooms:  rooms,
		convs:  convs,
		logger: logger.Component("realtime"),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return g
}

// RegisterRoutes 注册 WebSocket 路由
func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", g.HandleWebSocket)
}

// HandleWebSocket 升级连接
//
// 路由: GET /ws（Cookie 鉴权）
//
// 客户端消息：
//
//	{"type":"joinRoom","roomId":"..."}      -> joinedRoom
//	{"type":"leaveRoom"}                    -> leftRoom
//	{"type":"joinExpertChat","chatId":"..."} -> joinedExpertChat
//	{"type":"leaveExpertChat","chatId":"..."} -> leftExpertChat
//	{"type":"ping"}                         -> pong
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := g.authn.Authenticate(r)
	if err != nil {
		httpx.Fail(w, http.StatusUnauthorized, "Not Authorised. Login Again")
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(g.hub, conn, user.ID, g.handleCommand)
	if !g.hub.register(c) {
		c.closeWithMessage()
		return
	}
	g.logger.Debug("websocket connected", "account_id", user.ID)
}

func (g *Gateway) handleCommand(ctx context.Context, c *Client, raw []byte) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Type == "" {
		g.hub.sendTo(c, EventError, errorData("Invalid message"))
		return
	}
	g.hub.metrics.RecordWSMessage("in", cmd.Type)

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch cmd.Type {
	case CmdPing:
		g.hub.sendTo(c, EventPong, nil)
	case CmdJoinRoom:
		g.joinRoom(ctx, c, cmd.RoomID)
	case CmdLeaveRoom:
		channel := g.hub.LeaveRoom(c)
		g.hub.sendTo(c, EventLeftRoom, map[string]string{"roomId": strings.TrimPrefix(channel, roomPrefix)})
	case CmdJoinExpertChat:
		g.joinExpertChat(ctx, c, cmd.ChatID)
	case CmdLeaveExpertChat:
		g.hub.Leave(c, ExpertChatChannel(cmd.ChatID))
		g.hub.sendTo(c, EventLeftExpertChat, map[string]string{"chatId": cmd.ChatID})
	default:
		g.hub.sendTo(c, EventError, errorData("Unknown message type"))
	}
}

func (g *Gateway) joinRoom(ctx context.Context, c *Client, roomID string) {
	if roomID == "" {
		g.hub.sendTo(c, EventError, errorData("roomId is required"))
		return
	}
	room, err := g.rooms.GetRoom(ctx, roomID)
	if err != nil {
		g.logger.WithError(err).Warn("join room lookup failed", "room_id", roomID)
		g.hub.sendTo(c, EventError, errorData("internal error"))
		return
	}
	if room == nil {
		g.hub.sendTo(c, EventError, errorData("Room not found"))
		return
	}
	g.hub.JoinRoom(c, RoomChannel(room.ID))
	g.hub.sendTo(c, EventJoinedRoom, map[string]string{"roomId": room.ID})
}

func (g *Gateway) joinExpertChat(ctx context.Context, c *Client, chatID string) {
	if chatID == "" {
		g.hub.sendTo(c, EventError, errorData("chatId is required"))
		return
	}
	conv, err := g.convs.GetConversation(ctx, chatID)
	if err != nil {
		g.logger.WithError(err).Warn("join expert chat lookup failed", "chat_id", chatID)
		g.hub.sendTo(c, EventError, errorData("internal error"))
		return
	}
	if conv == nil {
		g.hub.sendTo(c, EventError, errorData("Chat not found"))
		return
	}
	if !conv.IsParticipant(c.accountID) {
		g.hub.sendTo(c, EventError, errorData("Not authorized for this chat"))
		return
	}
	g.hub.Join(c, ExpertChatChannel(conv.ID))
	g.hub.sendTo(c, EventJoinedExpertChat, map[string]string{"chatId": conv.ID})
}

func errorData(msg string) map[string]string {
	return map[string]string{"message": msg}
}

// originChecker 按允许列表校验 Origin
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "http://"), "https://"), r.Host)
	}
}
