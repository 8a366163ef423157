package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/shared/completion"
	"mindcare/internal/shared/mailer"
	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"
	"mindcare/internal/testutil"
	"mindcare/pkg/logging"
)

const testOrigin = "http://localhost:5173"

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, _ []completion.Turn, prompt string) (string, error) {
	return "echo: " + prompt, nil
}

type testServer struct {
	*httptest.Server
	handler *Handler
	store   storage.PersistentStore
	mails   *mailer.LogMailer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := testutil.NewStore(t)
	mails := mailer.NewLogMailer(logging.Nop())
	h := NewHandler(Deps{
		Store:          store,
		Mailer:         mails,
		Completer:      echoCompleter{},
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		AllowedOrigins: []string{testOrigin},
		Logger:         logging.Nop(),
	})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(func() {
		h.Shutdown(2 * time.Second)
		srv.Close()
	})
	return &testServer{Server: srv, handler: h, store: store, mails: mails}
}

// login 直接签发令牌，返回已登录的客户端与令牌
func (s *testServer) login(t *testing.T, account *model.Account) (*testutil.Client, string) {
	t.Helper()
	token, err := s.handler.Tokens().Issue(account.ID)
	require.NoError(t, err)
	c := testutil.NewClient(t, s.URL)
	c.SetToken(token)
	return c, token
}

func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Cookie", auth.CookieName+"="+token)
	header.Set("Origin", testOrigin)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/ws", header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func nested(t *testing.T, body map[string]any, key string) map[string]any {
	t.Helper()
	v, ok := body[key].(map[string]any)
	require.True(t, ok, "missing %q in %v", key, body)
	return v
}

// ============================================================================
// 基础路由
// ============================================================================

func TestHealthMetricsAndDocument(t *testing.T) {
	s := newTestServer(t)
	c := testutil.NewClient(t, s.URL)

	status, body := c.Get("/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, _ = c.Get("/api/forum/rooms")
	assert.Equal(t, http.StatusUnauthorized, status)

	resp, err := http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(data), `mindcare_http_requests_total{method="GET",path="/api/forum/rooms",status="401"} 1`)

	resp, err = http.Get(s.URL + "/api/openapi.yaml")
	require.NoError(t, err)
	data, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "openapi: 3.0.3")
}

func TestHealthReportsFailingDependency(t *testing.T) {
	h := NewHandler(Deps{
		Store:     testutil.NewStore(t),
		Completer: echoCompleter{},
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		Logger:    logging.Nop(),
		HealthChecks: map[string]func(context.Context) error{
			"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
		},
	})

	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"redis": "unavailable"}, body["checks"])
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, s.URL+"/api/auth/login", nil)
	req.Header.Set("Origin", testOrigin)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req, _ = http.NewRequest(http.MethodGet, s.URL+"/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/health", "/health"},
		{"/api/forum/rooms", "/api/forum/rooms"},
		{"/api/forum/rooms/room-1/messages", "/api/forum/rooms/{id}/messages"},
		{"/api/expert-chat/chats/conv-9/messages", "/api/expert-chat/chats/{id}/messages"},
		{"/api/blogs/my-blogs", "/api/blogs/my-blogs"},
		{"/api/blogs/blog-3", "/api/blogs/{id}"},
		{"/api/blogs/images/img-1.png", "/api/blogs/images/{id}"},
		{"/api/admin/users/acc-2", "/api/admin/users/{id}"},
		{"/api/conversations/bot-1/title", "/api/conversations/{id}/title"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.in))
		})
	}
}

// ============================================================================
// 端到端
// ============================================================================

func TestRegisterLoginIsAuth(t *testing.T) {
	s := newTestServer(t)

	c := testutil.NewClient(t, s.URL)
	status, body := c.Post("/api/auth/register", map[string]string{
		"name": "Alice", "email": "Alice@Example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status, body)
	_, ok := s.mails.Last("alice@example.com")
	assert.True(t, ok, "welcome mail")

	fresh := testutil.NewClient(t, s.URL)
	status, _ = fresh.Get("/api/auth/is-auth")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = fresh.Post("/api/auth/login", map[string]string{"email": "alice@example.com", "password": "wrong-pw"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])

	status, _ = fresh.Post("/api/auth/login", map[string]string{"email": "alice@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)

	status, body = fresh.Get("/api/auth/is-auth")
	require.Equal(t, http.StatusOK, status)
	user := nested(t, body, "userData")
	assert.Equal(t, "Alice", user["name"])
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "passwordHash")

	status, _ = fresh.Post("/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = fresh.Get("/api/auth/is-auth")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestForumMessageReachesSubscriber(t *testing.T) {
	s := newTestServer(t)
	alice := testutil.CreateAccount(t, s.store, "alice", model.RoleUser)
	bob := testutil.CreateAccount(t, s.store, "bob", model.RoleUser)
	room := testutil.FirstRoom(t, s.store)

	aliceClient, _ := s.login(t, alice)
	_, bobToken := s.login(t, bob)

	conn := s.dial(t, bobToken)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "joinRoom", "roomId": room.ID}))
	require.Equal(t, "joinedRoom", readFrame(t, conn).Type)

	status, body := aliceClient.Post("/api/forum/rooms/"+room.ID+"/messages", map[string]string{"content": "hello"})
	require.Equal(t, http.StatusCreated, status, body)

	f := readFrame(t, conn)
	require.Equal(t, "newMessage", f.Type)
	assert.Equal(t, 1, s.handler.Hub().ClientCount())
	assert.Equal(t, 1.0, promtest.ToFloat64(s.handler.GetMetrics().MessagesPostedTotal.WithLabelValues("forum")))
	var msg struct {
		ID      string `json:"_id"`
		Content string `json:"content"`
		Author  struct {
			Name string `json:"name"`
		} `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &msg))
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, alice.Name, msg.Author.Name)

	status, body = aliceClient.Get("/api/forum/rooms/" + room.ID + "/messages")
	require.Equal(t, http.StatusOK, status)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].(map[string]any)["_id"])
}

func TestDeletedAccountSessionRevoked(t *testing.T) {
	s := newTestServer(t)
	user := testutil.CreateAccount(t, s.store, "leaving", model.RoleUser)
	room := testutil.FirstRoom(t, s.store)
	c, token := s.login(t, user)

	require.NoError(t, s.store.DeleteAccount(context.Background(), user.ID))

	status, _ := c.Post("/api/forum/rooms/"+room.ID+"/messages", map[string]string{"content": "ghost"})
	assert.Equal(t, http.StatusUnauthorized, status)
	msgs, err := s.store.ListMessages(context.Background(), room.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	header := http.Header{}
	header.Set("Cookie", auth.CookieName+"="+token)
	header.Set("Origin", testOrigin)
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/ws", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketRequiresSession(t *testing.T) {
	s := newTestServer(t)
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExpertConversationFlow(t *testing.T) {
	s := newTestServer(t)
	user := testutil.CreateAccount(t, s.store, "user", model.RoleUser)
	expert := testutil.CreateAccount(t, s.store, "expert", model.RoleExpert)
	outsider := testutil.CreateAccount(t, s.store, "outsider", model.RoleUser)

	uc, _ := s.login(t, user)
	status, body := uc.Post("/api/expert-chat/chats", map[string]string{"expertId": expert.ID})
	require.Equal(t, http.StatusOK, status, body)
	first := nested(t, body, "chat")["_id"]

	status, body = uc.Post("/api/expert-chat/chats", map[string]string{"expertId": expert.ID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, first, nested(t, body, "chat")["_id"])

	status, _ = uc.Post("/api/expert-chat/chats", map[string]string{"expertId": user.ID})
	assert.Equal(t, http.StatusBadRequest, status)

	chatID := first.(string)
	oc, _ := s.login(t, outsider)
	status, body = oc.Post("/api/expert-chat/chats/"+chatID+"/messages", map[string]string{"content": "let me in"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Not authorized for this chat", body["message"])

	status, body = uc.Get("/api/expert-chat/chats/" + chatID + "/messages")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["messages"])
}

func TestBlogNonOwnerRejected(t *testing.T) {
	s := newTestServer(t)
	author := testutil.CreateAccount(t, s.store, "author", model.RoleUser)
	other := testutil.CreateAccount(t, s.store, "other", model.RoleUser)
	admin := testutil.CreateAccount(t, s.store, "admin", model.RoleAdmin)

	ac, _ := s.login(t, author)
	status, body := ac.Post("/api/blogs", map[string]any{
		"title": "Coping", "content": "<p>Breathe slowly</p>", "tags": []string{"anxiety"},
	})
	require.Equal(t, http.StatusCreated, status, body)
	blogID := nested(t, body, "blog")["_id"].(string)

	oc, _ := s.login(t, other)
	status, _ = oc.Put("/api/blogs/"+blogID, map[string]any{"title": "Hijacked", "content": "x"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = oc.Delete("/api/blogs/" + blogID)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = oc.Get("/api/blogs/" + blogID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Coping", nested(t, body, "blog")["title"])

	adc, _ := s.login(t, admin)
	status, _ = adc.Delete("/api/admin/blogs/" + blogID)
	assert.Equal(t, http.StatusOK, status)
	status, _ = oc.Get("/api/blogs/" + blogID)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestChatbotRecordsCompletion(t *testing.T) {
	s := newTestServer(t)
	owner := testutil.CreateAccount(t, s.store, "owner", model.RoleUser)
	c, _ := s.login(t, owner)

	status, body := c.Post("/api/chat", map[string]string{"message": "I cannot sleep"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "echo: I cannot sleep", nested(t, body, "reply")["text"])
	assert.Equal(t, "I cannot sleep", nested(t, body, "conversation")["title"])

	resp, err := http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(data), `mindcare_chatbot_completion_duration_seconds_count{status="ok"} 1`)
}
