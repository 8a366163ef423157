package chatbot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/shared/apperr"
	"mindcare/internal/shared/completion"
	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"
	"mindcare/internal/testutil"
	"mindcare/pkg/logging"
)

// fakeCompleter 记录最近一次请求并回显 prompt
type fakeCompleter struct {
	mu      sync.Mutex
	history []completion.Turn
	prompt  string
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, history []completion.Turn, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = history
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return "echo: " + prompt, nil
}

func newService(t *testing.T) (*Service, storage.PersistentStore, *fakeCompleter) {
	t.Helper()
	store := testutil.NewStore(t)
	fc := &fakeCompleter{}
	return NewService(store, fc, logging.Nop()), store, fc
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "short question", Title("  short \n question "))
	exact := strings.Repeat("a", 50)
	assert.Equal(t, exact, Title(exact))

	long := strings.Repeat("好", 60)
	got := Title(long)
	assert.Equal(t, 50, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("好", 47)+"...", got)
}

func TestChatCreatesConversation(t *testing.T) {
	svc, store, fc := newService(t)
	ctx := context.Background()
	owner := testutil.CreateAccount(t, store, "owner", model.RoleUser)

	var observed int
	svc.OnCompletion(func(time.Duration, error) { observed++ })

	res, err := svc.Chat(ctx, owner.ID, "", "I have been feeling anxious lately")
	require.NoError(t, err)
	assert.Equal(t, "I have been feeling anxious lately", res.Conversation.Title)
	assert.Equal(t, int64(1), res.UserMessage.Seq)
	assert.Equal(t, int64(2), res.Reply.Seq)
	assert.Equal(t, model.ChatbotSenderBot, res.Reply.Sender)
	assert.Equal(t, "echo: I have been feeling anxious lately", res.Reply.Text)
	assert.Empty(t, fc.history)
	assert.Equal(t, 1, observed)

	_, err = svc.Chat(ctx, owner.ID, res.Conversation.ID, "what can I do?")
	require.NoError(t, err)
	require.Len(t, fc.history, 2)
	assert.Equal(t, completion.RoleUser, fc.history[0].Role)
	assert.Equal(t, completion.RoleModel, fc.history[1].Role)

	msgs, err := svc.ListMessages(ctx, owner.ID, res.Conversation.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestChatTitlesEmptyConversationAndTrimsHistory(t *testing.T) {
	svc, store, fc := newService(t)
	ctx := context.Background()
	owner := testutil.CreateAccount(t, store, "owner", model.RoleUser)

	conv, err := svc.CreateConversation(ctx, owner.ID, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, conv.Title)

	prompt := strings.Repeat("x", 80)
	res, err := svc.Chat(ctx, owner.ID, conv.ID, prompt)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 47)+"...", res.Conversation.Title)

	for i := 0; i < 25; i++ {
		_, err := svc.AppendMessage(ctx, owner.ID, conv.ID, fmt.Sprintf("turn %d", i), model.ChatbotSenderUser)
		require.NoError(t, err)
	}
	_, err = svc.Chat(ctx, owner.ID, conv.ID, "latest")
	require.NoError(t, err)
	require.Len(t, fc.history, HistoryTurns)
	assert.Equal(t, "turn 24", fc.history[HistoryTurns-1].Text)

	convs, err := svc.ListConversations(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, strings.Repeat("x", 47)+"...", convs[0].Title, "title is not overwritten later")
}

func TestChatUpstreamFailure(t *testing.T) {
	svc, store, fc := newService(t)
	fc.err = &completion.UpstreamError{StatusCode: 500, Message: "boom"}
	ctx := context.Background()
	owner := testutil.CreateAccount(t, store, "owner", model.RoleUser)

	_, err := svc.Chat(ctx, owner.ID, "", "hello")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "chatbot unavailable", ae.Message)

	fc.err = completion.ErrNotConfigured
	_, err = svc.Chat(ctx, owner.ID, "", "hello")
	assert.True(t, errors.Is(err, completion.ErrNotConfigured))
}

func TestConversationOwnership(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	owner := testutil.CreateAccount(t, store, "owner", model.RoleUser)
	other := testutil.CreateAccount(t, store, "other", model.RoleUser)

	conv, err := svc.CreateConversation(ctx, owner.ID, "Mine")
	require.NoError(t, err)

	_, err = svc.ListMessages(ctx, other.ID, conv.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = svc.RenameConversation(ctx, other.ID, conv.ID, "Stolen")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	err = svc.DeleteConversation(ctx, other.ID, conv.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = svc.Chat(ctx, other.ID, conv.ID, "hi")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.AppendMessage(ctx, owner.ID, conv.ID, "hi", "robot")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	renamed, err := svc.RenameConversation(ctx, owner.ID, conv.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Title)

	_, err = svc.AppendMessage(ctx, owner.ID, conv.ID, "hi", model.ChatbotSenderUser)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteConversation(ctx, owner.ID, conv.ID))

	msgs, err := store.ListChatbotMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestChatbotHandler(t *testing.T) {
	svc, store, fc := newService(t)
	tokens := auth.NewTokenManager("secret", time.Hour)
	guard := auth.NewGuard(tokens, store, logging.Nop())

	mux := http.NewServeMux()
	NewHandler(svc, guard, logging.Nop()).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	owner := testutil.CreateAccount(t, store, "owner", model.RoleUser)
	c := testutil.NewClient(t, server.URL)
	token, err := tokens.Issue(owner.ID)
	require.NoError(t, err)
	c.SetToken(token)

	status, body := c.Post("/api/conversations", map[string]string{"title": "New Chat"})
	require.Equal(t, http.StatusCreated, status)
	id := body["conversation"].(map[string]any)["_id"].(string)

	status, body = c.Post("/api/chat", map[string]string{"conversationId": id, "message": "hello there"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "echo: hello there", body["reply"].(map[string]any)["text"])
	assert.Equal(t, "hello there", body["conversation"].(map[string]any)["title"])

	status, body = c.Post("/api/conversations/"+id+"/messages", map[string]string{"text": "saved", "sender": "user"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(3), body["message"].(map[string]any)["seq"])

	status, body = c.Put("/api/conversations/"+id+"/title", map[string]string{"title": "Renamed"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Renamed", body["conversation"].(map[string]any)["title"])

	status, body = c.Get("/api/conversations/" + id + "/messages")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["messages"], 3)

	status, body = c.Get("/api/conversations")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["conversations"], 1)

	fc.err = errors.New("dial tcp: connection refused")
	status, body = c.Post("/api/chat", map[string]string{"message": "again"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "chatbot unavailable", body["message"])
	fc.err = nil

	status, _ = c.Delete("/api/conversations/" + id)
	assert.Equal(t, http.StatusOK, status)
	status, _ = c.Get("/api/conversations/" + id + "/messages")
	assert.Equal(t, http.StatusNotFound, status)
}
