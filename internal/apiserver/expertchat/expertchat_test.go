package expertchat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare/internal/apiserver/auth"
	"mindcare/internal/apiserver/realtime"
	"mindcare/internal/shared/apperr"
	"mindcare/internal/shared/keylock"
	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"
	"mindcare/internal/testutil"
	"mindcare/pkg/logging"
)

func newService(t *testing.T) (*Service, storage.PersistentStore, *testutil.RecordingBroadcaster) {
	t.Helper()
	store := testutil.NewStore(t)
	rec := &testutil.RecordingBroadcaster{}
	return NewService(store, store, rec, keylock.New(), logging.Nop()), store, rec
}

func TestListExpertsExcludesCaller(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	e1 := testutil.CreateAccount(t, store, "expert1", model.RoleExpert)
	e2 := testutil.CreateAccount(t, store, "expert2", model.RoleExpert)
	testutil.CreateAccount(t, store, "user", model.RoleUser)

	experts, err := svc.ListExperts(ctx, e1.ID)
	require.NoError(t, err)
	require.Len(t, experts, 1)
	assert.Equal(t, e2.ID, experts[0].ID)
}

func TestStartOrGetConversationIsIdempotent(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	user := testutil.CreateAccount(t, store, "user", model.RoleUser)
	expert := testutil.CreateAccount(t, store, "expert", model.RoleExpert)

	first, err := svc.StartOrGetConversation(ctx, user.ID, expert.ID)
	require.NoError(t, err)
	second, err := svc.StartOrGetConversation(ctx, user.ID, expert.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "user", second.User.Name)
	assert.Equal(t, "expert", second.Expert.Name)
	assert.Equal(t, model.ConversationRoleExpert, second.RoleOf(expert.ID))

	convs, err := svc.ListConversations(ctx, expert.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, first.ID, convs[0].ID)
}

func TestStartOrGetConversationValidation(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	user := testutil.CreateAccount(t, store, "user", model.RoleUser)
	other := testutil.CreateAccount(t, store, "other", model.RoleUser)

	tests := []struct {
		name     string
		expertID string
	}{
		{"missing", ""},
		{"self", user.ID},
		{"not expert", other.ID},
		{"unknown", "acc-missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StartOrGetConversation(ctx, user.ID, tt.expertID)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestSendPrivateMessage(t *testing.T) {
	svc, store, rec := newService(t)
	ctx := context.Background()
	user := testutil.CreateAccount(t, store, "user", model.RoleUser)
	expert := testutil.CreateAccount(t, store, "expert", model.RoleExpert)
	conv, err := svc.StartOrGetConversation(ctx, user.ID, expert.ID)
	require.NoError(t, err)

	msg, err := svc.SendPrivateMessage(ctx, conv.ID, user.ID, "  hi doc  ")
	require.NoError(t, err)
	assert.Equal(t, "hi doc", msg.Content)
	assert.Equal(t, int64(1), msg.Seq)
	assert.Equal(t, "user", msg.Sender.Name)

	reply, err := svc.SendPrivateMessage(ctx, conv.ID, expert.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(2), reply.Seq)

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, realtime.ExpertChatChannel(conv.ID), events[0].Channel)
	assert.Equal(t, realtime.EventExpertChatMessage, events[0].Type)

	msgs, err := svc.GetPrivateMessages(ctx, conv.ID, expert.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi doc", msgs[0].Content)
	assert.Equal(t, "expert", msgs[1].Sender.Name)

	msgs, err = svc.GetPrivateMessages(ctx, conv.ID, user.ID, 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	convs, err := svc.ListConversations(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.NotNil(t, convs[0].LastMessageAt)
}

func TestNonParticipantIsRejected(t *testing.T) {
	svc, store, rec := newService(t)
	ctx := context.Background()
	user := testutil.CreateAccount(t, store, "user", model.RoleUser)
	expert := testutil.CreateAccount(t, store, "expert", model.RoleExpert)
	outsider := testutil.CreateAccount(t, store, "outsider", model.RoleUser)
	conv, err := svc.StartOrGetConversation(ctx, user.ID, expert.ID)
	require.NoError(t, err)

	_, err = svc.SendPrivateMessage(ctx, conv.ID, outsider.ID, "let me in")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.GetPrivateMessages(ctx, conv.ID, outsider.ID, 0)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	msgs, err := store.ListPrivateMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs, "nothing persisted")
	assert.Empty(t, rec.Events())

	_, err = svc.SendPrivateMessage(ctx, "conv-missing", user.ID, "hi")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeletedAccountCannotChat(t *testing.T) {
	svc, store, rec := newService(t)
	ctx := context.Background()
	user := testutil.CreateAccount(t, store, "user", model.RoleUser)
	expert := testutil.CreateAccount(t, store, "expert", model.RoleExpert)
	conv, err := svc.StartOrGetConversation(ctx, user.ID, expert.ID)
	require.NoError(t, err)

	require.NoError(t, store.DeleteAccount(ctx, user.ID))

	_, err = svc.SendPrivateMessage(ctx, conv.ID, user.ID, "still there?")
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	msgs, err := store.ListPrivateMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, rec.Events())

	other := testutil.CreateAccount(t, store, "other", model.RoleExpert)
	_, err = svc.StartOrGetConversation(ctx, user.ID, other.ID)
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	convs, err := store.ListConversations(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestExpertChatHandler(t *testing.T) {
	svc, store, _ := newService(t)
	tokens := auth.NewTokenManager("secret", time.Hour)
	guard := auth.NewGuard(tokens, store, logging.Nop())

	mux := http.NewServeMux()
	NewHandler(svc, guard, logging.Nop()).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	user := testutil.CreateAccount(t, store, "user", model.RoleUser)
	expert := testutil.CreateAccount(t, store, "expert", model.RoleExpert)
	outsider := testutil.CreateAccount(t, store, "outsider", model.RoleUser)

	login := func(accountID string) *testutil.Client {
		c := testutil.NewClient(t, server.URL)
		token, err := tokens.Issue(accountID)
		require.NoError(t, err)
		c.SetToken(token)
		return c
	}
	uc := login(user.ID)

	status, body := uc.Get("/api/expert-chat/experts")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["experts"], 1)

	status, body = uc.Post("/api/expert-chat/chats", map[string]string{"expertId": expert.ID})
	require.Equal(t, http.StatusOK, status)
	chatID := body["chat"].(map[string]any)["_id"].(string)

	status, body = uc.Post("/api/expert-chat/chats", map[string]string{"expertId": expert.ID})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, chatID, body["chat"].(map[string]any)["_id"])

	status, _ = uc.Post("/api/expert-chat/chats", map[string]string{"expertId": user.ID})
	assert.Equal(t, http.StatusBadRequest, status)

	path := "/api/expert-chat/chats/" + chatID + "/messages"
	status, body = uc.Post(path, map[string]string{"content": "hello"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "hello", body["message"].(map[string]any)["content"])

	status, body = login(outsider.ID).Post(path, map[string]string{"content": "sneaky"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, false, body["success"])

	status, body = login(expert.ID).Get(path)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["messages"], 1)

	status, body = login(expert.ID).Get("/api/expert-chat/chats")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["chats"], 1)
}
