package mongostore

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"mindcare/internal/shared/model"
	"mindcare/internal/shared/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore 创建测试用 Store，使用独立数据库避免污染
func testStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	s, err := NewStore(uri, "mindcare_test")
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	ctx := context.Background()
	if err := s.db.Drop(ctx); err != nil {
		t.Fatalf("Failed to drop test database: %v", err)
	}
	if err := s.ensureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	t.Cleanup(func() {
		s.db.Drop(context.Background())
		s.Close()
	})

	return s
}

func createAccount(t *testing.T, s *Store, name string, role model.Role) *model.Account {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	a := &model.Account{
		ID: model.NewID(model.PrefixAccount), Name: name, Email: name + "@example.com",
		PasswordHash: "hash", Role: role, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

func TestAccountLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	a := createAccount(t, s, "alice", model.RoleUser)

	dup := *a
	dup.ID = model.NewID(model.PrefixAccount)
	assert.ErrorIs(t, s.CreateAccount(ctx, &dup), storage.ErrDuplicate)

	got, err := s.GetAccountByEmail(ctx, a.Email)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)

	now := time.Now().UnixMilli()
	require.NoError(t, s.SetVerifyOTP(ctx, a.ID, "123456", now+60_000))
	assert.ErrorIs(t, s.ConsumeVerifyOTP(ctx, a.ID, "999999", now), storage.ErrConflict)
	require.NoError(t, s.ConsumeVerifyOTP(ctx, a.ID, "123456", now))
	assert.ErrorIs(t, s.ConsumeVerifyOTP(ctx, a.ID, "123456", now), storage.ErrConflict)

	got, err = s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAccountVerified)

	parts, err := s.GetParticipants(ctx, []string{a.ID, "acc-missing"})
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "alice", parts[a.ID].Name)
}

func TestRoomMessagesSeq(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rooms := model.DefaultRooms()
	for _, r := range rooms {
		r.ID = model.NewID(model.PrefixRoom)
	}
	require.NoError(t, s.SeedRooms(ctx, rooms))
	require.NoError(t, s.SeedRooms(ctx, model.DefaultRooms()))

	list, err := s.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AppendMessage(ctx, &model.Message{
				ID: model.NewID(model.PrefixMessage), RoomID: list[0].ID, AuthorID: "acc-1",
				Content: "hello", Timestamp: time.Now(),
			}))
		}()
	}
	wg.Wait()

	msgs, err := s.ListMessages(ctx, list[0].ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
	}

	tail, err := s.ListMessages(ctx, list[0].ID, 8)
	require.NoError(t, err)
	assert.Len(t, tail, 2)

	err = s.AppendMessage(ctx, &model.Message{ID: model.NewID(model.PrefixMessage), RoomID: "room-missing", Content: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConversationGetOrCreateConcurrent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	ids := make(chan string, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, err := s.GetOrCreateConversation(ctx, &model.Conversation{
				ID: model.NewID(model.PrefixConversation), UserID: "acc-user", ExpertID: "acc-expert",
				CreatedAt: time.Now().UTC(),
			})
			if assert.NoError(t, err) {
				ids <- conv.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var first string
	for id := range ids {
		if first == "" {
			first = id
		}
		assert.Equal(t, first, id)
	}

	require.NoError(t, s.AppendPrivateMessage(ctx, &model.PrivateMessage{
		ID: model.NewID(model.PrefixPrivateMessage), ConversationID: first, SenderID: "acc-user",
		Content: "hi", Timestamp: time.Now().UTC(),
	}))
	convs, err := s.ListConversations(ctx, "acc-expert")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, int64(1), convs[0].MessageCount)
	assert.NotNil(t, convs[0].LastMessageAt)
}

func TestListBlogsFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

	for i, f := range []struct {
		title string
		tags  []string
	}{
		{"Sleep and Anxiety", []string{"anxiety"}},
		{"Finding (calm)", []string{"mindfulness"}},
		{"Work stress", []string{"work"}},
	} {
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.CreateBlog(ctx, &model.Blog{
			ID: model.NewID(model.PrefixBlog), Title: f.title, PreviewContent: f.title, Tags: f.tags,
			SearchText: strings.ToLower(f.title + "\n" + strings.Join(f.tags, "\n")),
			AuthorID:   "acc-1", CreatedAt: ts, UpdatedAt: ts,
		}))
	}

	blogs, total, err := s.ListBlogs(ctx, model.BlogQuery{Search: "(CALM)"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, blogs, 1)

	blogs, total, err = s.ListBlogs(ctx, model.BlogQuery{Tags: []string{"work", "anxiety"}, Sort: model.BlogSortOldest})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, blogs, 2)
	assert.Equal(t, "Sleep and Anxiety", blogs[0].Title)

	blogs, total, err = s.ListBlogs(ctx, model.BlogQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, blogs, 1)
	assert.Equal(t, "Sleep and Anxiety", blogs[0].Title)
}

func TestChatbotDeleteCascades(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	conv := &model.ChatbotConversation{ID: model.NewID(model.PrefixChatbot), OwnerID: "acc-1", Title: "New Chat", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateChatbotConversation(ctx, conv))
	require.NoError(t, s.AppendChatbotMessage(ctx, &model.ChatbotMessage{
		ID: model.NewID(model.PrefixChatbotMessage), ConversationID: conv.ID, Sender: model.ChatbotSenderUser, Text: "hi", Timestamp: now,
	}))

	require.NoError(t, s.DeleteChatbotConversation(ctx, conv.ID))
	msgs, err := s.ListChatbotMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.ErrorIs(t, s.DeleteChatbotConversation(ctx, conv.ID), storage.ErrNotFound)
}
