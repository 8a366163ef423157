package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadValidatesDocument(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.NotNil(t, doc.Components.SecuritySchemes["cookieAuth"])
}

func TestDocumentCoversRoutes(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/auth/register"},
		{http.MethodPost, "/api/auth/login"},
		{http.MethodGet, "/api/auth/is-auth"},
		{http.MethodPost, "/api/auth/resetPassword"},
		{http.MethodGet, "/api/user/data"},
		{http.MethodGet, "/api/forum/rooms"},
		{http.MethodPost, "/api/forum/rooms/{roomId}/messages"},
		{http.MethodPost, "/api/expert-chat/chats"},
		{http.MethodPost, "/api/expert-chat/chats/{chatId}/messages"},
		{http.MethodGet, "/api/blogs"},
		{http.MethodPut, "/api/blogs/{blogId}"},
		{http.MethodPost, "/api/blogs/images"},
		{http.MethodPatch, "/api/admin/users/{userId}"},
		{http.MethodGet, "/api/admin/dashboard-stats"},
		{http.MethodPut, "/api/conversations/{id}/title"},
		{http.MethodPost, "/api/chat"},
	}
	for _, rt := range routes {
		item := doc.Paths.Value(rt.path)
		require.NotNil(t, item, rt.path)
		assert.NotNil(t, item.GetOperation(rt.method), "%s %s", rt.method, rt.path)
	}
}
