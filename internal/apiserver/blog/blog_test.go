package blog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
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
	"mindcare/internal/shared/model"
	"mindcare/internal/shared/objstore"
	"mindcare/internal/shared/storage"
	"mindcare/internal/testutil"
	"mindcare/pkg/logging"
)

// memImages 内存对象存储
type memImages struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemImages() *memImages {
	return &memImages{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memImages) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memImages) Download(_ context.Context, key string) (*objstore.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, nil
	}
	return &objstore.Object{
		ReadCloser:  io.NopCloser(bytes.NewReader(data)),
		ContentType: m.types[key],
		Size:        int64(len(data)),
	}, nil
}

func (m *memImages) PublicURL(string) string { return "" }

func newService(t *testing.T, images ImageStore) (*Service, storage.PersistentStore) {
	t.Helper()
	store := testutil.NewStore(t)
	return NewService(store, store, images, logging.Nop()), store
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"tags stripped", "<p>Hello <b>there</b></p><p>friend</p>", "Hello there friend"},
		{"images dropped", `<p>before<img src="x.png" alt="pic">after</p>`, "beforeafter"},
		{"script and style dropped", "<style>p{}</style><p>text</p><script>alert(1)</script>", "text"},
		{"whitespace collapsed", "<p>a\n\n   b\t c</p>", "a b c"},
		{"entities decoded", "<p>fish &amp; chips</p>", "fish & chips"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preview(tt.in))
		})
	}

	long := "<p>" + strings.Repeat("好", PreviewLength+50) + "</p>"
	assert.Equal(t, PreviewLength, len([]rune(Preview(long))))
}

func TestCreateAndList(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()
	author := testutil.CreateAccount(t, store, "writer", model.RoleUser)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		tags := []string{"general"}
		if i%3 == 0 {
			tags = append(tags, "anxiety")
		}
		_, err := svc.Create(ctx, author.ID, Input{
			Title:   fmt.Sprintf("Post %02d", i),
			Content: fmt.Sprintf("<p>Body of post %d</p>", i),
			Tags:    tags,
		})
		require.NoError(t, err)
	}

	res, err := svc.List(ctx, ListParams{})
	require.NoError(t, err)
	assert.Len(t, res.Blogs, DefaultPageSize)
	assert.Equal(t, int64(12), res.Total)
	assert.True(t, res.HasMore)
	assert.Equal(t, "Post 11", res.Blogs[0].Title, "newest first")
	assert.Equal(t, "writer", res.Blogs[0].Author.Name)
	assert.Empty(t, res.Blogs[0].Author.Email)

	res, err = svc.List(ctx, ListParams{Page: 2})
	require.NoError(t, err)
	assert.Len(t, res.Blogs, 3)
	assert.False(t, res.HasMore)

	res, err = svc.List(ctx, ListParams{Sort: "oldest", Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, res.Blogs, 12, "limit is capped, not rejected")
	assert.Equal(t, "Post 00", res.Blogs[0].Title)

	res, err = svc.List(ctx, ListParams{Tags: []string{"anxiety", " "}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Total)

	res, err = svc.List(ctx, ListParams{Search: "post 07"})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	assert.Equal(t, "Post 07", res.Blogs[0].Title)

	_, err = svc.List(ctx, ListParams{Sort: "random"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	mine, err := svc.MyBlogs(ctx, author.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 12)
}

func TestSearchCoversFullContent(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()
	author := testutil.CreateAccount(t, store, "writer", model.RoleUser)

	content := "<p>" + strings.Repeat("filler ", 60) + "<b>Resilience</b></p>"
	blog, err := svc.Create(ctx, author.ID, Input{Title: "Long read", Content: content, Tags: []string{"Growth"}})
	require.NoError(t, err)
	require.NotContains(t, strings.ToLower(blog.PreviewContent), "resilience")

	for _, term := range []string{"resilience", "RESILIENCE", "growth", "long READ"} {
		res, err := svc.List(ctx, ListParams{Search: term})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Total, term)
	}

	_, err = svc.Update(ctx, author.ID, blog.ID, Input{Title: "Long read", Content: "<p>rewritten</p>"})
	require.NoError(t, err)
	res, err := svc.List(ctx, ListParams{Search: "resilience"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Total)
	res, err = svc.List(ctx, ListParams{Search: "rewritten"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
}

func TestCreateValidation(t *testing.T) {
	svc, store := newService(t, nil)
	author := testutil.CreateAccount(t, store, "writer", model.RoleUser)

	tests := []struct {
		name string
		in   Input
	}{
		{"missing title", Input{Content: "x"}},
		{"missing content", Input{Title: "x"}},
		{"long title", Input{Title: strings.Repeat("t", maxTitleLength+1), Content: "x"}},
		{"too many tags", Input{Title: "t", Content: "x", Tags: strings.Split("a,b,c,d,e,f,g,h,i,j,k", ",")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), author.ID, tt.in)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	blog, err := svc.Create(context.Background(), author.ID, Input{Title: " t ", Content: "<p>c</p>", Tags: []string{"a", "a", " b "}})
	require.NoError(t, err)
	assert.Equal(t, "t", blog.Title)
	assert.Equal(t, []string{"a", "b"}, blog.Tags)
	assert.Equal(t, "c", blog.PreviewContent)
}

func TestOnlyAuthorOrAdminCanModify(t *testing.T) {
	svc, store := newService(t, nil)
	ctx := context.Background()
	author := testutil.CreateAccount(t, store, "author", model.RoleUser)
	stranger := testutil.CreateAccount(t, store, "stranger", model.RoleExpert)
	admin := testutil.CreateAccount(t, store, "admin", model.RoleAdmin)

	blog, err := svc.Create(ctx, author.ID, Input{Title: "Mine", Content: "original"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, stranger.ID, blog.ID, Input{Title: "Hacked", Content: "x"})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	err = svc.Delete(ctx, stranger.ID, blog.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	got, err := svc.Get(ctx, blog.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Title, "unchanged")

	updated, err := svc.Update(ctx, author.ID, blog.ID, Input{Title: "Mine v2", Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "Mine v2", updated.Title)
	assert.Equal(t, "edited", updated.PreviewContent)

	require.NoError(t, svc.Delete(ctx, admin.ID, blog.ID))
	_, err = svc.Get(ctx, blog.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = svc.Delete(ctx, author.ID, blog.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func newTestServer(t *testing.T, images ImageStore) (*httptest.Server, storage.PersistentStore, *auth.TokenManager) {
	t.Helper()
	svc, store := newService(t, images)
	tokens := auth.NewTokenManager("secret", time.Hour)
	guard := auth.NewGuard(tokens, store, logging.Nop())

	mux := http.NewServeMux()
	NewHandler(svc, guard, logging.Nop()).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store, tokens
}

func loggedIn(t *testing.T, server *httptest.Server, tokens *auth.TokenManager, accountID string) *testutil.Client {
	t.Helper()
	c := testutil.NewClient(t, server.URL)
	token, err := tokens.Issue(accountID)
	require.NoError(t, err)
	c.SetToken(token)
	return c
}

func TestBlogHandler(t *testing.T) {
	server, store, tokens := newTestServer(t, nil)
	author := testutil.CreateAccount(t, store, "author", model.RoleUser)
	other := testutil.CreateAccount(t, store, "other", model.RoleUser)

	anon := testutil.NewClient(t, server.URL)
	status, _ := anon.Post("/api/blogs", Input{Title: "t", Content: "c"})
	assert.Equal(t, http.StatusUnauthorized, status)

	ac := loggedIn(t, server, tokens, author.ID)
	status, body := ac.Post("/api/blogs", Input{Title: "Hello", Content: "<p>World</p>", Tags: []string{"intro"}})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Blog created successfully", body["message"])
	id := body["blog"].(map[string]any)["_id"].(string)

	status, body = anon.Get("/api/blogs?tags=intro,other&search=hel")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["blogs"], 1)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, false, body["hasMore"])

	status, body = anon.Get("/api/blogs/" + id)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "World", body["blog"].(map[string]any)["previewContent"])

	status, body = ac.Get("/api/blogs/my-blogs")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["blogs"], 1)

	oc := loggedIn(t, server, tokens, other.ID)
	status, _ = oc.Put("/api/blogs/"+id, Input{Title: "x", Content: "y"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = oc.Delete("/api/blogs/" + id)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = ac.Put("/api/blogs/"+id, Input{Title: "Hello again", Content: "<p>World</p>"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Hello again", body["blog"].(map[string]any)["title"])

	status, _ = ac.Delete("/api/blogs/" + id)
	assert.Equal(t, http.StatusOK, status)
	status, _ = anon.Get("/api/blogs/" + id)
	assert.Equal(t, http.StatusNotFound, status)
}

func uploadRequest(t *testing.T, url, field, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// 1x1 PNG
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

func TestImageUpload(t *testing.T) {
	images := newMemImages()
	server, store, tokens := newTestServer(t, images)
	author := testutil.CreateAccount(t, store, "author", model.RoleUser)
	c := loggedIn(t, server, tokens, author.ID)

	resp, err := c.HTTP.Do(uploadRequest(t, server.URL+"/api/blogs/images", "image", "Pixel.PNG", pngPixel))
	require.NoError(t, err)
	body := testutil.ReadJSON(resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	url := body["url"].(string)
	assert.True(t, strings.HasPrefix(url, "/api/blogs/images/img-"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	got, err := http.Get(server.URL + url)
	require.NoError(t, err)
	defer got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, "image/png", got.Header.Get("Content-Type"))
	data, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, pngPixel, data)

	resp, err = c.HTTP.Do(uploadRequest(t, server.URL+"/api/blogs/images", "image", "notes.txt", []byte("plain text")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = c.HTTP.Do(uploadRequest(t, server.URL+"/api/blogs/images", "file", "p.png", pngPixel))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	missing, err := http.Get(server.URL + "/api/blogs/images/img-missing.png")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestImageUploadDisabled(t *testing.T) {
	server, store, tokens := newTestServer(t, nil)
	author := testutil.CreateAccount(t, store, "author", model.RoleUser)
	c := loggedIn(t, server, tokens, author.ID)

	resp, err := c.HTTP.Do(uploadRequest(t, server.URL+"/api/blogs/images", "image", "p.png", pngPixel))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
