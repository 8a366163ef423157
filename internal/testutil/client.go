package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"
)

// Client 测试用 HTTP 客户端，Cookie 自动保存（会话令牌）
type Client struct {
	BaseURL string
	HTTP    *http.Client
	t       testing.TB
}

// NewClient 创建指向 baseURL 的客户端
func NewClient(t testing.TB, baseURL string) *Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Jar: jar}, t: t}
}

// Do 发送 JSON 请求，返回状态码与解析后的响应体
func (c *Client) Do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp.StatusCode, ReadJSON(resp)
}

// Get 发送 GET 请求
func (c *Client) Get(path string) (int, map[string]any) {
	c.t.Helper()
	return c.Do(http.MethodGet, path, nil)
}

// Post 发送 POST 请求（JSON body）
func (c *Client) Post(path string, body any) (int, map[string]any) {
	c.t.Helper()
	return c.Do(http.MethodPost, path, body)
}

// Put 发送 PUT 请求
func (c *Client) Put(path string, body any) (int, map[string]any) {
	c.t.Helper()
	return c.Do(http.MethodPut, path, body)
}

// Delete 发送 DELETE 请求
func (c *Client) Delete(path string) (int, map[string]any) {
	c.t.Helper()
	return c.Do(http.MethodDelete, path, nil)
}

// ReadJSON 解析 JSON 响应到 map
func ReadJSON(resp *http.Response) map[string]any {
	defer resp.Body.Close()
	var result map[string]any
	json.NewDecoder(resp.Body).Decode(&result)
	return result
}

// SetToken 直接写入会话 Cookie（跳过登录流程）
func (c *Client) SetToken(token string) {
	c.t.Helper()
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		c.t.Fatalf("parse base url: %v", err)
	}
	c.HTTP.Jar.SetCookies(u, []*http.Cookie{{Name: "token", Value: token, Path: "/"}})
}
