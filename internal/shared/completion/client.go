// Package completion 调用 Gemini generateContent 接口生成聊天回复
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"mindcare/internal/config"
)

// ErrNotConfigured 未配置 API Key
var ErrNotConfigured = errors.New("completion api key not configured")

// Role 对话轮次角色
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn 一轮历史对话
type Turn struct {
	Role Role
	Text string
}

// Completer 对话补全接口
type Completer interface {
	Complete(ctx context.Context, history []Turn, prompt string) (string, error)
}

// UpstreamError 上游返回非 2xx
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion upstream %d: %s", e.StatusCode, e.Message)
}

// Client Gemini REST 客户端
type Client struct {
	endpoint string
	model    string
	apiKey   string
	http     *http.Client
}

// NewClient 创建客户端，超时取自配置
func NewClient(cfg config.ChatbotConfig) *Client {
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete 以 history 为上下文对 prompt 生成回复，不重试
func (c *Client) Complete(ctx context.Context, history []Turn, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	req := generateRequest{Contents: make([]content, 0, len(history)+1)}
	for _, t := range history {
		req.Contents = append(req.Contents, content{Role: string(t.Role), Parts: []part{{Text: t.Text}}})
	}
	req.Contents = append(req.Contents, content{Role: string(RoleUser), Parts: []part{{Text: prompt}}})

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// url.Error 会带上包含 key 的地址
		var ue *url.Error
		if errors.As(err, &ue) {
			return "", fmt.Errorf("completion request failed: %w", ue.Err)
		}
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil && resp.StatusCode < 300 {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}

	for _, cand := range out.Candidates {
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("completion response has no text candidates")
}
