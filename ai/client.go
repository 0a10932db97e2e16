package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"paperarena/logger"
)

// ErrRecommendationUnavailable AI 服务不可用（接口错误或超时）
var ErrRecommendationUnavailable = errors.New("AI 服务不可用")

// Client OpenAI 兼容接口客户端
// 凭证按调用传入（每个会话可以使用自己的 API Key）
type Client struct {
	httpClient  *http.Client
	temperature float64
	maxTokens   int
}

// Message 对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest OpenAI 兼容请求结构
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// chatResponse OpenAI 兼容响应结构
type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

// apiError 接口错误
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewClient 创建 AI 客户端
func NewClient(timeout time.Duration, temperature float64, maxTokens int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Chat 调用 chat/completions 接口，返回模型回复文本
// 任何错误都包装为 ErrRecommendationUnavailable，调用方据此降级
func (c *Client) Chat(ctx context.Context, creds Credentials, system, user string) (string, error) {
	if creds.APIKey == "" {
		return "", fmt.Errorf("%w: API Key 为空", ErrRecommendationUnavailable)
	}

	url := fmt.Sprintf("%s/chat/completions", creds.BaseURL)

	reqBody := chatRequest{
		Model: creds.Model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: 序列化请求失败: %v", ErrRecommendationUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("%w: 创建请求失败: %v", ErrRecommendationUnavailable, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", creds.APIKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("⚠️ [AI] 请求失败: %v", err)
		return "", fmt.Errorf("%w: %v", ErrRecommendationUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: 读取响应失败: %v", ErrRecommendationUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
			return "", fmt.Errorf("%w: %s", ErrRecommendationUnavailable, errResp.Error.Message)
		}
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrRecommendationUnavailable, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: 解析响应失败: %v", ErrRecommendationUnavailable, err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrRecommendationUnavailable, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: 接口返回空响应", ErrRecommendationUnavailable)
	}

	return chatResp.Choices[0].Message.Content, nil
}
