package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iWorld-y/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/pkg/model"
)

// LocalBackend 本地加速卡推理服务客户端，走 OpenAI 风格接口。
// 延迟与可用性特征和远程后端不同：加速卡上下文丢失时整个服务不可用。
type LocalBackend struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewLocalBackend 创建本地后端实例
func NewLocalBackend(cfg config.LocalConfig) *LocalBackend {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &LocalBackend{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

var _ Analyzer = (*LocalBackend)(nil)

// Name implements Analyzer
func (b *LocalBackend) Name() string { return "local" }

// chatRequest 本地服务请求体
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse 本地服务响应体
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze implements Analyzer
func (b *LocalBackend) Analyze(ctx context.Context, product model.ProductRecord) (*model.ProductReport, error) {
	payload, err := json.Marshal(chatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(product.Language)},
			{Role: "user", Content: userPrompt(product)},
		},
		Temperature: 0.7,
		MaxTokens:   4000,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	url := b.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Add("Content-Type", "application/json")

	res, err := b.client.Do(httpReq)
	if err != nil {
		// 本地服务连不上等同于加速卡不可用
		return nil, &UnavailableError{Backend: b.Name(), Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &UnavailableError{Backend: b.Name(), Err: fmt.Errorf("read body failed: %w", err)}
	}

	if res.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("local api error (status %d): %s", res.StatusCode, string(body))
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 || contextLost(string(body)) {
			return nil, &UnavailableError{Backend: b.Name(), Err: apiErr}
		}
		return nil, &RejectedError{Backend: b.Name(), Err: apiErr}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, &MalformedError{Backend: b.Name(), Err: fmt.Errorf("unmarshal response failed: %w", err)}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &MalformedError{Backend: b.Name(), Err: errors.New("响应缺少 choices")}
	}

	return parseReport(b.Name(), chatResp.Choices[0].Message.Content)
}

// contextLost 识别加速卡上下文丢失类故障
func contextLost(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "context lost") ||
		strings.Contains(lower, "cuda") ||
		strings.Contains(lower, "device lost")
}
