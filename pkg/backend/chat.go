package backend

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/pkg/model"
)

// ChatBackend 基于 OpenAI 兼容协议的远程分析后端
type ChatBackend struct {
	name      string
	chatModel einomodel.ChatModel
}

// NewChatBackend 创建远程后端实例，name 为 openai / deepseek 等提供方标识
func NewChatBackend(ctx context.Context, name string, cfg config.ProviderConfig) (*ChatBackend, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	return &ChatBackend{name: name, chatModel: chatModel}, nil
}

var _ Analyzer = (*ChatBackend)(nil)

// Name implements Analyzer
func (b *ChatBackend) Name() string { return b.name }

// Analyze implements Analyzer
func (b *ChatBackend) Analyze(ctx context.Context, product model.ProductRecord) (*model.ProductReport, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt(product.Language)},
		{Role: schema.User, Content: userPrompt(product)},
	}

	resp, err := b.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, classifyCallError(b.name, err)
	}

	return parseReport(b.name, resp.Content)
}
