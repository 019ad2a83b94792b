package factory

import (
	"context"
	"fmt"

	"github.com/iWorld-y/product_radar/pkg/backend"
	"github.com/iWorld-y/product_radar/pkg/config"
)

// NewAnalyzer 根据配置创建分析后端实例
func NewAnalyzer(ctx context.Context, cfg *config.Config) (backend.Analyzer, error) {
	provider := cfg.Backend.Provider
	if provider == "" {
		// 默认回退逻辑：有 deepseek key 就用 deepseek
		if cfg.Backend.DeepSeek.APIKey != "" {
			provider = "deepseek"
		} else {
			return nil, fmt.Errorf("analysis backend not configured")
		}
	}

	switch provider {
	case "openai":
		pc := cfg.Backend.OpenAI
		if pc.APIKey == "" {
			return nil, fmt.Errorf("openai api key is missing")
		}
		if pc.BaseURL == "" {
			pc.BaseURL = "https://api.openai.com/v1"
		}
		if pc.Model == "" {
			pc.Model = "gpt-4"
		}
		return backend.NewChatBackend(ctx, "openai", pc)

	case "deepseek":
		pc := cfg.Backend.DeepSeek
		if pc.APIKey == "" {
			return nil, fmt.Errorf("deepseek api key is missing")
		}
		if pc.BaseURL == "" {
			pc.BaseURL = "https://api.deepseek.com/v1"
		}
		if pc.Model == "" {
			pc.Model = "deepseek-chat"
		}
		return backend.NewChatBackend(ctx, "deepseek", pc)

	case "local":
		if cfg.Backend.Local.BaseURL == "" {
			return nil, fmt.Errorf("local backend base url is missing")
		}
		return backend.NewLocalBackend(cfg.Backend.Local), nil

	default:
		return nil, fmt.Errorf("unknown analysis backend: %s", provider)
	}
}
