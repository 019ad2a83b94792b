package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	Backend     BackendConfig     `yaml:"backend"`
	Run         RunConfig         `yaml:"run"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
	Log         LogConfig         `yaml:"log"`
}

// BackendConfig 分析后端相关配置
type BackendConfig struct {
	Provider string         `yaml:"provider"` // openai / deepseek / local
	OpenAI   ProviderConfig `yaml:"openai"`
	DeepSeek ProviderConfig `yaml:"deepseek"`
	Local    LocalConfig    `yaml:"local"`
}

// ProviderConfig OpenAI 兼容服务配置
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// LocalConfig 本地加速卡推理服务配置
type LocalConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout int    `yaml:"timeout"` // 秒
}

// RunConfig 单次运行的默认参数，可被命令行覆盖
type RunConfig struct {
	Language       string `yaml:"language"` // cn / en / both
	OutputDir      string `yaml:"output_dir"`
	Width          int    `yaml:"width"`           // 工作协程数
	MaxRetries     int    `yaml:"max_retries"`     // 可重试错误的最大重试次数
	TimeoutSeconds int    `yaml:"timeout_seconds"` // 单次请求超时
	Force          bool   `yaml:"force"`           // 覆盖已有分析产物
}

// ConcurrencyConfig 聚合限流配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// DBConfig 数据库相关配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// LoadConfig 从指定路径加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Run.Language == "" {
		c.Run.Language = "both"
	}
	if c.Run.OutputDir == "" {
		c.Run.OutputDir = "output"
	}
	if c.Run.Width <= 0 {
		c.Run.Width = 3
	}
	if c.Run.MaxRetries <= 0 {
		c.Run.MaxRetries = 3
	}
	if c.Run.TimeoutSeconds <= 0 {
		c.Run.TimeoutSeconds = 120
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 30
	}
	if c.Backend.Provider == "" {
		c.Backend.Provider = "deepseek"
	}
	if c.Backend.OpenAI.APIKey == "" {
		c.Backend.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Backend.DeepSeek.APIKey == "" {
		c.Backend.DeepSeek.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	}
}
