package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 模拟交易平台配置
type Config struct {
	// Web 服务配置
	Web struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"web"`

	// 行情数据源配置（Binance 现货公开接口，无需 API Key）
	Market struct {
		BaseURL        string `yaml:"base_url"`         // 行情接口地址，默认 https://api.binance.com
		QuoteAsset     string `yaml:"quote_asset"`      // 计价资产后缀，默认 USDT
		TimeoutSeconds int    `yaml:"timeout_seconds"`  // 单次请求超时（秒，默认5）
		RequestsPerSec int    `yaml:"requests_per_sec"` // 请求速率上限（默认10）
		KlineLimitMax  int    `yaml:"kline_limit_max"`  // 单次K线最大条数（默认1000）
	} `yaml:"market"`

	// AI 配置（OpenAI 兼容接口）
	// API Key 可以放在配置文件里，也可以在页面上按会话填写
	AI struct {
		Provider       string  `yaml:"provider"` // qwen / deepseek / custom
		APIKey         string  `yaml:"api_key"`
		BaseURL        string  `yaml:"base_url"` // custom 时必填
		Model          string  `yaml:"model"`
		Temperature    float64 `yaml:"temperature"`     // 默认0.7
		MaxTokens      int     `yaml:"max_tokens"`      // 默认2000
		TimeoutSeconds int     `yaml:"timeout_seconds"` // 默认30
	} `yaml:"ai"`

	// 模拟交易参数
	Trading struct {
		Symbols               []string `yaml:"symbols"`                 // 交易币种，如 [BTC, ETH]
		MaxLeverage           int      `yaml:"max_leverage"`            // 最大杠杆倍数（默认5）
		StartingCash          float64  `yaml:"starting_cash"`           // 初始资金（默认10000）
		DefaultInterval       string   `yaml:"default_interval"`        // 默认K线周期（默认1h）
		SessionTimeoutMinutes int      `yaml:"session_timeout_minutes"` // 会话过期时间（分钟，默认1440）
	} `yaml:"trading"`

	System struct {
		LogLevel    string `yaml:"log_level"`
		Timezone    string `yaml:"timezone"`     // 时区，如 "Asia/Shanghai"
		LogLanguage string `yaml:"log_language"` // 日志语言，如 "zh-CN" 或 "en-US"
	} `yaml:"system"`

	// 指标采集配置
	Metrics struct {
		Enabled                bool `yaml:"enabled"`
		CollectIntervalSeconds int  `yaml:"collect_interval_seconds"` // 系统指标采集间隔（秒，默认15）
	} `yaml:"metrics"`
}

// DefaultConfig 返回带默认值的配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Web.Enabled = true
	cfg.Metrics.Enabled = true
	if err := cfg.Validate(); err != nil {
		// 默认配置必然有效
		panic(err)
	}
	return cfg
}

// LoadConfig 加载配置文件
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig 保存配置文件
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// Validate 验证配置并填充默认值
func (c *Config) Validate() error {
	// Web
	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 28080
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("无效的 Web 端口: %d", c.Web.Port)
	}

	// Market
	if c.Market.BaseURL == "" {
		c.Market.BaseURL = "https://api.binance.com"
	}
	if c.Market.QuoteAsset == "" {
		c.Market.QuoteAsset = "USDT"
	}
	c.Market.QuoteAsset = strings.ToUpper(c.Market.QuoteAsset)
	if c.Market.TimeoutSeconds <= 0 {
		c.Market.TimeoutSeconds = 5
	}
	if c.Market.RequestsPerSec <= 0 {
		c.Market.RequestsPerSec = 10
	}
	if c.Market.KlineLimitMax <= 0 {
		c.Market.KlineLimitMax = 1000
	}

	// AI
	if c.AI.Provider == "" {
		c.AI.Provider = "qwen"
	}
	if c.AI.Temperature <= 0 {
		c.AI.Temperature = 0.7
	}
	if c.AI.Temperature > 2 {
		return fmt.Errorf("无效的 AI temperature: %.2f（应在 0-2 之间）", c.AI.Temperature)
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = 2000
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = 30
	}

	// Trading
	if len(c.Trading.Symbols) == 0 {
		c.Trading.Symbols = []string{"BTC", "ETH"}
	}
	for i, s := range c.Trading.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			return fmt.Errorf("交易币种列表包含空值")
		}
		c.Trading.Symbols[i] = s
	}
	if c.Trading.MaxLeverage == 0 {
		c.Trading.MaxLeverage = 5
	}
	if c.Trading.MaxLeverage < 1 {
		return fmt.Errorf("无效的最大杠杆: %d（必须不小于1）", c.Trading.MaxLeverage)
	}
	if c.Trading.StartingCash == 0 {
		c.Trading.StartingCash = 10000
	}
	if c.Trading.StartingCash < 0 {
		return fmt.Errorf("无效的初始资金: %.2f（必须大于0）", c.Trading.StartingCash)
	}
	if c.Trading.DefaultInterval == "" {
		c.Trading.DefaultInterval = "1h"
	}
	if c.Trading.SessionTimeoutMinutes <= 0 {
		c.Trading.SessionTimeoutMinutes = 1440
	}

	// System
	if c.System.LogLevel == "" {
		c.System.LogLevel = "info"
	}
	if c.System.LogLanguage == "" {
		c.System.LogLanguage = "zh-CN"
	}

	// Metrics
	if c.Metrics.CollectIntervalSeconds <= 0 {
		c.Metrics.CollectIntervalSeconds = 15
	}

	return nil
}
