package ai

import "fmt"

// Credentials 单次调用使用的 AI 凭证
type Credentials struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
	Model    string `json:"model"`
}

// Provider 服务商预设（OpenAI 兼容接口）
type Provider struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	Free    bool   `json:"free"` // 是否有免费额度
}

// 内置服务商预设
// qwen: 阿里云百炼（DashScope）兼容模式，有免费额度
// deepseek: DeepSeek 官方接口
var providers = map[string]Provider{
	"qwen": {
		Name:    "Qwen (DashScope)",
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-plus",
		Free:    true,
	},
	"deepseek": {
		Name:    "DeepSeek",
		BaseURL: "https://api.deepseek.com/v1",
		Model:   "deepseek-chat",
	},
}

// Providers 返回所有内置服务商预设（含 custom 占位）
func Providers() map[string]Provider {
	out := make(map[string]Provider, len(providers)+1)
	for k, v := range providers {
		out[k] = v
	}
	out["custom"] = Provider{Name: "Custom API"}
	return out
}

// ResolveCredentials 根据服务商预设补全凭证
// custom 服务商必须显式给出 base_url 和 model；预设服务商允许覆盖默认值
func ResolveCredentials(provider, apiKey, baseURL, model string) (Credentials, error) {
	creds := Credentials{
		Provider: provider,
		APIKey:   apiKey,
		BaseURL:  baseURL,
		Model:    model,
	}

	if provider == "custom" {
		if creds.BaseURL == "" || creds.Model == "" {
			return Credentials{}, fmt.Errorf("custom 服务商必须提供 base_url 和 model")
		}
		return creds, nil
	}

	preset, ok := providers[provider]
	if !ok {
		return Credentials{}, fmt.Errorf("未知的 AI 服务商: %s", provider)
	}
	if creds.BaseURL == "" {
		creds.BaseURL = preset.BaseURL
	}
	if creds.Model == "" {
		creds.Model = preset.Model
	}
	return creds, nil
}
