// Package services checks translation service settings before a worker is
// launched with them.
package services

import (
	"strings"

	"pdf-translator/internal/types"
)

// Descriptor describes what a translation service needs.
type Descriptor struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	// Required lists the config fields that must be non-empty, as dotted
	// JSON paths.
	Required []string `json:"required"`
	// ChatCompatible services speak the OpenAI chat API and can be probed.
	ChatCompatible bool `json:"chat_compatible"`
	DefaultBaseURL string `json:"default_base_url,omitempty"`
}

var descriptors = []Descriptor{
	{Name: types.ServiceGoogle, DisplayName: "Google"},
	{Name: types.ServiceAzure, DisplayName: "Azure", Required: []string{"azure.endpoint", "azure.api_key"}},
	{Name: types.ServiceDeepL, DisplayName: "DeepL", Required: []string{"deepl.auth_key"}},
	{Name: types.ServiceOpenAI, DisplayName: "OpenAI", Required: []string{"openai.api_key"},
		ChatCompatible: true, DefaultBaseURL: "https://api.openai.com/v1"},
	{Name: types.ServiceZhipu, DisplayName: "智谱", Required: []string{"zhipu.api_key"},
		ChatCompatible: true, DefaultBaseURL: "https://open.bigmodel.cn/api/paas/v4"},
	{Name: types.ServiceDeepSeek, DisplayName: "DeepSeek", Required: []string{"deepseek.api_key"},
		ChatCompatible: true, DefaultBaseURL: "https://api.deepseek.com/v1"},
}

// Descriptors returns the known services in display order.
func Descriptors() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Lookup returns the descriptor for name.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// field returns the value of a dotted config path.
func field(cfg types.Config, path string) string {
	switch path {
	case "azure.endpoint":
		return cfg.Azure.Endpoint
	case "azure.api_key":
		return cfg.Azure.APIKey
	case "deepl.auth_key":
		return cfg.DeepL.AuthKey
	case "openai.api_key":
		return cfg.OpenAI.APIKey
	case "zhipu.api_key":
		return cfg.Zhipu.APIKey
	case "deepseek.api_key":
		return cfg.DeepSeek.APIKey
	}
	return ""
}

// Validate checks that the selected service has every field it needs. The
// returned failure lists the missing fields.
func Validate(cfg types.Config) *types.Failure {
	d, ok := Lookup(cfg.Service)
	if !ok {
		return types.NewFailure(types.InvalidRequest, "unknown translation service: "+cfg.Service)
	}

	var missing []string
	for _, path := range d.Required {
		if strings.TrimSpace(field(cfg, path)) == "" {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 {
		f := types.NewFailure(types.ServiceUnverified, d.DisplayName+" is missing required settings")
		f.Detail = strings.Join(missing, ", ")
		return f
	}
	return nil
}

// chatSettings returns the model, key and base URL of a chat compatible
// service.
func chatSettings(cfg types.Config, d Descriptor) (model, apiKey, baseURL string) {
	switch d.Name {
	case types.ServiceOpenAI:
		model, apiKey, baseURL = cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL
	case types.ServiceZhipu:
		model, apiKey = cfg.Zhipu.Model, cfg.Zhipu.APIKey
	case types.ServiceDeepSeek:
		model, apiKey = cfg.DeepSeek.Model, cfg.DeepSeek.APIKey
	}
	if baseURL == "" {
		baseURL = d.DefaultBaseURL
	}
	return model, apiKey, baseURL
}
