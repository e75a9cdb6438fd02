package types

// Translation service identifiers understood by the worker.
const (
	ServiceGoogle   = "google"
	ServiceAzure    = "azure"
	ServiceDeepL    = "deepl"
	ServiceOpenAI   = "openai"
	ServiceZhipu    = "zhipu"
	ServiceDeepSeek = "deepseek"
)

// Config 翻译配置，与工作进程读取的 config.json 结构一致
type Config struct {
	Service  string         `json:"service"`
	Thread   int            `json:"thread"`
	LangIn   string         `json:"lang_in"`
	LangOut  string         `json:"lang_out"`
	Proxy    string         `json:"proxy"`
	Google   GoogleConfig   `json:"google"`
	Azure    AzureConfig    `json:"azure"`
	DeepL    DeepLConfig    `json:"deepl"`
	OpenAI   OpenAIConfig   `json:"openai"`
	Zhipu    ModelAPIConfig `json:"zhipu"`
	DeepSeek ModelAPIConfig `json:"deepseek"`
}

type GoogleConfig struct {
	URL string `json:"url"`
}

type AzureConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
}

type DeepLConfig struct {
	AuthKey string `json:"auth_key"`
	URL     string `json:"url"`
}

// OpenAIConfig OpenAI 及兼容接口配置
type OpenAIConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
}

// ModelAPIConfig 智谱、DeepSeek 等只需密钥与模型名的服务
type ModelAPIConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Service: ServiceGoogle,
		Thread:  4,
		LangIn:  "en",
		LangOut: "zh",
		Proxy:   "",
		Google:  GoogleConfig{URL: "https://translate.googleapis.com"},
		Azure:   AzureConfig{Endpoint: "https://api.translator.azure.cn"},
		DeepL:   DeepLConfig{URL: "https://api-free.deepl.com"},
		OpenAI: OpenAIConfig{
			Model:   "gpt-3.5-turbo",
			BaseURL: "https://api.openai.com/v1",
		},
		Zhipu:    ModelAPIConfig{Model: "glm-3-turbo"},
		DeepSeek: ModelAPIConfig{Model: "deepseek-chat"},
	}
}

// KnownServices lists the services in the order the UI offers them.
func KnownServices() []string {
	return []string{ServiceGoogle, ServiceAzure, ServiceDeepL, ServiceOpenAI, ServiceZhipu, ServiceDeepSeek}
}

// IsKnownService reports whether name is one of KnownServices.
func IsKnownService(name string) bool {
	for _, s := range KnownServices() {
		if s == name {
			return true
		}
	}
	return false
}
