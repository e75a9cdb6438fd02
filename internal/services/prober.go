package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// CheckResult is the outcome of checking a service.
type CheckResult struct {
	Service string `json:"service"`
	// Probed is set when a request was actually sent to the service.
	Probed  bool           `json:"probed"`
	OK      bool           `json:"ok"`
	Model   string         `json:"model,omitempty"`
	Reply   string         `json:"reply,omitempty"`
	Latency time.Duration  `json:"latency"`
	Failure *types.Failure `json:"failure,omitempty"`
}

// Generator is the part of an eino chat model the prober uses.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ModelFactory builds a chat model from its settings.
type ModelFactory func(ctx context.Context, cfg *openai.ChatModelConfig) (Generator, error)

func newChatModel(ctx context.Context, cfg *openai.ChatModelConfig) (Generator, error) {
	cm, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return cm, nil
}

// Prober sends a one-message chat request to verify credentials.
type Prober struct {
	Timeout time.Duration
	factory ModelFactory
}

// NewProber returns a prober using the eino OpenAI chat model.
func NewProber() *Prober {
	return &Prober{Timeout: 20 * time.Second, factory: newChatModel}
}

// WithFactory replaces the model constructor.
func (p *Prober) WithFactory(f ModelFactory) *Prober {
	p.factory = f
	return p
}

// Check validates cfg and, for chat compatible services, sends a short
// request. Services without a chat API are only validated.
func (p *Prober) Check(ctx context.Context, cfg types.Config) CheckResult {
	res := CheckResult{Service: cfg.Service}
	if f := Validate(cfg); f != nil {
		res.Failure = f
		return res
	}

	d, _ := Lookup(cfg.Service)
	if !d.ChatCompatible {
		res.OK = true
		return res
	}

	modelName, apiKey, baseURL := chatSettings(cfg, d)
	res.Model = modelName

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	chatModel, err := p.factory(ctx, &openai.ChatModelConfig{
		Model:   modelName,
		APIKey:  apiKey,
		BaseURL: baseURL,
	})
	if err != nil {
		res.Failure = types.WrapFailure(types.ServiceUnverified, "failed to create chat model", err)
		return res
	}

	start := time.Now()
	res.Probed = true
	reply, err := chatModel.Generate(ctx, []*schema.Message{
		schema.UserMessage("ping"),
	})
	res.Latency = time.Since(start)
	if err != nil {
		res.Failure = types.WrapFailure(types.ServiceUnverified, fmt.Sprintf("%s did not accept the request", d.DisplayName), err)
		logger.Warn("service probe failed",
			logger.String("service", cfg.Service),
			logger.String("base_url", baseURL),
			logger.Err(err))
		return res
	}

	res.OK = true
	if reply != nil {
		res.Reply = strings.TrimSpace(reply.Content)
	}
	logger.Info("service probe succeeded",
		logger.String("service", cfg.Service),
		logger.String("model", modelName),
		logger.Duration("latency", res.Latency))
	return res
}
