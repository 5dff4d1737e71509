// Package llm connects scholar agents to OpenAI-compatible chat models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/smhanov/scholar"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

// ErrMissingAPIKey is returned when a provider that needs a key gets none.
var ErrMissingAPIKey = errors.New("llm: API key is missing")

// Config selects a provider and model.
type Config struct {
	Provider    string // openai, openrouter, deepseek, ollama or any OpenAI-compatible name
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	// Price overrides the built-in price table, in dollars per million tokens.
	Price *Price
}

// Price is the cost of a model in dollars per million tokens.
type Price struct {
	Input  float64
	Output float64
}

var prices = map[string]Price{
	"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
	"gpt-4o":        {Input: 2.50, Output: 10.00},
	"gpt-4.1-mini":  {Input: 0.40, Output: 1.60},
	"gpt-4.1":       {Input: 2.00, Output: 8.00},
	"deepseek-chat": {Input: 0.27, Output: 1.10},
}

var defaultBaseURLs = map[string]string{
	"openrouter": "https://openrouter.ai/api/v1",
	"deepseek":   "https://api.deepseek.com",
	"ollama":     "http://localhost:11434/v1",
}

// RequiresKey reports whether provider needs an API key.
func RequiresKey(provider string) bool {
	return strings.ToLower(strings.TrimSpace(provider)) != "ollama"
}

// OpenAI implements scholar.LLMProvider with the chat completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	price       Price
	logger      *zap.Logger
}

// NewOpenAI builds a client for cfg. A nil logger disables logging.
func NewOpenAI(cfg Config, logger *zap.Logger) (*OpenAI, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "openai"
	}
	if RequiresKey(provider) && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURLs[provider]
	}
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	price := prices[model]
	if cfg.Price != nil {
		price = *cfg.Price
	}

	return &OpenAI{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		price:       price,
		logger:      logger.With(zap.String("provider", provider), zap.String("model", model)),
	}, nil
}

// Model returns the model name requests are sent to.
func (o *OpenAI) Model() string { return o.model }

// Generate sends one system and one user message and returns the reply.
func (o *OpenAI) Generate(ctx context.Context, systemPrompt, userPrompt string) (scholar.LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userPrompt})

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		o.logger.Error("chat completion failed", zap.Error(err))
		return scholar.LLMResponse{}, fmt.Errorf("llm chat failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return scholar.LLMResponse{}, errors.New("empty response from LLM")
	}

	cost := o.cost(resp.Usage)
	o.logger.Debug("chat completion",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Float64("cost", cost),
		zap.Duration("duration", time.Since(start)))

	msg := resp.Choices[0].Message
	return scholar.LLMResponse{
		Text:      strings.TrimSpace(msg.Content),
		Reasoning: strings.TrimSpace(msg.ReasoningContent),
		Cost:      cost,
	}, nil
}

func (o *OpenAI) cost(u openai.Usage) float64 {
	return (float64(u.PromptTokens)*o.price.Input + float64(u.CompletionTokens)*o.price.Output) / 1e6
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          50,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
