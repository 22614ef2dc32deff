// Package openai implements a deployment backed by an OpenAI-compatible Chat
// Completions endpoint. The base URL is configurable, so the same adapter
// serves OpenAI, OpenRouter and local inference servers.
package openai

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// DefaultModels is the model list advertised when none is configured.
var DefaultModels = []string{openai.ChatModelGPT4oMini, openai.ChatModelGPT4o}

// Config holds the settings of one OpenAI-compatible deployment.
type Config struct {
	Name    string
	APIKey  string
	BaseURL string
	Models  []string

	// SearchQueries enables InvokeSearchQueries
	SearchQueries bool

	Logger *slog.Logger
}

// Adapter implements deployment.Adapter over the Chat Completions API.
type Adapter struct {
	client *openai.Client
	desc   deployment.Descriptor
	logger *slog.Logger

	// provider names the backend in classified errors ("openai", "openrouter", ...)
	provider string
}

var _ deployment.Adapter = (*Adapter)(nil)

// NewAdapter creates an adapter. It fails with deployment.ErrInvalidAPIKey
// when no API key is configured.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, deployment.ErrInvalidAPIKey
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return NewAdapterFromClient(&client, cfg), nil
}

// NewAdapterFromClient wraps an existing client. cfg.APIKey and cfg.BaseURL
// are ignored.
func NewAdapterFromClient(client *openai.Client, cfg Config) *Adapter {
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	models := cfg.Models
	if len(models) == 0 {
		models = DefaultModels
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		client: client,
		desc: deployment.Descriptor{
			Name:                 name,
			Models:               append([]string(nil), models...),
			SearchQueriesEnabled: cfg.SearchQueries,
		},
		logger:   logger.With("deployment", name),
		provider: name,
	}
}

// Descriptor returns the adapter's name and capability flags.
func (a *Adapter) Descriptor() deployment.Descriptor {
	d := a.desc
	d.Models = a.desc.ModelsCopy()
	return d
}

// ListModels returns the configured models, default first.
func (a *Adapter) ListModels() []string {
	return a.desc.ModelsCopy()
}

// IsAvailable reports whether a client was configured.
func (a *Adapter) IsAvailable() bool {
	return a.client != nil
}

// InvokeSearchQueries asks the model for web search queries with a single
// non-streaming completion and returns one query per non-empty line.
func (a *Adapter) InvokeSearchQueries(ctx context.Context, message string, history []deployment.ChatMessage) ([]string, error) {
	if err := deployment.RequireSearchQueries(a.desc); err != nil {
		return nil, err
	}

	req := deployment.NewChatRequest(message, history, deployment.ChatParams{})
	params, err := buildParams(req, a.desc.DefaultModel())
	if err != nil {
		return nil, err
	}
	params.Messages = append([]openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(deployment.SearchQueriesInstruction),
	}, params.Messages...)
	params.MaxCompletionTokens = openai.Int(256)

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapError(a.provider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}
	return deployment.SplitSearchQueries(resp.Choices[0].Message.Content), nil
}

// InvokeRerank is not offered by the Chat Completions API.
func (a *Adapter) InvokeRerank(ctx context.Context, query string, documents []deployment.Document) (*deployment.RerankResult, error) {
	return nil, deployment.RequireRerank(a.desc)
}
