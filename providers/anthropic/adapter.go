// Package anthropic implements a deployment backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// DefaultModels is the model list advertised when none is configured.
var DefaultModels = []string{"claude-sonnet-4-5", "claude-haiku-4-5"}

// Config holds the settings of one Anthropic deployment.
type Config struct {
	Name    string
	APIKey  string
	BaseURL string
	Models  []string

	// SearchQueries enables InvokeSearchQueries and the web search tool
	SearchQueries bool

	Logger *slog.Logger
}

// Adapter implements deployment.Adapter for Anthropic (Claude) models.
type Adapter struct {
	client *anthropic.Client
	desc   deployment.Descriptor
	logger *slog.Logger
}

var _ deployment.Adapter = (*Adapter)(nil)

// NewAdapter creates an Anthropic adapter. It fails with
// deployment.ErrInvalidAPIKey when no API key is configured.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, deployment.ErrInvalidAPIKey
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	return newAdapter(&client, cfg), nil
}

func newAdapter(client *anthropic.Client, cfg Config) *Adapter {
	name := cfg.Name
	if name == "" {
		name = "anthropic"
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
		logger: logger.With("deployment", name),
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

// checkModel rejects models outside the Claude family.
func (a *Adapter) checkModel(model string) error {
	if a.desc.SupportsModel(model) || strings.HasPrefix(model, "claude-") {
		return nil
	}
	return &deployment.ValidationError{
		Field:  "model",
		Value:  model,
		Reason: "model not supported by Anthropic (must start with 'claude-')",
	}
}

// InvokeSearchQueries asks the model for web search queries with a single
// non-streaming call and returns one query per non-empty line of the answer.
func (a *Adapter) InvokeSearchQueries(ctx context.Context, message string, history []deployment.ChatMessage) ([]string, error) {
	if err := deployment.RequireSearchQueries(a.desc); err != nil {
		return nil, err
	}

	req := deployment.NewChatRequest(message, history, deployment.ChatParams{})
	apiParams, err := buildMessageParams(req, a.desc.DefaultModel(), false)
	if err != nil {
		return nil, err
	}
	apiParams.System = append(apiParams.System, anthropic.TextBlockParam{Text: deployment.SearchQueriesInstruction})
	apiParams.MaxTokens = 256

	msg, err := a.client.Messages.New(ctx, apiParams)
	if err != nil {
		return nil, mapError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return deployment.SplitSearchQueries(text.String()), nil
}

// InvokeRerank is not offered by the Messages API.
func (a *Adapter) InvokeRerank(ctx context.Context, query string, documents []deployment.Document) (*deployment.RerankResult, error) {
	return nil, deployment.RequireRerank(a.desc)
}

