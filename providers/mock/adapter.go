// Package mock provides a canned deployment that replays a fixed event
// sequence instead of calling a model. It is used in tests and local
// development where the response content does not matter.
package mock

import (
	"context"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// DefaultModels is the model list advertised by the mock deployment.
var DefaultModels = []string{"command-r"}

// GenerationID is the generation id carried by every canned stream.
const GenerationID = "test"

// Text is the single text fragment of the canned stream.
const Text = "This is a test."

// Adapter replays StreamStart, one TextGeneration and a MAX_TOKENS StreamEnd.
// It has neither rerank nor search query capability.
type Adapter struct {
	name   string
	models []string
}

// NewAdapter creates a mock adapter registered as name ("mock" if empty)
// advertising models, or DefaultModels when none are given.
func NewAdapter(name string, models ...string) *Adapter {
	if name == "" {
		name = "mock"
	}
	if len(models) == 0 {
		models = DefaultModels
	}
	return &Adapter{name: name, models: append([]string(nil), models...)}
}

var _ deployment.Adapter = (*Adapter)(nil)

// Descriptor returns the static description of the mock deployment.
func (a *Adapter) Descriptor() deployment.Descriptor {
	return deployment.Descriptor{
		Name:   a.name,
		Models: a.ListModels(),
	}
}

// ListModels returns the configured models.
func (a *Adapter) ListModels() []string {
	out := make([]string, len(a.models))
	copy(out, a.models)
	return out
}

// IsAvailable always reports true: the mock needs no configuration.
func (a *Adapter) IsAvailable() bool {
	return true
}

// Events returns the canned sequence.
func Events() []deployment.Event {
	return []deployment.Event{
		deployment.StreamStartEvent(GenerationID),
		deployment.TextEvent(Text),
		deployment.StreamEndEvent(deployment.StreamEndPayload{
			GenerationID: GenerationID,
			FinishReason: deployment.FinishReasonMaxTokens,
		}),
	}
}

// InvokeChatStream replays Events regardless of the request.
func (a *Adapter) InvokeChatStream(ctx context.Context, req *deployment.ChatRequest) (*deployment.Stream, error) {
	events := Events()
	return deployment.NewStream(ctx, func(ctx context.Context, yield func(deployment.Event) bool) error {
		for _, ev := range events {
			if !yield(ev) {
				return ctx.Err()
			}
		}
		return nil
	}), nil
}

// InvokeSearchQueries is not supported by the mock deployment.
func (a *Adapter) InvokeSearchQueries(ctx context.Context, message string, history []deployment.ChatMessage) ([]string, error) {
	return nil, deployment.RequireSearchQueries(a.Descriptor())
}

// InvokeRerank is not supported by the mock deployment.
func (a *Adapter) InvokeRerank(ctx context.Context, query string, documents []deployment.Document) (*deployment.RerankResult, error) {
	return nil, deployment.RequireRerank(a.Descriptor())
}
