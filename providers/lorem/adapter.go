// Package lorem provides a mock deployment that streams lorem ipsum text.
// It exercises every part of the event protocol (text, citations, tool
// calls, search queries, rerank) without requiring API keys.
package lorem

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/google/uuid"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// DefaultModels is the model list advertised when none is configured.
// Model names drive behaviour, see streamDelay and isCutoffModel.
var DefaultModels = []string{"lorem-fast", "lorem-medium", "lorem-slow", "lorem-cutoff"}

const (
	// defaultMaxTokens is the token budget when the request does not set max_tokens.
	defaultMaxTokens = 60

	// answerWords is the length of a normal (non-cutoff) answer.
	answerWords = 40

	// maxStreamWords caps a single generation regardless of max_tokens.
	maxStreamWords = 1 << 20
)

// Adapter is a mock deployment that generates lorem ipsum text.
// Used for testing and development without requiring real API keys.
type Adapter struct {
	desc   deployment.Descriptor
	logger *slog.Logger
	delay  func(model string) time.Duration

	// golorem's generator wraps a math/rand source that is not safe for
	// concurrent use.
	mu        sync.Mutex
	generator *loremgen.Lorem
}

// Option configures the lorem adapter.
type Option func(*Adapter)

// WithModels overrides DefaultModels. The first model is the default.
func WithModels(models ...string) Option {
	return func(a *Adapter) {
		if len(models) > 0 {
			a.desc.Models = append([]string(nil), models...)
		}
	}
}

// WithLogger sets the logger used for per-block debug logs.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithStreamDelay replaces the model-driven delay between words.
// Tests use WithStreamDelay(0) to stream instantly.
func WithStreamDelay(d time.Duration) Option {
	return func(a *Adapter) {
		a.delay = func(string) time.Duration { return d }
	}
}

// WithCapabilities sets the rerank and search query capability flags.
func WithCapabilities(rerank, searchQueries bool) Option {
	return func(a *Adapter) {
		a.desc.RerankEnabled = rerank
		a.desc.SearchQueriesEnabled = searchQueries
	}
}

// NewAdapter creates a new lorem ipsum adapter registered as name ("lorem" if empty).
func NewAdapter(name string, opts ...Option) *Adapter {
	if name == "" {
		name = "lorem"
	}
	a := &Adapter{
		desc: deployment.Descriptor{
			Name:                 name,
			Models:               append([]string(nil), DefaultModels...),
			RerankEnabled:        true,
			SearchQueriesEnabled: true,
		},
		logger:    slog.Default(),
		delay:     streamDelay,
		generator: loremgen.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ deployment.Adapter = (*Adapter)(nil)

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

// IsAvailable always reports true: lorem needs no credentials.
func (a *Adapter) IsAvailable() bool {
	return true
}

// streamDelay returns the delay between words based on the model name.
// - lorem-slow: 2 words/second (500ms per word)
// - lorem-fast: 30 words/second (33ms per word)
// - lorem-medium: 10 words/second (100ms per word)
// - default: 10 words/second
func streamDelay(model string) time.Duration {
	if strings.Contains(model, "slow") {
		return 500 * time.Millisecond
	}
	if strings.Contains(model, "fast") {
		return 33 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// isCutoffModel returns true if the model should simulate max_tokens cutoff.
func isCutoffModel(model string) bool {
	return strings.Contains(model, "cutoff") || strings.Contains(model, "small")
}

// isRateLimitedModel returns true if the model should simulate an upstream
// rate limit right after the stream opens.
func isRateLimitedModel(model string) bool {
	return strings.Contains(model, "ratelimit")
}

// InvokeChatStream streams lorem ipsum words as TextGeneration events.
//
// Depending on the request it also emits search queries (search_queries_only),
// citations against supplied documents, and one tool call per supplied tool.
// Speed varies with the model name (lorem-slow, lorem-fast, lorem-medium).
func (a *Adapter) InvokeChatStream(ctx context.Context, req *deployment.ChatRequest) (*deployment.Stream, error) {
	model := req.Model(a.desc.DefaultModel())
	if !a.desc.SupportsModel(model) && !strings.HasPrefix(model, "lorem-") {
		return nil, &deployment.ValidationError{
			Field:  "model",
			Value:  model,
			Reason: "model not supported by lorem deployment (must start with 'lorem-')",
		}
	}

	run := &generation{
		adapter:   a,
		id:        uuid.NewString(),
		model:     model,
		maxTokens: req.Params.GetMaxTokens(defaultMaxTokens),
		delay:     a.delay(model),
		req:       req,
		logger:    a.logger.With("deployment", a.desc.Name, "model", model),
	}

	return deployment.NewStream(ctx, run.produce), nil
}

// generation holds the state of one InvokeChatStream call.
type generation struct {
	adapter   *Adapter
	id        string
	model     string
	maxTokens int
	delay     time.Duration
	req       *deployment.ChatRequest
	logger    *slog.Logger

	text      strings.Builder
	citations []deployment.Citation
	queries   []deployment.SearchQuery
}

func (g *generation) produce(ctx context.Context, yield func(deployment.Event) bool) error {
	g.logger.Debug("lorem stream started",
		"max_tokens", g.maxTokens,
		"documents", len(g.req.Params.Documents),
		"tools", len(g.req.Params.Tools),
	)

	if !yield(deployment.StreamStartEvent(g.id)) {
		return ctx.Err()
	}

	if isRateLimitedModel(g.model) {
		g.logger.Debug("lorem simulating rate limit")
		yield(deployment.StreamErrorEvent(deployment.ErrorKindRateLimited, "lorem: simulated rate limit"))
		return nil
	}

	if g.req.Params.SearchQueriesOnlyEnabled() {
		return g.produceSearchQueries(ctx, yield)
	}

	finish, err := g.streamText(ctx, yield)
	if err != nil {
		return err
	}

	if len(g.req.Params.Documents) > 0 {
		g.citations = g.buildCitations()
		if len(g.citations) > 0 && !yield(deployment.CitationsEvent(g.citations...)) {
			return ctx.Err()
		}
	}

	if finish == deployment.FinishReasonComplete && g.req.Params.ToolsEnabled() {
		calls, err := g.buildToolCalls()
		if err != nil {
			return err
		}
		if !yield(deployment.ToolCallsEvent(calls...)) {
			return ctx.Err()
		}
	}

	g.logger.Debug("lorem stream finished", "finish_reason", finish, "chars", g.text.Len())

	yield(deployment.StreamEndEvent(deployment.StreamEndPayload{
		GenerationID:  g.id,
		FinishReason:  finish,
		Citations:     g.citations,
		Documents:     g.req.Params.Documents,
		SearchQueries: g.queries,
	}))
	return nil
}

// produceSearchQueries emits generated queries instead of an answer.
func (g *generation) produceSearchQueries(ctx context.Context, yield func(deployment.Event) bool) error {
	for _, q := range g.adapter.generateQueries(g.req.Message) {
		g.queries = append(g.queries, deployment.SearchQuery{Text: q, GenerationID: g.id})
	}

	if !yield(deployment.SearchQueriesEvent(g.queries...)) {
		return ctx.Err()
	}

	yield(deployment.StreamEndEvent(deployment.StreamEndPayload{
		GenerationID:  g.id,
		FinishReason:  deployment.FinishReasonComplete,
		SearchQueries: g.queries,
	}))
	return nil
}

// streamText streams words up to maxTokens, one generated sentence at a time.
// Cutoff models keep generating until the budget is spent.
func (g *generation) streamText(ctx context.Context, yield func(deployment.Event) bool) (deployment.FinishReason, error) {
	cutoff := isCutoffModel(g.model)
	limit := g.maxTokens
	if !cutoff && limit > answerWords {
		limit = answerWords
	}
	if limit > maxStreamWords {
		limit = maxStreamWords
	}

	wordsSent := 0
	for wordsSent < limit {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		for _, word := range strings.Fields(g.adapter.sentence()) {
			if wordsSent >= limit {
				break
			}

			fragment := word
			if wordsSent > 0 {
				fragment = " " + word
			}
			if !yield(deployment.TextEvent(fragment)) {
				return "", ctx.Err()
			}
			g.text.WriteString(fragment)
			wordsSent++

			if err := sleep(ctx, g.delay); err != nil {
				return "", err
			}
		}
	}

	if cutoff || wordsSent >= g.maxTokens {
		g.logger.Debug("lorem hit max_tokens", "words", wordsSent)
		return deployment.FinishReasonMaxTokens, nil
	}
	return deployment.FinishReasonComplete, nil
}

// buildCitations cites the supplied documents against consecutive spans of
// the generated text, one span per document.
func (g *generation) buildCitations() []deployment.Citation {
	text := g.text.String()
	docs := g.req.Params.Documents
	if text == "" {
		return nil
	}

	span := len(text) / len(docs)
	if span == 0 {
		span = len(text)
	}

	var citations []deployment.Citation
	for i, doc := range docs {
		if doc.ID == "" {
			continue
		}
		start := i * span
		if start >= len(text) {
			break
		}
		end := start + span
		if end > len(text) || i == len(docs)-1 {
			end = len(text)
		}
		citations = append(citations, deployment.Citation{
			Start:       start,
			End:         end,
			Text:        text[start:end],
			DocumentIDs: []string{doc.ID},
		})
	}
	return citations
}

// buildToolCalls generates a mock call for every supplied tool.
func (g *generation) buildToolCalls() ([]deployment.ToolCall, error) {
	calls := make([]deployment.ToolCall, 0, len(g.req.Params.Tools))
	for i, tool := range g.req.Params.Tools {
		var input map[string]interface{}

		switch tool.Function.Name {
		case deployment.ToolNameWebSearch, deployment.ToolNameDocumentSearch:
			input = map[string]interface{}{
				"query": "lorem ipsum dolor sit amet",
			}
		default:
			input = map[string]interface{}{
				"data": "mock input for " + tool.Function.Name,
			}
		}

		params, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tool input: %w", err)
		}

		calls = append(calls, deployment.ToolCall{
			ID:         fmt.Sprintf("call_%s_%d", tool.Function.Name, i),
			Name:       tool.Function.Name,
			Parameters: params,
		})
	}
	return calls, nil
}

// InvokeSearchQueries returns one to three lorem queries.
func (a *Adapter) InvokeSearchQueries(ctx context.Context, message string, history []deployment.ChatMessage) ([]string, error) {
	if err := deployment.RequireSearchQueries(a.desc); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.generateQueries(message), nil
}

// generateQueries derives queries from the message length so repeated calls
// for the same message return the same number of queries.
func (a *Adapter) generateQueries(message string) []string {
	n := len(strings.Fields(message))%3 + 1

	a.mu.Lock()
	defer a.mu.Unlock()

	queries := make([]string, 0, n)
	for i := 0; i < n; i++ {
		q := strings.ToLower(strings.TrimSuffix(a.generator.Sentence(2, 5), "."))
		queries = append(queries, q)
	}
	return queries
}

// sentence generates one 5-15 word sentence. The lock is held for a single
// sentence so concurrent generations interleave.
func (a *Adapter) sentence() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generator.Sentence(5, 15)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
