package deployment

import (
	"context"
	"strings"
)

// Adapter defines the interface that every deployment backend must implement.
// This abstraction lets hosted inference endpoints and local mocks produce an
// equivalent event stream, so the rest of the application can treat them alike.
//
// Adapters are shared for the lifetime of the process and invoked
// concurrently; any per-call state must live in values created inside
// InvokeChatStream.
type Adapter interface {
	// Descriptor returns the static name and capability flags of the adapter.
	Descriptor() Descriptor

	// ListModels returns the supported model identifiers, default first.
	// It has no side effects and never fails.
	ListModels() []string

	// IsAvailable reports whether required configuration and credentials are present.
	// Configuration problems are reported as false, never as an error or panic.
	IsAvailable() bool

	// InvokeChatStream starts a generation and returns its lazy event stream.
	//
	// The stream begins with exactly one StreamStart and ends with exactly one
	// StreamEnd or StreamError. Recoverable upstream failures (rate limits,
	// transient network faults) are emitted as StreamError events. A non-nil
	// error is returned only for requests the adapter cannot accept at all.
	//
	// The stream is not restartable; call InvokeChatStream again per request.
	//
	// Usage:
	//   stream, err := adapter.InvokeChatStream(ctx, req)
	//   if err != nil { return err }
	//   defer stream.Close()
	//   for stream.Next() {
	//     event := stream.Current()
	//   }
	//   if err := stream.Err(); err != nil { handle fault }
	InvokeChatStream(ctx context.Context, req *ChatRequest) (*Stream, error)

	// InvokeSearchQueries generates retrieval queries for the message.
	// Fails with ErrUnsupportedOperation when search query generation is disabled.
	InvokeSearchQueries(ctx context.Context, message string, history []ChatMessage) ([]string, error)

	// InvokeRerank orders documents by relevance to query.
	// Returns (nil, nil) when reranking is not meaningful for the input.
	// Fails with ErrUnsupportedOperation when rerank is disabled.
	InvokeRerank(ctx context.Context, query string, documents []Document) (*RerankResult, error)
}

// Descriptor is the immutable description of an adapter instance.
type Descriptor struct {
	// Name is the deployment name the adapter is registered under
	Name string `json:"name" yaml:"name"`

	// Models lists the supported model identifiers; the first is the default
	Models []string `json:"models" yaml:"models"`

	// RerankEnabled reports support for InvokeRerank
	RerankEnabled bool `json:"rerank_enabled" yaml:"rerank"`

	// SearchQueriesEnabled reports support for InvokeSearchQueries
	SearchQueriesEnabled bool `json:"search_queries_enabled" yaml:"search_queries"`
}

// DefaultModel returns the first listed model, or "" when none are listed.
func (d Descriptor) DefaultModel() string {
	if len(d.Models) == 0 {
		return ""
	}
	return d.Models[0]
}

// SupportsModel reports whether model is one of the listed models.
func (d Descriptor) SupportsModel(model string) bool {
	for _, m := range d.Models {
		if m == model {
			return true
		}
	}
	return false
}

// ModelsCopy returns the model list without exposing the descriptor's slice.
func (d Descriptor) ModelsCopy() []string {
	out := make([]string, len(d.Models))
	copy(out, d.Models)
	return out
}

// RequireRerank returns an UnsupportedOperationError unless d supports rerank.
func RequireRerank(d Descriptor) error {
	if !d.RerankEnabled {
		return &UnsupportedOperationError{Deployment: d.Name, Operation: "rerank"}
	}
	return nil
}

// RequireSearchQueries returns an UnsupportedOperationError unless d supports
// search query generation.
func RequireSearchQueries(d Descriptor) error {
	if !d.SearchQueriesEnabled {
		return &UnsupportedOperationError{Deployment: d.Name, Operation: "search_queries"}
	}
	return nil
}

// RankedDocument is one entry of a rerank result.
type RankedDocument struct {
	// Index points into the documents slice passed to InvokeRerank
	Index int `json:"index"`

	// Score is the relevance score; higher is more relevant
	Score float64 `json:"relevance_score"`
}

// RerankResult orders documents by descending relevance.
type RerankResult struct {
	Results []RankedDocument `json:"results"`
}

// SearchQueriesInstruction is the system instruction hosted adapters use to
// generate search queries with a plain completion call.
const SearchQueriesInstruction = "Write up to three web search queries that would help answer the user's last message. " +
	"Reply with one query per line and nothing else."

// SplitSearchQueries turns a model answer with one query per line into
// queries, dropping blank lines and list markers ("- ", "* ", "1. ", "2) ").
func SplitSearchQueries(text string) []string {
	var queries []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		line = strings.TrimPrefix(line, "* ")
		if i := strings.IndexAny(line, ".)"); i > 0 && i < len(line)-1 && line[i+1] == ' ' && isDigits(line[:i]) {
			line = line[i+2:]
		}
		line = strings.Trim(strings.TrimSpace(line), `"`)
		if line != "" {
			queries = append(queries, line)
		}
	}
	return queries
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
