package deployment

import (
	"encoding/json"
	"fmt"
	"maps"
)

// ChatParams represents the optional generation parameters of a ChatRequest.
// All fields are optional pointers to distinguish "not set" from "set to zero value";
// adapters read them through the Get* helpers, which apply explicit defaults.
type ChatParams struct {
	// ===== Core Parameters =====

	// Model selects one of the adapter's models; the adapter default is used when nil
	Model *string `json:"model,omitempty"`

	// Temperature controls randomness (0.0-2.0)
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens sets the maximum number of tokens to generate
	MaxTokens *int `json:"max_tokens,omitempty"`

	// TopP (nucleus sampling) - cumulative probability cutoff (0.0-1.0)
	TopP *float64 `json:"p,omitempty"`

	// TopK limits sampling to top K tokens
	TopK *int `json:"k,omitempty"`

	// Stop sequences - generation stops if any of these are generated
	Stop []string `json:"stop_sequences,omitempty"`

	// Seed for deterministic sampling (if supported by the backend)
	Seed *int `json:"seed,omitempty"`

	// Preamble replaces the default system prompt
	Preamble *string `json:"preamble,omitempty"`

	// PromptTruncation controls history truncation ("AUTO", "OFF")
	PromptTruncation *string `json:"prompt_truncation,omitempty"`

	// ===== Retrieval and Tools =====

	// SearchQueriesOnly asks the adapter to emit search queries instead of an answer
	SearchQueriesOnly *bool `json:"search_queries_only,omitempty"`

	// Documents ground the answer; adapters that can cite emit citations against them
	Documents []Document `json:"documents,omitempty"`

	// Tools available for the model to use
	Tools []Tool `json:"tools,omitempty"`
}

// Default parameter values applied when a field is unset.
const (
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.3
)

// Clone returns a deep copy so a ChatRequest never aliases caller memory.
func (p ChatParams) Clone() ChatParams {
	out := p
	out.Model = clonePtr(p.Model)
	out.Temperature = clonePtr(p.Temperature)
	out.MaxTokens = clonePtr(p.MaxTokens)
	out.TopP = clonePtr(p.TopP)
	out.TopK = clonePtr(p.TopK)
	out.Seed = clonePtr(p.Seed)
	out.Preamble = clonePtr(p.Preamble)
	out.PromptTruncation = clonePtr(p.PromptTruncation)
	out.SearchQueriesOnly = clonePtr(p.SearchQueriesOnly)

	if p.Stop != nil {
		out.Stop = append([]string(nil), p.Stop...)
	}
	if p.Documents != nil {
		out.Documents = make([]Document, len(p.Documents))
		for i, d := range p.Documents {
			out.Documents[i] = Document{ID: d.ID, Fields: maps.Clone(d.Fields)}
		}
	}
	if p.Tools != nil {
		out.Tools = make([]Tool, len(p.Tools))
		for i, t := range p.Tools {
			out.Tools[i] = t
			out.Tools[i].Function.Parameters = maps.Clone(t.Function.Parameters)
		}
	}
	return out
}

// ValidateChatParams validates parameter ranges.
func ValidateChatParams(params *ChatParams) error {
	if params == nil {
		return nil // nil params is valid
	}

	if params.Temperature != nil {
		if *params.Temperature < 0.0 || *params.Temperature > 2.0 {
			return &ValidationError{Field: "temperature", Value: *params.Temperature, Reason: "must be between 0.0 and 2.0"}
		}
	}

	if params.TopP != nil {
		if *params.TopP < 0.0 || *params.TopP > 1.0 {
			return &ValidationError{Field: "p", Value: *params.TopP, Reason: "must be between 0.0 and 1.0"}
		}
	}

	if params.TopK != nil {
		if *params.TopK < 0 {
			return &ValidationError{Field: "k", Value: *params.TopK, Reason: "must be non-negative"}
		}
	}

	if params.MaxTokens != nil {
		if *params.MaxTokens < 1 {
			return &ValidationError{Field: "max_tokens", Value: *params.MaxTokens, Reason: "must be positive"}
		}
	}

	if params.PromptTruncation != nil {
		switch *params.PromptTruncation {
		case "AUTO", "OFF":
		default:
			return &ValidationError{Field: "prompt_truncation", Value: *params.PromptTruncation, Reason: "must be 'AUTO' or 'OFF'"}
		}
	}

	for i := range params.Tools {
		if err := params.Tools[i].Validate(); err != nil {
			return &ValidationError{Field: fmt.Sprintf("tools[%d]", i), Value: params.Tools[i].Function.Name, Reason: err.Error()}
		}
	}

	return nil
}

// ChatParamsFromMap unmarshals a loosely typed parameter map (as stored
// alongside an agent or received from a client) into ChatParams.
func ChatParamsFromMap(params map[string]interface{}) (ChatParams, error) {
	if params == nil {
		return ChatParams{}, nil
	}

	jsonBytes, err := json.Marshal(params)
	if err != nil {
		return ChatParams{}, fmt.Errorf("failed to marshal params: %w", err)
	}

	var cp ChatParams
	if err := json.Unmarshal(jsonBytes, &cp); err != nil {
		return ChatParams{}, fmt.Errorf("failed to unmarshal params: %w", err)
	}

	return cp, nil
}

// GetModel returns model with default fallback
func (p *ChatParams) GetModel(defaultValue string) string {
	if p.Model != nil && *p.Model != "" {
		return *p.Model
	}
	return defaultValue
}

// GetMaxTokens returns max_tokens with default fallback
func (p *ChatParams) GetMaxTokens(defaultValue int) int {
	if p.MaxTokens != nil {
		return *p.MaxTokens
	}
	return defaultValue
}

// GetTemperature returns temperature with default fallback
func (p *ChatParams) GetTemperature(defaultValue float64) float64 {
	if p.Temperature != nil {
		return *p.Temperature
	}
	return defaultValue
}

// GetPreamble returns the preamble or an empty string
func (p *ChatParams) GetPreamble() string {
	if p.Preamble != nil {
		return *p.Preamble
	}
	return ""
}

// SearchQueriesOnlyEnabled reports whether only search queries were requested.
func (p *ChatParams) SearchQueriesOnlyEnabled() bool {
	return p.SearchQueriesOnly != nil && *p.SearchQueriesOnly
}

// ToolsEnabled reports whether any tools were supplied.
func (p *ChatParams) ToolsEnabled() bool {
	return len(p.Tools) > 0
}

// SearchEnabled reports whether the request asks for retrieval, either by
// requesting search queries or by offering the web search tool.
func (p *ChatParams) SearchEnabled() bool {
	if p.SearchQueriesOnlyEnabled() {
		return true
	}
	for _, t := range p.Tools {
		if t.Function.Name == ToolNameWebSearch || t.Function.Name == ToolNameDocumentSearch {
			return true
		}
	}
	return false
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
