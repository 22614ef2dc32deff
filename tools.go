package deployment

import (
	"errors"
	"fmt"
)

// Built-in tool names recognised by the bundled adapters.
const (
	ToolNameWebSearch      = "web_search"
	ToolNameDocumentSearch = "document_search"
)

// FunctionDetails represents the function definition within a tool (OpenAI format).
// This matches the universal standard used by OpenAI-compatible APIs and easily converts to Anthropic.
type FunctionDetails struct {
	Name        string                 `json:"name"`                  // Function name (required)
	Description string                 `json:"description,omitempty"` // What the function does
	Parameters  map[string]interface{} `json:"parameters"`            // JSON Schema for parameters
}

// Tool represents a function tool the model may call.
type Tool struct {
	Type     string          `json:"type"`     // Always "function" for function tools
	Function FunctionDetails `json:"function"` // Function definition
}

// Validate checks if the Tool is properly configured
func (t *Tool) Validate() error {
	if t.Type == "" {
		return errors.New("tool type is required")
	}

	if t.Type != "function" {
		return fmt.Errorf("unsupported tool type: %s (only 'function' is supported)", t.Type)
	}

	if t.Function.Name == "" {
		return errors.New("function name is required")
	}

	if t.Function.Parameters == nil {
		return errors.New("function parameters are required")
	}

	if schemaType, ok := t.Function.Parameters["type"].(string); !ok || schemaType != "object" {
		return errors.New("function parameters must be a JSON schema with type 'object'")
	}

	return nil
}

// NewSearchTool creates the web search tool.
func NewSearchTool() *Tool {
	return &Tool{
		Type: "function",
		Function: FunctionDetails{
			Name:        ToolNameWebSearch,
			Description: "Search the web for current information",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The search query",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// NewCustomTool creates a custom function tool.
//
// parameters must be a JSON Schema object, e.g.
//
//	map[string]interface{}{
//	  "type": "object",
//	  "properties": map[string]interface{}{
//	    "location": map[string]interface{}{"type": "string"},
//	  },
//	  "required": []string{"location"},
//	}
func NewCustomTool(name string, description string, parameters map[string]interface{}) (*Tool, error) {
	if name == "" {
		return nil, errors.New("tool name is required")
	}

	if description == "" {
		return nil, errors.New("tool description is required")
	}

	tool := &Tool{
		Type: "function",
		Function: FunctionDetails{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}

	if err := tool.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create custom tool: %w", err)
	}

	return tool, nil
}
