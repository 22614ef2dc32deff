package deployment

import (
	"fmt"
)

// ModelValidationRule checks that the requested model is served by the adapter
type ModelValidationRule struct{}

func (r *ModelValidationRule) Name() string {
	return "Model Validation"
}

func (r *ModelValidationRule) Check(d Descriptor, req *ChatRequest) []ValidationWarning {
	var warnings []ValidationWarning

	if req.Params.Model == nil || *req.Params.Model == "" {
		return warnings
	}

	if !d.SupportsModel(*req.Params.Model) {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeModelUnknown,
			Category: "model",
			Field:    "model",
			Value:    *req.Params.Model,
			Message:  fmt.Sprintf("Model %s is not listed by deployment %s", *req.Params.Model, d.Name),
			Severity: SeverityWarning,
		})
	}

	return warnings
}

// RetrievalValidationRule checks search and document related warnings
type RetrievalValidationRule struct{}

func (r *RetrievalValidationRule) Name() string {
	return "Retrieval Validation"
}

func (r *RetrievalValidationRule) Check(d Descriptor, req *ChatRequest) []ValidationWarning {
	var warnings []ValidationWarning

	if req.Params.SearchEnabled() && !d.SearchQueriesEnabled {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeSearchUnsupported,
			Category: "retrieval",
			Field:    "search_queries_only",
			Value:    true,
			Message:  fmt.Sprintf("Deployment %s does not generate search queries", d.Name),
			Severity: SeverityWarning,
		})
	}

	seen := make(map[string]bool)
	for i, doc := range req.Params.Documents {
		if doc.ID == "" {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeDocumentIDMissing,
				Category: "retrieval",
				Field:    fmt.Sprintf("documents[%d].id", i),
				Message:  "Document has no id; citations cannot reference it",
				Severity: SeverityInfo,
			})
			continue
		}
		if seen[doc.ID] {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeDocumentIDConflict,
				Category: "retrieval",
				Field:    fmt.Sprintf("documents[%d].id", i),
				Value:    doc.ID,
				Message:  fmt.Sprintf("Document id %s is used more than once", doc.ID),
				Severity: SeverityWarning,
			})
		}
		seen[doc.ID] = true
	}

	return warnings
}

// ToolValidationRule checks tool-related warnings
type ToolValidationRule struct{}

func (r *ToolValidationRule) Name() string {
	return "Tool Validation"
}

func (r *ToolValidationRule) Check(d Descriptor, req *ChatRequest) []ValidationWarning {
	var warnings []ValidationWarning

	seen := make(map[string]bool)
	for _, tool := range req.Params.Tools {
		if seen[tool.Function.Name] {
			warnings = append(warnings, ValidationWarning{
				Code:     WarningCodeToolDuplicate,
				Category: "tool",
				Field:    "tools",
				Value:    tool.Function.Name,
				Message:  fmt.Sprintf("Tool %s is declared more than once", tool.Function.Name),
				Severity: SeverityError,
			})
		}
		seen[tool.Function.Name] = true
	}

	return warnings
}

// ParameterValidationRule checks generation parameters against recommended ranges
type ParameterValidationRule struct{}

func (r *ParameterValidationRule) Name() string {
	return "Parameter Validation"
}

func (r *ParameterValidationRule) Check(d Descriptor, req *ChatRequest) []ValidationWarning {
	var warnings []ValidationWarning

	if req.Params.Temperature != nil && *req.Params.Temperature > 1.0 {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeTemperatureHigh,
			Category: "parameter",
			Field:    "temperature",
			Value:    *req.Params.Temperature,
			Message:  "Temperatures above 1.0 are accepted but rarely produce coherent text",
			Severity: SeverityInfo,
		})
	}

	if req.Message == "" {
		warnings = append(warnings, ValidationWarning{
			Code:     WarningCodeEmptyMessage,
			Category: "parameter",
			Field:    "message",
			Message:  "Message is empty; the last history entry is used as the prompt",
			Severity: SeverityInfo,
		})
	}

	return warnings
}
