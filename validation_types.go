package deployment

// Severity indicates how serious a validation warning is
type Severity string

const (
	SeverityInfo    Severity = "info"    // Informational (might be expected)
	SeverityWarning Severity = "warning" // Potentially problematic
	SeverityError   Severity = "error"   // Likely to cause an upstream failure
)

// WarningCode is a machine-readable identifier for validation warnings
type WarningCode string

const (
	// Model warnings
	WarningCodeModelUnknown WarningCode = "MODEL_UNKNOWN"

	// Retrieval warnings
	WarningCodeSearchUnsupported  WarningCode = "SEARCH_UNSUPPORTED"
	WarningCodeDocumentIDMissing  WarningCode = "DOCUMENT_ID_MISSING"
	WarningCodeDocumentIDConflict WarningCode = "DOCUMENT_ID_CONFLICT"

	// Tool warnings. Providers reject duplicate function names outright.
	WarningCodeToolDuplicate WarningCode = "TOOL_DUPLICATE"

	// Parameter warnings
	WarningCodeTemperatureHigh WarningCode = "TEMPERATURE_HIGH"
	WarningCodeEmptyMessage    WarningCode = "EMPTY_MESSAGE"
)

// ValidationWarning represents a potential issue with a request.
// These are informational - the orchestrator doesn't block requests based on
// warnings; adapters and upstream APIs remain the source of truth.
type ValidationWarning struct {
	Code     WarningCode // Machine-readable code
	Category string      // "model", "retrieval", "tool", "parameter"
	Field    string      // Field that might cause issues
	Value    any         // The potentially problematic value
	Message  string      // Human-readable warning
	Severity Severity    // How serious this warning is
}

// ValidationRule interface allows adding custom validation logic
type ValidationRule interface {
	// Name returns a human-readable name for this rule
	Name() string

	// Check inspects a request against the descriptor of the resolved adapter
	Check(d Descriptor, req *ChatRequest) []ValidationWarning
}
