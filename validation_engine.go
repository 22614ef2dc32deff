package deployment

import (
	"sync"
)

// ValidationEngine manages validation rules and executes them
type ValidationEngine struct {
	rules []ValidationRule
	mu    sync.RWMutex
}

var (
	globalValidationEngine     *ValidationEngine
	globalValidationEngineOnce sync.Once
)

// NewValidationEngine creates an engine with the given rules.
func NewValidationEngine(rules ...ValidationRule) *ValidationEngine {
	return &ValidationEngine{rules: append([]ValidationRule(nil), rules...)}
}

// DefaultValidationRules returns the built-in rules.
func DefaultValidationRules() []ValidationRule {
	return []ValidationRule{
		&ModelValidationRule{},
		&RetrievalValidationRule{},
		&ToolValidationRule{},
		&ParameterValidationRule{},
	}
}

// GetValidationEngine returns the global validation engine (singleton)
func GetValidationEngine() *ValidationEngine {
	globalValidationEngineOnce.Do(func() {
		globalValidationEngine = NewValidationEngine(DefaultValidationRules()...)
	})
	return globalValidationEngine
}

// AddRule adds a validation rule to the engine
func (ve *ValidationEngine) AddRule(rule ValidationRule) {
	ve.mu.Lock()
	defer ve.mu.Unlock()
	ve.rules = append(ve.rules, rule)
}

// RemoveRule removes a validation rule by name
func (ve *ValidationEngine) RemoveRule(name string) bool {
	ve.mu.Lock()
	defer ve.mu.Unlock()

	for i, rule := range ve.rules {
		if rule.Name() == name {
			ve.rules = append(ve.rules[:i], ve.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Validate runs all validation rules and returns warnings.
// Warnings a rule leaves without a known severity are reported as
// SeverityWarning.
func (ve *ValidationEngine) Validate(d Descriptor, req *ChatRequest) []ValidationWarning {
	ve.mu.RLock()
	defer ve.mu.RUnlock()

	var warnings []ValidationWarning
	for _, rule := range ve.rules {
		for _, w := range rule.Check(d, req) {
			switch w.Severity {
			case SeverityInfo, SeverityWarning, SeverityError:
			default:
				w.Severity = SeverityWarning
			}
			warnings = append(warnings, w)
		}
	}
	return warnings
}

// FilterWarningsBySeverity returns warnings matching the specified severities
func FilterWarningsBySeverity(warnings []ValidationWarning, severities ...Severity) []ValidationWarning {
	filtered := make([]ValidationWarning, 0)
	severityMap := make(map[Severity]bool)
	for _, s := range severities {
		severityMap[s] = true
	}

	for _, w := range warnings {
		if severityMap[w.Severity] {
			filtered = append(filtered, w)
		}
	}
	return filtered
}
