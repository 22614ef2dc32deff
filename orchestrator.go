package deployment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// streamState tracks where a relayed stream is in its lifecycle.
type streamState int

const (
	stateNotStarted streamState = iota
	stateStarted
	stateTerminated
)

func (s streamState) String() string {
	switch s {
	case stateNotStarted:
		return "not_started"
	case stateStarted:
		return "started"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// protocolGuard enforces the event ordering contract on an adapter stream.
type protocolGuard struct {
	state streamState
}

// admit advances the state machine for ev. A non-empty return value
// describes the protocol violation ev represents.
func (g *protocolGuard) admit(ev Event) string {
	switch g.state {
	case stateNotStarted:
		if ev.Type != EventTypeStreamStart {
			return fmt.Sprintf("first event was %s, expected %s", ev.Type, EventTypeStreamStart)
		}
		g.state = stateStarted
	case stateStarted:
		if ev.Type == EventTypeStreamStart {
			return "duplicate " + string(EventTypeStreamStart)
		}
		if ev.IsTerminal() {
			g.state = stateTerminated
		}
	case stateTerminated:
		return fmt.Sprintf("%s received after terminal event", ev.Type)
	}
	return ""
}

// Orchestrator drives chat requests through registered adapters and
// guarantees every stream it returns is well formed: one StreamStart first,
// exactly one terminal event last, nothing afterwards.
type Orchestrator struct {
	registry  *Registry
	logger    *slog.Logger
	validator *ValidationEngine
	newID     func() string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the structured logger used for stream lifecycle logs.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithValidationEngine replaces the global validation engine.
func WithValidationEngine(engine *ValidationEngine) OrchestratorOption {
	return func(o *Orchestrator) {
		if engine != nil {
			o.validator = engine
		}
	}
}

// WithGenerationIDFunc sets the generator for synthesized StreamStart ids.
func WithGenerationIDFunc(fn func() string) OrchestratorOption {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// NewOrchestrator creates an orchestrator over registry.
func NewOrchestrator(registry *Registry, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry:  registry,
		logger:    slog.Default(),
		validator: GetValidationEngine(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run streams req through the deployment registered as deploymentName.
//
// Invalid requests and unknown or unavailable deployments are returned as
// errors before any event is produced. Every other failure is delivered as
// the final StreamError event; the returned stream never reports an adapter
// fault through Err. Err is non-nil only when the caller cancelled ctx.
//
// Closing the returned stream cancels the adapter's stream as well.
func (o *Orchestrator) Run(ctx context.Context, req *ChatRequest, deploymentName string) (*Stream, error) {
	adapter, err := o.registry.Resolve(deploymentName)
	if err != nil {
		return nil, err
	}

	if err := ValidateChatRequest(req); err != nil {
		return nil, err
	}

	desc := adapter.Descriptor()
	logger := o.logger.With(
		"deployment", deploymentName,
		"model", req.Model(desc.DefaultModel()),
	)

	logValidationWarnings(ctx, logger, o.validator.Validate(desc, req))

	return NewStream(ctx, func(ctx context.Context, yield func(Event) bool) error {
		return o.relay(ctx, logger, adapter, req, yield)
	}), nil
}

// warningLevels maps warning severities to log levels, most severe first.
var warningLevels = []struct {
	severity Severity
	level    slog.Level
}{
	{SeverityError, slog.LevelError},
	{SeverityWarning, slog.LevelWarn},
	{SeverityInfo, slog.LevelInfo},
}

// logValidationWarnings logs warnings grouped by severity. Warnings never
// block the request.
func logValidationWarnings(ctx context.Context, logger *slog.Logger, warnings []ValidationWarning) {
	if len(warnings) == 0 {
		return
	}
	for _, wl := range warningLevels {
		for _, w := range FilterWarningsBySeverity(warnings, wl.severity) {
			logger.Log(ctx, wl.level, "chat request warning",
				"code", w.Code,
				"severity", w.Severity,
				"field", w.Field,
				"message", w.Message,
			)
		}
	}
}

// relay copies events from the adapter to the consumer while enforcing the
// ordering contract and translating faults into terminal StreamError events.
func (o *Orchestrator) relay(ctx context.Context, logger *slog.Logger, adapter Adapter, req *ChatRequest, yield func(Event) bool) error {
	upstream, err := invokeChatStream(ctx, adapter, req)
	if err != nil {
		logger.Error("adapter rejected chat request", "error", err)
		if yield(StreamStartEvent(o.newID())) {
			yield(StreamErrorEvent(ErrorKindAdapterFault, err.Error()))
		}
		return nil
	}
	defer upstream.Close()

	var guard protocolGuard
	relayed := 0

	// fail ends the stream with a StreamError, opening it first if the
	// adapter never did.
	fail := func(kind ErrorKind, message string) error {
		if guard.state == stateNotStarted {
			if !yield(StreamStartEvent(o.newID())) {
				return ctx.Err()
			}
		}
		guard.state = stateTerminated
		if !yield(StreamErrorEvent(kind, message)) {
			return ctx.Err()
		}
		logger.Warn("chat stream terminated with error",
			"kind", kind,
			"message", message,
			"relayed", relayed,
		)
		return nil
	}

	for upstream.Next() {
		ev := upstream.Current()

		if violation := guard.admit(ev); violation != "" {
			return fail(ErrorKindProtocolViolation, violation)
		}

		if !yield(ev) {
			logger.Debug("chat stream cancelled by consumer", "relayed", relayed)
			return ctx.Err()
		}
		relayed++

		if guard.state == stateTerminated {
			logger.Debug("chat stream completed",
				"event_type", ev.Type,
				"finish_reason", ev.FinishReason,
				"relayed", relayed,
			)
			return nil
		}
	}

	// Cancellation is the consumer's doing; it is propagated, not translated.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := upstream.Err(); err != nil {
		return fail(ErrorKindAdapterFault, err.Error())
	}

	return fail(ErrorKindIncompleteStream, "adapter stream ended without a terminal event")
}

// invokeChatStream calls the adapter, converting a panic into an error.
func invokeChatStream(ctx context.Context, adapter Adapter, req *ChatRequest) (stream *Stream, err error) {
	defer func() {
		if r := recover(); r != nil {
			stream, err = nil, &PanicError{Value: r}
		}
	}()

	stream, err = adapter.InvokeChatStream(ctx, req)
	if err == nil && stream == nil {
		err = fmt.Errorf("adapter %s returned no stream", adapter.Descriptor().Name)
	}
	return stream, err
}

// SearchQueries resolves deploymentName and generates search queries.
func (o *Orchestrator) SearchQueries(ctx context.Context, deploymentName string, message string, history []ChatMessage) ([]string, error) {
	adapter, err := o.registry.Resolve(deploymentName)
	if err != nil {
		return nil, err
	}
	return adapter.InvokeSearchQueries(ctx, message, cloneHistory(history))
}

// Rerank resolves deploymentName and reranks documents against query.
func (o *Orchestrator) Rerank(ctx context.Context, deploymentName string, query string, documents []Document) (*RerankResult, error) {
	adapter, err := o.registry.Resolve(deploymentName)
	if err != nil {
		return nil, err
	}
	return adapter.InvokeRerank(ctx, query, documents)
}
