// Package deploymenttest provides test doubles and assertions for code that
// drives deployments.
package deploymenttest

import (
	"context"
	"sync/atomic"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// Step is one action of a scripted stream.
type Step struct {
	Event deployment.Event
	Err   error // return this error instead of yielding Event
	Panic any   // panic with this value instead of yielding Event
}

// Emit yields ev.
func Emit(ev deployment.Event) Step { return Step{Event: ev} }

// Fail makes the stream producer return err.
func Fail(err error) Step { return Step{Err: err} }

// Panic makes the stream producer panic with v.
func Panic(v any) Step { return Step{Panic: v} }

// ScriptedAdapter replays a fixed script, including misbehaviour that real
// adapters must never exhibit: missing or duplicate StreamStart, events after
// the terminal event, mid-stream errors and panics.
type ScriptedAdapter struct {
	Desc  deployment.Descriptor
	Steps []Step

	// InvokeErr is returned by InvokeChatStream instead of a stream.
	InvokeErr error
	// InvokePanic makes InvokeChatStream panic.
	InvokePanic any

	// Unavailable makes IsAvailable report false.
	Unavailable bool

	// Queries and Rerank are returned by the auxiliary operations.
	Queries []string
	Rerank  *deployment.RerankResult

	invocations  atomic.Int32
	availability atomic.Int32
	lastRequest  atomic.Pointer[deployment.ChatRequest]
}

var _ deployment.Adapter = (*ScriptedAdapter)(nil)

// NewScriptedAdapter creates an adapter named name that replays events.
func NewScriptedAdapter(name string, events ...deployment.Event) *ScriptedAdapter {
	steps := make([]Step, len(events))
	for i, ev := range events {
		steps[i] = Emit(ev)
	}
	return &ScriptedAdapter{
		Desc:  deployment.Descriptor{Name: name, Models: []string{"scripted"}},
		Steps: steps,
	}
}

// Descriptor returns Desc.
func (a *ScriptedAdapter) Descriptor() deployment.Descriptor { return a.Desc }

// ListModels returns the descriptor models.
func (a *ScriptedAdapter) ListModels() []string { return a.Desc.ModelsCopy() }

// IsAvailable reports !Unavailable and counts calls.
func (a *ScriptedAdapter) IsAvailable() bool {
	a.availability.Add(1)
	return !a.Unavailable
}

// InvokeChatStream replays Steps.
func (a *ScriptedAdapter) InvokeChatStream(ctx context.Context, req *deployment.ChatRequest) (*deployment.Stream, error) {
	a.invocations.Add(1)
	a.lastRequest.Store(req)

	if a.InvokePanic != nil {
		panic(a.InvokePanic)
	}
	if a.InvokeErr != nil {
		return nil, a.InvokeErr
	}

	steps := append([]Step(nil), a.Steps...)
	return deployment.NewStream(ctx, func(ctx context.Context, yield func(deployment.Event) bool) error {
		for _, step := range steps {
			switch {
			case step.Panic != nil:
				panic(step.Panic)
			case step.Err != nil:
				return step.Err
			}
			if !yield(step.Event) {
				return ctx.Err()
			}
		}
		return nil
	}), nil
}

// InvokeSearchQueries returns Queries, or an unsupported operation error when
// the descriptor disables search queries.
func (a *ScriptedAdapter) InvokeSearchQueries(ctx context.Context, message string, history []deployment.ChatMessage) ([]string, error) {
	if err := deployment.RequireSearchQueries(a.Desc); err != nil {
		return nil, err
	}
	return append([]string(nil), a.Queries...), nil
}

// InvokeRerank returns Rerank, or an unsupported operation error when the
// descriptor disables rerank.
func (a *ScriptedAdapter) InvokeRerank(ctx context.Context, query string, documents []deployment.Document) (*deployment.RerankResult, error) {
	if err := deployment.RequireRerank(a.Desc); err != nil {
		return nil, err
	}
	return a.Rerank, nil
}

// Invocations returns how many times InvokeChatStream was called.
func (a *ScriptedAdapter) Invocations() int { return int(a.invocations.Load()) }

// AvailabilityChecks returns how many times IsAvailable was called.
func (a *ScriptedAdapter) AvailabilityChecks() int { return int(a.availability.Load()) }

// LastRequest returns the request passed to the most recent InvokeChatStream.
func (a *ScriptedAdapter) LastRequest() *deployment.ChatRequest { return a.lastRequest.Load() }

// BlockingAdapter opens a stream and then waits for cancellation, reporting
// when its producer exits. It is used to check that closing a stream stops
// the adapter.
type BlockingAdapter struct {
	*ScriptedAdapter

	// Exited is closed when the producer returns.
	Exited chan struct{}
}

// NewBlockingAdapter creates a BlockingAdapter named name.
func NewBlockingAdapter(name string) *BlockingAdapter {
	return &BlockingAdapter{
		ScriptedAdapter: NewScriptedAdapter(name),
		Exited:          make(chan struct{}),
	}
}

// InvokeChatStream emits StreamStart and one text event, then blocks until ctx is done.
func (a *BlockingAdapter) InvokeChatStream(ctx context.Context, req *deployment.ChatRequest) (*deployment.Stream, error) {
	a.invocations.Add(1)
	return deployment.NewStream(ctx, func(ctx context.Context, yield func(deployment.Event) bool) error {
		defer close(a.Exited)
		if !yield(deployment.StreamStartEvent("blocking")) || !yield(deployment.TextEvent("waiting")) {
			return ctx.Err()
		}
		<-ctx.Done()
		return ctx.Err()
	}), nil
}
