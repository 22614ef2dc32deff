package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/openai/openai-go"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// aggCall aggregates partial tool call deltas (id, name, arguments) until the
// choice finishes.
type aggCall struct {
	id   string
	name string
	args strings.Builder
}

// InvokeChatStream streams a chat completion.
//
// Text deltas are relayed as they arrive; tool calls are emitted once the
// choice finishes because their arguments arrive in fragments.
func (a *Adapter) InvokeChatStream(ctx context.Context, req *deployment.ChatRequest) (*deployment.Stream, error) {
	model := req.Model(a.desc.DefaultModel())
	params, err := buildParams(req, model)
	if err != nil {
		return nil, err
	}

	logger := a.logger.With("model", model)
	return deployment.NewStream(ctx, func(ctx context.Context, yield func(deployment.Event) bool) error {
		return a.relay(ctx, logger, params, req, yield)
	}), nil
}

func (a *Adapter) relay(ctx context.Context, logger *slog.Logger, params openai.ChatCompletionNewParams, req *deployment.ChatRequest, yield func(deployment.Event) bool) error {
	stream := a.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	generationID := ""
	started := false
	open := func(id string) bool {
		if started {
			return true
		}
		started = true
		if id == "" {
			id = uuid.NewString()
		}
		generationID = id
		return yield(deployment.StreamStartEvent(id))
	}

	calls := make(map[int64]*aggCall)
	finishReason := ""
	chunks := 0

	for stream.Next() {
		ck := stream.Current()
		chunks++

		if !open(ck.ID) {
			return ctx.Err()
		}

		// Only the first choice is relayed; n > 1 is never requested.
		for _, ch := range ck.Choices {
			if ch.Index != 0 {
				continue
			}

			if ch.Delta.Content != "" {
				if !yield(deployment.TextEvent(ch.Delta.Content)) {
					return ctx.Err()
				}
			}

			for _, tc := range ch.Delta.ToolCalls {
				ac, ok := calls[tc.Index]
				if !ok {
					ac = &aggCall{}
					calls[tc.Index] = ac
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				ac.args.WriteString(tc.Function.Arguments)
			}

			if ch.FinishReason != "" {
				finishReason = string(ch.FinishReason)
			}
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := stream.Err(); err != nil {
		err = mapError(a.provider, err)
		logger.Warn("chat completion stream failed", "error", err, "chunks", chunks)
		if !open("") {
			return ctx.Err()
		}
		yield(deployment.StreamErrorEventFor(err))
		return nil
	}

	if !open("") {
		return ctx.Err()
	}

	toolCalls, err := collectToolCalls(calls)
	if err != nil {
		yield(deployment.StreamErrorEvent(deployment.ErrorKindAdapterFault, err.Error()))
		return nil
	}
	if len(toolCalls) > 0 && !yield(deployment.ToolCallsEvent(toolCalls...)) {
		return ctx.Err()
	}

	logger.Debug("chat completion stream finished",
		"finish_reason", finishReason,
		"chunks", chunks,
		"tool_calls", len(toolCalls),
	)

	yield(deployment.StreamEndEvent(deployment.StreamEndPayload{
		GenerationID: generationID,
		FinishReason: deployment.ParseFinishReason(finishReason),
		Documents:    req.Params.Documents,
	}))
	return nil
}

// collectToolCalls orders aggregated calls by stream index and checks that
// every argument payload is valid JSON.
func collectToolCalls(calls map[int64]*aggCall) ([]deployment.ToolCall, error) {
	indexes := make([]int64, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	out := make([]deployment.ToolCall, 0, len(calls))
	for _, idx := range indexes {
		ac := calls[idx]
		args := ac.args.String()
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			return nil, fmt.Errorf("invalid tool call arguments at index %d: received malformed JSON %q", idx, args)
		}
		out = append(out, deployment.ToolCall{
			ID:         ac.id,
			Name:       ac.name,
			Parameters: json.RawMessage(args),
		})
	}
	return out, nil
}
