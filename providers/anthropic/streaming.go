package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// InvokeChatStream streams a Claude response.
//
// Text deltas are relayed as they arrive. Search queries, citations and tool
// calls are only complete once the message is, so they are emitted after the
// text, right before StreamEnd. Upstream failures end the stream with a
// classified StreamError.
func (a *Adapter) InvokeChatStream(ctx context.Context, req *deployment.ChatRequest) (*deployment.Stream, error) {
	model := req.Model(a.desc.DefaultModel())
	if err := a.checkModel(model); err != nil {
		return nil, err
	}

	apiParams, err := buildMessageParams(req, model, a.desc.SearchQueriesEnabled)
	if err != nil {
		return nil, err
	}

	logger := a.logger.With("model", model)
	return deployment.NewStream(ctx, func(ctx context.Context, yield func(deployment.Event) bool) error {
		return a.relay(ctx, logger, apiParams, req, yield)
	}), nil
}

func (a *Adapter) relay(ctx context.Context, logger *slog.Logger, apiParams anthropic.MessageNewParams, req *deployment.ChatRequest, yield func(deployment.Event) bool) error {
	stream := a.client.Messages.NewStreaming(ctx, apiParams)
	defer stream.Close()

	// Accumulator for the final message (stop reason, tool use, citations)
	message := anthropic.Message{}
	started := false

	open := func(id string) bool {
		if started {
			return true
		}
		started = true
		if id == "" {
			id = uuid.NewString()
		}
		return yield(deployment.StreamStartEvent(id))
	}

	fail := func(err error) error {
		logger.Warn("anthropic stream failed", "error", err)
		if !open("") {
			return ctx.Err()
		}
		yield(deployment.StreamErrorEventFor(err))
		return nil
	}

	for stream.Next() {
		event := stream.Current()

		if err := message.Accumulate(event); err != nil {
			return fail(fmt.Errorf("failed to accumulate message: %w", err))
		}

		switch e := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			if !open(e.Message.ID) {
				return ctx.Err()
			}

		case anthropic.ContentBlockDeltaEvent:
			if e.Delta.Type != "text_delta" || e.Delta.Text == "" {
				continue
			}
			if !open("") || !yield(deployment.TextEvent(e.Delta.Text)) {
				return ctx.Err()
			}
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := stream.Err(); err != nil {
		return fail(mapError(err))
	}

	if !open(message.ID) {
		return ctx.Err()
	}

	result := summarize(&message)
	result.documents = append(append([]deployment.Document(nil), req.Params.Documents...), result.documents...)

	if len(result.queries) > 0 && !yield(deployment.SearchQueriesEvent(result.queries...)) {
		return ctx.Err()
	}
	if len(result.citations) > 0 && !yield(deployment.CitationsEvent(result.citations...)) {
		return ctx.Err()
	}
	if len(result.toolCalls) > 0 && !yield(deployment.ToolCallsEvent(result.toolCalls...)) {
		return ctx.Err()
	}

	finish := deployment.ParseFinishReason(string(message.StopReason))
	logger.Debug("anthropic stream finished",
		"stop_reason", message.StopReason,
		"input_tokens", message.Usage.InputTokens,
		"output_tokens", message.Usage.OutputTokens,
	)

	yield(deployment.StreamEndEvent(deployment.StreamEndPayload{
		GenerationID:  message.ID,
		FinishReason:  finish,
		Citations:     result.citations,
		Documents:     result.documents,
		SearchResults: result.searchResults,
		SearchQueries: result.queries,
	}))
	return nil
}

// summary is what a finished message contributes beyond its text.
type summary struct {
	queries       []deployment.SearchQuery
	citations     []deployment.Citation
	toolCalls     []deployment.ToolCall
	documents     []deployment.Document
	searchResults []deployment.SearchResult
}

// summarize walks the content blocks of a complete message.
//
// Citation offsets are byte offsets into the concatenated text blocks, which
// is exactly the text relayed as TextGeneration events. Web search results
// become documents keyed by URL.
func summarize(msg *anthropic.Message) summary {
	var s summary
	queriesByToolUse := make(map[string]deployment.SearchQuery)
	offset := 0

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			start, end := offset, offset+len(block.Text)
			offset = end
			for _, cite := range block.Citations {
				id := cite.URL
				if id == "" {
					id = cite.Source
				}
				if id == "" {
					continue
				}
				text := cite.CitedText
				if text == "" {
					text = block.Text
				}
				s.citations = append(s.citations, deployment.Citation{
					Start:       start,
					End:         end,
					Text:        text,
					DocumentIDs: []string{id},
				})
			}

		case "server_tool_use":
			if block.Name != deployment.ToolNameWebSearch {
				continue
			}
			q := deployment.SearchQuery{Text: inputField(block.Input, "query"), GenerationID: msg.ID}
			if q.Text == "" {
				continue
			}
			queriesByToolUse[block.ID] = q
			s.queries = append(s.queries, q)

		case "web_search_tool_result":
			var ids []string
			for _, source := range block.Content.OfWebSearchResultBlockArray {
				if source.URL == "" {
					continue
				}
				ids = append(ids, source.URL)
				s.documents = append(s.documents, deployment.Document{
					ID: source.URL,
					Fields: map[string]string{
						"title": source.Title,
						"url":   source.URL,
					},
				})
			}
			if q, ok := queriesByToolUse[block.ToolUseID]; ok && len(ids) > 0 {
				s.searchResults = append(s.searchResults, deployment.SearchResult{SearchQuery: q, DocumentIDs: ids})
			}

		case "tool_use":
			params, err := json.Marshal(block.Input)
			if err != nil || string(params) == "null" {
				params = []byte("{}")
			}
			s.toolCalls = append(s.toolCalls, deployment.ToolCall{
				ID:         block.ID,
				Name:       block.Name,
				Parameters: params,
			})
		}
	}

	return s
}

// inputField extracts a string field from a tool input payload.
func inputField(input any, field string) string {
	raw, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	s, _ := fields[field].(string)
	return s
}
