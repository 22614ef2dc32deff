package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	deployment "github.com/haowjy/meridian-deploy-go"
)

func TestNewAdapter_RequiresAPIKey(t *testing.T) {
	_, err := NewAdapter(Config{})
	if !errors.Is(err, deployment.ErrInvalidAPIKey) {
		t.Fatalf("NewAdapter() error = %v, want ErrInvalidAPIKey", err)
	}
}

func TestNewAdapter_Descriptor(t *testing.T) {
	a, err := NewAdapter(Config{Name: "claude", APIKey: "sk-test", SearchQueries: true})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	d := a.Descriptor()
	if d.Name != "claude" {
		t.Errorf("expected name 'claude', got %q", d.Name)
	}
	if d.RerankEnabled {
		t.Error("anthropic should not advertise rerank")
	}
	if !d.SearchQueriesEnabled {
		t.Error("expected search queries enabled")
	}
	if d.DefaultModel() != DefaultModels[0] {
		t.Errorf("default model = %q, want %q", d.DefaultModel(), DefaultModels[0])
	}
	if !a.IsAvailable() {
		t.Error("adapter with an API key should be available")
	}

	_, err = a.InvokeRerank(context.Background(), "q", []deployment.Document{{ID: "1"}})
	if !errors.Is(err, deployment.ErrUnsupportedOperation) {
		t.Errorf("InvokeRerank() error = %v, want ErrUnsupportedOperation", err)
	}
}

func TestInvokeChatStream_RejectsForeignModel(t *testing.T) {
	a, err := NewAdapter(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	gpt := "gpt-4o"
	req := deployment.NewChatRequest("Hello", nil, deployment.ChatParams{Model: &gpt})
	if _, err := a.InvokeChatStream(context.Background(), req); !errors.Is(err, deployment.ErrInvalidRequest) {
		t.Errorf("InvokeChatStream() error = %v, want ErrInvalidRequest", err)
	}
}

func TestSplitHistory(t *testing.T) {
	history := []deployment.ChatMessage{
		{Role: deployment.RoleSystem, Content: "Be brief."},
		{Role: deployment.RoleUser, Content: "Hi"},
		{Role: deployment.RoleUser, Content: "Are you there?"},
		{Role: deployment.RoleChatbot, Content: "Yes."},
		{Role: deployment.RoleTool, Content: "42"},
		{Role: deployment.RoleUser, Content: "Thanks"},
	}

	system, turns := splitHistory(history)

	if len(system) != 1 || system[0] != "Be brief." {
		t.Errorf("system = %v, want [Be brief.]", system)
	}

	expectedRoles := []string{"user", "assistant", "user"}
	if len(turns) != len(expectedRoles) {
		t.Fatalf("expected %d turns, got %d", len(expectedRoles), len(turns))
	}
	for i, expected := range expectedRoles {
		if string(turns[i].role) != expected {
			t.Errorf("turn %d: expected role %s, got %s", i, expected, turns[i].role)
		}
	}

	if len(turns[0].texts) != 2 {
		t.Errorf("consecutive user messages should merge, got %v", turns[0].texts)
	}
	if len(turns[2].texts) != 2 || !strings.HasPrefix(turns[2].texts[0], "Tool result:") {
		t.Errorf("tool result should merge into the following user turn, got %v", turns[2].texts)
	}
}

func TestBuildMessageParams(t *testing.T) {
	temperature := 1.7
	preamble := "You are a helpful assistant."
	topK := 5
	req := deployment.NewChatRequest("What is Go?", []deployment.ChatMessage{
		{Role: deployment.RoleSystem, Content: "Answer in English."},
	}, deployment.ChatParams{
		Temperature: &temperature,
		Preamble:    &preamble,
		TopK:        &topK,
		Stop:        []string{"END"},
		Documents: []deployment.Document{
			{ID: "doc-1", Fields: map[string]string{"title": "Go"}},
		},
	})

	apiParams, err := buildMessageParams(req, "claude-sonnet-4-5", false)
	if err != nil {
		t.Fatalf("buildMessageParams() error = %v", err)
	}

	if string(apiParams.Model) != "claude-sonnet-4-5" {
		t.Errorf("model = %s", apiParams.Model)
	}
	if apiParams.MaxTokens != deployment.DefaultMaxTokens {
		t.Errorf("max tokens = %d, want %d", apiParams.MaxTokens, deployment.DefaultMaxTokens)
	}
	if apiParams.Temperature.Value != maxTemperature {
		t.Errorf("temperature should be clamped to %v, got %v", maxTemperature, apiParams.Temperature.Value)
	}
	if apiParams.TopK.Value != 5 {
		t.Errorf("top_k = %d, want 5", apiParams.TopK.Value)
	}
	if len(apiParams.StopSequences) != 1 || apiParams.StopSequences[0] != "END" {
		t.Errorf("stop sequences = %v", apiParams.StopSequences)
	}

	if len(apiParams.System) != 3 {
		t.Fatalf("expected preamble, system message and documents in system prompt, got %d blocks", len(apiParams.System))
	}
	if apiParams.System[0].Text != preamble {
		t.Errorf("first system block = %q, want preamble", apiParams.System[0].Text)
	}
	if !strings.Contains(apiParams.System[2].Text, `<document id="doc-1">`) {
		t.Errorf("documents block missing document: %q", apiParams.System[2].Text)
	}

	if len(apiParams.Messages) != 1 || apiParams.Messages[0].Role != anthropic.MessageParamRoleUser {
		t.Errorf("expected one user message, got %+v", apiParams.Messages)
	}
}

func TestBuildMessageParams_NothingToSend(t *testing.T) {
	req := &deployment.ChatRequest{
		ChatHistory: []deployment.ChatMessage{{Role: deployment.RoleSystem, Content: "only system"}},
	}

	_, err := buildMessageParams(req, "claude-sonnet-4-5", false)
	if !errors.Is(err, deployment.ErrInvalidRequest) {
		t.Errorf("buildMessageParams() error = %v, want ErrInvalidRequest", err)
	}
}

func TestConvertTools(t *testing.T) {
	custom, err := deployment.NewCustomTool("lookup", "Look up a key", map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key": map[string]interface{}{"type": "string"},
		},
		"required":             []string{"key"},
		"additionalProperties": false,
	})
	if err != nil {
		t.Fatalf("NewCustomTool() error = %v", err)
	}
	tools := []deployment.Tool{*deployment.NewSearchTool(), *custom}

	t.Run("server web search", func(t *testing.T) {
		result, err := convertTools(tools, true)
		if err != nil {
			t.Fatalf("convertTools() error = %v", err)
		}
		if len(result) != 2 {
			t.Fatalf("expected 2 tools, got %d", len(result))
		}
		if result[0].OfWebSearchTool20250305 == nil {
			t.Error("web_search should map to the server web search tool")
		}

		fn := result[1].OfTool
		if fn == nil {
			t.Fatal("custom tool should map to a function tool")
		}
		if fn.Name != "lookup" {
			t.Errorf("tool name = %q", fn.Name)
		}
		if fn.Description.Value != "Look up a key" {
			t.Errorf("tool description = %q", fn.Description.Value)
		}
		if len(fn.InputSchema.Required) != 1 || fn.InputSchema.Required[0] != "key" {
			t.Errorf("required = %v", fn.InputSchema.Required)
		}
		if _, ok := fn.InputSchema.ExtraFields["additionalProperties"]; !ok {
			t.Error("additionalProperties should be carried in ExtraFields")
		}
	})

	t.Run("client web search", func(t *testing.T) {
		result, err := convertTools(tools, false)
		if err != nil {
			t.Fatalf("convertTools() error = %v", err)
		}
		if result[0].OfTool == nil || result[0].OfTool.Name != deployment.ToolNameWebSearch {
			t.Error("web_search should be a function tool when server search is disabled")
		}
	})

	t.Run("invalid tool", func(t *testing.T) {
		_, err := convertTools([]deployment.Tool{{Type: "function"}}, false)
		if err == nil {
			t.Error("expected error for tool without a name")
		}
	})
}

const searchMessageJSON = `{
	"id": "msg_1",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-5",
	"content": [
		{"type": "server_tool_use", "id": "srvtoolu_1", "name": "web_search", "input": {"query": "go release"}},
		{"type": "web_search_tool_result", "tool_use_id": "srvtoolu_1", "content": [
			{"type": "web_search_result", "title": "Go", "url": "https://go.dev", "encrypted_content": "abc", "page_age": null}
		]},
		{"type": "text", "text": "Go 1.25 is out.", "citations": [
			{"type": "web_search_result_location", "cited_text": "Go 1.25", "url": "https://go.dev", "title": "Go", "encrypted_index": "xyz"}
		]},
		{"type": "tool_use", "id": "toolu_1", "name": "lookup", "input": {"key": "v"}}
	],
	"stop_reason": "tool_use",
	"stop_sequence": null,
	"usage": {"input_tokens": 10, "output_tokens": 5}
}`

func TestSummarize(t *testing.T) {
	var msg anthropic.Message
	if err := json.Unmarshal([]byte(searchMessageJSON), &msg); err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}

	s := summarize(&msg)

	if len(s.queries) != 1 || s.queries[0].Text != "go release" || s.queries[0].GenerationID != "msg_1" {
		t.Errorf("queries = %+v", s.queries)
	}

	if len(s.documents) != 1 || s.documents[0].ID != "https://go.dev" || s.documents[0].Fields["title"] != "Go" {
		t.Errorf("documents = %+v", s.documents)
	}

	if len(s.searchResults) != 1 {
		t.Fatalf("expected 1 search result, got %d", len(s.searchResults))
	}
	if s.searchResults[0].SearchQuery.Text != "go release" || s.searchResults[0].DocumentIDs[0] != "https://go.dev" {
		t.Errorf("search result = %+v", s.searchResults[0])
	}

	if len(s.citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(s.citations))
	}
	c := s.citations[0]
	if c.Start != 0 || c.End != len("Go 1.25 is out.") || c.Text != "Go 1.25" || c.DocumentIDs[0] != "https://go.dev" {
		t.Errorf("citation = %+v", c)
	}

	if len(s.toolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(s.toolCalls))
	}
	call := s.toolCalls[0]
	if call.ID != "toolu_1" || call.Name != "lookup" {
		t.Errorf("tool call = %+v", call)
	}
	var input map[string]string
	if err := json.Unmarshal(call.Parameters, &input); err != nil || input["key"] != "v" {
		t.Errorf("tool call parameters = %s (%v)", call.Parameters, err)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind deployment.ErrorKind
		sentinel error
	}{
		{"rate limited", &anthropic.Error{StatusCode: 429}, deployment.ErrorKindRateLimited, deployment.ErrRateLimited},
		{"unauthorized", &anthropic.Error{StatusCode: 401}, deployment.ErrorKindUnauthorized, deployment.ErrInvalidAPIKey},
		{"overloaded", &anthropic.Error{StatusCode: 529}, deployment.ErrorKindTransient, deployment.ErrProviderUnavailable},
		{"bad request", &anthropic.Error{StatusCode: 400}, deployment.ErrorKindInvalidRequest, deployment.ErrInvalidRequest},
		{"wrapped", fmt.Errorf("stream: %w", &anthropic.Error{StatusCode: 504}), deployment.ErrorKindTimeout, deployment.ErrTimeout},
		{"transport", errors.New("connection reset by peer"), deployment.ErrorKindTransient, deployment.ErrProviderUnavailable},
		{"deadline", context.DeadlineExceeded, deployment.ErrorKindTimeout, context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err)
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("mapError() = %v, want wrapping %v", err, tt.sentinel)
			}
			if kind := deployment.ErrorKindFor(err); kind != tt.wantKind {
				t.Errorf("ErrorKindFor() = %s, want %s", kind, tt.wantKind)
			}
		})
	}

	if mapError(nil) != nil {
		t.Error("mapError(nil) should be nil")
	}
}

// sse renders server-sent events the way the Messages API streams them.
func sse(events ...string) string {
	var sb strings.Builder
	for i := 0; i+1 < len(events); i += 2 {
		fmt.Fprintf(&sb, "event: %s\ndata: %s\n\n", events[i], events[i+1])
	}
	return sb.String()
}

func newTestServer(t *testing.T, status int, body string) *Adapter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected request path %s", r.URL.Path)
		}
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("x-should-retry", "false")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client := anthropic.NewClient(
		option.WithAPIKey("sk-test"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
	return newAdapter(&client, Config{})
}

func TestInvokeChatStream(t *testing.T) {
	body := sse(
		"message_start", `{"type":"message_start","message":{"id":"msg_abc","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":1}}}`,
		"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		"ping", `{"type":"ping"}`,
		"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
		"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}`,
		"content_block_stop", `{"type":"content_block_stop","index":0}`,
		"message_delta", `{"type":"message_delta","delta":{"stop_reason":"max_tokens","stop_sequence":null},"usage":{"output_tokens":2}}`,
		"message_stop", `{"type":"message_stop"}`,
	)
	a := newTestServer(t, http.StatusOK, body)

	stream, err := a.InvokeChatStream(context.Background(), deployment.NewChatRequest("Hi", nil, deployment.ChatParams{}))
	if err != nil {
		t.Fatalf("InvokeChatStream() error = %v", err)
	}
	events, err := stream.Collect()
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}

	want := []deployment.EventType{
		deployment.EventTypeStreamStart,
		deployment.EventTypeTextGeneration,
		deployment.EventTypeTextGeneration,
		deployment.EventTypeStreamEnd,
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events (%+v), want %d", len(events), events, len(want))
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Errorf("event %d = %s, want %s", i, events[i].Type, typ)
		}
	}

	if events[0].GenerationID != "msg_abc" {
		t.Errorf("generation id = %q, want msg_abc", events[0].GenerationID)
	}
	if events[1].Text+events[2].Text != "Hello world" {
		t.Errorf("text = %q", events[1].Text+events[2].Text)
	}
	end := events[3]
	if end.FinishReason != deployment.FinishReasonMaxTokens {
		t.Errorf("finish reason = %s, want MAX_TOKENS", end.FinishReason)
	}
	if end.GenerationID != "msg_abc" {
		t.Errorf("stream-end generation id = %q", end.GenerationID)
	}
}

func TestInvokeChatStream_UpstreamError(t *testing.T) {
	a := newTestServer(t, http.StatusTooManyRequests,
		`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)

	stream, err := a.InvokeChatStream(context.Background(), deployment.NewChatRequest("Hi", nil, deployment.ChatParams{}))
	if err != nil {
		t.Fatalf("InvokeChatStream() error = %v", err)
	}
	events, err := stream.Collect()
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected start and error, got %+v", events)
	}
	if events[0].Type != deployment.EventTypeStreamStart || events[0].GenerationID == "" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != deployment.EventTypeStreamError {
		t.Fatalf("last event = %s, want stream-error", events[1].Type)
	}
	if events[1].Error.Kind != deployment.ErrorKindRateLimited {
		t.Errorf("error kind = %s, want RATE_LIMITED", events[1].Error.Kind)
	}
}
