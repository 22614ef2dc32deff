package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// chunks renders chat.completion.chunk payloads as a server-sent event body.
func chunks(payloads ...string) string {
	var sb strings.Builder
	for _, p := range payloads {
		fmt.Fprintf(&sb, "data: %s\n\n", p)
	}
	sb.WriteString("data: [DONE]\n\n")
	return sb.String()
}

type recordedRequest struct {
	path string
	body map[string]any
}

func newTestAdapter(t *testing.T, status int, contentType, body string) (*Adapter, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &rec.body)

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("x-should-retry", "false")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client := openai.NewClient(
		option.WithAPIKey("sk-test"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
	return NewAdapterFromClient(&client, Config{Name: "openrouter", SearchQueries: true}), rec
}

func TestNewAdapter(t *testing.T) {
	_, err := NewAdapter(Config{})
	assert.ErrorIs(t, err, deployment.ErrInvalidAPIKey)

	a, err := NewAdapter(Config{APIKey: "sk-test", BaseURL: "https://openrouter.ai/api/v1", Models: []string{"openai/gpt-4o-mini"}})
	require.NoError(t, err)
	assert.True(t, a.IsAvailable())
	assert.True(t, a.IsAvailable(), "availability must be stable across calls")

	d := a.Descriptor()
	assert.Equal(t, "openai", d.Name)
	assert.Equal(t, []string{"openai/gpt-4o-mini"}, d.Models)
	assert.False(t, d.RerankEnabled)
	assert.False(t, d.SearchQueriesEnabled)

	_, err = a.InvokeSearchQueries(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, deployment.ErrUnsupportedOperation)

	_, err = a.InvokeRerank(context.Background(), "hi", []deployment.Document{{ID: "1"}})
	assert.ErrorIs(t, err, deployment.ErrUnsupportedOperation)
}

func TestBuildParams(t *testing.T) {
	preamble := "Be concise."
	temperature := 0.5
	maxTokens := 128
	req := deployment.NewChatRequest("And now?", []deployment.ChatMessage{
		{Role: deployment.RoleUser, Content: "Hi"},
		{Role: deployment.RoleChatbot, Content: "Hello!"},
		{Role: deployment.RoleTool, Content: "42"},
	}, deployment.ChatParams{
		Preamble:    &preamble,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Documents:   []deployment.Document{{ID: "doc-1", Fields: map[string]string{"text": "Go is fun"}}},
		Tools:       []deployment.Tool{*deployment.NewSearchTool()},
		Stop:        []string{"END", "\n\n"},
	})

	params, err := buildParams(req, "gpt-4o-mini")
	require.NoError(t, err)

	// preamble, documents, user, assistant, tool result, user
	assert.Len(t, params.Messages, 6)
	assert.Equal(t, "gpt-4o-mini", string(params.Model))
	assert.Equal(t, 0.5, params.Temperature.Value)
	assert.Equal(t, int64(128), params.MaxCompletionTokens.Value)
	assert.Equal(t, []string{"END", "\n\n"}, params.Stop.OfStringArray)

	require.Len(t, params.Tools, 1)
	assert.Equal(t, deployment.ToolNameWebSearch, params.Tools[0].Function.Name)
}

func TestBuildParams_InvalidTool(t *testing.T) {
	req := &deployment.ChatRequest{
		Message: "hi",
		Params:  deployment.ChatParams{Tools: []deployment.Tool{{Type: "function"}}},
	}
	_, err := buildParams(req, "gpt-4o-mini")
	assert.Error(t, err)
}

func TestInvokeChatStream(t *testing.T) {
	body := chunks(
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":"Hello"},"finish_reason":null}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":" there"},"finish_reason":null}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{},"finish_reason":"length"}]}`,
	)
	a, rec := newTestAdapter(t, http.StatusOK, "text/event-stream", body)

	stream, err := a.InvokeChatStream(context.Background(), deployment.NewChatRequest("Hi", nil, deployment.ChatParams{
		Stop: []string{"END"},
	}))
	require.NoError(t, err)
	events, err := stream.Collect()
	require.NoError(t, err)

	require.Len(t, events, 4)
	assert.Equal(t, deployment.StreamStartEvent("chatcmpl-1"), events[0])
	assert.Equal(t, "Hello", events[1].Text)
	assert.Equal(t, " there", events[2].Text)
	assert.Equal(t, deployment.EventTypeStreamEnd, events[3].Type)
	assert.Equal(t, deployment.FinishReasonMaxTokens, events[3].FinishReason)
	assert.Equal(t, "chatcmpl-1", events[3].GenerationID)

	assert.True(t, strings.HasSuffix(rec.path, "/chat/completions"), rec.path)
	assert.Equal(t, true, rec.body["stream"])
	assert.Equal(t, DefaultModels[0], rec.body["model"])
	assert.Equal(t, []any{"END"}, rec.body["stop"])
}

func TestInvokeChatStream_ToolCalls(t *testing.T) {
	body := chunks(
		`{"id":"chatcmpl-2","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{\"key\""}}]},"finish_reason":null}]}`,
		`{"id":"chatcmpl-2","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":":\"v\"}"}}]},"finish_reason":"tool_calls"}]}`,
	)
	a, _ := newTestAdapter(t, http.StatusOK, "text/event-stream", body)

	stream, err := a.InvokeChatStream(context.Background(), deployment.NewChatRequest("Hi", nil, deployment.ChatParams{}))
	require.NoError(t, err)
	events, err := stream.Collect()
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, deployment.EventTypeToolCalls, events[1].Type)
	require.Len(t, events[1].ToolCalls, 1)

	call := events[1].ToolCalls[0]
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "lookup", call.Name)
	assert.JSONEq(t, `{"key":"v"}`, string(call.Parameters))

	assert.Equal(t, deployment.FinishReasonComplete, events[2].FinishReason)
}

func TestInvokeChatStream_UpstreamError(t *testing.T) {
	a, _ := newTestAdapter(t, http.StatusUnauthorized, "application/json",
		`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)

	stream, err := a.InvokeChatStream(context.Background(), deployment.NewChatRequest("Hi", nil, deployment.ChatParams{}))
	require.NoError(t, err)
	events, err := stream.Collect()
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, deployment.EventTypeStreamStart, events[0].Type)
	assert.NotEmpty(t, events[0].GenerationID)
	require.Equal(t, deployment.EventTypeStreamError, events[1].Type)
	assert.Equal(t, deployment.ErrorKindUnauthorized, events[1].Error.Kind)
}

func TestInvokeSearchQueries(t *testing.T) {
	body := `{"id":"chatcmpl-3","object":"chat.completion","created":1,"model":"gpt-4o-mini",` +
		`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"1. go release notes\n2. go 1.25 features\n"}}]}`
	a, rec := newTestAdapter(t, http.StatusOK, "application/json", body)

	queries, err := a.InvokeSearchQueries(context.Background(), "What's new in Go?", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"go release notes", "go 1.25 features"}, queries)

	messages, ok := rec.body["messages"].([]any)
	require.True(t, ok)
	first, ok := messages[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, deployment.SearchQueriesInstruction, first["content"])
}

func TestMapError(t *testing.T) {
	err := mapError("openai", &openai.Error{StatusCode: 429})
	assert.ErrorIs(t, err, deployment.ErrRateLimited)
	assert.Equal(t, deployment.ErrorKindRateLimited, deployment.ErrorKindFor(err))

	err = mapError("openai", &openai.Error{StatusCode: 502})
	assert.Equal(t, deployment.ErrorKindTransient, deployment.ErrorKindFor(err))

	err = mapError("openai", errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, deployment.ErrProviderUnavailable)
	assert.True(t, deployment.IsRetryable(err))

	assert.ErrorIs(t, mapError("openai", context.Canceled), context.Canceled)
	assert.NoError(t, mapError("openai", nil))
}
