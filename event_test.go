package deployment

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestStreamEndEvent_Defaults(t *testing.T) {
	ev := StreamEndEvent(StreamEndPayload{GenerationID: "g"})

	if ev.Type != EventTypeStreamEnd {
		t.Errorf("Type = %s, want %s", ev.Type, EventTypeStreamEnd)
	}
	if ev.FinishReason != FinishReasonComplete {
		t.Errorf("FinishReason = %s, want %s", ev.FinishReason, FinishReasonComplete)
	}
	if ev.Citations == nil || ev.Documents == nil || ev.SearchResults == nil || ev.SearchQueries == nil {
		t.Error("stream-end sequences should default to empty, not nil")
	}
	if !ev.IsTerminal() {
		t.Error("stream-end should be terminal")
	}
}

func TestParseFinishReason(t *testing.T) {
	tests := map[string]FinishReason{
		"end_turn":       FinishReasonComplete,
		"stop":           FinishReasonComplete,
		"tool_use":       FinishReasonComplete,
		"":               FinishReasonComplete,
		"max_tokens":     FinishReasonMaxTokens,
		"length":         FinishReasonMaxTokens,
		"MAX_TOKENS":     FinishReasonMaxTokens,
		"content_filter": FinishReasonError,
		"refusal":        FinishReasonError,
		"cancelled":      FinishReasonCancelled,
	}
	for in, want := range tests {
		if got := ParseFinishReason(in); got != want {
			t.Errorf("ParseFinishReason(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestEvent_IsTerminal(t *testing.T) {
	tests := []struct {
		ev   Event
		want bool
	}{
		{StreamStartEvent("g"), false},
		{TextEvent("x"), false},
		{CitationsEvent(), false},
		{StreamErrorEvent(ErrorKindTransient, "x"), true},
	}
	for _, tt := range tests {
		if got := tt.ev.IsTerminal(); got != tt.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.ev.Type, got, tt.want)
		}
	}
}

func TestStreamErrorEventFor(t *testing.T) {
	ev := StreamErrorEventFor(ErrRateLimited)
	if ev.Error == nil {
		t.Fatal("stream-error has no error payload")
	}
	if ev.Error.Kind != ErrorKindRateLimited {
		t.Errorf("Kind = %s, want %s", ev.Error.Kind, ErrorKindRateLimited)
	}
	if ev.Error.Message != ErrRateLimited.Error() {
		t.Errorf("Message = %q, want %q", ev.Error.Message, ErrRateLimited.Error())
	}
	if want := "RATE_LIMITED: " + ErrRateLimited.Error(); ev.Error.Error() != want {
		t.Errorf("Error() = %q, want %q", ev.Error.Error(), want)
	}
}

func TestDocument_Text(t *testing.T) {
	doc := Document{ID: "d", Fields: map[string]string{"title": "Go", "snippet": "A language"}}
	if got, want := doc.Text(), "snippet: A language\ntitle: Go"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
	if got := (Document{ID: "empty"}).Text(); got != "" {
		t.Errorf("Text() of a document without fields = %q, want empty", got)
	}
}

func TestFormatDocuments(t *testing.T) {
	if got := FormatDocuments(nil); got != "" {
		t.Errorf("FormatDocuments(nil) = %q, want empty", got)
	}

	got := FormatDocuments([]Document{
		{ID: "go", Fields: map[string]string{"title": "Go"}},
		{ID: "rust", Fields: map[string]string{"title": "Rust"}},
	})
	want := "Answer using the following documents where relevant.\n" +
		"\n<document id=\"go\">\ntitle: Go\n</document>\n" +
		"\n<document id=\"rust\">\ntitle: Rust\n</document>\n"
	if got != want {
		t.Errorf("FormatDocuments() = %q, want %q", got, want)
	}
	if strings.Index(got, `"go"`) > strings.Index(got, `"rust"`) {
		t.Error("documents should keep their order")
	}
}

func TestEvent_JSON(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{TextEvent("hello"), `{"event_type":"text-generation","text":"hello"}`},
		{StreamErrorEvent(ErrorKindTimeout, "slow"), `{"event_type":"stream-error","error":{"kind":"TIMEOUT","message":"slow"}}`},
	}
	for _, tt := range tests {
		raw, err := json.Marshal(tt.ev)
		if err != nil {
			t.Fatalf("Marshal(%s) error = %v", tt.ev.Type, err)
		}
		var got, want any
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", raw, err)
		}
		if err := json.Unmarshal([]byte(tt.want), &want); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Marshal(%s) = %s, want %s", tt.ev.Type, raw, tt.want)
		}
	}
}
