package deployment

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// EventType tags the payload carried by an Event.
type EventType string

// Event type constants. The string values are part of the wire surface that
// transport layers serialize, so they must not change.
const (
	EventTypeStreamStart    EventType = "stream-start"
	EventTypeTextGeneration EventType = "text-generation"
	EventTypeSearchQueries  EventType = "search-queries-generation"
	EventTypeToolCalls      EventType = "tool-calls-generation"
	EventTypeCitations      EventType = "citation-generation"
	EventTypeStreamEnd      EventType = "stream-end"
	EventTypeStreamError    EventType = "stream-error"
)

// FinishReason explains why a stream ended.
type FinishReason string

const (
	FinishReasonComplete  FinishReason = "COMPLETE"
	FinishReasonMaxTokens FinishReason = "MAX_TOKENS"
	FinishReasonError     FinishReason = "ERROR"
	FinishReasonCancelled FinishReason = "CANCELLED"
)

// ParseFinishReason maps the stop reasons reported by upstream providers
// ("end_turn", "stop", "length", "max_tokens", ...) onto FinishReason.
// Unrecognised values are treated as a normal completion.
func ParseFinishReason(s string) FinishReason {
	switch strings.ToLower(s) {
	case "max_tokens", "length", "max-tokens":
		return FinishReasonMaxTokens
	case "error", "content_filter", "refusal":
		return FinishReasonError
	case "cancelled", "canceled", "user_cancel":
		return FinishReasonCancelled
	default:
		return FinishReasonComplete
	}
}

// Citation links a span of generated text to the documents that support it.
type Citation struct {
	Start       int      `json:"start"`
	End         int      `json:"end"`
	Text        string   `json:"text"`
	DocumentIDs []string `json:"document_ids"`
}

// Document is a retrievable source the model may ground its answer on.
// Fields holds the document body ("title", "snippet", "url", ...).
type Document struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Text returns the document fields joined in a stable order, for adapters
// that need a flat string (prompting, reranking).
func (d Document) Text() string {
	if len(d.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(d.Fields[k])
	}
	return sb.String()
}

// FormatDocuments renders grounding documents as a system prompt block for
// providers without a native documents field. It returns "" for no documents.
func FormatDocuments(docs []Document) string {
	if len(docs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Answer using the following documents where relevant.\n")
	for _, doc := range docs {
		fmt.Fprintf(&sb, "\n<document id=%q>\n%s\n</document>\n", doc.ID, doc.Text())
	}
	return sb.String()
}

// SearchQuery is a query the model decided to issue against a retriever.
type SearchQuery struct {
	Text         string `json:"text"`
	GenerationID string `json:"generation_id,omitempty"`
}

// SearchResult ties a search query to the documents it returned.
type SearchResult struct {
	SearchQuery SearchQuery `json:"search_query"`
	DocumentIDs []string    `json:"document_ids"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// StreamError is the payload of a StreamError event.
type StreamError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *StreamError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Event is one unit of a chat response stream.
//
// Only the payload fields that belong to Type are populated:
//   - stream-start: GenerationID
//   - text-generation: Text
//   - search-queries-generation: SearchQueries
//   - tool-calls-generation: ToolCalls
//   - citation-generation: Citations
//   - stream-end: GenerationID, FinishReason, Citations, Documents, SearchResults, SearchQueries
//   - stream-error: Error
type Event struct {
	Type EventType `json:"event_type"`

	GenerationID string `json:"generation_id,omitempty"`
	Text         string `json:"text,omitempty"`

	SearchQueries []SearchQuery  `json:"search_queries,omitempty"`
	ToolCalls     []ToolCall     `json:"tool_calls,omitempty"`
	Citations     []Citation     `json:"citations,omitempty"`
	Documents     []Document     `json:"documents,omitempty"`
	SearchResults []SearchResult `json:"search_results,omitempty"`

	FinishReason FinishReason `json:"finish_reason,omitempty"`

	Error *StreamError `json:"error,omitempty"`
}

// IsTerminal reports whether the event ends a stream.
func (e Event) IsTerminal() bool {
	return e.Type == EventTypeStreamEnd || e.Type == EventTypeStreamError
}

// StreamStartEvent opens a stream for the given generation.
func StreamStartEvent(generationID string) Event {
	return Event{Type: EventTypeStreamStart, GenerationID: generationID}
}

// TextEvent carries one generated text fragment.
func TextEvent(text string) Event {
	return Event{Type: EventTypeTextGeneration, Text: text}
}

// SearchQueriesEvent reports generated search queries.
func SearchQueriesEvent(queries ...SearchQuery) Event {
	return Event{Type: EventTypeSearchQueries, SearchQueries: queries}
}

// ToolCallsEvent reports tool calls requested by the model.
func ToolCallsEvent(calls ...ToolCall) Event {
	return Event{Type: EventTypeToolCalls, ToolCalls: calls}
}

// CitationsEvent reports citations for text generated so far.
func CitationsEvent(citations ...Citation) Event {
	return Event{Type: EventTypeCitations, Citations: citations}
}

// StreamEndPayload collects the accumulated results reported by StreamEnd.
type StreamEndPayload struct {
	GenerationID  string
	FinishReason  FinishReason
	Citations     []Citation
	Documents     []Document
	SearchResults []SearchResult
	SearchQueries []SearchQuery
}

// StreamEndEvent closes a stream successfully. Nil sequences are normalised
// to empty ones so consumers can range without nil checks.
func StreamEndEvent(p StreamEndPayload) Event {
	if p.FinishReason == "" {
		p.FinishReason = FinishReasonComplete
	}
	if p.Citations == nil {
		p.Citations = []Citation{}
	}
	if p.Documents == nil {
		p.Documents = []Document{}
	}
	if p.SearchResults == nil {
		p.SearchResults = []SearchResult{}
	}
	if p.SearchQueries == nil {
		p.SearchQueries = []SearchQuery{}
	}
	return Event{
		Type:          EventTypeStreamEnd,
		GenerationID:  p.GenerationID,
		FinishReason:  p.FinishReason,
		Citations:     p.Citations,
		Documents:     p.Documents,
		SearchResults: p.SearchResults,
		SearchQueries: p.SearchQueries,
	}
}

// StreamErrorEvent closes a stream with an error.
func StreamErrorEvent(kind ErrorKind, message string) Event {
	return Event{Type: EventTypeStreamError, Error: &StreamError{Kind: kind, Message: message}}
}

// StreamErrorEventFor classifies err and wraps it in a StreamError event.
func StreamErrorEventFor(err error) Event {
	return StreamErrorEvent(ErrorKindFor(err), err.Error())
}
