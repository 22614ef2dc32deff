package deployment

import (
	"fmt"
	"strings"
)

// Role identifies the author of a chat history entry.
type Role string

const (
	RoleUser    Role = "USER"
	RoleChatbot Role = "CHATBOT"
	RoleSystem  Role = "SYSTEM"
	RoleTool    Role = "TOOL"
)

// ParseRole accepts both the canonical upper-case roles and the lower-case
// spellings used by OpenAI-style clients ("user", "assistant", "system").
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "chatbot", "assistant":
		return RoleChatbot, nil
	case "system":
		return RoleSystem, nil
	case "tool":
		return RoleTool, nil
	default:
		return "", &ValidationError{Field: "role", Value: s, Reason: "unknown role"}
	}
}

// ChatMessage is one entry of the chat history.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"message"`
}

// ChatRequest describes one generation.
//
// A ChatRequest is immutable once built with NewChatRequest: the constructor
// copies every slice and pointer it is given, and adapters must treat the
// request as read-only. It is owned by the caller for one invocation.
type ChatRequest struct {
	// Message is the new user message
	Message string `json:"message"`

	// ChatHistory is the prior conversation, oldest first
	ChatHistory []ChatMessage `json:"chat_history,omitempty"`

	// Params holds the optional generation parameters
	Params ChatParams `json:"params"`
}

// NewChatRequest builds an immutable ChatRequest from caller-owned values.
func NewChatRequest(message string, history []ChatMessage, params ChatParams) *ChatRequest {
	return &ChatRequest{
		Message:     message,
		ChatHistory: cloneHistory(history),
		Params:      params.Clone(),
	}
}

// Model returns the requested model, falling back to defaultModel.
func (r *ChatRequest) Model(defaultModel string) string {
	return r.Params.GetModel(defaultModel)
}

// Messages returns the full conversation as the adapter should send it:
// history followed by the new user message.
func (r *ChatRequest) Messages() []ChatMessage {
	out := make([]ChatMessage, 0, len(r.ChatHistory)+1)
	out = append(out, r.ChatHistory...)
	if r.Message != "" {
		out = append(out, ChatMessage{Role: RoleUser, Content: r.Message})
	}
	return out
}

// ValidateChatRequest checks a request before it is handed to an adapter.
// Failures are programmer errors and are reported before any event is produced.
func ValidateChatRequest(req *ChatRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Value: nil, Reason: "request is nil"}
	}

	if strings.TrimSpace(req.Message) == "" && len(req.ChatHistory) == 0 {
		return &ValidationError{Field: "message", Value: req.Message, Reason: "message is required"}
	}

	for i, msg := range req.ChatHistory {
		switch msg.Role {
		case RoleUser, RoleChatbot, RoleSystem, RoleTool:
		default:
			return &ValidationError{
				Field:  fmt.Sprintf("chat_history[%d].role", i),
				Value:  msg.Role,
				Reason: "unknown role",
			}
		}
	}

	return ValidateChatParams(&req.Params)
}

func cloneHistory(history []ChatMessage) []ChatMessage {
	if history == nil {
		return nil
	}
	out := make([]ChatMessage, len(history))
	copy(out, history)
	return out
}
