package openai

import (
	"fmt"

	"github.com/openai/openai-go"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// buildMessages converts the request conversation into chat messages.
// The preamble and grounding documents lead as system messages. TOOL history
// entries carry no call id here, so they are replayed as user messages.
func buildMessages(req *deployment.ChatRequest) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	if preamble := req.Params.GetPreamble(); preamble != "" {
		messages = append(messages, openai.SystemMessage(preamble))
	}
	if docs := deployment.FormatDocuments(req.Params.Documents); docs != "" {
		messages = append(messages, openai.SystemMessage(docs))
	}

	for _, msg := range req.Messages() {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case deployment.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case deployment.RoleChatbot:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case deployment.RoleTool:
			messages = append(messages, openai.UserMessage("Tool result:\n"+msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}

// buildParams assembles the request parameters including tool definitions.
func buildParams(req *deployment.ChatRequest, model string) (openai.ChatCompletionNewParams, error) {
	messages := buildMessages(req)
	if len(messages) == 0 {
		return openai.ChatCompletionNewParams{}, &deployment.ValidationError{
			Field:  "message",
			Value:  req.Message,
			Reason: "no messages to send",
		}
	}

	p := &req.Params

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               model,
		MaxCompletionTokens: openai.Int(int64(p.GetMaxTokens(deployment.DefaultMaxTokens))),
	}

	if p.Temperature != nil {
		params.Temperature = openai.Float(*p.Temperature)
	}
	if p.TopP != nil {
		params.TopP = openai.Float(*p.TopP)
	}
	if p.Seed != nil {
		params.Seed = openai.Int(int64(*p.Seed))
	}
	if len(p.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: p.Stop}
	}

	if len(p.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(p.Tools))
		for i, tool := range p.Tools {
			if err := tool.Validate(); err != nil {
				return openai.ChatCompletionNewParams{}, fmt.Errorf("tool %d (%s): %w", i, tool.Function.Name, err)
			}
			tools[i] = openai.ChatCompletionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Function.Name,
					Description: openai.String(tool.Function.Description),
					Parameters:  tool.Function.Parameters,
				},
			}
		}
		params.Tools = tools
	}

	return params, nil
}
