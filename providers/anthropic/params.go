package anthropic

import (
	"github.com/anthropics/anthropic-sdk-go"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// maxTemperature is the upper bound the Messages API accepts.
const maxTemperature = 1.0

// turn is one Anthropic message before conversion to SDK params.
type turn struct {
	role  anthropic.MessageParamRole
	texts []string
}

// splitHistory separates system instructions from the conversation and
// merges consecutive messages of the same role, which the Messages API rejects.
// TOOL messages are sent as user turns.
func splitHistory(messages []deployment.ChatMessage) (system []string, turns []turn) {
	for _, msg := range messages {
		var role anthropic.MessageParamRole
		text := msg.Content

		switch msg.Role {
		case deployment.RoleSystem:
			if text != "" {
				system = append(system, text)
			}
			continue
		case deployment.RoleChatbot:
			role = anthropic.MessageParamRoleAssistant
		case deployment.RoleTool:
			role = anthropic.MessageParamRoleUser
			text = "Tool result:\n" + text
		default:
			role = anthropic.MessageParamRoleUser
		}

		if text == "" {
			continue
		}

		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].texts = append(turns[n-1].texts, text)
			continue
		}
		turns = append(turns, turn{role: role, texts: []string{text}})
	}
	return system, turns
}

// buildMessageParams constructs Anthropic API parameters from a ChatRequest.
// It is shared between InvokeChatStream and InvokeSearchQueries.
func buildMessageParams(req *deployment.ChatRequest, model string, webSearch bool) (anthropic.MessageNewParams, error) {
	system, turns := splitHistory(req.Messages())
	if len(turns) == 0 {
		return anthropic.MessageNewParams{}, &deployment.ValidationError{
			Field:  "message",
			Value:  req.Message,
			Reason: "no user or chatbot messages to send",
		}
	}

	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(t.texts))
		for _, text := range t.texts {
			blocks = append(blocks, anthropic.NewTextBlock(text))
		}
		messages = append(messages, anthropic.MessageParam{Role: t.role, Content: blocks})
	}

	params := &req.Params

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(params.GetMaxTokens(deployment.DefaultMaxTokens)),
	}

	if params.Temperature != nil {
		apiParams.Temperature = anthropic.Float(min(*params.Temperature, maxTemperature))
	}

	if params.TopP != nil {
		apiParams.TopP = anthropic.Float(*params.TopP)
	}

	if params.TopK != nil {
		apiParams.TopK = anthropic.Int(int64(*params.TopK))
	}

	if len(params.Stop) > 0 {
		apiParams.StopSequences = params.Stop
	}

	// Preamble first, then inline system messages, then documents.
	var systemParts []string
	if preamble := params.GetPreamble(); preamble != "" {
		systemParts = append(systemParts, preamble)
	}
	systemParts = append(systemParts, system...)
	if docs := deployment.FormatDocuments(params.Documents); docs != "" {
		systemParts = append(systemParts, docs)
	}
	for _, text := range systemParts {
		apiParams.System = append(apiParams.System, anthropic.TextBlockParam{Text: text})
	}

	if params.ToolsEnabled() {
		tools, err := convertTools(params.Tools, webSearch)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		apiParams.Tools = tools
	}

	return apiParams, nil
}
