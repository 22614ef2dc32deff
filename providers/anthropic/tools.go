package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// convertTools converts function tools to Anthropic SDK format.
// When webSearch is set, the web_search tool is mapped onto Anthropic's
// server-executed web search; otherwise it is sent as a plain function tool.
func convertTools(tools []deployment.Tool, webSearch bool) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for i := range tools {
		tool := &tools[i]

		if tool.Function.Name == deployment.ToolNameWebSearch && webSearch {
			result = append(result, anthropic.ToolUnionParam{
				OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{},
			})
			continue
		}

		converted, err := convertCustomTool(tool)
		if err != nil {
			return nil, fmt.Errorf("tool %d (%s): %w", i, tool.Function.Name, err)
		}
		result = append(result, converted)
	}

	return result, nil
}

// convertCustomTool converts a function tool's JSON schema into Anthropic's
// input_schema: properties and required are lifted out, every other schema
// keyword travels in ExtraFields.
func convertCustomTool(tool *deployment.Tool) (anthropic.ToolUnionParam, error) {
	if err := tool.Validate(); err != nil {
		return anthropic.ToolUnionParam{}, err
	}

	schema := anthropic.ToolInputSchemaParam{
		Properties:  tool.Function.Parameters["properties"],
		ExtraFields: make(map[string]any),
	}

	switch required := tool.Function.Parameters["required"].(type) {
	case []string:
		schema.Required = append([]string(nil), required...)
	case []interface{}:
		for _, v := range required {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	for key, value := range tool.Function.Parameters {
		if key != "type" && key != "properties" && key != "required" {
			schema.ExtraFields[key] = value
		}
	}

	toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
	if tool.Function.Description != "" && toolParam.OfTool != nil {
		toolParam.OfTool.Description = anthropic.String(tool.Function.Description)
	}

	return toolParam, nil
}
