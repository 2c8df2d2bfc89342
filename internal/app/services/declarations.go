package services

import (
	"encoding/base64"

	"github.com/sashabaranov/go-openai"
)

// 会话内置工具名
const (
	ToolCurrentTime     = "get_current_time"
	ToolSendMessage     = "send_message"
	ToolSearchKnowledge = "search_knowledge_base"
	ToolSaveMemory      = "save_memory"
	ToolRecallMemory    = "recall_memory"
)

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{"type": "object", "properties": properties, "required": required}
}

// Declarations describes the session tools as function declarations for the model.
func Declarations() []openai.Tool {
	fn := func(name, description string, params map[string]any) openai.Tool {
		return openai.Tool{
			Type:     openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{Name: name, Description: description, Parameters: params},
		}
	}
	return []openai.Tool{
		fn(ToolCurrentTime, "Get the current time to answer time-related questions.",
			objectSchema(map[string]any{"timezone": stringProp("Optional IANA time zone, e.g. Europe/Oslo.")})),
		fn(ToolSendMessage, "Send a message to a contact.",
			objectSchema(map[string]any{
				"target": stringProp("The recipient of the message, e.g., a phone number for WhatsApp."),
				"body":   stringProp("The content of the message."),
			}, "target", "body")),
		fn(ToolSearchKnowledge, "Search the knowledge base for information.",
			objectSchema(map[string]any{"query": stringProp("The search query.")}, "query")),
		fn(ToolSaveMemory, "Save a piece of information to memory.",
			objectSchema(map[string]any{
				"key":   stringProp("The key to store the information under."),
				"value": stringProp("The information to store."),
			}, "key", "value")),
		fn(ToolRecallMemory, "Recall a piece of information previously saved to memory.",
			objectSchema(map[string]any{"key": stringProp("The key the information was stored under.")}, "key")),
	}
}

func encodeText(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
