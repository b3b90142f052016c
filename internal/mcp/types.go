package mcp

import "encoding/json"

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type Response struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id"`
	Result  any            `json:"result,omitempty"`
	Error   *ResponseError `json:"error,omitempty"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ResourceReadParams struct {
	URI string `json:"uri"`
}

// DraftArgs are the arguments of draft_client_message.
type DraftArgs struct {
	Text     string          `json:"text"`
	FileName string          `json:"file_name"`
	Task     json.RawMessage `json:"task"`
}

func ListTools() map[string]any {
	return map[string]any{
		"tools": []map[string]any{
			{
				"name":        "draft_client_message",
				"description": "Analyze a case document and draft an empathetic client message",
				"inputSchema": map[string]any{
					"type":     "object",
					"required": []string{"text"},
					"properties": map[string]any{
						"text":      map[string]any{"type": "string", "description": "Case document text"},
						"file_name": map[string]any{"type": "string"},
						"task":      map[string]any{"type": "object", "description": "Task descriptor"},
					},
				},
			},
			{
				"name":        "agent_info",
				"description": "Describe the registered drafting agents",
				"inputSchema": map[string]any{"type": "object"},
			},
		},
	}
}

func ListResources() map[string]any {
	return map[string]any{
		"resources": []map[string]any{
			{"uri": "clientcomms://agents", "description": "Registered agent metadata"},
			{"uri": "clientcomms://jobs/{job_id}", "description": "Status and report of a queued case job"},
		},
	}
}
