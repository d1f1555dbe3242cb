package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nanogate/nanogate/internal/message"
)

// HTTPClient is an OpenAI-compatible chat-completions client using plain
// net/http, so it works against any single configured endpoint (OpenAI,
// DeepSeek, or another OpenAI-wire-compatible API) without a vendor SDK.
type HTTPClient struct {
	APIKey       string
	APIBase      string
	Model        string
	ExtraHeaders map[string]string
	HTTP         *http.Client
}

// NewHTTPClient creates an HTTPClient. defaultModel falls back to
// "deepseek-chat". An empty apiBase is resolved per request by Chat: the
// provider registry's base URL for the request's model, or
// "https://api.openai.com/v1" otherwise.
func NewHTTPClient(apiKey, apiBase, defaultModel string) *HTTPClient {
	if defaultModel == "" {
		defaultModel = "deepseek-chat"
	}
	return &HTTPClient{
		APIKey:  apiKey,
		APIBase: apiBase,
		Model:   defaultModel,
		HTTP:    &http.Client{Timeout: 120 * time.Second},
	}
}

// DefaultModel implements Client.
func (c *HTTPClient) DefaultModel() string { return c.Model }

// Chat implements Client, translating the internal message model to the
// OpenAI-compatible wire format and back.
func (c *HTTPClient) Chat(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.Model
	}
	model = c.resolveModel(model)

	maxTokens := req.MaxTokens
	if maxTokens < 1 {
		maxTokens = 4096
	}

	wireMessages := buildWireMessages(req.System, req.History)

	body := map[string]any{
		"model":       model,
		"messages":    wireMessages,
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
	}
	if len(req.Tools) > 0 {
		body["tools"] = toolSchemas(req.Tools)
		body["tool_choice"] = "auto"
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	apiBase := c.APIBase
	apiKey := c.APIKey
	if apiBase == "" {
		if spec := FindByModel(model); spec != nil {
			if spec.DefaultAPIBase != "" {
				apiBase = spec.DefaultAPIBase
			}
			if apiKey == "" && spec.EnvKey != "" {
				apiKey = os.Getenv(spec.EnvKey)
			}
		}
	}
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	endpoint := strings.TrimRight(apiBase, "/") + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for k, v := range c.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat backend returned HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return parseResponse(respBody)
}

// resolveModel strips a redundant "provider/" prefix (e.g. "deepseek/deepseek-chat")
// when the model already identifies a known provider by keyword.
func (c *HTTPClient) resolveModel(model string) string {
	if spec := FindByModel(model); spec != nil && spec.DefaultAPIBase != "" {
		if idx := strings.Index(model, "/"); idx >= 0 {
			model = model[idx+1:]
		}
	}
	return model
}

// buildWireMessages converts the system prompt and internal history into
// the OpenAI-compatible messages array. Assistant block messages emit
// tool_calls[]; user block messages (tool_result content) emit one
// role="tool" message per block.
func buildWireMessages(system string, history []message.Message) []map[string]any {
	wire := make([]map[string]any, 0, len(history)+1)
	if system != "" {
		wire = append(wire, map[string]any{"role": "system", "content": system})
	}
	for _, m := range history {
		if !m.IsBlocks() {
			wire = append(wire, map[string]any{"role": string(m.Role), "content": m.Text})
			continue
		}
		switch m.Role {
		case message.RoleAssistant:
			var text strings.Builder
			var toolCalls []map[string]any
			for _, b := range m.Blocks {
				switch b.Type {
				case message.BlockText:
					text.WriteString(b.Text)
				case message.BlockToolUse:
					argsJSON, _ := json.Marshal(b.Input)
					toolCalls = append(toolCalls, map[string]any{
						"id":   b.ID,
						"type": "function",
						"function": map[string]any{
							"name":      b.Name,
							"arguments": string(argsJSON),
						},
					})
				}
			}
			msg := map[string]any{"role": "assistant", "content": text.String()}
			if len(toolCalls) > 0 {
				msg["tool_calls"] = toolCalls
			}
			wire = append(wire, msg)
		case message.RoleUser:
			for _, b := range m.Blocks {
				if b.Type == message.BlockToolResult {
					wire = append(wire, map[string]any{
						"role":         "tool",
						"tool_call_id": b.ToolUseID,
						"content":      b.Content,
					})
				}
			}
		}
	}
	return wire
}

func toolSchemas(tools []ToolDescriptor) []map[string]any {
	out := make([]map[string]any, len(tools))
	for i, t := range tools {
		out[i] = map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		}
	}
	return out
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content   *string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func parseResponse(body []byte) (*Response, error) {
	var raw openAIResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return nil, fmt.Errorf("chat response has no choices")
	}
	choice := raw.Choices[0]

	var blocks []message.Block
	var toolCalls []ToolCallRequest
	if choice.Message.Content != nil && *choice.Message.Content != "" {
		blocks = append(blocks, message.TextBlock(*choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		blocks = append(blocks, message.ToolUseBlock(tc.ID, tc.Function.Name, args))
		toolCalls = append(toolCalls, ToolCallRequest{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	stop := StopReason(choice.FinishReason)
	if stop == "" {
		stop = StopStop
	}
	if len(toolCalls) > 0 {
		stop = StopToolCalls
	}

	usage := map[string]int{}
	if raw.Usage != nil {
		usage["prompt_tokens"] = raw.Usage.PromptTokens
		usage["completion_tokens"] = raw.Usage.CompletionTokens
		usage["total_tokens"] = raw.Usage.TotalTokens
	}

	return &Response{Blocks: blocks, ToolCalls: toolCalls, StopReason: stop, Usage: usage}, nil
}
