package qwen

import "time"

const (
	defaultBaseURL      = "https://dashscope.aliyuncs.com"
	generationPath      = "/api/v1/services/aigc/text-generation/generation"
	compatibleModePath  = "/compatible-mode/v1"
	defaultHTTPTimeout  = 600 * time.Second
	userAgent           = "qwen-go/client"
	apiKeyEnvVar        = "DASHSCOPE_API_KEY"
	maxStreamLineBytes  = 1024 * 1024
	initialStreamBufLen = 64 * 1024

	// codeDataInspectionFailed is the remote error code signaling that the
	// request was blocked by content inspection.
	codeDataInspectionFailed = "DataInspectionFailed"
)

// generationRequest is the native generation request envelope:
// {"input":{"messages":[...]}, "parameters":{...}, "model":"<name>"}.
type generationRequest struct {
	Model      string          `json:"model"`
	Input      generationInput `json:"input"`
	Parameters map[string]any  `json:"parameters,omitempty"`
}

type generationInput struct {
	Messages          []wireMessage `json:"messages"`
	CustomizedModelID string        `json:"customized_model_id,omitempty"`
}

// wireMessage is the JSON message shape shared by requests, responses and
// stream chunks.
type wireMessage struct {
	Role         string            `json:"role"`
	Content      string            `json:"content"`
	Name         string            `json:"name,omitempty"`
	ToolCallID   string            `json:"tool_call_id,omitempty"`
	FunctionCall *wireFunctionCall `json:"function_call,omitempty"`
	ToolCalls    []wireToolCall    `json:"tool_calls,omitempty"`
}

type wireFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function wireFunctionCall `json:"function"`
}

// rawResponse is the normalized envelope both transports produce, for unary
// responses and for each streamed chunk alike. A populated Code/Message pair
// is the service failure envelope; a populated Output is a success.
type rawResponse struct {
	RequestID string            `json:"request_id,omitempty"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message,omitempty"`
	Output    *generationOutput `json:"output,omitempty"`
	Usage     *wireUsage        `json:"usage,omitempty"`
}

// generationOutput carries either message-format choices or the legacy
// text-format fields, depending on the requested result_format.
type generationOutput struct {
	Text         string       `json:"text,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
	Choices      []wireChoice `json:"choices,omitempty"`
}

type wireChoice struct {
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
