package model

// Role identifies the speaker of a conversation turn. The named constants
// cover the roles the converter maps explicitly; any other value is carried
// through to the wire verbatim.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleFunction  Role = "function"
	RoleTool      Role = "tool"
)

// Message is one turn of a conversation. Content may be empty for assistant
// messages that carry only a function or tool call. Name is required for
// function messages and optional metadata for every other role. ToolCallID is
// only meaningful on tool messages.
type Message struct {
	Role         Role
	Content      string
	Name         string
	ToolCallID   string
	FunctionCall *FunctionCall
	ToolCalls    []ToolCall
}

// FunctionCall is a legacy single-function invocation request emitted by the
// model. Arguments is raw JSON text.
type FunctionCall struct {
	Name      string
	Arguments string
}

// ToolCall is a structured function invocation identified by a call id. The
// Arguments payload is raw JSON text; during streaming it is reassembled from
// fragments concatenated in arrival order.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}
