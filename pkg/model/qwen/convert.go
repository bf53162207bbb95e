package qwen

import (
	modelpkg "github.com/cexll/qwen-go/pkg/model"
)

// messageToWire maps a canonical message onto the wire shape. The mapping is
// total: roles without an explicit case are passed through verbatim so future
// roles survive the round trip.
func messageToWire(msg modelpkg.Message) (wireMessage, error) {
	wire := wireMessage{Role: string(msg.Role), Content: msg.Content}
	switch msg.Role {
	case modelpkg.RoleUser, modelpkg.RoleSystem:
	case modelpkg.RoleAssistant:
		if msg.FunctionCall != nil {
			wire.FunctionCall = &wireFunctionCall{
				Name:      msg.FunctionCall.Name,
				Arguments: msg.FunctionCall.Arguments,
			}
		}
		if len(msg.ToolCalls) > 0 {
			wire.ToolCalls = encodeToolCalls(msg.ToolCalls)
		}
	case modelpkg.RoleFunction:
		if msg.Name == "" {
			return wireMessage{}, &MalformedMessageError{Reason: "function message requires a name"}
		}
		wire.Name = msg.Name
	case modelpkg.RoleTool:
		wire.ToolCallID = msg.ToolCallID
	}
	// Metadata name is copied onto the wire object for any role.
	if msg.Name != "" {
		wire.Name = msg.Name
	}
	return wire, nil
}

// messageFromWire is the inverse of messageToWire on the fields each message
// kind carries. It never drops function_call or tool_calls data.
func messageFromWire(wire wireMessage) modelpkg.Message {
	msg := modelpkg.Message{
		Role:    modelpkg.Role(wire.Role),
		Content: wire.Content,
		Name:    wire.Name,
	}
	switch msg.Role {
	case modelpkg.RoleAssistant:
		if wire.FunctionCall != nil {
			msg.FunctionCall = &modelpkg.FunctionCall{
				Name:      wire.FunctionCall.Name,
				Arguments: wire.FunctionCall.Arguments,
			}
		}
		msg.ToolCalls = decodeToolCalls(wire.ToolCalls)
	case modelpkg.RoleTool:
		msg.ToolCallID = wire.ToolCallID
	}
	return msg
}

func messagesToWire(messages []modelpkg.Message) ([]wireMessage, error) {
	out := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		wire, err := messageToWire(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, wire)
	}
	return out, nil
}

func encodeToolCalls(calls []modelpkg.ToolCall) []wireToolCall {
	out := make([]wireToolCall, 0, len(calls))
	for _, call := range calls {
		out = append(out, wireToolCall{
			ID:   call.ID,
			Type: "function",
			Function: wireFunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	return out
}

func decodeToolCalls(calls []wireToolCall) []modelpkg.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]modelpkg.ToolCall, 0, len(calls))
	for _, call := range calls {
		out = append(out, modelpkg.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out
}
