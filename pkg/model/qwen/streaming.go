package qwen

import (
	"strings"

	modelpkg "github.com/cexll/qwen-go/pkg/model"
)

// streamState accumulates one streaming call: the content buffer, the
// current role, and tool-call argument fragments keyed by call id. It lives
// for exactly one call and is discarded when the stream terminates.
type streamState struct {
	cb      modelpkg.StreamCallback
	content strings.Builder
	role    string
	order   []string
	calls   map[string]*toolCallAccumulator
	usage   modelpkg.TokenUsage
}

type toolCallAccumulator struct {
	id   string
	name string
	args strings.Builder
}

func newStreamState(cb modelpkg.StreamCallback) *streamState {
	return &streamState{
		cb:    cb,
		role:  string(modelpkg.RoleAssistant),
		calls: map[string]*toolCallAccumulator{},
	}
}

// ingest consumes one chunk. A chunk carrying a failure envelope aborts the
// stream immediately; the caller must treat the whole call as failed even if
// partial tokens were already delivered.
func (s *streamState) ingest(chunk *rawResponse) error {
	if chunk.Code != "" {
		return &RemoteError{Code: chunk.Code, Message: chunk.Message}
	}
	if chunk.Usage != nil {
		s.usage = modelpkg.TokenUsage{
			InputTokens:  chunk.Usage.InputTokens,
			OutputTokens: chunk.Usage.OutputTokens,
			TotalTokens:  chunk.Usage.TotalTokens,
		}
	}
	if chunk.Output == nil {
		return nil
	}
	for _, choice := range chunk.Output.Choices {
		if choice.Message.Role != "" {
			s.role = choice.Message.Role
		}
		if token := choice.Message.Content; token != "" {
			s.content.WriteString(token)
			if err := s.cb(modelpkg.StreamResult{
				Message: modelpkg.Message{
					Role:    modelpkg.Role(s.role),
					Content: token,
				},
			}); err != nil {
				return err
			}
		}
		for _, call := range choice.Message.ToolCalls {
			s.appendToolCall(call)
		}
	}
	return nil
}

// appendToolCall concatenates an arguments fragment onto the accumulator for
// the call's id, initializing a new entry on first sight of a new id.
// Fragments without an id continue the most recent call.
func (s *streamState) appendToolCall(call wireToolCall) {
	key := call.ID
	if key == "" && len(s.order) > 0 {
		key = s.order[len(s.order)-1]
	}
	acc, ok := s.calls[key]
	if !ok {
		acc = &toolCallAccumulator{id: call.ID}
		s.calls[key] = acc
		s.order = append(s.order, key)
	}
	if acc.id == "" {
		acc.id = call.ID
	}
	if acc.name == "" {
		acc.name = call.Function.Name
	}
	acc.args.WriteString(call.Function.Arguments)
}

// finalize assembles the terminal message from the accumulated state and
// delivers it as the final callback.
func (s *streamState) finalize() error {
	msg := modelpkg.Message{
		Role:    modelpkg.Role(s.role),
		Content: s.content.String(),
	}
	for _, key := range s.order {
		acc := s.calls[key]
		msg.ToolCalls = append(msg.ToolCalls, modelpkg.ToolCall{
			ID:        acc.id,
			Name:      acc.name,
			Arguments: acc.args.String(),
		})
	}
	return s.cb(modelpkg.StreamResult{
		Message: msg,
		Usage:   s.usage,
		Final:   true,
	})
}
