package qwen

import (
	"errors"
	"reflect"
	"testing"

	modelpkg "github.com/cexll/qwen-go/pkg/model"
)

func TestMessageRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		msg  modelpkg.Message
	}{
		{
			name: "user",
			msg:  modelpkg.Message{Role: modelpkg.RoleUser, Content: "hello"},
		},
		{
			name: "user with metadata name",
			msg:  modelpkg.Message{Role: modelpkg.RoleUser, Content: "hello", Name: "alice"},
		},
		{
			name: "system",
			msg:  modelpkg.Message{Role: modelpkg.RoleSystem, Content: "be brief"},
		},
		{
			name: "assistant plain",
			msg:  modelpkg.Message{Role: modelpkg.RoleAssistant, Content: "hi"},
		},
		{
			name: "assistant with function call and empty content",
			msg: modelpkg.Message{
				Role: modelpkg.RoleAssistant,
				FunctionCall: &modelpkg.FunctionCall{
					Name:      "lookup_weather",
					Arguments: `{"city":"SF"}`,
				},
			},
		},
		{
			name: "assistant with tool calls",
			msg: modelpkg.Message{
				Role:    modelpkg.RoleAssistant,
				Content: "",
				ToolCalls: []modelpkg.ToolCall{
					{ID: "call_1", Name: "lookup_weather", Arguments: `{"city":"SF"}`},
					{ID: "call_2", Name: "lookup_time", Arguments: `{"tz":"PST"}`},
				},
			},
		},
		{
			name: "function",
			msg:  modelpkg.Message{Role: modelpkg.RoleFunction, Content: `{"temp":12}`, Name: "lookup_weather"},
		},
		{
			name: "tool",
			msg:  modelpkg.Message{Role: modelpkg.RoleTool, Content: "ok", ToolCallID: "call_1"},
		},
		{
			name: "unknown role passthrough",
			msg:  modelpkg.Message{Role: "critic", Content: "needs work"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			wire, err := messageToWire(tc.msg)
			if err != nil {
				t.Fatalf("toWire error: %v", err)
			}
			got := messageFromWire(wire)
			if !reflect.DeepEqual(got, tc.msg) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, tc.msg)
			}
		})
	}
}

func TestMessageToWireFunctionRequiresName(t *testing.T) {
	t.Parallel()

	_, err := messageToWire(modelpkg.Message{Role: modelpkg.RoleFunction, Content: "{}"})
	var malformed *MalformedMessageError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedMessageError, got %v", err)
	}
}

func TestMessageToWireKeepsToolCallData(t *testing.T) {
	t.Parallel()

	wire, err := messageToWire(modelpkg.Message{
		Role:      modelpkg.RoleAssistant,
		ToolCalls: []modelpkg.ToolCall{{ID: "call_9", Name: "f", Arguments: `{"a":1}`}},
	})
	if err != nil {
		t.Fatalf("toWire error: %v", err)
	}
	if len(wire.ToolCalls) != 1 {
		t.Fatalf("tool calls dropped: %+v", wire)
	}
	if wire.ToolCalls[0].Type != "function" || wire.ToolCalls[0].Function.Arguments != `{"a":1}` {
		t.Fatalf("unexpected wire tool call: %+v", wire.ToolCalls[0])
	}
}

func TestMessagesToWirePreservesOrder(t *testing.T) {
	t.Parallel()

	msgs := []modelpkg.Message{
		{Role: modelpkg.RoleSystem, Content: "s"},
		{Role: modelpkg.RoleUser, Content: "u1"},
		{Role: modelpkg.RoleAssistant, Content: "a1"},
		{Role: modelpkg.RoleUser, Content: "u2"},
	}
	wire, err := messagesToWire(msgs)
	if err != nil {
		t.Fatalf("messagesToWire error: %v", err)
	}
	if len(wire) != len(msgs) {
		t.Fatalf("length mismatch: %d", len(wire))
	}
	for i := range msgs {
		if wire[i].Role != string(msgs[i].Role) || wire[i].Content != msgs[i].Content {
			t.Fatalf("order not preserved at %d: %+v", i, wire[i])
		}
	}
}
