package qwen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	modelpkg "github.com/cexll/qwen-go/pkg/model"
)

// streamServer emits each payload as one SSE data line and counts requests.
func streamServer(t *testing.T, calls *int, payloads []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		if got := r.Header.Get("X-DashScope-SSE"); got != "enable" {
			t.Fatalf("missing SSE header, got %q", got)
		}
		var req generationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode stream request: %v", err)
		}
		if req.Parameters["incremental_output"] != true {
			t.Fatalf("incremental_output not requested: %+v", req.Parameters)
		}
		flusher, _ := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range payloads {
			if _, err := w.Write([]byte("data: " + chunk + "\n\n")); err != nil {
				t.Fatalf("write chunk: %v", err)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
}

func TestGenerateStreamReassemblesContent(t *testing.T) {
	t.Parallel()

	calls := 0
	server := streamServer(t, &calls, []string{
		`{"output":{"choices":[{"message":{"role":"assistant","content":"Hel"}}]}}`,
		`{"output":{"choices":[{"message":{"content":"lo"}}]}}`,
		`{"output":{"choices":[{"message":{"content":""},"finish_reason":"stop"}]},"usage":{"input_tokens":2,"output_tokens":3,"total_tokens":5}}`,
	})
	defer server.Close()

	client := newTestClient(t, server)
	var tokens []string
	var final modelpkg.Message
	var usage modelpkg.TokenUsage
	err := client.GenerateStream(context.Background(), []modelpkg.Message{
		{Role: modelpkg.RoleUser, Content: "hi"},
	}, func(res modelpkg.StreamResult) error {
		if res.Final {
			final = res.Message
			usage = res.Usage
			return nil
		}
		tokens = append(tokens, res.Message.Content)
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream error: %v", err)
	}
	if final.Content != "Hello" || final.Role != modelpkg.RoleAssistant {
		t.Fatalf("final message: %+v", final)
	}
	if got := strings.Join(tokens, ""); got != "Hello" {
		t.Fatalf("token sequence: %q", got)
	}
	if usage.TotalTokens != 5 {
		t.Fatalf("terminal usage: %+v", usage)
	}
}

func TestGenerateStreamMergesToolCallFragments(t *testing.T) {
	t.Parallel()

	calls := 0
	server := streamServer(t, &calls, []string{
		`{"output":{"choices":[{"message":{"role":"assistant","tool_calls":[{"id":"call_0","type":"function","function":{"name":"lookup_weather","arguments":"{\"a\":1"}}]}}]}}`,
		`{"output":{"choices":[{"message":{"tool_calls":[{"function":{"arguments":",\"b\":2}"}}]},"finish_reason":"tool_calls"}]}}`,
	})
	defer server.Close()

	client := newTestClient(t, server)
	var final modelpkg.Message
	err := client.GenerateStream(context.Background(), []modelpkg.Message{
		{Role: modelpkg.RoleUser, Content: "hi"},
	}, func(res modelpkg.StreamResult) error {
		if res.Final {
			final = res.Message
		}
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream error: %v", err)
	}
	if len(final.ToolCalls) != 1 {
		t.Fatalf("tool calls: %+v", final.ToolCalls)
	}
	call := final.ToolCalls[0]
	if call.ID != "call_0" || call.Name != "lookup_weather" {
		t.Fatalf("tool call identity: %+v", call)
	}
	if call.Arguments != `{"a":1,"b":2}` {
		t.Fatalf("tool call arguments: %q", call.Arguments)
	}
}

func TestGenerateStreamFailureChunkAborts(t *testing.T) {
	t.Parallel()

	calls := 0
	server := streamServer(t, &calls, []string{
		`{"output":{"choices":[{"message":{"role":"assistant","content":"par"}}]}}`,
		`{"code":"InternalError","message":"stream broke"}`,
	})
	defer server.Close()

	client := newTestClient(t, server)
	var tokens []string
	sawFinal := false
	err := client.GenerateStream(context.Background(), []modelpkg.Message{
		{Role: modelpkg.RoleUser, Content: "hi"},
	}, func(res modelpkg.StreamResult) error {
		if res.Final {
			sawFinal = true
			return nil
		}
		tokens = append(tokens, res.Message.Content)
		return nil
	})
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Code != "InternalError" {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("a failed stream must never retry, got %d transport calls", calls)
	}
	if len(tokens) != 1 || tokens[0] != "par" {
		t.Fatalf("partial tokens before the failure should be delivered: %+v", tokens)
	}
	if sawFinal {
		t.Fatal("no final message may be emitted after a failed stream")
	}
}

func TestGenerateStreamCarriesRoleForward(t *testing.T) {
	t.Parallel()

	calls := 0
	server := streamServer(t, &calls, []string{
		`{"output":{"choices":[{"message":{"role":"narrator","content":"once"}}]}}`,
		`{"output":{"choices":[{"message":{"content":" upon"},"finish_reason":"stop"}]}}`,
	})
	defer server.Close()

	client := newTestClient(t, server)
	var final modelpkg.Message
	err := client.GenerateStream(context.Background(), []modelpkg.Message{
		{Role: modelpkg.RoleUser, Content: "hi"},
	}, func(res modelpkg.StreamResult) error {
		if res.Final {
			final = res.Message
		}
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateStream error: %v", err)
	}
	if final.Role != "narrator" || final.Content != "once upon" {
		t.Fatalf("role carry-forward: %+v", final)
	}
}

func TestGenerateStreamRequiresCallback(t *testing.T) {
	t.Parallel()

	calls := 0
	server := streamServer(t, &calls, nil)
	defer server.Close()

	client := newTestClient(t, server)
	err := client.GenerateStream(context.Background(), nil, nil)
	if err == nil || !strings.Contains(err.Error(), "callback") {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("no transport call expected, got %d", calls)
	}
}

func TestGenerateStreamCallbackErrorStopsStream(t *testing.T) {
	t.Parallel()

	calls := 0
	server := streamServer(t, &calls, []string{
		`{"output":{"choices":[{"message":{"role":"assistant","content":"a"}}]}}`,
		`{"output":{"choices":[{"message":{"content":"b"}}]}}`,
	})
	defer server.Close()

	client := newTestClient(t, server)
	stop := errors.New("consumer gave up")
	err := client.GenerateStream(context.Background(), []modelpkg.Message{
		{Role: modelpkg.RoleUser, Content: "hi"},
	}, func(res modelpkg.StreamResult) error {
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected the consumer error, got %v", err)
	}
}
