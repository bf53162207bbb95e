package qwen

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cexll/qwen-go/pkg/telemetry"
)

// sdkTransport drives the service's OpenAI-compatible endpoint through the
// official SDK. It normalizes every response into the same rawResponse shape
// the raw-HTTP transport produces so the orchestrator treats both uniformly.
type sdkTransport struct {
	client openaisdk.Client
	model  string
}

func newSDKTransport(apiKey, baseURL, model string) *sdkTransport {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL + compatibleModePath),
	}
	return &sdkTransport{
		client: openaisdk.NewClient(opts...),
		model:  model,
	}
}

func (t *sdkTransport) execute(ctx context.Context, req *generationRequest) (_ *rawResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "model.qwen.sdk.execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("llm.provider", "qwen"),
			attribute.String("llm.model", req.Model),
			attribute.Bool("llm.stream", false),
		)...),
	)
	defer telemetry.EndSpan(span, err)

	params, reqOpts := t.buildParams(req, false)
	completion, err := t.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, normalizeSDKError(err)
	}

	raw := &rawResponse{
		RequestID: completion.ID,
		Output:    &generationOutput{},
		Usage: &wireUsage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}
	for _, choice := range completion.Choices {
		raw.Output.Choices = append(raw.Output.Choices, wireChoice{
			Message:      sdkMessageToWire(choice.Message),
			FinishReason: string(choice.FinishReason),
		})
	}
	return raw, nil
}

func (t *sdkTransport) executeStream(ctx context.Context, req *generationRequest, fn func(*rawResponse) error) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "model.qwen.sdk.execute_stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("llm.provider", "qwen"),
			attribute.String("llm.model", req.Model),
			attribute.Bool("llm.stream", true),
		)...),
	)
	defer telemetry.EndSpan(span, err)

	params, reqOpts := t.buildParams(req, true)
	stream := t.client.Chat.Completions.NewStreaming(ctx, params, reqOpts...)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		raw := &rawResponse{RequestID: chunk.ID, Output: &generationOutput{}}
		for _, choice := range chunk.Choices {
			wire := wireMessage{
				Role:    choice.Delta.Role,
				Content: choice.Delta.Content,
			}
			for _, call := range choice.Delta.ToolCalls {
				wire.ToolCalls = append(wire.ToolCalls, wireToolCall{
					ID:   call.ID,
					Type: "function",
					Function: wireFunctionCall{
						Name:      call.Function.Name,
						Arguments: call.Function.Arguments,
					},
				})
			}
			raw.Output.Choices = append(raw.Output.Choices, wireChoice{
				Message:      wire,
				FinishReason: choice.FinishReason,
			})
		}
		if chunk.Usage.TotalTokens > 0 {
			raw.Usage = &wireUsage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:  int(chunk.Usage.TotalTokens),
			}
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return normalizeSDKError(err)
	}
	return nil
}

// buildParams maps the native envelope onto SDK params. Parameters without an
// OpenAI-compatible field travel as raw JSON overrides.
func (t *sdkTransport) buildParams(req *generationRequest, stream bool) (openaisdk.ChatCompletionNewParams, []option.RequestOption) {
	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(req.Model),
		Messages: wireMessagesToSDK(req.Input.Messages),
	}
	if stream {
		params.StreamOptions = openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: openaisdk.Bool(true),
		}
	}

	var reqOpts []option.RequestOption
	for key, val := range req.Parameters {
		switch key {
		case "temperature":
			if v, ok := toFloat(val); ok {
				params.Temperature = openaisdk.Float(v)
			}
		case "top_p":
			if v, ok := toFloat(val); ok {
				params.TopP = openaisdk.Float(v)
			}
		case "seed":
			if v, ok := toInt(val); ok {
				params.Seed = openaisdk.Int(int64(v))
			}
		case "max_tokens":
			if v, ok := toInt(val); ok {
				params.MaxTokens = openaisdk.Int(int64(v))
			}
		case "result_format", "incremental_output":
			// Compatible mode always answers in message format with
			// incremental deltas; these knobs are native-endpoint only.
		default:
			reqOpts = append(reqOpts, option.WithJSONSet(key, val))
		}
	}
	return params, reqOpts
}

func wireMessagesToSDK(messages []wireMessage) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			out = append(out, openaisdk.SystemMessage(msg.Content))
		case "assistant":
			asst := openaisdk.ChatCompletionAssistantMessageParam{}
			asst.Content.OfString = openaisdk.String(msg.Content)
			for _, call := range msg.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openaisdk.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Function.Name,
						Arguments: call.Function.Arguments,
					},
				})
			}
			if msg.FunctionCall != nil {
				asst.FunctionCall = openaisdk.ChatCompletionAssistantMessageParamFunctionCall{
					Name:      msg.FunctionCall.Name,
					Arguments: msg.FunctionCall.Arguments,
				}
			}
			out = append(out, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case "function":
			fn := openaisdk.ChatCompletionFunctionMessageParam{
				Name:    msg.Name,
				Content: openaisdk.String(msg.Content),
			}
			out = append(out, openaisdk.ChatCompletionMessageParamUnion{OfFunction: &fn})
		case "tool":
			out = append(out, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			out = append(out, openaisdk.UserMessage(msg.Content))
		}
	}
	return out
}

func sdkMessageToWire(msg openaisdk.ChatCompletionMessage) wireMessage {
	wire := wireMessage{
		Role:    string(msg.Role),
		Content: msg.Content,
	}
	for _, call := range msg.ToolCalls {
		wire.ToolCalls = append(wire.ToolCalls, wireToolCall{
			ID:   call.ID,
			Type: "function",
			Function: wireFunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	if msg.FunctionCall.Name != "" || msg.FunctionCall.Arguments != "" {
		wire.FunctionCall = &wireFunctionCall{
			Name:      msg.FunctionCall.Name,
			Arguments: msg.FunctionCall.Arguments,
		}
	}
	return wire
}

// normalizeSDKError folds SDK API errors into the shared taxonomy so both
// transports are observationally equivalent to the orchestrator.
func normalizeSDKError(err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code != "" {
			return &RemoteError{Code: apiErr.Code, Message: apiErr.Message}
		}
		return &TransportError{
			StatusCode: apiErr.StatusCode,
			Err:        fmt.Errorf("sdk call: %w", err),
		}
	}
	return &TransportError{Err: err}
}
