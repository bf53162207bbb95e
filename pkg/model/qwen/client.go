package qwen

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	modelpkg "github.com/cexll/qwen-go/pkg/model"
	"github.com/cexll/qwen-go/pkg/telemetry"
)

// Ensure Client implements modelpkg.Model.
var _ modelpkg.Model = (*Client)(nil)

// Client turns a canonical conversation into calls against the generation
// service. Configuration is immutable after construction, so a single Client
// is safe for concurrent independent calls.
type Client struct {
	transport  transport
	opts       Options
	retry      RetryPolicy
	encoderFor encoderResolver
}

// Config assembles a Client. The transport strategy is selected once here by
// the UseSDK flag and never branched on per call.
type Config struct {
	// APIKey overrides the DASHSCOPE_API_KEY environment variable.
	APIKey  string
	BaseURL string
	UseSDK  bool

	Options Options
	Retry   RetryPolicy

	// RequestTimeout bounds every transport attempt. Zero means the 600s
	// service default.
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Headers        map[string]string
}

// NewClient validates cfg and constructs a Client with the chosen transport.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv(apiKeyEnvVar))
	}
	if apiKey == "" {
		return nil, errors.New("qwen: api key is required (set " + apiKeyEnvVar + " or Config.APIKey)")
	}
	if strings.TrimSpace(cfg.Options.Model) == "" {
		return nil, errors.New("qwen: model name is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}

	var tp transport
	if cfg.UseSDK {
		tp = newSDKTransport(apiKey, baseURL, cfg.Options.Model)
	} else {
		client := cfg.HTTPClient
		if client == nil {
			timeout := cfg.RequestTimeout
			if timeout <= 0 {
				timeout = defaultHTTPTimeout
			}
			client = &http.Client{Timeout: timeout}
		}
		tp = newHTTPTransport(client, baseURL, apiKey, cfg.Headers)
	}

	return &Client{
		transport:  tp,
		opts:       cfg.Options,
		retry:      retry,
		encoderFor: resolveEncoder,
	}, nil
}

// Generate performs one blocking generation call wrapped in the retry policy.
//
// A content-inspection rejection is masked as a successful single-generation
// result carrying the remote rejection text, finish reason "stop" and the
// fixed minimal usage record {1,1,2}; callers that need to distinguish a
// moderation block can key on that usage record.
func (c *Client) Generate(ctx context.Context, messages []modelpkg.Message) (_ modelpkg.Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "model.qwen.generate",
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("llm.model", c.opts.Model),
			attribute.Int("llm.messages", len(messages)),
		)...),
	)
	defer telemetry.EndSpan(span, err)

	wire, err := messagesToWire(messages)
	if err != nil {
		return modelpkg.Result{}, err
	}
	req, err := c.opts.buildRequest(wire, false)
	if err != nil {
		return modelpkg.Result{}, err
	}

	raw, err := c.retry.run(ctx, func() (*rawResponse, error) {
		resp, execErr := c.transport.execute(ctx, req)
		if execErr != nil {
			// Moderation rejections surfaced as SDK errors must not burn
			// retry attempts; fold them back into the envelope form.
			var re *RemoteError
			if errors.As(execErr, &re) && re.Code == codeDataInspectionFailed {
				return &rawResponse{Code: re.Code, Message: re.Message}, nil
			}
			return nil, execErr
		}
		if resp.Code != "" && resp.Code != codeDataInspectionFailed {
			return nil, &RemoteError{Code: resp.Code, Message: resp.Message}
		}
		return resp, nil
	})
	if err != nil {
		return modelpkg.Result{}, err
	}

	if raw.Code == codeDataInspectionFailed {
		return moderationResult(raw.Message), nil
	}
	if raw.Output == nil {
		return modelpkg.Result{}, &RemoteError{Code: raw.Code, Message: raw.Message}
	}
	return buildResult(raw), nil
}

func buildResult(raw *rawResponse) modelpkg.Result {
	result := modelpkg.Result{}
	if len(raw.Output.Choices) > 0 {
		for _, choice := range raw.Output.Choices {
			result.Generations = append(result.Generations, modelpkg.Generation{
				Message:      messageFromWire(choice.Message),
				FinishReason: choice.FinishReason,
			})
		}
	} else {
		// Legacy text result_format.
		result.Generations = []modelpkg.Generation{{
			Message: modelpkg.Message{
				Role:    modelpkg.RoleAssistant,
				Content: raw.Output.Text,
			},
			FinishReason: raw.Output.FinishReason,
		}}
	}
	if raw.Usage != nil {
		result.Usage = modelpkg.TokenUsage{
			InputTokens:  raw.Usage.InputTokens,
			OutputTokens: raw.Usage.OutputTokens,
			TotalTokens:  raw.Usage.TotalTokens,
		}
	}
	return result
}

func moderationResult(text string) modelpkg.Result {
	return modelpkg.Result{
		Generations: []modelpkg.Generation{{
			Message: modelpkg.Message{
				Role:    modelpkg.RoleAssistant,
				Content: text,
			},
			FinishReason: "stop",
		}},
		Usage: modelpkg.TokenUsage{InputTokens: 1, OutputTokens: 1, TotalTokens: 2},
	}
}

// GenerateStream opens a streaming generation call and relays content tokens
// through cb in wire arrival order, ending with one final assembled message.
//
// No retry applies here: once any chunk may have reached the consumer, a
// failure must surface directly instead of duplicating observed output.
func (c *Client) GenerateStream(ctx context.Context, messages []modelpkg.Message, cb modelpkg.StreamCallback) (err error) {
	if cb == nil {
		return errors.New("qwen: stream callback is required")
	}
	ctx, span := telemetry.StartSpan(ctx, "model.qwen.generate_stream",
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("llm.model", c.opts.Model),
			attribute.Int("llm.messages", len(messages)),
		)...),
	)
	defer telemetry.EndSpan(span, err)

	wire, err := messagesToWire(messages)
	if err != nil {
		return err
	}
	req, err := c.opts.buildRequest(wire, true)
	if err != nil {
		return err
	}

	state := newStreamState(cb)
	if err := c.transport.executeStream(ctx, req, state.ingest); err != nil {
		return err
	}
	return state.finalize()
}
