package model

import "context"

// Model describes the behavior a chat-completion backend must support.
// Generate is a unary request/response call, while GenerateStream delivers
// incremental content tokens through the supplied callback.
type Model interface {
	Generate(ctx context.Context, messages []Message) (Result, error)
	GenerateStream(ctx context.Context, messages []Message, cb StreamCallback) error
}

// StreamCallback consumes incremental output produced by GenerateStream.
// Implementations receive chunks in wire arrival order; the callback with
// StreamResult.Final set carries the fully assembled message and is the last
// invocation for the call.
type StreamCallback func(StreamResult) error

// StreamResult wraps a partial or final model response. Non-final results
// carry a single content token in Message.Content. Usage is only populated on
// the final result, and only when the service reported it.
type StreamResult struct {
	Message Message
	Usage   TokenUsage
	Final   bool
}

// Result is the outcome of one completed generation call. It is created once
// per call and never mutated afterwards.
type Result struct {
	Generations []Generation
	Usage       TokenUsage
}

// Generation is a single response candidate.
type Generation struct {
	Message      Message
	FinishReason string
}

// ModelConfig carries everything a Provider needs to construct a Model.
type ModelConfig struct {
	Provider string
	Name     string
	Model    string
	APIKey   string
	BaseURL  string
	UseSDK   bool
	Headers  map[string]string
	Extra    map[string]any
}

// Provider materializes Model instances from configuration.
type Provider interface {
	Name() string
	NewModel(ctx context.Context, cfg ModelConfig) (Model, error)
}
