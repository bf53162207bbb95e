package qwen

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Options is the generation configuration applied to every call made by a
// Client. Seed only advises reproducibility; the remote model is opaque.
type Options struct {
	Model             string
	Temperature       *float64
	TopP              *float64
	TopK              *int
	Seed              *int
	MaxTokens         int
	RepetitionPenalty *float64
	ResultFormat      string
	Stop              []string
	EnableSearch      bool
	CustomizedModelID string

	// TiktokenModel overrides the tokenizer derived from Model for token
	// counting.
	TiktokenModel string

	// Extra holds model-specific parameters merged into the wire parameters
	// verbatim; explicit fields above win on conflict.
	Extra map[string]any
}

// DefaultOptions mirrors the service defaults for the qwen model family.
func DefaultOptions(model string) Options {
	temperature := 0.95
	topP := 0.8
	repetition := 1.1
	seed := 1234
	return Options{
		Model:             model,
		Temperature:       &temperature,
		TopP:              &topP,
		RepetitionPenalty: &repetition,
		Seed:              &seed,
		MaxTokens:         1024,
		ResultFormat:      "message",
	}
}

// buildRequest assembles the wire envelope for one call. Model-specific
// extras are keyed by model-name prefix: qwen* models accept enable_search in
// the parameters, bailian* models require a customized_model_id in the input.
func (o Options) buildRequest(messages []wireMessage, stream bool) (*generationRequest, error) {
	params := map[string]any{}
	for k, v := range o.Extra {
		params[k] = v
	}
	if o.Temperature != nil {
		params["temperature"] = *o.Temperature
	}
	if o.TopP != nil {
		params["top_p"] = *o.TopP
	}
	if o.TopK != nil {
		params["top_k"] = *o.TopK
	}
	if o.Seed != nil {
		params["seed"] = *o.Seed
	}
	if o.MaxTokens > 0 {
		params["max_tokens"] = o.MaxTokens
	}
	if o.RepetitionPenalty != nil {
		params["repetition_penalty"] = *o.RepetitionPenalty
	}
	if o.ResultFormat != "" {
		params["result_format"] = o.ResultFormat
	}
	if len(o.Stop) > 0 {
		if _, ok := params["stop"]; ok {
			return nil, errors.New("qwen: stop words found in both options and extra parameters")
		}
		params["stop"] = append([]string(nil), o.Stop...)
	}

	req := &generationRequest{
		Model:      o.Model,
		Input:      generationInput{Messages: messages},
		Parameters: params,
	}

	switch {
	case strings.HasPrefix(o.Model, "qwen"):
		if o.EnableSearch {
			params["enable_search"] = true
		}
	case strings.HasPrefix(o.Model, "bailian"):
		if o.CustomizedModelID == "" {
			return nil, errors.New("qwen: customized_model_id is required for model " + o.Model)
		}
		req.Input.CustomizedModelID = o.CustomizedModelID
	}

	if stream {
		if _, ok := params["incremental_output"]; !ok {
			params["incremental_output"] = true
		}
	}
	return req, nil
}

// ParseOptions lifts generic provider configuration into typed Options.
// Unrecognized keys stay in Extra and travel verbatim in the parameters.
func ParseOptions(model string, extra map[string]any) Options {
	opts := DefaultOptions(model)
	if len(extra) == 0 {
		return opts
	}
	leftovers := map[string]any{}
	for key, val := range extra {
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "temperature":
			if v, ok := toFloat(val); ok {
				opts.Temperature = &v
			}
		case "top_p":
			if v, ok := toFloat(val); ok {
				opts.TopP = &v
			}
		case "top_k":
			if v, ok := toInt(val); ok {
				opts.TopK = &v
			}
		case "seed":
			if v, ok := toInt(val); ok {
				opts.Seed = &v
			}
		case "max_tokens":
			if v, ok := toInt(val); ok && v > 0 {
				opts.MaxTokens = v
			}
		case "repetition_penalty":
			if v, ok := toFloat(val); ok {
				opts.RepetitionPenalty = &v
			}
		case "result_format":
			if s, ok := val.(string); ok && s != "" {
				opts.ResultFormat = s
			}
		case "stop":
			opts.Stop = parseStop(val)
		case "enable_search":
			if b, ok := val.(bool); ok {
				opts.EnableSearch = b
			}
		case "customized_model_id":
			if s, ok := val.(string); ok {
				opts.CustomizedModelID = s
			}
		case "tiktoken_model":
			if s, ok := val.(string); ok {
				opts.TiktokenModel = s
			}
		default:
			leftovers[key] = val
		}
	}
	if len(leftovers) > 0 {
		opts.Extra = leftovers
	}
	return opts
}

func parseStop(val any) []string {
	switch v := val.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}

func toInt(val any) (int, bool) {
	switch v := val.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
