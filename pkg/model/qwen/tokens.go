package qwen

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	modelpkg "github.com/cexll/qwen-go/pkg/model"
)

const fallbackEncoding = "cl100k_base"

// tokenEncoder is the pure tokenization dependency. Production code uses
// tiktoken; tests inject a fake.
type tokenEncoder interface {
	Encode(text string) []int
}

// encoderResolver selects an encoder for a model name and reports the
// resolved tokenizer model.
type encoderResolver func(model string) (tokenEncoder, string, error)

type tiktokenEncoder struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenEncoder) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// resolveEncoder prefers the tokenizer named by the model argument; unknown
// model names fall back to the general-purpose cl100k_base encoding with a
// diagnostic warning.
func resolveEncoder(model string) (tokenEncoder, string, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		slog.Warn("tokenizer model not found, using fallback encoding",
			"model", model,
			"encoding", fallbackEncoding,
		)
		fallback, err := tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, "", err
		}
		return tiktokenEncoder{enc: fallback}, fallbackEncoding, nil
	}
	return tiktokenEncoder{enc: enc}, model, nil
}

// CountTokens tokenizes text with the tokenizer derived from the configured
// model (or the TiktokenModel override) and returns the token count.
func (c *Client) CountTokens(text string) (int, error) {
	enc, _, err := c.encoderFor(c.tokenizerModel())
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text)), nil
}

// CountMessageTokens computes the prompt size of a conversation. The
// per-message formula is only defined for the chatglm tokenizer family:
// every message costs a fixed overhead plus the tokens of each field value,
// a name field applies a fixed adjustment, and the reply priming adds a
// final overhead. Other families fail with UnsupportedTokenModelError.
func (c *Client) CountMessageTokens(messages []modelpkg.Message) (int, error) {
	enc, resolved, err := c.encoderFor(c.tokenizerModel())
	if err != nil {
		return 0, err
	}
	if !strings.HasPrefix(resolved, "chatglm") {
		return 0, &UnsupportedTokenModelError{Model: resolved}
	}

	// every message follows <im_start>{role/name}\n{content}<im_end>\n;
	// if there's a name, the role is omitted
	const tokensPerMessage = 4
	const tokensPerName = -1

	wire, err := messagesToWire(messages)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, msg := range wire {
		total += tokensPerMessage
		for _, field := range messageFields(msg) {
			total += len(enc.Encode(field.value))
			if field.key == "name" {
				total += tokensPerName
			}
		}
	}
	// every reply is primed with <im_start>assistant
	total += 3
	return total, nil
}

func (c *Client) tokenizerModel() string {
	if c.opts.TiktokenModel != "" {
		return c.opts.TiktokenModel
	}
	return c.opts.Model
}

type messageField struct {
	key   string
	value string
}

// messageFields lists the encodable field values of a wire message in a
// fixed order so counting stays deterministic.
func messageFields(msg wireMessage) []messageField {
	fields := []messageField{
		{key: "role", value: msg.Role},
		{key: "content", value: msg.Content},
	}
	if msg.Name != "" {
		fields = append(fields, messageField{key: "name", value: msg.Name})
	}
	if msg.ToolCallID != "" {
		fields = append(fields, messageField{key: "tool_call_id", value: msg.ToolCallID})
	}
	return fields
}
