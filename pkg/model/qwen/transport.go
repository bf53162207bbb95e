package qwen

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// transport executes one generation request against the remote service. It
// performs network I/O only; retries are the caller's responsibility.
type transport interface {
	execute(ctx context.Context, req *generationRequest) (*rawResponse, error)
	executeStream(ctx context.Context, req *generationRequest, fn func(*rawResponse) error) error
}

// httpTransport POSTs the native generation envelope directly. It exists for
// environments without the structured client and produces response shapes
// observationally equivalent to sdkTransport.
type httpTransport struct {
	client  *http.Client
	baseURL string
	headers map[string]string
}

func newHTTPTransport(client *http.Client, baseURL, apiKey string, headers map[string]string) *httpTransport {
	merged := map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
		"User-Agent":    userAgent,
	}
	for k, v := range headers {
		if strings.TrimSpace(k) == "" || v == "" {
			continue
		}
		merged[k] = v
	}
	return &httpTransport{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: merged,
	}
}

func (t *httpTransport) execute(ctx context.Context, req *generationRequest) (*rawResponse, error) {
	resp, err := t.doRequest(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: err}
	}
	var raw rawResponse
	if err := json.Unmarshal(bytes.TrimSpace(body), &raw); err != nil {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode generation response: %w", err),
		}
	}
	// Failure envelopes arrive with a non-2xx status and a code/message body;
	// classification is the orchestrator's job.
	return &raw, nil
}

func (t *httpTransport) executeStream(ctx context.Context, req *generationRequest, fn func(*rawResponse) error) error {
	resp, err := t.doRequest(ctx, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, initialStreamBufLen), maxStreamLineBytes)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(line[5:])
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var chunk rawResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return &TransportError{Err: fmt.Errorf("decode stream chunk: %w", err)}
		}
		if err := fn(&chunk); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

func (t *httpTransport) doRequest(ctx context.Context, payload *generationRequest, stream bool) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+generationPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("create generation request: %w", err)
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if stream {
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("X-DashScope-SSE", "enable")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if stream && resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, &TransportError{StatusCode: resp.StatusCode, Err: readErr}
		}
		var raw rawResponse
		if err := json.Unmarshal(bytes.TrimSpace(body), &raw); err == nil && raw.Code != "" {
			return nil, &RemoteError{Code: raw.Code, Message: raw.Message}
		}
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected stream status: %s", strings.TrimSpace(string(body))),
		}
	}
	return resp, nil
}
