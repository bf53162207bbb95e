package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/qwen-go/pkg/model/qwen"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "qwen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
model: qwen-plus
api_key: sk-from-file
base_url: https://dashscope.aliyuncs.com/
use_sdk: true
request_timeout: 30s
retry:
  max_attempts: 5
  min_backoff: 2s
  max_backoff: 40s
  multiplier: 3
  transient_only: true
parameters:
  temperature: 0.2
  max_tokens: 256
telemetry:
  enabled: true
  endpoint: localhost:4318
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qwen-plus", cfg.Model)
	assert.Equal(t, "sk-from-file", cfg.APIKey)
	assert.Equal(t, "https://dashscope.aliyuncs.com", cfg.BaseURL, "trailing slash trimmed")
	assert.True(t, cfg.UseSDK)
	assert.Equal(t, Duration(30*time.Second), cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, Duration(2*time.Second), cfg.Retry.MinBackoff)
	assert.True(t, cfg.Retry.TransientOnly)
	assert.Equal(t, path, cfg.SourcePath)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "qwen-go", cfg.Telemetry.ServiceName, "default service name")
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadBadDuration(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "request_timeout: soon\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse duration")
}

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{Model: "  "}
	cfg.Normalize()
	assert.Equal(t, "qwen-turbo", cfg.Model)
	assert.Equal(t, "qwen-go", cfg.Telemetry.ServiceName)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		retry   RetryBlock
		wantErr string
	}{
		{name: "defaults pass", retry: RetryBlock{}},
		{name: "negative attempts", retry: RetryBlock{MaxAttempts: -1}, wantErr: "max_attempts"},
		{name: "fractional multiplier", retry: RetryBlock{Multiplier: 0.5}, wantErr: "multiplier"},
		{name: "inverted backoff window", retry: RetryBlock{MinBackoff: Duration(5 * time.Second), MaxBackoff: Duration(time.Second)}, wantErr: "max_backoff"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := (&Config{Retry: tc.retry}).Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestClientConfig(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Model:          "qwen-max",
		APIKey:         "sk-test",
		BaseURL:        "https://example.com",
		UseSDK:         true,
		RequestTimeout: Duration(15 * time.Second),
		Retry: RetryBlock{
			MaxAttempts:   7,
			MinBackoff:    Duration(500 * time.Millisecond),
			Multiplier:    1.5,
			TransientOnly: true,
		},
		Parameters: map[string]any{"temperature": 0.1},
	}

	cc := cfg.ClientConfig()
	assert.Equal(t, "sk-test", cc.APIKey)
	assert.Equal(t, "https://example.com", cc.BaseURL)
	assert.True(t, cc.UseSDK)
	assert.Equal(t, 15*time.Second, cc.RequestTimeout)
	assert.Equal(t, "qwen-max", cc.Options.Model)
	require.NotNil(t, cc.Options.Temperature)
	assert.InDelta(t, 0.1, *cc.Options.Temperature, 1e-9)
	assert.Equal(t, 7, cc.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cc.Retry.MinBackoff)
	assert.InDelta(t, 1.5, cc.Retry.Multiplier, 1e-9)
	assert.NotNil(t, cc.Retry.Classify, "transient_only wires a classifier")
	assert.Equal(t, qwen.DefaultRetryPolicy().MaxBackoff, cc.Retry.MaxBackoff, "unset fields keep defaults")
}

func TestClientConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Normalize()
	cc := cfg.ClientConfig()
	def := qwen.DefaultRetryPolicy()
	assert.Equal(t, def.MaxAttempts, cc.Retry.MaxAttempts)
	assert.Equal(t, def.MinBackoff, cc.Retry.MinBackoff)
	assert.Nil(t, cc.Retry.Classify, "broad retry by default")
	assert.Equal(t, "qwen-turbo", cc.Options.Model)
}
