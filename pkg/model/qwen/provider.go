package qwen

import (
	"context"
	"net/http"
	"strings"

	modelpkg "github.com/cexll/qwen-go/pkg/model"
)

// Provider wires the qwen client into the model factory.
type Provider struct {
	HTTPClient *http.Client
}

var _ modelpkg.Provider = (*Provider)(nil)

// NewProvider builds a provider with the supplied HTTP client. When client is
// nil, a client with sane defaults will be used.
func NewProvider(client *http.Client) *Provider {
	return &Provider{HTTPClient: client}
}

// Name advertises the provider identifier used by the factory.
func (p *Provider) Name() string {
	return "qwen"
}

// NewModel materializes a Client configured according to cfg.
func (p *Provider) NewModel(ctx context.Context, cfg modelpkg.ModelConfig) (modelpkg.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = strings.TrimSpace(cfg.Name)
	}
	if modelName == "" {
		modelName = "qwen-turbo"
	}

	return NewClient(Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		UseSDK:     cfg.UseSDK,
		Options:    ParseOptions(modelName, cfg.Extra),
		HTTPClient: p.HTTPClient,
		Headers:    cfg.Headers,
	})
}
