package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/cexll/qwen-go/pkg/config"
	"github.com/cexll/qwen-go/pkg/model"
	"github.com/cexll/qwen-go/pkg/model/qwen"
	"github.com/cexll/qwen-go/pkg/telemetry"
)

func generateCommand(ctx context.Context, argv []string, configPath string, streams ioStreams, stream bool) error {
	name := "generate"
	if stream {
		name = "stream"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(streams.err)
	modelName := fs.String("model", "", "Model name (overrides config).")
	system := fs.String("system", "", "Optional system prompt.")
	useSDK := fs.Bool("sdk", false, "Use the structured SDK transport.")
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return fmt.Errorf("%s: a prompt argument is required", name)
	}

	client, cfg, err := buildClient(configPath, *modelName, "", *useSDK)
	if err != nil {
		return err
	}
	if cfg != nil && cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	messages := buildMessages(*system, prompt)
	if stream {
		return client.GenerateStream(ctx, messages, func(res model.StreamResult) error {
			if res.Final {
				fmt.Fprintln(streams.out)
				if res.Usage.TotalTokens > 0 {
					fmt.Fprintf(streams.err, "usage: input=%d output=%d total=%d\n",
						res.Usage.InputTokens, res.Usage.OutputTokens, res.Usage.TotalTokens)
				}
				return nil
			}
			fmt.Fprint(streams.out, res.Message.Content)
			return nil
		})
	}

	result, err := client.Generate(ctx, messages)
	if err != nil {
		return err
	}
	for _, gen := range result.Generations {
		fmt.Fprintln(streams.out, gen.Message.Content)
	}
	fmt.Fprintf(streams.err, "usage: input=%d output=%d total=%d\n",
		result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.TotalTokens)
	return nil
}

func tokensCommand(argv []string, configPath string, streams ioStreams) error {
	fs := flag.NewFlagSet("tokens", flag.ContinueOnError)
	fs.SetOutput(streams.err)
	modelName := fs.String("model", "", "Model name (overrides config).")
	tokenizer := fs.String("tokenizer", "", "Tokenizer model override.")
	system := fs.String("system", "", "Optional system prompt.")
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return errors.New("tokens: a prompt argument is required")
	}

	client, _, err := buildClient(configPath, *modelName, *tokenizer, false)
	if err != nil {
		return err
	}
	count, err := client.CountMessageTokens(buildMessages(*system, prompt))
	if err != nil {
		return err
	}
	fmt.Fprintln(streams.out, count)
	return nil
}

func buildMessages(system, prompt string) []model.Message {
	var messages []model.Message
	if system != "" {
		messages = append(messages, model.Message{Role: model.RoleSystem, Content: system})
	}
	return append(messages, model.Message{Role: model.RoleUser, Content: prompt})
}

func buildClient(configPath, modelName, tokenizer string, useSDK bool) (*qwen.Client, *config.Config, error) {
	var cfg *config.Config
	clientCfg := qwen.Config{Options: qwen.DefaultOptions("qwen-turbo")}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
		clientCfg = loaded.ClientConfig()
	}
	if modelName != "" {
		clientCfg.Options.Model = modelName
	}
	if tokenizer != "" {
		clientCfg.Options.TiktokenModel = tokenizer
	}
	if useSDK {
		clientCfg.UseSDK = true
	}
	client, err := qwen.NewClient(clientCfg)
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}
