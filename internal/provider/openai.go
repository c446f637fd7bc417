// Copyright 2025 Jesus Letters Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/jesus-letters-api/internal/letter"
	"github.com/your-org/jesus-letters-api/internal/resilience"
)

// OpenAI generation defaults. The max-token ceiling is deliberately high so
// long letters are not truncated mid-field; truncation is the single most
// common cause of normalizer repair work.
const (
	openAIName        = "openai"
	openAIModel       = "gpt-4o-mini"
	openAITemperature = 0.8
	openAIMaxTokens   = 10000
)

// OpenAIConfig configures the OpenAI-backed provider
type OpenAIConfig struct {
	APIKey      string
	Endpoint    string
	Model       string
	Temperature float32
	MaxTokens   int
}

// OpenAIClient wraps the go-openai SDK as a Provider
type OpenAIClient struct {
	client *openai.Client
	config OpenAIConfig
	logger *zap.Logger
}

// NewOpenAIClient creates the OpenAI provider. The client handle is built
// once and reused read-only across requests.
func NewOpenAIClient(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openAIModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = openAITemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = openAIMaxTokens
	}

	sdkConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		sdkConfig.BaseURL = cfg.Endpoint
	}

	client := &OpenAIClient{
		client: openai.NewClientWithConfig(sdkConfig),
		config: cfg,
		logger: logger,
	}

	logger.Info("OpenAI provider initialized",
		zap.String("model", cfg.Model),
		zap.Int("max_tokens", cfg.MaxTokens),
	)

	return client, nil
}

// Name implements Provider
func (c *OpenAIClient) Name() string { return openAIName }

// Generate implements Provider. Retries happen at this transport level only;
// the orchestrator above never retries a provider it has seen fail.
func (c *OpenAIClient) Generate(ctx context.Context, prompt Prompt) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	start := time.Now()
	var result Result

	backoff := resilience.DefaultBackoffConfig()
	backoff.MaxRetries = MaxTransportRetries
	backoff.RetryOnFunc = retryableProviderError

	err := resilience.WithExponentialBackoff(ctx, c.logger, backoff, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
				{Role: openai.ChatMessageRoleUser, Content: prompt.User},
			},
			Temperature: c.config.Temperature,
			MaxTokens:   c.config.MaxTokens,
		})
		if err != nil {
			return c.classifyError(err)
		}
		if len(resp.Choices) == 0 {
			return &Error{Provider: openAIName, Kind: KindUnknown, Err: fmt.Errorf("empty choices in response")}
		}

		result = Result{
			Text: resp.Choices[0].Message.Content,
			Usage: letter.TokenUsage{
				Prompt:   resp.Usage.PromptTokens,
				Response: resp.Usage.CompletionTokens,
				Total:    resp.Usage.TotalTokens,
			},
		}
		return nil
	})
	if err != nil {
		c.logger.Error("OpenAI generation failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return Result{}, wrapProviderError(openAIName, err)
	}

	c.logger.Debug("OpenAI generation completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("total_tokens", result.Usage.Total),
	)
	return result, nil
}

// classifyError maps SDK errors onto the provider error taxonomy
func (c *OpenAIClient) classifyError(err error) error {
	kind := KindUnknown

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = KindAuth
		case http.StatusTooManyRequests:
			kind = KindRateLimited
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}

	return &Error{Provider: openAIName, Kind: kind, Err: err}
}

// retryableProviderError gates transport-level retries: rate limits and
// transient unknowns retry, auth failures and timeouts do not.
func retryableProviderError(err error) bool {
	if err == nil {
		return false
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// wrapProviderError guarantees a *Error comes back from Generate even when
// the retry helper wraps the last failure
func wrapProviderError(name string, err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	kind := KindUnknown
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Provider: name, Kind: kind, Err: err}
}
