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
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/your-org/jesus-letters-api/internal/prompt"
	"github.com/your-org/jesus-letters-api/internal/resilience"
)

const (
	geminiName        = "gemini"
	geminiModel       = "gemini-2.5-flash"
	geminiTemperature = 0.7
	geminiTopK        = 40
	geminiTopP        = 0.95
	geminiMaxTokens   = 2048
)

// GeminiConfig configures the Gemini-backed provider
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiClient wraps the Google GenAI SDK as a Provider
type GeminiClient struct {
	client *genai.Client
	config GeminiConfig
	logger *zap.Logger
}

// NewGeminiClient creates the Gemini provider
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = geminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger.Info("Gemini provider initialized", zap.String("model", cfg.Model))

	return &GeminiClient{client: client, config: cfg, logger: logger}, nil
}

// Name implements Provider
func (c *GeminiClient) Name() string { return geminiName }

// Generate implements Provider. Gemini takes the combined prompt as user
// content; the system part rides along as a system instruction.
func (c *GeminiClient) Generate(ctx context.Context, p Prompt) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	temperature := float32(geminiTemperature)
	topK := float32(geminiTopK)
	topP := float32(geminiTopP)

	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		TopK:            &topK,
		TopP:            &topP,
		MaxOutputTokens: geminiMaxTokens,
	}
	if p.System != "" {
		genConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: p.System}},
		}
	}

	start := time.Now()
	var result Result

	backoff := resilience.DefaultBackoffConfig()
	backoff.MaxRetries = MaxTransportRetries
	backoff.RetryOnFunc = retryableProviderError

	err := resilience.WithExponentialBackoff(ctx, c.logger, backoff, func(ctx context.Context) error {
		resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(p.User), genConfig)
		if err != nil {
			return c.classifyError(err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return &Error{Provider: geminiName, Kind: KindUnknown, Err: fmt.Errorf("empty candidates in response")}
		}

		text := resp.Text()
		result = Result{Text: text}
		result.Usage.Response = prompt.EstimateTokens(text)
		return nil
	})
	if err != nil {
		c.logger.Error("Gemini generation failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return Result{}, wrapProviderError(geminiName, err)
	}

	c.logger.Debug("Gemini generation completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_length", len(result.Text)),
	)
	return result, nil
}

// classifyError maps GenAI SDK errors onto the provider error taxonomy.
// The SDK surfaces HTTP failures as APIError values with a status code.
func (c *GeminiClient) classifyError(err error) error {
	kind := KindUnknown

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			kind = KindAuth
		case 429:
			kind = KindRateLimited
		}
	} else {
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key"):
			kind = KindAuth
		case strings.Contains(msg, "quota") || strings.Contains(msg, "rate"):
			kind = KindRateLimited
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}

	return &Error{Provider: geminiName, Kind: kind, Err: err}
}
