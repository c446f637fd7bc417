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

// Package pipeline orchestrates prompt building, provider calls and response
// recovery into one generation flow with provider failover.
//
// The state machine is TryPrimary -> TryFallbackProvider -> TryStaticFallback.
// No state is attempted more than once and the machine always terminates in
// a populated response: provider errors are absorbed into fallback
// transitions, never surfaced to the caller.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/jesus-letters-api/internal/enhance"
	"github.com/your-org/jesus-letters-api/internal/letter"
	"github.com/your-org/jesus-letters-api/internal/normalize"
	"github.com/your-org/jesus-letters-api/internal/prompt"
	"github.com/your-org/jesus-letters-api/internal/provider"
)

// fallbackServiceTag marks responses produced without any provider
const fallbackServiceTag = "fallback"

var errNoProvider = errors.New("no provider available")

// buildPrompt assembles both instruction strings for one request
func buildPrompt(input letter.UserInput) provider.Prompt {
	in := prompt.Input{
		Nickname:  input.Nickname,
		Topic:     input.Topic,
		Situation: input.Situation,
		Religion:  input.Religion,
	}
	return provider.Prompt{
		System: prompt.BuildSystemPrompt(in),
		User:   prompt.BuildFullPrompt(in),
	}
}

// Orchestrator runs the generation pipeline with failover
type Orchestrator struct {
	primary    provider.Provider
	secondary  provider.Provider
	normalizer *normalize.Normalizer
	enhancer   *enhance.Enhancer
	logger     *zap.Logger
}

// ServiceStatus reports provider availability for the status endpoint
type ServiceStatus struct {
	OpenAI           bool   `json:"openai"`
	Gemini           bool   `json:"gemini"`
	Initialized      bool   `json:"initialized"`
	PreferredService string `json:"preferredService"`
}

// New creates an Orchestrator. Either provider may be nil when its API key
// is not configured; a nil primary degrades straight to the secondary, and
// with both nil every request resolves to the static fallback.
func New(primary, secondary provider.Provider, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		primary:    primary,
		secondary:  secondary,
		normalizer: normalize.New(logger),
		enhancer:   enhance.New(logger),
		logger:     logger,
	}
}

// Generate runs the full pipeline for one request. It never returns an
// error: every failure path degrades to a populated response with fallback
// metadata. Input validation is the HTTP layer's job and happens before
// this point.
func (o *Orchestrator) Generate(ctx context.Context, input letter.UserInput) letter.GeneratedResponse {
	requestID := uuid.NewString()
	start := time.Now()

	o.logger.Info("Generation request started",
		zap.String("request_id", requestID),
		zap.String("topic", input.Topic),
		zap.Int("situation_length", len([]rune(input.Situation))),
	)

	p := buildPrompt(input)

	resp, err := o.attempt(ctx, o.primary, requestID, p, input)
	if err == nil {
		return o.finish(requestID, start, resp, p, resp.Metadata.AIService, false, "")
	}
	primaryErr := err

	o.logger.Warn("Primary provider failed, trying fallback provider",
		zap.String("request_id", requestID),
		zap.String("error_kind", string(provider.KindOf(err))),
		zap.Error(err),
	)

	resp, err = o.attempt(ctx, o.secondary, requestID, p, input)
	if err == nil {
		return o.finish(requestID, start, resp, p, resp.Metadata.AIService+"-fallback", true, "")
	}

	o.logger.Error("All providers failed, using static fallback",
		zap.String("request_id", requestID),
		zap.NamedError("primary_error", primaryErr),
		zap.NamedError("fallback_error", err),
	)

	static := enhance.StaticFallback(input)
	return o.finish(requestID, start, static, p, fallbackServiceTag, true, "AI服務暫時不可用")
}

// attempt runs prompt -> gateway -> normalizer -> enhancer against one
// provider. The AIService metadata field carries the provider name out so
// finish can tag the response.
func (o *Orchestrator) attempt(ctx context.Context, prov provider.Provider, requestID string, p provider.Prompt, input letter.UserInput) (letter.GeneratedResponse, error) {
	if prov == nil {
		return letter.GeneratedResponse{}, &provider.Error{
			Provider: "none",
			Kind:     provider.KindUnknown,
			Err:      errNoProvider,
		}
	}

	result, err := prov.Generate(ctx, p)
	if err != nil {
		return letter.GeneratedResponse{}, err
	}

	rec := o.normalizer.Normalize(requestID, result.Text)
	resp := o.enhancer.ValidateAndEnhance(requestID, rec, input)
	resp.Metadata.AIService = prov.Name()
	resp.Metadata.TokenUsage = result.Usage
	return resp, nil
}

// finish stamps metadata onto a response and logs the outcome
func (o *Orchestrator) finish(requestID string, start time.Time, resp letter.GeneratedResponse, p provider.Prompt, serviceTag string, fallback bool, cause string) letter.GeneratedResponse {
	elapsed := time.Since(start)

	usage := resp.Metadata.TokenUsage
	if usage.Prompt == 0 {
		usage.Prompt = prompt.EstimateTokens(p.System) + prompt.EstimateTokens(p.User)
	}
	if usage.Response == 0 {
		usage.Response = prompt.EstimateTokens(resp.JesusLetter) + prompt.EstimateTokens(resp.GuidedPrayer)
	}
	if usage.Total == 0 {
		usage.Total = usage.Prompt + usage.Response
	}

	resp.Metadata = letter.Metadata{
		RequestID:        requestID,
		ProcessingTimeMs: elapsed.Milliseconds(),
		AIService:        serviceTag,
		Fallback:         fallback,
		Error:            cause,
		TokenUsage:       usage,
	}

	o.logger.Info("Generation request completed",
		zap.String("request_id", requestID),
		zap.String("ai_service", serviceTag),
		zap.Bool("fallback", fallback),
		zap.Duration("processing_time", elapsed),
		zap.Int("total_tokens", usage.Total),
	)

	return resp
}

// Status reports which providers are configured and which runs first
func (o *Orchestrator) Status() ServiceStatus {
	status := ServiceStatus{Initialized: true}
	for _, prov := range []provider.Provider{o.primary, o.secondary} {
		if prov == nil {
			continue
		}
		switch prov.Name() {
		case "openai":
			status.OpenAI = true
		case "gemini":
			status.Gemini = true
		}
	}
	if o.primary != nil {
		status.PreferredService = o.primary.Name()
	}
	return status
}
