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

// Package provider wraps the external LLM text-generation services behind a
// common interface with fixed timeouts, transport-level retries and a typed
// error taxonomy. Callers treat every provider error identically; the
// classification exists for logging and observability.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/your-org/jesus-letters-api/internal/letter"
)

const (
	// CallTimeout is the wall-clock budget for a single provider call
	CallTimeout = 30 * time.Second
	// MaxTransportRetries is the per-call retry budget inside a client
	MaxTransportRetries = 2
)

// ErrorKind classifies a provider failure
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindAuth        ErrorKind = "auth"
	KindUnknown     ErrorKind = "unknown"
)

// Error is a typed provider failure
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a transport-level retry may help
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindUnknown
}

// KindOf extracts the error kind, defaulting to unknown
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Prompt carries the instruction strings for one generation call. Providers
// that have no system-role concept concatenate the two parts.
type Prompt struct {
	System string
	User   string
}

// Result is the raw outcome of a successful provider call
type Result struct {
	Text  string
	Usage letter.TokenUsage
}

// Provider is an external LLM text-generation service
type Provider interface {
	// Name identifies the provider in metadata tags and logs
	Name() string
	// Generate sends the prompt and returns the raw response text. The call
	// respects CallTimeout; errors are always *Error values.
	Generate(ctx context.Context, prompt Prompt) (Result, error)
}
