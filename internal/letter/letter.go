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

// Package letter defines the request and response types shared by the
// generation pipeline and the HTTP layer.
package letter

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxSituationLength is the maximum accepted length of the situation
	// field, counted in runes
	MaxSituationLength = 2000
)

// Well-known topic values. Free-text topics are also accepted; these
// constants only drive template selection.
const (
	TopicWork         = "工作"
	TopicWealth       = "財富"
	TopicFaith        = "信仰"
	TopicRelationship = "感情"
	TopicHealth       = "健康"
	TopicFamily       = "家庭"
	TopicOther        = "其他"
)

var (
	// ErrMissingField is returned when a required input field is empty
	ErrMissingField = errors.New("missing required field")
	// ErrSituationTooLong is returned when the situation exceeds MaxSituationLength
	ErrSituationTooLong = errors.New("situation exceeds maximum length")
)

// UserInput is the caller-provided request payload. It is request-scoped
// and never persisted by the pipeline itself.
type UserInput struct {
	Nickname  string `json:"nickname" binding:"required"`
	Topic     string `json:"topic" binding:"required"`
	Situation string `json:"situation" binding:"required"`
	Religion  string `json:"religion,omitempty"`
}

// Validate checks the required fields and the situation length bound.
// A situation of exactly MaxSituationLength runes is accepted.
func (u UserInput) Validate() error {
	if strings.TrimSpace(u.Nickname) == "" {
		return fmt.Errorf("%w: nickname", ErrMissingField)
	}
	if strings.TrimSpace(u.Topic) == "" {
		return fmt.Errorf("%w: topic", ErrMissingField)
	}
	if strings.TrimSpace(u.Situation) == "" {
		return fmt.Errorf("%w: situation", ErrMissingField)
	}
	if n := utf8.RuneCountInString(u.Situation); n > MaxSituationLength {
		return fmt.Errorf("%w: %d > %d", ErrSituationTooLong, n, MaxSituationLength)
	}
	return nil
}

// TokenUsage holds estimated token counts for a single request
type TokenUsage struct {
	Prompt   int `json:"prompt,omitempty"`
	Response int `json:"response,omitempty"`
	Total    int `json:"total,omitempty"`
}

// Metadata describes how a response was produced
type Metadata struct {
	RequestID        string     `json:"requestId"`
	ProcessingTimeMs int64      `json:"processingTime"`
	AIService        string     `json:"aiService"`
	Fallback         bool       `json:"fallback,omitempty"`
	Error            string     `json:"error,omitempty"`
	TokenUsage       TokenUsage `json:"tokenUsage,omitempty"`
}

// GeneratedResponse is the structured output contract of the pipeline.
// Every instance handed to a caller has all four content fields populated,
// regardless of which recovery path produced them.
type GeneratedResponse struct {
	JesusLetter        string   `json:"jesusLetter"`
	GuidedPrayer       string   `json:"guidedPrayer"`
	BiblicalReferences []string `json:"biblicalReferences"`
	CoreMessage        string   `json:"coreMessage"`
	Metadata           Metadata `json:"metadata"`
}

// ContentComplete reports whether all four content fields are non-empty
func (r GeneratedResponse) ContentComplete() bool {
	return r.JesusLetter != "" &&
		r.GuidedPrayer != "" &&
		len(r.BiblicalReferences) > 0 &&
		r.CoreMessage != ""
}
