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

package letter

import (
	"errors"
	"strings"
	"testing"
)

func TestUserInput_Validate(t *testing.T) {
	valid := UserInput{Nickname: "小明", Topic: TopicWork, Situation: "最近壓力很大"}

	tests := []struct {
		name    string
		mutate  func(*UserInput)
		wantErr error
	}{
		{"valid input", func(*UserInput) {}, nil},
		{"empty nickname", func(u *UserInput) { u.Nickname = "" }, ErrMissingField},
		{"whitespace nickname", func(u *UserInput) { u.Nickname = "  " }, ErrMissingField},
		{"empty topic", func(u *UserInput) { u.Topic = "" }, ErrMissingField},
		{"empty situation", func(u *UserInput) { u.Situation = "" }, ErrMissingField},
		{"free-text topic accepted", func(u *UserInput) { u.Topic = "考試焦慮" }, nil},
		{"religion optional", func(u *UserInput) { u.Religion = "" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid
			tt.mutate(&input)

			err := input.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestUserInput_SituationLengthBoundary(t *testing.T) {
	base := UserInput{Nickname: "小明", Topic: TopicWork}

	// Length is counted in runes, not bytes
	atLimit := base
	atLimit.Situation = strings.Repeat("壓", MaxSituationLength)
	if err := atLimit.Validate(); err != nil {
		t.Errorf("Expected exactly %d runes to be accepted, got %v", MaxSituationLength, err)
	}

	overLimit := base
	overLimit.Situation = strings.Repeat("壓", MaxSituationLength+1)
	if err := overLimit.Validate(); !errors.Is(err, ErrSituationTooLong) {
		t.Errorf("Expected ErrSituationTooLong for %d runes, got %v", MaxSituationLength+1, err)
	}
}

func TestGeneratedResponse_ContentComplete(t *testing.T) {
	complete := GeneratedResponse{
		JesusLetter:        "信",
		GuidedPrayer:       "禱",
		BiblicalReferences: []string{"約翰福音 3:16"},
		CoreMessage:        "愛",
	}
	if !complete.ContentComplete() {
		t.Error("Expected complete response to report complete")
	}

	missing := complete
	missing.BiblicalReferences = nil
	if missing.ContentComplete() {
		t.Error("Expected response without references to report incomplete")
	}
}
