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

package prompt

import (
	"strings"
	"testing"
)

func TestDisplayTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"其他", "生活中的各種需要"},
		{"工作", "工作"},
		{"財富", "財務"},
		{"信仰", "信仰"},
		{"考試焦慮", "考試焦慮"}, // free text passes through
		{"", ""},
	}

	for _, tt := range tests {
		if got := DisplayTopic(tt.topic); got != tt.want {
			t.Errorf("DisplayTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	in := Input{Nickname: "小明", Topic: "工作", Situation: "最近工作壓力很大"}

	p := BuildSystemPrompt(in)

	for _, want := range []string{"小明", "工作", "最近工作壓力很大", "jesusLetter", "guidedPrayer", "biblicalReferences", "coreMessage"} {
		if !strings.Contains(p, want) {
			t.Errorf("Expected system prompt to contain %q", want)
		}
	}
	if !strings.Contains(p, "絕對輸出規則") {
		t.Error("Expected system prompt to end with the output format directive")
	}
}

func TestBuildSystemPrompt_Defaults(t *testing.T) {
	p := BuildSystemPrompt(Input{Situation: "情況"})

	if !strings.Contains(p, "朋友") {
		t.Error("Expected default nickname 朋友 for empty nickname")
	}
	if !strings.Contains(p, "生活") {
		t.Error("Expected default topic 生活 for empty topic")
	}
}

func TestBuildFullPrompt(t *testing.T) {
	in := Input{Nickname: "小美", Topic: "其他", Situation: "心情低落", Religion: "基督徒"}

	p := BuildFullPrompt(in)

	if !strings.Contains(p, "小美") {
		t.Error("Expected nickname in full prompt")
	}
	if !strings.Contains(p, "生活中的各種需要") {
		t.Error("Expected 其他 rendered with its display phrasing")
	}
	if !strings.Contains(p, "基督徒") {
		t.Error("Expected religion carried into full prompt")
	}
	if !strings.Contains(p, "絕對輸出規則") {
		t.Error("Expected output format directive in full prompt")
	}
}

func TestBuildFullPrompt_ReligionDefault(t *testing.T) {
	p := BuildFullPrompt(Input{Nickname: "小明", Topic: "工作", Situation: "..."})

	if !strings.Contains(p, "未提供") {
		t.Error("Expected missing religion rendered as 未提供")
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"chinese only", "神愛世人", 6},         // 4 CJK -> (4*3+1)/2 = 6
		{"odd chinese", "愛你們", 5},           // 3 CJK -> (3*3+1)/2 = 5
		{"english only", "God loves you", 3}, // 3 words
		{"mixed", "神愛 you", 4},              // 2 CJK -> 3, plus 1 word
		{"punctuation ignored", "，。！？", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}
