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

package enhance

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/your-org/jesus-letters-api/internal/letter"
	"github.com/your-org/jesus-letters-api/internal/normalize"
)

var testInput = letter.UserInput{
	Nickname:  "小明",
	Topic:     letter.TopicWork,
	Situation: "最近工作壓力很大",
}

func TestValidateAndEnhance_MinimumLengths(t *testing.T) {
	e := New(nil)

	rec := normalize.Record{
		JesusLetter:        "很短的信。",
		GuidedPrayer:       "很短的禱告。",
		BiblicalReferences: []string{"約翰福音 3:16"},
		CoreMessage:        "神愛你",
	}

	resp := e.ValidateAndEnhance("req", rec, testInput)

	if got := utf8.RuneCountInString(resp.JesusLetter); got < MinLetterLength {
		t.Errorf("Expected letter >= %d runes, got %d", MinLetterLength, got)
	}
	if got := utf8.RuneCountInString(resp.GuidedPrayer); got < MinPrayerLength {
		t.Errorf("Expected prayer >= %d runes, got %d", MinPrayerLength, got)
	}
}

func TestValidateAndEnhance_MinimumLengthWhenLetterEmptied(t *testing.T) {
	e := New(nil)

	// Decontamination strips this letter down to nothing, so the floor
	// must be reachable from an empty string with a single append
	rec := normalize.Record{
		JesusLetter:        "親愛的天父，求你保守小明。阿們。",
		GuidedPrayer:       "短禱告。",
		BiblicalReferences: []string{"約翰福音 3:16"},
		CoreMessage:        "愛",
	}

	resp := e.ValidateAndEnhance("req", rec, testInput)

	if got := utf8.RuneCountInString(resp.JesusLetter); got < MinLetterLength {
		t.Errorf("Expected letter >= %d runes from emptied input, got %d", MinLetterLength, got)
	}
	if got := utf8.RuneCountInString(resp.GuidedPrayer); got < MinPrayerLength {
		t.Errorf("Expected prayer >= %d runes, got %d", MinPrayerLength, got)
	}
}

func TestValidateAndEnhance_AppendsNotReplaces(t *testing.T) {
	e := New(nil)

	rec := normalize.Record{
		JesusLetter:        "這是來自提供者的真實內容。",
		GuidedPrayer:       "我來為您禱告，這是真實的禱告。",
		BiblicalReferences: []string{"詩篇 23:1"},
		CoreMessage:        "平安",
	}

	resp := e.ValidateAndEnhance("req", rec, testInput)

	if !strings.HasPrefix(resp.JesusLetter, "這是來自提供者的真實內容。") {
		t.Errorf("Expected original letter preserved as prefix, got %q", resp.JesusLetter[:50])
	}
	if !strings.Contains(resp.GuidedPrayer, "這是真實的禱告") {
		t.Errorf("Expected original prayer preserved, got %q", resp.GuidedPrayer)
	}
	if resp.BiblicalReferences[0] != "詩篇 23:1" {
		t.Errorf("Expected references untouched, got %v", resp.BiblicalReferences)
	}
}

func TestValidateAndEnhance_LongContentUntouched(t *testing.T) {
	e := New(nil)

	longLetter := strings.Repeat("親愛的小明，神愛你。", 60)  // 600 runes
	longPrayer := "我來為您禱告，" + strings.Repeat("感謝天父。", 80) // > 300 runes

	rec := normalize.Record{
		JesusLetter:        longLetter,
		GuidedPrayer:       longPrayer,
		BiblicalReferences: []string{"約翰福音 3:16"},
		CoreMessage:        "神愛你",
	}

	resp := e.ValidateAndEnhance("req", rec, testInput)

	if resp.JesusLetter != longLetter {
		t.Error("Expected long letter to pass through unchanged")
	}
	if resp.GuidedPrayer != longPrayer {
		t.Error("Expected long prayer to pass through unchanged")
	}
}

func TestValidateAndEnhance_AbsentFieldsSubstituted(t *testing.T) {
	e := New(nil)

	resp := e.ValidateAndEnhance("req", normalize.Record{}, testInput)

	if !resp.ContentComplete() {
		t.Errorf("Expected all fields populated from empty record, got %+v", resp)
	}
	if !strings.Contains(resp.JesusLetter, "小明") {
		t.Errorf("Expected substituted letter personalized with nickname, got %q", resp.JesusLetter)
	}
	if resp.BiblicalReferences[0] != defaultReference {
		t.Errorf("Expected default reference, got %v", resp.BiblicalReferences)
	}
	if resp.CoreMessage != defaultCoreMessage {
		t.Errorf("Expected default core message, got %q", resp.CoreMessage)
	}
}

func TestCleanLetter_StripsPrayerBoilerplate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		gone  string
	}{
		{
			name:  "prayer lead-in block",
			input: "親愛的小明，我愛你。我來為您禱告，親愛的天父，求你保守。阿們。願你平安。",
			gone:  "我來為您禱告",
		},
		{
			name:  "father address block",
			input: "信的內容。親愛的天父，我們感謝你。阿們。信的結尾。",
			gone:  "親愛的天父",
		},
		{
			name:  "prayer closing",
			input: "信的內容。奉耶穌的名禱告，阿們。",
			gone:  "奉耶穌的名",
		},
		{
			name:  "follow-along invitation to end",
			input: "信的內容。如果您願意，可以跟著一起唸：親愛的天父",
			gone:  "跟著一起唸",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaned := CleanLetter(tt.input)
			if strings.Contains(cleaned, tt.gone) {
				t.Errorf("Expected %q removed, got %q", tt.gone, cleaned)
			}
			if !strings.Contains(cleaned, "信的內容") && !strings.Contains(cleaned, "我愛你") {
				t.Errorf("Expected letter content preserved, got %q", cleaned)
			}
		})
	}
}

func TestCleanPrayer_NormalizesIntro(t *testing.T) {
	t.Run("adds missing intro", func(t *testing.T) {
		cleaned := CleanPrayer("親愛的天父，感謝你。")
		if !strings.HasPrefix(cleaned, PrayerIntro) {
			t.Errorf("Expected intro prepended, got %q", cleaned)
		}
	})

	t.Run("keeps existing intro", func(t *testing.T) {
		prayer := "我來為您禱告，如果您願意，可以跟著一起唸：親愛的天父。"
		cleaned := CleanPrayer(prayer)
		if strings.Count(cleaned, "我來為您禱告") != 1 {
			t.Errorf("Expected intro not duplicated, got %q", cleaned)
		}
	})
}

func TestValidateAndEnhance_Decontamination(t *testing.T) {
	e := New(nil)

	rec := normalize.Record{
		JesusLetter:        "親愛的小明，我愛你。親愛的天父，求你祝福小明。阿們。",
		GuidedPrayer:       "親愛的天父，感謝你。",
		BiblicalReferences: []string{"約翰福音 3:16"},
		CoreMessage:        "神愛你",
	}

	resp := e.ValidateAndEnhance("req", rec, testInput)

	if strings.Contains(resp.JesusLetter, "親愛的天父") {
		t.Errorf("Expected prayer block stripped from letter, got %q", resp.JesusLetter)
	}
	if !strings.HasPrefix(resp.GuidedPrayer, "我來為您禱告") {
		t.Errorf("Expected prayer to start with intro, got %q", resp.GuidedPrayer)
	}
}

func TestPrayerEnhancement_InsightEcho(t *testing.T) {
	e := New(nil)

	rec := normalize.Record{
		JesusLetter:        "願我的平安充滿你，願你得著智慧。",
		GuidedPrayer:       "短禱告。",
		BiblicalReferences: []string{"約翰福音 3:16"},
		CoreMessage:        "平安",
	}

	resp := e.ValidateAndEnhance("req", rec, testInput)

	if !strings.Contains(resp.GuidedPrayer, "平安") {
		t.Errorf("Expected 平安 insight echoed into prayer, got %q", resp.GuidedPrayer)
	}
	if !strings.Contains(resp.GuidedPrayer, "智慧") {
		t.Errorf("Expected 智慧 insight echoed into prayer, got %q", resp.GuidedPrayer)
	}
}

func TestStaticFallback(t *testing.T) {
	for _, topic := range []string{letter.TopicWork, letter.TopicFaith, letter.TopicOther, "自訂主題"} {
		t.Run(topic, func(t *testing.T) {
			input := letter.UserInput{Nickname: "小美", Topic: topic, Situation: "..."}
			resp := StaticFallback(input)

			if !resp.ContentComplete() {
				t.Errorf("Expected complete static fallback for topic %s", topic)
			}
			if !strings.Contains(resp.JesusLetter, "小美") {
				t.Errorf("Expected nickname in fallback letter, got %q", resp.JesusLetter)
			}
			if !strings.HasPrefix(resp.GuidedPrayer, PrayerIntro) {
				t.Errorf("Expected prayer intro in fallback, got %q", resp.GuidedPrayer)
			}
			if len(resp.BiblicalReferences) != len(fallbackReferences) {
				t.Errorf("Expected %d fallback references, got %d", len(fallbackReferences), len(resp.BiblicalReferences))
			}
		})
	}
}

func TestTopicFor_FreeText(t *testing.T) {
	info := topicFor("考試焦慮")
	if info.Name != "考試焦慮" {
		t.Errorf("Expected free-text topic carried through, got %s", info.Name)
	}
	if info.PrayerContext == "" || info.HiddenNeeds == "" {
		t.Error("Expected generic context for free-text topic")
	}
}
