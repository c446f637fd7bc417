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

// Package enhance validates normalized records against the output contract
// and fills the gaps with personalized template content. It is pure: no
// I/O, deterministic given its inputs and the template table.
package enhance

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/your-org/jesus-letters-api/internal/letter"
	"github.com/your-org/jesus-letters-api/internal/normalize"
)

// Minimum content lengths, in runes, after enhancement
const (
	MinLetterLength = 500
	MinPrayerLength = 300
)

// PrayerIntro is the fixed phrase every guided prayer begins with
const PrayerIntro = "我來為您禱告，如果您願意，可以跟著一起唸："

// prayerContamination matches prayer boilerplate that providers sometimes
// leak into the letter field
var prayerContamination = []*regexp.Regexp{
	regexp.MustCompile(`(?s)我來為您禱告.*?阿們。`),
	regexp.MustCompile(`(?s)親愛的天父.*?阿們。`),
	regexp.MustCompile(`(?s)奉耶穌的名禱告.*?阿們。`),
	regexp.MustCompile(`(?s)如果您願意，可以跟著一起唸.*$`),
}

// Enhancer upgrades normalizer output to a contract-complete response
type Enhancer struct {
	logger *zap.Logger
}

// New creates an Enhancer
func New(logger *zap.Logger) *Enhancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enhancer{logger: logger}
}

// ValidateAndEnhance produces a GeneratedResponse meeting the minimum-length
// invariants. Genuine provider content is preserved: short fields get a
// template block appended rather than replaced, and only absent fields are
// substituted wholesale. Metadata is left zero for the orchestrator to fill.
func (e *Enhancer) ValidateAndEnhance(requestID string, rec normalize.Record, input letter.UserInput) letter.GeneratedResponse {
	resp := letter.GeneratedResponse{
		JesusLetter:        rec.JesusLetter,
		GuidedPrayer:       rec.GuidedPrayer,
		BiblicalReferences: rec.BiblicalReferences,
		CoreMessage:        rec.CoreMessage,
	}

	if resp.JesusLetter == "" {
		resp.JesusLetter = fmt.Sprintf("親愛的%s，我看見了你的困難，我愛你，我與你同在...", input.Nickname)
	}
	if resp.GuidedPrayer == "" {
		resp.GuidedPrayer = defaultPrayer(input)
	}
	if len(resp.BiblicalReferences) == 0 {
		resp.BiblicalReferences = []string{defaultReference}
	}
	if resp.CoreMessage == "" {
		resp.CoreMessage = defaultCoreMessage
	}

	resp.JesusLetter = CleanLetter(resp.JesusLetter)
	resp.GuidedPrayer = CleanPrayer(resp.GuidedPrayer)

	if utf8.RuneCountInString(resp.JesusLetter) < MinLetterLength {
		resp.JesusLetter += letterEnhancement(input)
	}
	if utf8.RuneCountInString(resp.GuidedPrayer) < MinPrayerLength {
		resp.GuidedPrayer += prayerEnhancement(input, resp.JesusLetter)
	}

	e.logger.Debug("Response validated and enhanced",
		zap.String("request_id", requestID),
		zap.Int("letter_length", utf8.RuneCountInString(resp.JesusLetter)),
		zap.Int("prayer_length", utf8.RuneCountInString(resp.GuidedPrayer)),
		zap.Int("reference_count", len(resp.BiblicalReferences)),
	)

	return resp
}

// CleanLetter strips prayer boilerplate that does not belong in the letter
func CleanLetter(text string) string {
	cleaned := text
	for _, pattern := range prayerContamination {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}
	return strings.TrimSpace(cleaned)
}

// CleanPrayer normalizes a prayer to begin with the fixed intro phrase
func CleanPrayer(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "我來為您禱告") {
		cleaned = PrayerIntro + "\n\n" + cleaned
	}
	return cleaned
}

// defaultPrayer is the full substitute used when no prayer was recovered
func defaultPrayer(input letter.UserInput) string {
	return fmt.Sprintf(`%s

親愛的天父，

我們來到你的面前，感謝你賜給我們耶穌基督，讓我們可以透過祂來到你的面前。

我們為%s祈求，在他/她面臨%s的挑戰時，求你賜給他/她智慧和力量。

求你的平安充滿%s的心，讓他/她在困難中仍能經歷你的愛。

主啊，我們將一切都交託在你的手中，相信你必有最好的安排。`,
		PrayerIntro, input.Nickname, input.Topic, input.Nickname)
}

// letterEnhancement is appended to letters below the minimum length. The
// block alone clears MinLetterLength, so one append always satisfies the
// floor even when decontamination emptied the letter.
func letterEnhancement(input letter.UserInput) string {
	return fmt.Sprintf(`

親愛的%s，

我深深理解你在%s方面所面臨的挑戰。每一個困難都是成長的機會，每一次眼淚都被我珍藏。

記住，我曾說過："凡勞苦擔重擔的人可以到我這裡來，我就使你們得安息。"（馬太福音 11:28）你不是孤單的，我一直與你同在。

在這個過程中，請相信我的計劃是美好的。雖然現在可能看不清前路，但我會一步步引導你。就像牧羊人引導羊群一樣，我會帶領你走過這個困難時期。

你或許會問，為什麼這條路如此艱難。孩子，我看見你每一個不眠的夜晚，也聽見你每一聲無人知曉的嘆息。那些你以為白白流掉的眼淚，我都收存起來，一滴也沒有落空。你所承受的一切都不會被浪費，我正在用這些經歷，塑造一個更堅韌、更有盼望的你。

當你軟弱的時候，我的恩典夠你用，因為我的能力是在人的軟弱上顯得完全。不要倚靠自己的聰明，在你一切所行的事上都要認定我，我必指引你的路。把明天的憂慮卸給我，因為一天的難處一天當就夠了。

我也要提醒你，不要忘記身邊愛你的人。他們是我安排在你生命中的祝福，在你需要的時候，容許他們靠近你、扶持你。同樣地，當你走過這段幽谷之後，你的經歷也會成為別人黑夜裡的安慰。

願我的平安充滿你的心，願我的愛成為你的力量。無論前方的路如何，請緊緊握住我的手，一步一步地走。我必不撇下你，也不丟棄你。

愛你的耶穌`, input.Nickname, input.Topic)
}

// prayerEnhancement is appended to prayers below the minimum length. Keywords
// found in the letter are echoed back as intercession lines.
func prayerEnhancement(input letter.UserInput, jesusLetter string) string {
	info := topicFor(input.Topic)

	var insight strings.Builder
	for _, ip := range insightPhrases {
		if strings.Contains(jesusLetter, ip.Keyword) {
			insight.WriteString(ip.Phrase)
		}
	}

	return fmt.Sprintf(`

親愛的天父，

我們來到你的面前，為在%s向你祈求。

感謝你的愛從不改變，感謝你的恩典夠我們用。%s讓我們能夠在困難中看見你的作為。

主啊，雖然我們可能沒有詳細說出所有的困難，但你是無所不知的神，你深知我們在%s方面可能面臨的挑戰，包括%s。求你親自安慰我們的心，醫治那些隱而未現的傷痛。

天父，即使我們沒有說出口的重擔，你都看見了。求你親自背負我們的憂慮，讓我們知道不需要獨自承擔。無論是已經分享的困難，還是藏在心底的掙扎，都求你一一眷顧。

主啊，我們將這一切都交託在你的手中，包括那些說不出來的嘆息和眼淚，相信你必有最好的安排。`,
		info.PrayerContext, insight.String(), info.Name, info.HiddenNeeds)
}

// StaticFallback synthesizes a complete response entirely from templates.
// It is the terminal state of the failover machine: no network, guaranteed
// non-empty, same shape as provider-backed output.
func StaticFallback(input letter.UserInput) letter.GeneratedResponse {
	info := topicFor(input.Topic)

	return letter.GeneratedResponse{
		JesusLetter: fmt.Sprintf(`親愛的%s，

雖然現在我無法給你詳細的回應，但我想讓你知道，我愛你，我看見你在%s方面的困擾。

無論你正在經歷什麼，請記住你不是孤單的。我一直與你同在，我的愛永不改變。

在困難的時候，請來到我面前，將你的重擔卸給我。我會給你力量，我會給你平安。

相信我對你的計劃是美好的，雖然現在可能看不清楚，但我會一步步引導你。

愛你的耶穌`, input.Nickname, input.Topic),

		GuidedPrayer: fmt.Sprintf(`%s

親愛的天父，

我們來到你的面前，感謝你賜給我們耶穌基督，讓我們可以透過祂來到你的面前。

我們為%s祈求，在他/她面臨%s的挑戰時，求你賜給他/她智慧和力量。

主啊，雖然%s可能沒有詳細說出所有的困難，但你是無所不知的神，你深知他/她可能面臨的%s。求你親自安慰他/她的心，醫治那些隱而未現的傷痛。

天父，即使%s沒有說出口的重擔，你都看見了。求你親自背負他/她的憂慮，讓他/她知道不需要獨自承擔。

主啊，我們將一切都交託在你的手中，相信你必有最好的安排。求你繼續引導和保守%s，讓他/她在每一天都能感受到你的同在和愛。`,
			PrayerIntro, input.Nickname, input.Topic, input.Nickname, info.HiddenNeeds, input.Nickname, input.Nickname),

		BiblicalReferences: append([]string(nil), fallbackReferences...),
		CoreMessage:        defaultCoreMessage,
	}
}
