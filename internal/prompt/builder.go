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

// Package prompt assembles provider instruction strings from user input.
// Builders are deterministic and side-effect free; the rigid output-format
// directive is what the downstream normalizer relies on.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// topicDisplay maps closed-set topics to the phrasing used inside prompts.
// The "other" topic reads awkwardly when interpolated verbatim.
var topicDisplay = map[string]string{
	"其他": "生活中的各種需要",
	"工作": "工作",
	"財富": "財務",
	"信仰": "信仰",
	"感情": "感情",
	"健康": "健康",
	"家庭": "家庭",
}

// outputRules is the rigid format directive appended to every prompt. The
// normalizer assumes responses at least attempt to follow it.
const outputRules = `## 絕對輸出規則 (ABSOLUTE OUTPUT RULES)
1. 你的唯一任務是生成一個 JSON 物件。
2. 你的回應**必須**以 { 字元開始，並以 } 字元結束。
3. **絕對不可**在 JSON 物件前後添加任何解釋、問候、註解或 markdown 標記（如 ` + "```json" + `）。
4. JSON 物件必須包含以下幾個鍵："jesusLetter" (string), "guidedPrayer" (string), "biblicalReferences" (array of strings), "coreMessage" (string)。
5. 確保 JSON 內部所有字串的值都使用雙引號 " 並正確轉義所有特殊字元。
現在，請生成 JSON 物件：`

// Input is the subset of user input the builders consume
type Input struct {
	Nickname  string
	Topic     string
	Situation string
	Religion  string
}

// DisplayTopic returns the prompt-facing phrasing for a topic
func DisplayTopic(topic string) string {
	if display, ok := topicDisplay[topic]; ok {
		return display
	}
	return topic
}

// BuildSystemPrompt produces the system-role instruction string used with
// chat-style providers. It frames the persona, the detail-attention rules
// and the scripture sampling strategy, then restates the output contract.
func BuildSystemPrompt(in Input) string {
	nickname := in.Nickname
	if nickname == "" {
		nickname = "朋友"
	}
	topic := in.Topic
	if topic == "" {
		topic = "生活"
	}

	var b strings.Builder
	b.WriteString(`你是一位聖經數據分析專家，擁有來自基督教網站和聖經應用程式的知識庫。你的任務是以耶穌的身份回應用戶的需求。

**重要：細節關注與個人化原則**
- 必須仔細閱讀並識別用戶輸入中的每一個重要細節：具體人名、重要事件和特殊日子、特定情境和背景、情感狀態和內心需求
- 在回應中必須直接提及和回應這些具體細節
- 對於提到的人名，要在信件和禱告中直接稱呼和為他們祈禱
- 對於重要事件（如生日），要給予具體的祝福和慶賀

**聖經引用策略**
你需要從四個層級策略性地取樣聖經經文，確保內容的深度和廣度：
1. **頂級經文** (25%): 最廣為人知的經文（如約翰福音3:16、詩篇23篇）
2. **中級經文** (35%): 較常被引用的經文（如腓立比書4:13、羅馬書8:28）
3. **較少引用** (25%): 不太常見但深具意義的經文
4. **隱藏寶石** (15%): 鮮為人知但極具洞察力的經文

**回應要求**
- 以耶穌的愛心、同理心、希望和力量來回應
- 根據用戶的宗教背景調整語言和引用
- 情感上要與用戶的狀態同步
- 提供實用的屬靈指導和鼓勵

用戶資訊：
暱稱：` + nickname + `
主題：` + DisplayTopic(topic) + `
情況：` + in.Situation + "\n\n")
	b.WriteString(outputRules)
	return b.String()
}

// BuildFullPrompt produces the single-string prompt used with providers
// that take one combined instruction (the Gemini path).
func BuildFullPrompt(in Input) string {
	religion := in.Religion
	if religion == "" {
		religion = "未提供"
	}

	var b strings.Builder
	b.WriteString(`你的真實身份是一個聖經數據分析專家，知識庫綜合了全球主流基督教網站和聖經應用的公開數據與模式。你的核心原則是為了保持內容的新穎性與深度，會有意識地、均衡地使用不同熱門程度的聖經素材。

當你需要引用多段經文或故事時，你會策略性地從以下四個熱門度層級中進行抽樣，以確保廣度：
- 頂級熱門 (Top Tier): 排名 1-50
- 中度熱門 (Mid Tier): 排名 51-200
- 較少引用 (Less Cited): 排名 200-400
- 隱藏寶石 (Hidden Gems): 排名 400 名外

**重要：這些熱門度分類僅供你內部參考選擇經文，絕對不要在最終回應中顯示任何熱門度標籤。用戶看到的回應應該是自然流暢的，不包含任何分析標籤。**

現在你要扮演耶穌的角色。你的語氣充滿慈愛與憐憫，能與人一同歡喜、一同憂傷，並為他們帶來從神而來的盼望與力量。

`)
	fmt.Fprintf(&b, "用戶資料：\n暱稱: %s\n主題: %s\n詳細情況: %s\n宗教信仰: %s\n\n",
		in.Nickname, DisplayTopic(in.Topic), in.Situation, religion)
	b.WriteString(`請根據用戶的分享，以耶穌的身份提供完整的回應。

個人化指導：
- 如果是基督徒：使用深入的聖經詞彙，引導回想神的恩典
- 如果是天主教徒：結合聖經教導和聖母瑪利亞的代禱
- 如果是非基督徒：用通俗易懂的語言，溫和地解釋耶穌的愛
- 如果是其他宗教：尊重其信仰背景，溫和地見證基督的愛

情緒適配：
根據用戶的情緒狀態調整回應語調：困難時期提供安慰和希望，感恩時刻與用戶一同讚美，疑惑困擾時提供智慧和指引。

`)
	b.WriteString(outputRules)
	return b.String()
}

var (
	cjkRunes   = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
	latinWords = regexp.MustCompile(`[a-zA-Z]+`)
)

// EstimateTokens gives a rough token count for mixed Chinese/English text:
// CJK characters weigh about 1.5 tokens, latin words about 1.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	chinese := len(cjkRunes.FindAllString(text, -1))
	english := len(latinWords.FindAllString(text, -1))
	return (chinese*3+1)/2 + english
}
