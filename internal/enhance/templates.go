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

import "github.com/your-org/jesus-letters-api/internal/letter"

// topicInfo carries the per-topic phrasing used by prayer templates
type topicInfo struct {
	Name          string
	PrayerContext string
	HiddenNeeds   string
}

// topicTable keys enhancement content by topic. Kept as data, separate from
// the pipeline logic that consumes it.
var topicTable = map[string]topicInfo{
	letter.TopicWork: {
		Name:          "工作",
		PrayerContext: "工作上的需要",
		HiddenNeeds:   "工作壓力、人際關係、職涯方向、工作與生活平衡的困擾",
	},
	letter.TopicWealth: {
		Name:          "財富",
		PrayerContext: "經濟上的需要",
		HiddenNeeds:   "經濟壓力、理財焦慮、對未來的不安全感、物質與心靈的平衡",
	},
	letter.TopicFaith: {
		Name:          "信仰",
		PrayerContext: "信仰上的需要",
		HiddenNeeds:   "靈性乾渴、信心軟弱、與神關係的疏遠、屬靈爭戰",
	},
	letter.TopicRelationship: {
		Name:          "感情",
		PrayerContext: "感情上的需要",
		HiddenNeeds:   "關係中的傷痛、孤單感、對愛的渴望、過去的創傷",
	},
	letter.TopicHealth: {
		Name:          "健康",
		PrayerContext: "健康上的需要",
		HiddenNeeds:   "身體的痛苦、對疾病的恐懼、心理健康、家人的擔憂",
	},
	letter.TopicFamily: {
		Name:          "家庭",
		PrayerContext: "家庭上的需要",
		HiddenNeeds:   "家庭衝突、代溝問題、責任重擔、對家人的擔心",
	},
	letter.TopicOther: {
		Name:          "其他",
		PrayerContext: "生活中的各種需要",
		HiddenNeeds:   "內心深處的困擾、說不出的重擔、未來的不確定性",
	},
}

// topicFor resolves a topic to its table entry, handling free-text topics
func topicFor(topic string) topicInfo {
	if info, ok := topicTable[topic]; ok {
		return info
	}
	return topicInfo{
		Name:          topic,
		PrayerContext: "生活中的需要",
		HiddenNeeds:   "內心的重擔和困擾",
	}
}

// insightPhrases maps keywords found in the letter to intercession lines
// woven into the enhanced prayer, so the two fields read as one piece.
var insightPhrases = []struct {
	Keyword string
	Phrase  string
}{
	{"平安", "求你賜給他/她內心的平安，"},
	{"智慧", "求你賜給他/她屬天的智慧，"},
	{"力量", "求你成為他/她的力量，"},
	{"盼望", "求你賜給他/她活潑的盼望，"},
	{"恩典", "讓他/她經歷你豐盛的恩典，"},
}

// fallbackReferences are the citations used by default and static fallback
// content, with the best-known first.
var fallbackReferences = []string{
	"馬太福音 11:28 - 凡勞苦擔重擔的人可以到我這裡來，我就使你們得安息。",
	"詩篇 23:1 - 耶和華是我的牧者，我必不致缺乏。",
	"腓立比書 4:13 - 我靠著那加給我力量的，凡事都能做。",
}

// defaultCoreMessage is the one-line summary used when the provider gives none
const defaultCoreMessage = "神愛你，祂必與你同在，永不離棄你。"

// defaultReference is the single citation used when the array is empty
const defaultReference = "約翰福音 3:16"
