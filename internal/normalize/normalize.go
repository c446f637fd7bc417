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

// Package normalize recovers a structured record from raw LLM output.
//
// Providers truncate responses at token limits, wrap JSON in prose or code
// fences, and emit near-JSON with minor syntax defects. The normalizer
// treats that whole failure space as expected input and applies recovery
// layers of strictly decreasing precision: exact parse, structural repair,
// regex reconstruction, static defaults. The final layer cannot fail, so
// Normalize never returns an error; content correctness beyond structure is
// out of its hands.
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Field keys expected in provider output
const (
	KeyJesusLetter        = "jesusLetter"
	KeyGuidedPrayer       = "guidedPrayer"
	KeyBiblicalReferences = "biblicalReferences"
	KeyCoreMessage        = "coreMessage"
)

// Placeholder content for fields that cannot be recovered at all. The
// enhancer upgrades these to full personalized templates afterwards.
const (
	placeholderLetter  = "親愛的朋友，我聽見了你的心聲，我愛你，我與你同在。"
	placeholderPrayer  = "親愛的天父，感謝你的愛和恩典，求你賜給我們平安和力量。"
	placeholderMessage = "神愛你，祂必與你同在"
)

// placeholderReference is the single citation used when none survive recovery
const placeholderReference = "約翰福音 3:16"

// freeTextLetterLimit caps how much of a non-JSON response is salvaged into
// the letter field
const freeTextLetterLimit = 800

// Record is the normalizer's output: the four content fields, always
// populated. It carries no metadata; the orchestrator owns that.
type Record struct {
	JesusLetter        string   `json:"jesusLetter"`
	GuidedPrayer       string   `json:"guidedPrayer"`
	BiblicalReferences []string `json:"biblicalReferences"`
	CoreMessage        string   `json:"coreMessage"`
}

// Normalizer converts raw provider text into a Record
type Normalizer struct {
	logger *zap.Logger
}

// New creates a Normalizer
func New(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize applies the recovery layers in order and always produces a
// fully-populated Record. Already-valid JSON passes through unchanged.
func (n *Normalizer) Normalize(requestID, raw string) Record {
	// Segmented or truncated responses are rebuilt before any cleanup, so
	// that brace counting sees the original text.
	accumulated := n.accumulateChunks(requestID, raw)

	cleaned := stripFences(accumulated)
	cleaned = isolateJSON(cleaned)

	if rec, ok := parseRecord(cleaned); ok {
		n.logger.Debug("Response parsed directly",
			zap.String("request_id", requestID))
		return rec
	}

	repaired := fixFormat(cleaned)
	if rec, ok := parseRecord(repaired); ok {
		n.logger.Info("Response parsed after format repair",
			zap.String("request_id", requestID))
		return rec
	}

	// Last layer: field-level extraction with placeholder defaults. This
	// always succeeds.
	n.logger.Warn("Falling back to field-level extraction",
		zap.String("request_id", requestID),
		zap.Int("response_length", len(raw)))
	return extractFields(raw)
}

// accumulateChunks detects segmented responses (some but not all field keys
// present) and incomplete JSON (unbalanced braces), rebuilding a parseable
// string in either case. Complete-looking input passes through untouched.
func (n *Normalizer) accumulateChunks(requestID, raw string) string {
	hasLetterOnly := containsKey(raw, KeyJesusLetter) && !containsKey(raw, KeyGuidedPrayer)
	hasPrayerOnly := containsKey(raw, KeyGuidedPrayer) && !containsKey(raw, KeyBiblicalReferences)
	hasRefsOnly := containsKey(raw, KeyBiblicalReferences) && !containsKey(raw, KeyCoreMessage)
	hasMessageCut := containsKey(raw, KeyCoreMessage) && !strings.Contains(raw, "}")

	if hasLetterOnly || hasPrayerOnly || hasRefsOnly || hasMessageCut {
		n.logger.Info("Segmented response detected, reconstructing",
			zap.String("request_id", requestID))
		rec := extractFields(raw)
		data, err := json.Marshal(rec)
		if err != nil {
			// Record contains only strings; marshaling cannot realistically
			// fail, but fall through to the raw text if it does.
			return raw
		}
		return string(data)
	}

	if strings.Count(raw, "{") > strings.Count(raw, "}") {
		n.logger.Info("Incomplete JSON detected, completing",
			zap.String("request_id", requestID))
		return completeJSON(raw)
	}

	return raw
}

func containsKey(s, key string) bool {
	return strings.Contains(s, `"`+key+`"`)
}

var (
	fenceOpen  = regexp.MustCompile("(?i)^`{3,}\\s*json\\s*")
	fenceClose = regexp.MustCompile("`{3,}\\s*$")
	fenceJSON  = regexp.MustCompile("(?i)`{3,}json\\s*")
	fenceAny   = regexp.MustCompile("`{3,}")
)

// stripFences removes markdown code-fence markers wherever they appear
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	s = fenceJSON.ReplaceAllString(s, "")
	s = fenceAny.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// isolateJSON keeps the span from the first '{' to the last '}', discarding
// any surrounding prose the model added despite instructions
func isolateJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// stringFieldOpen matches a known string field whose value never closes,
// which is how token-limit truncation usually presents
var stringFieldOpen = []*regexp.Regexp{
	regexp.MustCompile(`"jesusLetter"\s*:\s*"[^"]*$`),
	regexp.MustCompile(`"guidedPrayer"\s*:\s*"[^"]*$`),
	regexp.MustCompile(`"coreMessage"\s*:\s*"[^"]*$`),
}

var arrayOpen = regexp.MustCompile(`"biblicalReferences"\s*:\s*\[[^\]]*$`)

// completeJSON heuristically closes an open string value, an open array and
// any unbalanced braces
func completeJSON(s string) string {
	completed := strings.TrimSpace(s)

	for _, pattern := range stringFieldOpen {
		if pattern.MatchString(completed) {
			completed += `"`
		}
	}
	if arrayOpen.MatchString(completed) {
		completed += "]"
	}

	open := strings.Count(completed, "{")
	closed := strings.Count(completed, "}")
	for i := 0; i < open-closed; i++ {
		completed += "}"
	}
	return completed
}

var (
	quotedString  = regexp.MustCompile(`"[^"]*"`)
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedValue = regexp.MustCompile(`:\s*([^"\s{}\[\],][^,}\]]*)`)
	numberLiteral = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// fixFormat repairs the common syntax defects in near-JSON output: raw
// control characters inside string values, trailing commas, and bare
// scalar values that should have been quoted.
func fixFormat(s string) string {
	if _, ok := parseRecord(s); ok {
		return s
	}

	s = stripFences(s)
	s = isolateJSON(s)

	// Escape raw newlines and tabs inside string values. Paragraph breaks
	// are kept as-is; they are content, not a syntax defect.
	s = quotedString.ReplaceAllStringFunc(s, func(match string) string {
		inner := match[1 : len(match)-1]
		inner = strings.ReplaceAll(inner, "\r\n", `\n`)
		inner = strings.ReplaceAll(inner, "\n", `\n`)
		inner = strings.ReplaceAll(inner, "\r", `\n`)
		inner = strings.ReplaceAll(inner, "\t", `\t`)
		return `"` + inner + `"`
	})

	s = trailingComma.ReplaceAllString(s, "$1")

	s = unquotedValue.ReplaceAllStringFunc(s, func(match string) string {
		colon := strings.Index(match, ":")
		value := strings.TrimSpace(match[colon+1:])
		if value == "true" || value == "false" || value == "null" || numberLiteral.MatchString(value) {
			return match
		}
		return `: "` + value + `"`
	})

	return s
}

// parseRecord attempts a strict JSON parse into the expected shape
func parseRecord(s string) (Record, bool) {
	var aux struct {
		JesusLetter        string          `json:"jesusLetter"`
		GuidedPrayer       string          `json:"guidedPrayer"`
		BiblicalReferences json.RawMessage `json:"biblicalReferences"`
		CoreMessage        string          `json:"coreMessage"`
	}
	if err := json.Unmarshal([]byte(s), &aux); err != nil {
		return Record{}, false
	}

	rec := Record{
		JesusLetter:  aux.JesusLetter,
		GuidedPrayer: aux.GuidedPrayer,
		CoreMessage:  aux.CoreMessage,
	}

	// References usually arrive as an array of strings, but a lone string
	// shows up often enough to tolerate.
	if len(aux.BiblicalReferences) > 0 {
		var refs []string
		if err := json.Unmarshal(aux.BiblicalReferences, &refs); err == nil {
			rec.BiblicalReferences = refs
		} else {
			var single string
			if err := json.Unmarshal(aux.BiblicalReferences, &single); err == nil && single != "" {
				rec.BiblicalReferences = []string{single}
			}
		}
	}

	// A parse that yields nothing usable is not a success; deeper layers
	// may still salvage field fragments.
	if rec.JesusLetter == "" && rec.GuidedPrayer == "" && rec.CoreMessage == "" && len(rec.BiblicalReferences) == 0 {
		return Record{}, false
	}

	return rec, true
}

var (
	letterField  = regexp.MustCompile(`"jesusLetter"\s*:\s*"((?:[^"\\]|\\.)*)`)
	prayerField  = regexp.MustCompile(`"guidedPrayer"\s*:\s*"((?:[^"\\]|\\.)*)`)
	messageField = regexp.MustCompile(`"coreMessage"\s*:\s*"((?:[^"\\]|\\.)*)`)
	refsField    = regexp.MustCompile(`"biblicalReferences"\s*:\s*\[([^\]]*)`)
	refItem      = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// extractFields independently regex-matches each of the four fields against
// the raw text, tolerating whatever surrounds them, and defaults anything
// that cannot be located. This is the terminal recovery layer: it cannot
// fail to produce a well-formed Record.
func extractFields(raw string) Record {
	rec := Record{}

	if m := letterField.FindStringSubmatch(raw); m != nil {
		rec.JesusLetter = unescape(trimOpenQuote(m[1]))
	}
	if m := prayerField.FindStringSubmatch(raw); m != nil {
		rec.GuidedPrayer = unescape(trimOpenQuote(m[1]))
	}
	if m := messageField.FindStringSubmatch(raw); m != nil {
		rec.CoreMessage = unescape(trimOpenQuote(m[1]))
	}
	if m := refsField.FindStringSubmatch(raw); m != nil {
		for _, item := range refItem.FindAllStringSubmatch(m[1], -1) {
			if ref := unescape(item[1]); ref != "" {
				rec.BiblicalReferences = append(rec.BiblicalReferences, ref)
			}
		}
	}

	// Free text with no recognizable fields at all: salvage the leading
	// portion as the letter rather than discarding everything.
	if rec.JesusLetter == "" && rec.GuidedPrayer == "" && rec.CoreMessage == "" && len(rec.BiblicalReferences) == 0 {
		text := strings.TrimSpace(raw)
		if text != "" && !strings.Contains(text, "{") {
			rec.JesusLetter = truncateRunes(text, freeTextLetterLimit)
		}
	}

	if rec.JesusLetter == "" {
		rec.JesusLetter = placeholderLetter
	}
	if rec.GuidedPrayer == "" {
		rec.GuidedPrayer = placeholderPrayer
	}
	if len(rec.BiblicalReferences) == 0 {
		rec.BiblicalReferences = []string{placeholderReference}
	}
	if rec.CoreMessage == "" {
		rec.CoreMessage = placeholderMessage
	}

	return rec
}

// trimOpenQuote drops a dangling closing quote captured from truncated input
func trimOpenQuote(s string) string {
	return strings.TrimSuffix(s, `"`)
}

// unescape decodes the escape sequences regex extraction leaves literal
func unescape(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\t`, "\t")
	s = strings.ReplaceAll(s, `\"`, `"`)
	return s
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
