package internal

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// The tolerant decoder turns model output into a typed value through a
// chain of stages, each usable on its own:
//
//	DecodeStrict -> StripFences -> RepairJSON -> ExtractFields -> ProseFallback
//
// Later stages are looser; the chain stops at the first one that yields a
// usable value.

// DecodeStrict unmarshals the trimmed text as JSON.
func DecodeStrict(s string, v any) error {
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), v); err != nil {
		return fmt.Errorf("decode strict: %w", err)
	}
	return nil
}

var fenceMarker = regexp.MustCompile("```[a-zA-Z]*")

// StripFences returns the body of the first fenced code block, or the text
// with stray fence markers removed when it has none.
func StripFences(s string) string {
	src := []byte(s)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var body string
	found := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if block, ok := n.(*ast.FencedCodeBlock); ok {
			body = string(block.Lines().Value(src))
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	if found {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(fenceMarker.ReplaceAllString(s, ""))
}

// RepairJSON cuts the outermost {...} span out of s and repairs it.
func RepairJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", fmt.Errorf("repair json: no object in output")
	}
	span := s[start:]
	if end := strings.LastIndex(span, "}"); end >= 0 {
		span = span[:end+1]
	}

	repaired, err := jsonrepair.RepairJSON(span)
	if err != nil {
		return "", fmt.Errorf("repair json: %w", err)
	}
	return repaired, nil
}

var fieldPattern = regexp.MustCompile(`"(caption|metaphor|structure|imageKeyword|message|status)"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// ExtractFields pulls known string fields out of malformed JSON.
func ExtractFields(s string) map[string]string {
	fields := make(map[string]string)
	for _, m := range fieldPattern.FindAllStringSubmatch(s, -1) {
		if _, seen := fields[m[1]]; seen {
			continue
		}
		value, err := strconv.Unquote(`"` + m[2] + `"`)
		if err != nil {
			value = m[2]
		}
		fields[m[1]] = value
	}
	return fields
}

// ProseFallback treats the first non-empty line as the caption. Fence
// lines and bare braces do not count.
func ProseFallback(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") || line == "{" || line == "}" {
			continue
		}
		return strings.Trim(line, `"`)
	}
	return ""
}

// decodeJSON runs the JSON-shaped stages of the chain.
func decodeJSON(s string, v any) (string, bool) {
	if DecodeStrict(s, v) == nil {
		return "strict", true
	}

	stripped := StripFences(s)
	if DecodeStrict(stripped, v) == nil {
		return "fences", true
	}

	if repaired, err := RepairJSON(stripped); err == nil && DecodeStrict(repaired, v) == nil {
		return "repair", true
	}

	return "", false
}

// DecodeCaptionDraft decodes a caption response. The returned stage names
// which step produced the draft.
func DecodeCaptionDraft(s string) (*CaptionDraft, string, error) {
	var draft CaptionDraft
	if stage, ok := decodeJSON(s, &draft); ok && strings.TrimSpace(draft.Caption) != "" {
		draft.Caption = strings.TrimSpace(draft.Caption)
		return &draft, stage, nil
	}

	if fields := ExtractFields(s); fields["caption"] != "" {
		return &CaptionDraft{
			Caption:      strings.TrimSpace(fields["caption"]),
			Metaphor:     fields["metaphor"],
			Structure:    fields["structure"],
			ImageKeyword: fields["imageKeyword"],
		}, "fields", nil
	}

	if !strings.Contains(s, "{") {
		if line := ProseFallback(s); line != "" {
			return &CaptionDraft{Caption: line}, "prose", nil
		}
	}

	return nil, "", ErrUndecodable
}

// DecodeAnalysis decodes a status analysis response. Prose is not accepted:
// an analysis without a status is useless.
func DecodeAnalysis(s string) (*StatusAnalysis, string, error) {
	var analysis StatusAnalysis
	if stage, ok := decodeJSON(s, &analysis); ok && analysis.Status != "" {
		analysis.Status = Status(strings.ToUpper(string(analysis.Status)))
		return &analysis, stage, nil
	}

	fields := ExtractFields(s)
	if fields["status"] == "" {
		return nil, "", ErrUndecodable
	}

	return &StatusAnalysis{
		Status:       Status(strings.ToUpper(fields["status"])),
		ShouldTweet:  fields["message"] != "",
		Message:      fields["message"],
		ImageKeyword: fields["imageKeyword"],
	}, "fields", nil
}
