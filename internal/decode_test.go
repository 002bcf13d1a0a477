package internal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStrict(t *testing.T) {
	var draft CaptionDraft
	require.NoError(t, DecodeStrict(`  {"caption":"hi","structure":"pov"}  `, &draft))
	assert.Equal(t, "hi", draft.Caption)

	assert.Error(t, DecodeStrict("```json\n{}\n```", &draft))
}

func TestStripFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"```json\n{\"caption\":\"a\"}\n```", `{"caption":"a"}`},
		{"Sure! Here it is:\n\n```\n{\"caption\":\"b\"}\n```\n", `{"caption":"b"}`},
		{"no fences at all", "no fences at all"},
		{"```json {\"caption\":\"c\"}```", `{"caption":"c"}`},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, StripFences(tc.in), "input %q", tc.in)
	}
}

func TestRepairJSON(t *testing.T) {
	repaired, err := RepairJSON(`Here: {"caption": "trailing comma",} thanks`)
	require.NoError(t, err)

	var draft CaptionDraft
	require.NoError(t, DecodeStrict(repaired, &draft))
	assert.Equal(t, "trailing comma", draft.Caption)

	_, err = RepairJSON("no braces here")
	assert.Error(t, err)
}

func TestExtractFields(t *testing.T) {
	fields := ExtractFields(`{"caption": "say \"hi\"", "structure": "pov", "caption": "second"`)

	assert.Equal(t, `say "hi"`, fields["caption"])
	assert.Equal(t, "pov", fields["structure"])
}

func TestProseFallback(t *testing.T) {
	assert.Equal(t, "First real line", ProseFallback("\n```\n  First real line\nsecond"))
	assert.Equal(t, "", ProseFallback("\n\n"))
}

func TestDecodeCaptionDraftStages(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		stage string
		want  string
	}{
		{"strict", `{"caption":"strict one"}`, "strict", "strict one"},
		{"fenced", "```json\n{\"caption\":\"fenced one\"}\n```", "fences", "fenced one"},
		{"prose", "Just a caption line\nand more", "prose", "Just a caption line"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft, stage, err := DecodeCaptionDraft(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.stage, stage)
			assert.Equal(t, tc.want, draft.Caption)
		})
	}
}

func TestDecodeCaptionDraftUndecodable(t *testing.T) {
	for _, in := range []string{"", "   ", `{"metaphor":"only"}`} {
		_, _, err := DecodeCaptionDraft(in)
		assert.True(t, errors.Is(err, ErrUndecodable), "input %q: %v", in, err)
	}
}

func TestDecodeAnalysis(t *testing.T) {
	analysis, _, err := DecodeAnalysis("```json\n{\"status\":\"pending\",\"confidence\":0.4,\"shouldTweet\":true,\"message\":\"m\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, analysis.Status)
	assert.True(t, analysis.ShouldTweet)

	_, _, err = DecodeAnalysis("I think she passed!")
	assert.ErrorIs(t, err, ErrUndecodable)
}
