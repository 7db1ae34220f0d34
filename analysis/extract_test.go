package analysis

import (
	"strings"
	"testing"

	"github.com/croscope/croscope/models"
)

func TestExtractObject_FencedBlock(t *testing.T) {
	reply := "Here is the analysis you asked for:\n```json\n{\"Main Offer\": \"Free trial\", \"Primary CTA\": \"Sign up\"}\n```\nLet me know if you need anything else."

	obj, err := ExtractObject(reply, 500)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if obj["Main Offer"] != "Free trial" {
		t.Errorf("Main Offer = %q, want %q", obj["Main Offer"], "Free trial")
	}
	if obj["Primary CTA"] != "Sign up" {
		t.Errorf("Primary CTA = %q, want %q", obj["Primary CTA"], "Sign up")
	}
}

func TestExtractObject_FencedBlockUppercaseTag(t *testing.T) {
	reply := "```JSON\n{\"a\": \"b\"}\n```"

	obj, err := ExtractObject(reply, 500)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if obj["a"] != "b" {
		t.Errorf("a = %q, want %q", obj["a"], "b")
	}
}

func TestExtractObject_BracketSpan(t *testing.T) {
	reply := `Sure! The result is {"Platform": "acme", "Navigation Bar": "Yes"} as requested.`

	obj, err := ExtractObject(reply, 500)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if obj["Platform"] != "acme" {
		t.Errorf("Platform = %q, want %q", obj["Platform"], "acme")
	}
}

func TestExtractObject_BalancedScan_StrayBraces(t *testing.T) {
	// A stray closing brace after the object defeats the first-{ last-}
	// span; the balanced scan must still recover the object.
	reply := `note: use {braces} carefully. {"key": "value"} }`

	obj, err := ExtractObject(reply, 500)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if obj["key"] != "value" {
		t.Errorf("key = %q, want %q", obj["key"], "value")
	}
}

func TestExtractObject_BalancedScan_BracesInsideStrings(t *testing.T) {
	reply := `{"headline": "Save {50%} today", "cta": "Buy now"} trailing }`

	obj, err := ExtractObject(reply, 500)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if obj["headline"] != "Save {50%} today" {
		t.Errorf("headline = %q", obj["headline"])
	}
}

func TestExtractObject_PairScan(t *testing.T) {
	// Truncated reply: the object never closes, so no structural strategy
	// can parse it. The pair scan salvages the complete lines.
	reply := "{\n\"Main Offer\": \"CRM software\",\n\"Primary CTA\": \"Start free\",\n\"Above the Fold - Headl"

	obj, err := ExtractObject(reply, 500)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if obj["Main Offer"] != "CRM software" {
		t.Errorf("Main Offer = %q", obj["Main Offer"])
	}
	if obj["Primary CTA"] != "Start free" {
		t.Errorf("Primary CTA = %q", obj["Primary CTA"])
	}
	if _, ok := obj["Above the Fold - Headl"]; ok {
		t.Error("incomplete pair should not be recovered")
	}
}

func TestExtractObject_PairScan_EscapedQuotes(t *testing.T) {
	reply := `"slogan": "We say \"hello\" twice"` + "\n" + `"other": "x"` + "\n incomplete {"

	obj, err := ExtractObject(reply, 500)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if obj["slogan"] != `We say "hello" twice` {
		t.Errorf("slogan = %q", obj["slogan"])
	}
}

func TestExtractObject_NoObject(t *testing.T) {
	reply := "I am sorry, I cannot analyze this page."

	_, err := ExtractObject(reply, 500)
	if err == nil {
		t.Fatal("expected error for reply with no JSON")
	}
	if !models.IsCode(err, models.ErrCodeExtraction) {
		t.Errorf("error code = %s, want %s", models.ErrorCode(err), models.ErrCodeExtraction)
	}
	if !strings.Contains(err.Error(), "I am sorry") {
		t.Errorf("error should carry a reply snippet, got: %v", err)
	}
}

func TestExtractObject_RejectsArray(t *testing.T) {
	_, err := ExtractObject(`["a", "b", "c"]`, 500)
	if err == nil {
		t.Fatal("expected error for a JSON array reply")
	}
}

func TestExtractObject_SnippetBounded(t *testing.T) {
	reply := strings.Repeat("x", 2000)

	_, err := ExtractObject(reply, 100)
	if err == nil {
		t.Fatal("expected error")
	}
	// The message must not carry the whole 2000-char reply.
	if len(err.Error()) > 400 {
		t.Errorf("error message too long (%d chars), snippet not bounded", len(err.Error()))
	}
}

func TestExtractObject_StrategyOrder(t *testing.T) {
	// A fenced object and a different bare object coexist; the fenced one
	// must win because its strategy runs first.
	reply := "```json\n{\"winner\": \"fenced\"}\n```\nAlso: {\"winner\": \"bare\"}"

	obj, err := ExtractObject(reply, 500)
	if err != nil {
		t.Fatalf("ExtractObject failed: %v", err)
	}
	if obj["winner"] != "fenced" {
		t.Errorf("winner = %q, want fenced block to take precedence", obj["winner"])
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{"short text", "hello", 10, "hello"},
		{"exact limit", "hello", 5, "hello"},
		{"truncated", "hello world", 5, "hello"},
		{"zero limit uses default", "hi", 0, "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Snippet(tt.text, tt.limit)
			if got != tt.want {
				t.Errorf("Snippet(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
		})
	}
}

func TestSnippet_MultibyteSafe(t *testing.T) {
	text := strings.Repeat("日", 10)
	got := Snippet(text, 5)
	if got != strings.Repeat("日", 5) {
		t.Errorf("Snippet cut mid-rune: %q", got)
	}
}
