package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/croscope/croscope/models"
)

// A strategy attempts to recover a JSON object from free-form reply text.
// Strategies are ordered from most precise to most permissive: the earlier
// ones reject anything ambiguous, the later ones trade structure fidelity
// for recovery rate on noisy output.
type strategy struct {
	name string
	fn   func(text string) (map[string]any, bool)
}

var strategies = []strategy{
	{"fenced_block", extractFencedBlock},
	{"bracket_span", extractBracketSpan},
	{"balanced_scan", extractBalancedScan},
	{"pair_scan", extractPairScan},
}

// ExtractObject recovers the single JSON object a model was instructed to
// emit, tolerating markdown fencing, surrounding prose and stray braces.
// When no strategy yields an object it fails with EXTRACTION_FAILED carrying
// a snippet of the reply bounded to snippetLimit characters, since the cause
// is almost always a prompt/model issue a human must inspect.
func ExtractObject(reply string, snippetLimit int) (map[string]any, error) {
	for _, s := range strategies {
		if obj, ok := s.fn(reply); ok {
			return obj, nil
		}
	}

	return nil, models.NewAnalysisError(
		models.ErrCodeExtraction,
		fmt.Sprintf("no JSON object recovered from model reply; starts with: %q", Snippet(reply, snippetLimit)),
		nil,
	)
}

// Snippet returns at most limit characters of text, for diagnostics.
func Snippet(text string, limit int) string {
	if limit <= 0 {
		limit = 500
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// parseObject parses s as JSON and accepts only an object — not an array,
// not a scalar.
func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		return nil, false
	}
	return obj, true
}

// reFencedJSON matches a markdown code fence explicitly labeled json.
var reFencedJSON = regexp.MustCompile("(?is)```json\\s*(.+?)```")

// extractFencedBlock parses the interior of a ```json fence. The most
// precise strategy: an explicit language tag is as close to a machine-readable
// marker as model output gets.
func extractFencedBlock(text string) (map[string]any, bool) {
	for _, m := range reFencedJSON.FindAllStringSubmatch(text, -1) {
		if obj, ok := parseObject(m[1]); ok {
			return obj, true
		}
	}
	return nil, false
}

// extractBracketSpan parses the substring from the first '{' to the last '}'
// inclusive. The most common real-world case: the model wraps its JSON in a
// sentence of prose.
func extractBracketSpan(text string) (map[string]any, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	return parseObject(text[start : end+1])
}

// extractBalancedScan walks the text and tries every balanced {...} span as a
// candidate, returning the first that parses. Handles stray braces before or
// after the real object, which defeat the plain first/last span.
func extractBalancedScan(text string) (map[string]any, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		if end, ok := matchBrace(text, i); ok {
			if obj, valid := parseObject(text[i : end+1]); valid {
				return obj, true
			}
			// A balanced but unparseable span; resume after its opener so
			// nested objects still get a chance.
		}
	}
	return nil, false
}

// matchBrace returns the index of the '}' closing the '{' at start, tracking
// JSON string literals so braces inside quoted values do not count.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// rePair matches a `"key": "value"` pair on a single line.
var rePair = regexp.MustCompile(`"((?:[^"\\]|\\.)+)"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// extractPairScan is the last resort: synthesize an object from whatever
// string key/value pairs appear line by line, even if no valid JSON structure
// exists. Sacrifices structure fidelity for partial recovery.
func extractPairScan(text string) (map[string]any, bool) {
	obj := make(map[string]any)
	for _, line := range strings.Split(text, "\n") {
		for _, m := range rePair.FindAllStringSubmatch(line, -1) {
			key, ok1 := unescapeJSONString(m[1])
			val, ok2 := unescapeJSONString(m[2])
			if ok1 && ok2 {
				obj[key] = val
			}
		}
	}
	if len(obj) == 0 {
		return nil, false
	}
	return obj, true
}

// unescapeJSONString decodes the raw interior of a JSON string literal.
func unescapeJSONString(raw string) (string, bool) {
	var s string
	if err := json.Unmarshal([]byte(`"`+raw+`"`), &s); err != nil {
		return "", false
	}
	return s, true
}
