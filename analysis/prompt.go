package analysis

import (
	"fmt"
	"strings"
)

// defaultTemplate is the built-in CRO analysis prompt. The closing
// JSON-only instruction is what the response extractor's reliability leans
// on, though replies are never trusted to actually honor it.
const defaultTemplate = `As a digital marketing and CRO (Conversion Rate Optimization) expert, analyze the provided landing page screenshot and text content for the company '%[1]s'.
Your goal is to populate a structured JSON object based on the visual and textual evidence.

**Webpage Information:**
- **Provider:** %[1]s
- **URL:** %[2]s
%[3]s
**Instructions:**
Carefully examine the **screenshot** for visual layout, design elements, and "above the fold" content.
If text content is provided, use it to extract specific details and copy. If not, rely only on the screenshot.
Fill out the following JSON object.

If you cannot determine a value, use "Not Found" or "N/A".

**JSON Structure to Populate:**
{
  "Platform": "%[1]s",
  "URL": "%[2]s",
  "Main Offer": "Describe the main value proposition or product offering.",
  "Purchase or Lead Gen Form": "...",
  "Primary CTA": "...",
  "Above the Fold - Headline": "...",
  "Above the Fold - Trust Elements": "...",
  "Above the Fold - Other Elements": "...",
  "Above the Fold - Creative (Yes/No)": "...",
  "Above the Fold - Creative Type": "...",
  "Above the Fold - Creative Position": "...",
  "Above the Fold - # of CTAs": "...",
  "Above the Fold - CTA / Form Position": "...",
  "Primary CTA Just for Free Trial": "...",
  "Secondary CTA": "...",
  "Clickable Logo": "...",
  "Navigation Bar": "..."
}

Return ONLY the valid JSON object, with no other text, comments, or markdown formatting.`

// textSectionTemplate renders the page-text block. It is omitted entirely
// when no text is available, so the model is not misled into treating "no
// text" as evidence about the page.
const textSectionTemplate = `- **Text Content (first %d characters):**
---
%s
---
`

// PromptBuilder fills the analysis template with per-page values, bounding
// the page text to a fixed character budget.
type PromptBuilder struct {
	textLimit int
}

// NewPromptBuilder creates a builder with the given page-text character
// budget.
func NewPromptBuilder(textLimit int) *PromptBuilder {
	if textLimit <= 0 {
		textLimit = 15000
	}
	return &PromptBuilder{textLimit: textLimit}
}

// Build produces the analysis prompt for one page. A non-empty override is
// returned verbatim and the template is bypassed entirely.
func (b *PromptBuilder) Build(displayName, url, text, override string) string {
	if override != "" {
		return override
	}

	textSection := ""
	if strings.TrimSpace(text) != "" {
		textSection = fmt.Sprintf(textSectionTemplate, b.textLimit, b.Truncate(text))
	}

	return fmt.Sprintf(defaultTemplate, displayName, url, textSection)
}

// Truncate applies the hard character cut to page text. The cut is not
// word-aware; mid-word truncation is accepted to keep the budget exact.
func (b *PromptBuilder) Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= b.textLimit {
		return text
	}
	return string(runes[:b.textLimit])
}
