// Package prompt compiles perspective templates and document text into the
// full message sent to the model.
package prompt

import (
	"fmt"

	"github.com/foldingvectors/prism/internal/model"
	"github.com/foldingvectors/prism/internal/registry"
)

const documentSeparator = "\n\nDocument to analyze:\n"

// customEnvelope forces user-authored prompts into a fixed response schema so
// the normalizer and synthesis engine have predictable fields to work with.
// Built-in perspectives carry their own schema inside their templates and are
// not wrapped.
const customEnvelope = `You are an expert analyst with the following perspective and focus:

%s

Analyze the document provided below from this perspective. Be thorough, specific, and provide actionable insights.

IMPORTANT: You must respond ONLY with valid JSON in exactly this format. Do not include any text before or after the JSON.

{
  "summary": "2-3 sentence overview of your key findings from this perspective",
  "key_insights": ["insight 1 with specific details", "insight 2 with specific details", "insight 3 with specific details"],
  "opportunities": ["opportunity 1 with rationale", "opportunity 2 with rationale"],
  "risks_or_concerns": ["risk/concern 1 with explanation", "risk/concern 2 with explanation"],
  "questions": ["critical question 1 that needs to be answered", "critical question 2"],
  "recommendation": "Clear, actionable recommendation based on your %s analysis"
}

Provide at least 3 key insights, 2 opportunities, 2 risks/concerns, and 2 questions. Be specific and reference details from the document.`

// ForBuiltIn joins a built-in perspective's template with the document text.
func ForBuiltIn(p registry.Perspective, document string) string {
	return p.Prompt + documentSeparator + document
}

// ForCustom wraps a user-authored perspective in the structured-output
// envelope before appending the document text.
func ForCustom(cp model.CustomPerspective, document string) string {
	wrapped := fmt.Sprintf(customEnvelope, cp.Prompt, cp.Name)
	return wrapped + documentSeparator + document
}
