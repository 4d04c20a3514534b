package reasoning

import (
	"context"
	"strings"

	"synthesistalk/internal/models"
)

type SummaryFormat string

const (
	FormatText    SummaryFormat = "text"
	FormatBullets SummaryFormat = "bullets"
	FormatJSON    SummaryFormat = "JSON"
)

const clarifyInstruction = "\n\nWhen clarifying a concept:\n" +
	"1. Start with a simple, jargon-free definition.\n" +
	"2. Explain how it works using an everyday analogy.\n" +
	"3. Give one concrete example.\n" +
	"4. Connect it to what we discussed earlier when relevant.\n" +
	"5. Finish with a one-sentence recap."

// ChainOfThoughtSummary summarizes text in the requested format. JSON output is
// returned as the model wrote it, without validation.
func (e *Engine) ChainOfThoughtSummary(ctx context.Context, text string, format SummaryFormat) string {
	var prompt string
	switch format {
	case FormatJSON:
		prompt = "Summarize the following text as raw JSON only. Do not include markdown formatting or code blocks. Just output a valid JSON object.\n\n" + text
	case FormatBullets:
		prompt = "Summarize the following text using concise bullet points:\n\n" + text
	default:
		prompt = "Let's think step by step. Summarize this logically:\n\n" + text
	}
	reply, err := e.ask(ctx, "summary", prompt)
	if err != nil {
		return llmFailureText
	}
	return reply
}

// RespondWithContext answers over a prepared bundle.
func (e *Engine) RespondWithContext(ctx context.Context, bundle models.ContextBundle) string {
	reply, err := e.complete(ctx, "respond", bundle)
	if err != nil {
		return contextFailureText
	}
	return reply
}

// ClarifyConceptEnhanced adds the teaching instructions to the system message
// and answers over the bundle. The caller's bundle is left untouched.
func (e *Engine) ClarifyConceptEnhanced(ctx context.Context, bundle models.ContextBundle) string {
	return e.RespondWithContext(ctx, withSystemSuffix(bundle, clarifyInstruction))
}

// withSystemSuffix returns a copy of bundle whose leading system message ends
// with suffix, adding a system message when there is none.
func withSystemSuffix(bundle models.ContextBundle, suffix string) models.ContextBundle {
	out := bundle.Clone()
	if len(out) > 0 && out[0].Role == models.RoleSystem {
		out[0].Content += suffix
		return out
	}
	return append(models.ContextBundle{{Role: models.RoleSystem, Content: strings.TrimLeft(suffix, "\n")}}, out...)
}
