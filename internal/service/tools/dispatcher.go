package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"synthesistalk/internal/models"
	"synthesistalk/internal/service/prompt"
	"synthesistalk/internal/service/reasoning"
)

const (
	invalidToolText = "Invalid tool name"
	exportTitle     = "SynthesisTalk Export"

	bulletClause  = "\n\nProvide your summary using concise bullet points."
	jsonClause    = "\n\nProvide your summary as raw JSON only. Do not include markdown formatting or code blocks. Just output a valid JSON object."
	defaultClause = "\n\nProvide a clear, well-structured summary using the conversation context."

	qaDraftPrompt = "The following is a draft response. Improve it if it is vague or unclear:\n\n"

	minSummarizeInput = 10
)

// Exporter renders text to a file and returns its path.
type Exporter interface {
	Render(text, title string) (string, error)
}

// Request is one prepared tool call: the formatted input, the context bundle
// built for it and the history it was built from.
type Request struct {
	Tool    string
	Input   string
	Bundle  models.ContextBundle
	History []models.Message
}

// Dispatcher maps a tool name to the engine operation that implements it.
type Dispatcher struct {
	engine   *reasoning.Engine
	exporter Exporter
}

func NewDispatcher(engine *reasoning.Engine, exporter Exporter) *Dispatcher {
	return &Dispatcher{engine: engine, exporter: exporter}
}

// Dispatch runs req. Only export failures are returned as errors; an unknown
// tool yields a result carrying an error message.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (models.ToolResult, error) {
	switch req.Tool {
	case models.ToolSummarize:
		return models.ToolResult{Text: d.summarize(ctx, req)}, nil
	case models.ToolQA:
		draft := d.engine.RespondWithContext(ctx, req.Bundle)
		return models.ToolResult{Text: d.engine.SelfCorrectedResponse(ctx, qaDraftPrompt+draft, 0)}, nil
	case models.ToolSearch:
		var summary string
		if len(req.History) > 0 {
			summary = prompt.ConversationSummary(req.History)
		}
		return models.ToolResult{Text: d.engine.SearchWithSummary(ctx, req.Input, summary)}, nil
	case models.ToolClarify:
		return models.ToolResult{Text: d.engine.ClarifyConceptEnhanced(ctx, req.Bundle)}, nil
	case models.ToolVisualize:
		return models.ToolResult{Chart: d.engine.GenerateVisualData(ctx, req.Input)}, nil
	case models.ToolReact:
		return models.ToolResult{Text: d.engine.RunFullReact(ctx, req.Input)}, nil
	case models.ToolExportPDF:
		if d.exporter == nil {
			return models.ToolResult{}, errors.New("pdf exporter not configured")
		}
		path, err := d.exporter.Render(req.Input, exportTitle)
		if err != nil {
			return models.ToolResult{}, fmt.Errorf("export pdf: %w", err)
		}
		return models.ToolResult{FilePath: path}, nil
	default:
		return models.ToolResult{Error: invalidToolText}, nil
	}
}

// summarize picks the summary structure from the raw input wording. Short
// input falls back to the latest assistant reply as the text to summarize.
func (d *Dispatcher) summarize(ctx context.Context, req Request) string {
	lowered := strings.ToLower(req.Input)
	bundle := req.Bundle.Clone()

	if len(strings.TrimSpace(req.Input)) < minSummarizeInput {
		if last, ok := lastAssistant(req.History); ok {
			bundle = replaceUserInput(bundle, req.Input, last)
		}
	}

	var clause string
	switch {
	case strings.Contains(lowered, "bullet"):
		clause = bulletClause
	case strings.Contains(lowered, "json"), strings.Contains(lowered, "structured"), strings.Contains(lowered, "machine readable"):
		clause = jsonClause
	default:
		clause = defaultClause
	}
	if len(bundle) > 0 && bundle[0].Role == models.RoleSystem {
		bundle[0].Content += clause
	} else {
		bundle = append(models.ContextBundle{{Role: models.RoleSystem, Content: strings.TrimLeft(clause, "\n")}}, bundle...)
	}
	return d.engine.RespondWithContext(ctx, bundle)
}

// replaceUserInput swaps the trailing user message for text, or appends text
// when the blank input was never added to the bundle.
func replaceUserInput(bundle models.ContextBundle, input, text string) models.ContextBundle {
	n := len(bundle)
	if strings.TrimSpace(input) != "" && n > 0 && bundle[n-1].Role == models.RoleUser && bundle[n-1].Content == input {
		bundle[n-1].Content = text
		return bundle
	}
	return append(bundle, models.ContextMessage{Role: models.RoleUser, Content: text})
}

func lastAssistant(history []models.Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleAssistant {
			return history[i].Content, true
		}
	}
	return "", false
}
