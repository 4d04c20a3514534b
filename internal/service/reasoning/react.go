package reasoning

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"synthesistalk/internal/models"
)

const (
	finalAnswerMarker  = "Final Answer:"
	reactFailureText   = "Sorry, the research agent could not complete this request."
	searchFailedObs    = "Search is currently unavailable."
	noSearchResultsObs = "No search results found."
	observationBody    = 200
	observationResults = 3
)

const reactSystemPrompt = "You are a research agent that answers questions with the ReAct method.\n" +
	"You can use exactly one of these tools:\n" +
	"- Search[query]: look up current information on the web\n" +
	"- Clarify[concept]: explain a concept clearly\n" +
	"- Summarize[text]: condense a piece of text\n\n" +
	"Always answer using this structure:\n" +
	"Thought: what you need to find out\n" +
	"Action: ToolName[argument]\n" +
	"Observation: the result of the action\n" +
	"Thought: what the observation tells you\n" +
	"Final Answer: the answer to the question"

var (
	actionRe      = regexp.MustCompile(`(?i)Action:\s*(\w+)\[(.*?)\]`)
	observationRe = regexp.MustCompile(`(?s)Observation:.*$`)
)

type action struct {
	tool string
	arg  string
}

// parseAction finds the first Action: Tool[argument] in text. The argument
// must sit on one line and ends at the first closing bracket.
func parseAction(text string) (action, bool) {
	m := actionRe.FindStringSubmatch(text)
	if m == nil {
		return action{}, false
	}
	return action{tool: m[1], arg: strings.Trim(m[2], "\"' ")}, true
}

// injectObservation replaces everything from the model's own Observation: to
// the end of text with the real observation.
func injectObservation(text, observation string) string {
	replacement := "Observation: " + observation
	if observationRe.MatchString(text) {
		return observationRe.ReplaceAllLiteralString(text, replacement)
	}
	return strings.TrimRight(text, "\n") + "\n" + replacement
}

// RunFullReact runs the agent over question. Each step runs at most one tool;
// when the trace has no Final Answer after the last step, one follow-up call
// asks for it.
func (e *Engine) RunFullReact(ctx context.Context, question string) string {
	seed := models.ContextBundle{
		{Role: models.RoleSystem, Content: reactSystemPrompt},
		{Role: models.RoleUser, Content: question},
	}
	segment, err := e.complete(ctx, "react", seed)
	if err != nil {
		return reactFailureText
	}

	var trace string
	for step := 0; ; step++ {
		act, ok := parseAction(segment)
		if !ok {
			return joinTrace(trace, segment)
		}
		segment = injectObservation(segment, e.observe(ctx, act))
		trace = joinTrace(trace, segment)
		if strings.Contains(trace, finalAnswerMarker) {
			return trace
		}
		if step+1 >= e.maxReactSteps {
			break
		}
		next, err := e.complete(ctx, "react step", followUp(seed, trace,
			"Continue with the next Thought and Action, or give the Final Answer if you have enough information."))
		if err != nil {
			break
		}
		segment = next
	}

	final, err := e.complete(ctx, "react final", followUp(seed, trace,
		"Based on the observation above, give the Final Answer to the question."))
	if err != nil {
		return trace
	}
	if !strings.Contains(final, finalAnswerMarker) {
		final = finalAnswerMarker + " " + final
	}
	return trace + "\n" + final
}

func followUp(seed models.ContextBundle, trace, instruction string) models.ContextBundle {
	out := seed.Clone()
	return append(out,
		models.ContextMessage{Role: models.RoleAssistant, Content: trace},
		models.ContextMessage{Role: models.RoleUser, Content: instruction},
	)
}

func joinTrace(trace, segment string) string {
	if trace == "" {
		return segment
	}
	return trace + "\n" + segment
}

func (e *Engine) observe(ctx context.Context, act action) string {
	switch strings.ToLower(act.tool) {
	case "search":
		return e.searchObservation(ctx, act.arg)
	case "clarify":
		return e.ChainOfThoughtSummary(ctx, "Explain this concept clearly: "+act.arg, FormatText)
	case "summarize":
		return e.ChainOfThoughtSummary(ctx, act.arg, FormatText)
	default:
		return "Unknown tool: " + act.tool
	}
}

func (e *Engine) searchObservation(ctx context.Context, query string) string {
	if e.search == nil {
		return searchFailedObs
	}
	resp, err := e.search.Query(ctx, query)
	if err != nil {
		return searchFailedObs
	}
	if len(resp.Results) == 0 {
		if resp.Summary != "" {
			return resp.Summary
		}
		return noSearchResultsObs
	}
	lines := make([]string, 0, observationResults)
	for i, r := range resp.Results {
		if i == observationResults {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", r.Title, truncateRunes(r.Snippet, observationBody)))
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
