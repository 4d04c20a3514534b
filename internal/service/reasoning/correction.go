package reasoning

import (
	"context"
	"fmt"
	"strings"
)

const judgePrompt = "Is the following response vague, incomplete, or unclear? Answer only \"yes\" or \"no\".\n\nResponse:\n%s"

const retryPrompt = "The previous response was not helpful because it was vague, incomplete, or unclear. " +
	"Write a clearer, more complete and more specific answer.\n\nRequest:\n%s\n\nPrevious response:\n%s"

// SelfCorrectedResponse answers prompt, then asks the model to judge the answer
// and revises it up to maxAttempts times. When no revision is accepted the last
// one is returned. A zero maxAttempts uses the engine default.
func (e *Engine) SelfCorrectedResponse(ctx context.Context, prompt string, maxAttempts int) string {
	if maxAttempts <= 0 {
		maxAttempts = e.selfCorrectAttempts
	}
	answer, err := e.ask(ctx, "self-correct", prompt)
	if err != nil {
		return llmFailureText
	}
	if e.acceptable(ctx, answer) {
		return answer
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		revised, err := e.ask(ctx, "self-correct retry", fmt.Sprintf(retryPrompt, prompt, answer))
		if err != nil {
			return answer
		}
		answer = revised
		if e.acceptable(ctx, answer) {
			return answer
		}
	}
	return answer
}

// acceptable reports whether the judgment contains "no" anywhere. This is a
// substring match, so replies such as "not sure" also accept. A failed
// judgment call accepts the answer as is.
func (e *Engine) acceptable(ctx context.Context, answer string) bool {
	verdict, err := e.ask(ctx, "self-correct judge", fmt.Sprintf(judgePrompt, answer))
	if err != nil {
		return true
	}
	return strings.Contains(strings.ToLower(verdict), "no")
}
