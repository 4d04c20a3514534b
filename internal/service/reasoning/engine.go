package reasoning

import (
	"context"
	"errors"
	"log"

	"synthesistalk/internal/models"
	"synthesistalk/internal/service/ai"
)

const (
	llmFailureText     = "Error: Failed to get response from LLM."
	contextFailureText = "Sorry, I couldn't generate a response due to a context error."
)

// Engine runs every model-backed operation. Gateway failures never leave the
// engine; each operation degrades to fixed placeholder text instead.
type Engine struct {
	model               ai.ModelGateway
	search              ai.SearchGateway
	selfCorrectAttempts int
	maxReactSteps       int
}

type Options struct {
	SelfCorrectAttempts int
	MaxReactSteps       int
}

func NewEngine(model ai.ModelGateway, search ai.SearchGateway, opts Options) *Engine {
	if opts.SelfCorrectAttempts <= 0 {
		opts.SelfCorrectAttempts = 2
	}
	if opts.MaxReactSteps <= 0 {
		opts.MaxReactSteps = 1
	}
	return &Engine{
		model:               model,
		search:              search,
		selfCorrectAttempts: opts.SelfCorrectAttempts,
		maxReactSteps:       opts.MaxReactSteps,
	}
}

func (e *Engine) complete(ctx context.Context, op string, bundle models.ContextBundle) (string, error) {
	if e.model == nil {
		return "", &ai.GatewayError{Gateway: "model", Op: op, Err: errors.New("model gateway not configured")}
	}
	reply, err := e.model.Complete(ctx, bundle)
	if err != nil {
		var gwErr *ai.GatewayError
		if errors.As(err, &gwErr) {
			log.Printf("reasoning %s: %v", op, gwErr)
		} else {
			log.Printf("reasoning %s: unexpected model failure: %v", op, err)
		}
		return "", err
	}
	return reply, nil
}

// ask sends prompt as the only user message.
func (e *Engine) ask(ctx context.Context, op, prompt string) (string, error) {
	return e.complete(ctx, op, models.ContextBundle{{Role: models.RoleUser, Content: prompt}})
}
