package ai

import (
	"context"
	"fmt"

	"synthesistalk/internal/models"
)

// ModelGateway sends a role-tagged message list to a language model.
type ModelGateway interface {
	Complete(ctx context.Context, messages models.ContextBundle) (string, error)
}

// SearchGateway runs a web search.
type SearchGateway interface {
	Query(ctx context.Context, query string) (*SearchResponse, error)
}

// SearchResponse carries ranked results, or a provider-given summary when the
// provider answered with text instead of a result list.
type SearchResponse struct {
	Results []models.SearchResult
	Summary string
}

// GatewayError reports a network, HTTP, timeout or decoding failure of a
// remote gateway.
type GatewayError struct {
	Gateway string
	Op      string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s gateway %s: %v", e.Gateway, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func modelError(op string, err error) error {
	return &GatewayError{Gateway: "model", Op: op, Err: err}
}

func searchError(op string, err error) error {
	return &GatewayError{Gateway: "search", Op: op, Err: err}
}
