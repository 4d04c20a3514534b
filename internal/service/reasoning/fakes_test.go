package reasoning

import (
	"context"
	"errors"
	"sync"

	"synthesistalk/internal/models"
	"synthesistalk/internal/service/ai"
)

type scriptedReply struct {
	text string
	err  error
}

// scriptedModel answers calls in order and records every bundle it receives.
type scriptedModel struct {
	mu      sync.Mutex
	replies []scriptedReply
	bundles []models.ContextBundle
}

func newScriptedModel(texts ...string) *scriptedModel {
	m := &scriptedModel{}
	for _, t := range texts {
		m.replies = append(m.replies, scriptedReply{text: t})
	}
	return m
}

func (m *scriptedModel) fail() *scriptedModel {
	m.replies = append(m.replies, scriptedReply{err: &ai.GatewayError{Gateway: "model", Op: "complete", Err: errors.New("boom")}})
	return m
}

func (m *scriptedModel) Complete(_ context.Context, bundle models.ContextBundle) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles = append(m.bundles, bundle.Clone())
	if len(m.replies) == 0 {
		return "", &ai.GatewayError{Gateway: "model", Op: "complete", Err: errors.New("script exhausted")}
	}
	next := m.replies[0]
	m.replies = m.replies[1:]
	return next.text, next.err
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bundles)
}

// prompt returns the last message content of call i.
func (m *scriptedModel) prompt(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bundles[i]
	return b[len(b)-1].Content
}

type fakeSearch struct {
	resp    *ai.SearchResponse
	err     error
	queries []string
}

func (f *fakeSearch) Query(_ context.Context, query string) (*ai.SearchResponse, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}
