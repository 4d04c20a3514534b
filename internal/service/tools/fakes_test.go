package tools

import (
	"context"
	"errors"

	"synthesistalk/internal/models"
	"synthesistalk/internal/service/ai"
	"synthesistalk/internal/service/prompt"
	"synthesistalk/internal/service/reasoning"
)

type recordingModel struct {
	replies []string
	bundles []models.ContextBundle
}

func (m *recordingModel) Complete(_ context.Context, bundle models.ContextBundle) (string, error) {
	m.bundles = append(m.bundles, bundle.Clone())
	if len(m.replies) == 0 {
		return "", &ai.GatewayError{Gateway: "model", Op: "complete", Err: errors.New("no reply scripted")}
	}
	next := m.replies[0]
	m.replies = m.replies[1:]
	return next, nil
}

type stubSearch struct {
	resp    *ai.SearchResponse
	queries []string
}

func (s *stubSearch) Query(_ context.Context, query string) (*ai.SearchResponse, error) {
	s.queries = append(s.queries, query)
	if s.resp == nil {
		return &ai.SearchResponse{}, nil
	}
	return s.resp, nil
}

type stubExporter struct {
	path  string
	err   error
	texts []string
}

func (e *stubExporter) Render(text, title string) (string, error) {
	e.texts = append(e.texts, text)
	return e.path, e.err
}

type memoryHistory struct {
	entries map[string][]models.Message
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{entries: make(map[string][]models.Message)}
}

func (h *memoryHistory) Read(_ context.Context, userID string) ([]models.Message, error) {
	return append([]models.Message(nil), h.entries[userID]...), nil
}

func (h *memoryHistory) Append(_ context.Context, userID string, role models.Role, content string) (*models.Message, error) {
	msg := models.Message{UserID: userID, Role: role, Content: content}
	h.entries[userID] = append(h.entries[userID], msg)
	return &msg, nil
}

func (h *memoryHistory) seed(userID string, texts ...string) {
	for i, text := range texts {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		h.entries[userID] = append(h.entries[userID], models.Message{UserID: userID, Role: role, Content: text})
	}
}

type fixture struct {
	model    *recordingModel
	search   *stubSearch
	exporter *stubExporter
	history  *memoryHistory
	service  *Service
}

func newFixture(replies ...string) *fixture {
	f := &fixture{
		model:    &recordingModel{replies: replies},
		search:   &stubSearch{},
		exporter: &stubExporter{path: "exports/out.pdf"},
		history:  newMemoryHistory(),
	}
	engine := reasoning.NewEngine(f.model, f.search, reasoning.Options{})
	f.service = NewService(f.history, prompt.NewSelector(10), NewDispatcher(engine, f.exporter))
	return f
}
