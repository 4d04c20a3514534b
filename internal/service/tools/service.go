package tools

import (
	"context"
	"fmt"

	"synthesistalk/internal/models"
	"synthesistalk/internal/service/prompt"
)

const visualizeHistoryText = "Generated visualization chart from research data"

// HistoryStore is the part of the history store tool calls need.
type HistoryStore interface {
	Read(ctx context.Context, userID string) ([]models.Message, error)
	Append(ctx context.Context, userID string, role models.Role, content string) (*models.Message, error)
}

// Service prepares tool calls from a user's history and dispatches them.
type Service struct {
	history    HistoryStore
	selector   *prompt.Selector
	dispatcher *Dispatcher
}

func NewService(history HistoryStore, selector *prompt.Selector, dispatcher *Dispatcher) *Service {
	return &Service{history: history, selector: selector, dispatcher: dispatcher}
}

// Prepare formats the input and builds the context bundle for inv. Calls
// without a user identity run with empty history.
func (s *Service) Prepare(ctx context.Context, inv models.ToolInvocation) (Request, error) {
	var history []models.Message
	if inv.UserID != "" {
		var err error
		history, err = s.history.Read(ctx, inv.UserID)
		if err != nil {
			return Request{}, fmt.Errorf("read history: %w", err)
		}
	}
	input := prompt.FormatInput(history, inv.InputText, inv.ToolName)
	return Request{
		Tool:    inv.ToolName,
		Input:   input,
		Bundle:  s.selector.PrepareContext(history, input, inv.ToolName),
		History: history,
	}, nil
}

// Run prepares and dispatches inv without changing history.
func (s *Service) Run(ctx context.Context, inv models.ToolInvocation) (models.ToolResult, error) {
	req, err := s.Prepare(ctx, inv)
	if err != nil {
		return models.ToolResult{}, err
	}
	return s.dispatcher.Dispatch(ctx, req)
}

// Use runs inv and, for a known user, appends the raw input and a readable
// form of the result to history.
func (s *Service) Use(ctx context.Context, inv models.ToolInvocation) (models.ToolResult, error) {
	result, err := s.Run(ctx, inv)
	if err != nil {
		return result, err
	}
	if inv.UserID == "" {
		return result, nil
	}
	if _, err := s.history.Append(ctx, inv.UserID, models.RoleUser, inv.InputText); err != nil {
		return result, fmt.Errorf("record tool input: %w", err)
	}
	if _, err := s.history.Append(ctx, inv.UserID, models.RoleAssistant, HistoryText(inv.ToolName, result)); err != nil {
		return result, fmt.Errorf("record tool result: %w", err)
	}
	return result, nil
}

// HistoryText is the history entry stored for a tool result.
func HistoryText(toolName string, result models.ToolResult) string {
	switch {
	case result.IsText():
		return result.Text
	case toolName == models.ToolVisualize:
		return visualizeHistoryText
	default:
		return fmt.Sprintf("Completed %s operation", toolName)
	}
}
