package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"synthesistalk/internal/models"
	"synthesistalk/internal/service/document"
	"synthesistalk/internal/service/prompt"
	"synthesistalk/internal/service/reasoning"
)

const (
	uploadSummaryRunes = 2000
	uploadPreviewRunes = 500
)

// HistoryStore is the history surface chat needs.
type HistoryStore interface {
	Read(ctx context.Context, userID string) ([]models.Message, error)
	Append(ctx context.Context, userID string, role models.Role, content string) (*models.Message, error)
	Clear(ctx context.Context, userID string) error
}

// Extractor turns an uploaded file into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, ext string) (string, error)
}

// Service answers chat messages and document uploads over a user's history.
type Service struct {
	history   HistoryStore
	selector  *prompt.Selector
	engine    *reasoning.Engine
	extractor Extractor
}

func NewService(history HistoryStore, selector *prompt.Selector, engine *reasoning.Engine, extractor Extractor) *Service {
	return &Service{history: history, selector: selector, engine: engine, extractor: extractor}
}

// Send answers message with the user's recent context and returns the reply
// together with the updated history texts. Both turns are recorded only once
// the reply exists, so a failed call leaves history untouched.
func (s *Service) Send(ctx context.Context, userID, message string) (string, []string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil, errors.New("user_id is required")
	}
	if strings.TrimSpace(message) == "" {
		return "", nil, errors.New("message is required")
	}
	history, err := s.history.Read(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("read history: %w", err)
	}
	pending := append(history[:len(history):len(history)], models.Message{UserID: userID, Role: models.RoleUser, Content: message})

	reply := s.engine.RespondWithContext(ctx, s.selector.PrepareContext(pending, "", ""))
	if _, err := s.history.Append(ctx, userID, models.RoleUser, message); err != nil {
		return "", nil, fmt.Errorf("record message: %w", err)
	}
	msg, err := s.history.Append(ctx, userID, models.RoleAssistant, reply)
	if err != nil {
		return "", nil, fmt.Errorf("record reply: %w", err)
	}
	return reply, models.Contents(append(pending, *msg)), nil
}

// Upload extracts the text of a document, summarizes its beginning and notes
// the upload in the user's history. Unsupported file types give a
// *document.UnsupportedError before anything is read.
func (s *Service) Upload(ctx context.Context, userID, fileName string, data []byte) (*models.UploadResult, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !document.Supported(ext) {
		return nil, &document.UnsupportedError{Ext: ext}
	}
	content, err := s.extractor.Extract(ctx, data, ext)
	if err != nil {
		return nil, err
	}

	summary := s.engine.ChainOfThoughtSummary(ctx, truncateRunes(content, uploadSummaryRunes), reasoning.FormatText)
	icon := "📝"
	if ext == ".pdf" {
		icon = "📄"
	}
	entry := fmt.Sprintf("%s Uploaded **%s**\n\n📝 Summary:\n%s", icon, fileName, summary)
	if strings.TrimSpace(userID) != "" {
		if _, err := s.history.Append(ctx, userID, models.RoleAssistant, entry); err != nil {
			return nil, fmt.Errorf("record upload: %w", err)
		}
	}

	preview := truncateRunes(content, uploadPreviewRunes)
	if preview != content {
		preview += "..."
	}
	return &models.UploadResult{
		FileName:         fileName,
		FileType:         ext,
		ExtractedContent: preview,
		Summary:          summary,
		Success:          true,
	}, nil
}

// Reset drops the user's conversation history.
func (s *Service) Reset(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user_id is required")
	}
	return s.history.Clear(ctx, userID)
}

// TopicTitle names a conversation without touching any history.
func (s *Service) TopicTitle(ctx context.Context, conversationText string) string {
	return s.engine.GenerateTopicTitle(ctx, conversationText)
}

func truncateRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
