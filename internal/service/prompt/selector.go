package prompt

import (
	"strings"

	"synthesistalk/internal/models"
)

const (
	DefaultWindow       = 10
	searchShortHistory  = 4
	searchRecentEntries = 4
	searchMaxEntries    = 6
)

// Selector turns stored history into the bounded context sent with one model call.
type Selector struct {
	window int
}

func NewSelector(window int) *Selector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Selector{window: window}
}

// PrepareContext builds the bundle for toolName: system instruction, selected
// history, then the current input when it is not blank.
func (s *Selector) PrepareContext(history []models.Message, input, toolName string) models.ContextBundle {
	var selected []models.Message
	if toolName == models.ToolSearch {
		selected = SelectSearchContext(history)
	} else {
		selected = lastN(history, s.window)
	}

	bundle := make(models.ContextBundle, 0, len(selected)+2)
	bundle = append(bundle, models.ContextMessage{Role: models.RoleSystem, Content: SystemMessage(toolName)})
	for i, msg := range selected {
		bundle = append(bundle, models.ContextMessage{Role: roleOf(msg, i), Content: msg.Content})
	}
	if strings.TrimSpace(input) != "" {
		bundle = append(bundle, models.ContextMessage{Role: models.RoleUser, Content: input})
	}
	return bundle
}

// SelectSearchContext keeps the most recent topic-establishing exchange plus
// the last two exchanges, never more than six entries.
func SelectSearchContext(history []models.Message) []models.Message {
	if len(history) <= searchShortHistory {
		return history
	}

	selected := make([]models.Message, 0, searchMaxEntries)
	for i := len(history) - 1; i >= 0; i-- {
		if !isUserTurn(history, i) || !isTopicEstablishing(history[i].Content) {
			continue
		}
		selected = append(selected, history[i])
		if i+1 < len(history) {
			selected = append(selected, history[i+1])
		}
		break
	}

	for _, msg := range history[len(history)-searchRecentEntries:] {
		if !containsText(selected, msg.Content) {
			selected = append(selected, msg)
		}
	}
	if len(selected) > searchMaxEntries {
		selected = selected[len(selected)-searchMaxEntries:]
	}
	return selected
}

func lastN(history []models.Message, n int) []models.Message {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func containsText(msgs []models.Message, text string) bool {
	for _, m := range msgs {
		if m.Content == text {
			return true
		}
	}
	return false
}

// roleOf prefers the stored role and falls back to parity within the slice.
func roleOf(msg models.Message, pos int) models.Role {
	switch msg.Role {
	case models.RoleUser, models.RoleAssistant:
		return msg.Role
	}
	if pos%2 == 0 {
		return models.RoleUser
	}
	return models.RoleAssistant
}

func isUserTurn(history []models.Message, i int) bool {
	return roleOf(history[i], i) == models.RoleUser
}
