package prompt

import (
	"strings"

	"synthesistalk/internal/models"
)

const (
	visualizeFallback = "Generate visualization from our discussion"
	searchFallback    = "Please provide a search query"
)

// FormatInput rewrites the raw tool input using conversation history. Tools
// other than visualize and search get the input unchanged.
func FormatInput(history []models.Message, input, toolName string) string {
	switch toolName {
	case models.ToolVisualize:
		if strings.TrimSpace(input) != "" {
			return input
		}
		for i := len(history) - 1; i >= 0; i-- {
			if !isUserTurn(history, i) {
				return history[i].Content
			}
		}
		return visualizeFallback
	case models.ToolSearch:
		if strings.TrimSpace(input) != "" {
			if len(strings.Fields(input)) <= 2 && len(history) > 0 {
				if topic := ExtractTopic(history); topic != "" {
					return input + " " + topic
				}
			}
			return input
		}
		if topic := ExtractTopic(history); topic != "" {
			return "search for more information about " + topic
		}
		return searchFallback
	default:
		return input
	}
}
