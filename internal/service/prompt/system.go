package prompt

import "synthesistalk/internal/models"

const basePrompt = "You are SynthesisTalk, an intelligent research assistant. " +
	"Maintain conversation context and provide helpful, accurate responses. " +
	"Always refer to previous messages when relevant and ask for clarification if needed."

var toolClauses = map[string]string{
	models.ToolSearch: "Focus on the current research topic from our conversation. " +
		"Use the conversation context to understand what the user is researching. " +
		"If the user's search query is brief, expand it based on our discussion context. " +
		"Provide relevant search queries that build on our ongoing research conversation.",
	models.ToolSummarize: "Provide clear, structured summaries while maintaining context from previous discussion.",
	models.ToolClarify:   "Explain concepts clearly while referencing previous conversation context when relevant.",
	models.ToolVisualize: "Generate visualization data based on the research insights from our conversation.",
	models.ToolReact:     "Use the ReAct approach while maintaining awareness of our ongoing research discussion.",
	models.ToolQA:        "Answer questions using chain-of-thought reasoning while considering our conversation history.",
}

// SystemMessage returns the base instruction, extended with the tool clause
// when the tool has one.
func SystemMessage(toolName string) string {
	if clause, ok := toolClauses[toolName]; ok {
		return basePrompt + "\n\nSpecific task: " + clause
	}
	return basePrompt
}
