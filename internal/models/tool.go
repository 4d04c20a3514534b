package models

// Tool identifiers understood by the dispatcher.
const (
	ToolSearch    = "search"
	ToolSummarize = "summarize"
	ToolClarify   = "clarify"
	ToolVisualize = "visualize"
	ToolReact     = "react_agent"
	ToolQA        = "qa"
	ToolExportPDF = "export_pdf"
)

// ToolInvocation is a request-scoped tool call.
type ToolInvocation struct {
	ToolName  string `json:"tool_name"`
	InputText string `json:"input_text"`
	UserID    string `json:"user_id,omitempty"`
}

// VisualDatum is one chart bar produced from model output.
type VisualDatum struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SearchResult is one ranked web search snippet.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ToolResult is the outcome of a dispatched tool. Exactly one field is set.
type ToolResult struct {
	Text     string        `json:"text,omitempty"`
	Chart    []VisualDatum `json:"chart,omitempty"`
	FilePath string        `json:"file_path,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Payload renders the result the way the HTTP layer returns it.
func (r ToolResult) Payload() any {
	switch {
	case r.Error != "":
		return map[string]string{"error": r.Error}
	case r.FilePath != "":
		return map[string]string{"file_path": r.FilePath}
	case r.Chart != nil:
		return r.Chart
	default:
		return r.Text
	}
}

// IsText reports whether the result is plain text.
func (r ToolResult) IsText() bool {
	return r.Error == "" && r.FilePath == "" && r.Chart == nil
}
