package models

// UploadResult describes a processed document upload.
type UploadResult struct {
	FileName         string `json:"filename"`
	FileType         string `json:"file_type"`
	ExtractedContent string `json:"extracted_content"`
	Summary          string `json:"summary"`
	Success          bool   `json:"success"`
}
