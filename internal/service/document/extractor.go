package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
)

// SupportedExtensions lists the upload types text can be extracted from.
var SupportedExtensions = []string{".pdf", ".docx", ".doc"}

// UnsupportedError reports an upload whose extension has no extractor.
type UnsupportedError struct {
	Ext string
}

func (e *UnsupportedError) Error() string {
	return "Unsupported file type. Supported formats: " + strings.Join(SupportedExtensions, ", ")
}

// Extractor turns uploaded bytes into plain text.
type Extractor struct {
	loader  *file.FileLoader
	tempDir string
}

// NewExtractor builds the loader. Uploads are staged under tempDir while they
// are parsed.
func NewExtractor(ctx context.Context, tempDir string) (*Extractor, error) {
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers: map[string]parser.Parser{
			".pdf":  pdfParser{},
			".docx": docxParser{},
			".doc":  docxParser{},
		},
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init document parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init document loader: %w", err)
	}
	if tempDir != "" {
		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &Extractor{loader: loader, tempDir: tempDir}, nil
}

// Supported reports whether ext (with the leading dot) can be extracted.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}

// Extract returns the text of data, a file with extension ext. Unsupported
// extensions give an *UnsupportedError.
func (e *Extractor) Extract(ctx context.Context, data []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	if !Supported(ext) {
		return "", &UnsupportedError{Ext: ext}
	}
	if len(data) == 0 {
		return "", errors.New("uploaded file is empty")
	}

	tmp, err := os.CreateTemp(e.tempDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}

	docs, err := e.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", fmt.Errorf("extract %s text: %w", strings.TrimPrefix(ext, "."), err)
	}
	var builder strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		builder.WriteString(content)
		builder.WriteString("\n\n")
	}
	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", errors.New("file has no readable text content")
	}
	return text, nil
}
