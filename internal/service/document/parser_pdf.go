package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/ledongthuc/pdf"
)

// pdfParser extracts plain text page by page.
type pdfParser struct{}

func (pdfParser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if len(content) == 0 {
		return nil, errors.New("empty pdf content")
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// unreadable pages are skipped
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(pageText)
	}
	return []*schema.Document{{Content: text.String(), MetaData: metaFrom(opts)}}, nil
}

func metaFrom(opts []parser.Option) map[string]any {
	o := parser.GetCommonOptions(nil, opts...)
	meta := make(map[string]any, len(o.ExtraMeta)+1)
	for k, v := range o.ExtraMeta {
		meta[k] = v
	}
	if o.URI != "" {
		meta["uri"] = o.URI
	}
	return meta
}
